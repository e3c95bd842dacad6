package extraction

import (
	"sync"
	"sync/atomic"
)

// Progress messages.
const (
	ProgressNotStarted = "not started"
	ProgressStarted    = "analysis started"
	ProgressFinishing  = "analysis complete, optimizing results"
	progressFailedFmt  = "analysis failed: %s"
)

// ProgressFn receives human-readable progress lines.
type ProgressFn func(message string)

// RunContext holds the progress of one run. The orchestrator is its only
// writer; Progress may be called from any goroutine.
type RunContext struct {
	documentID string
	current    atomic.Value
	done       atomic.Bool
}

func NewRunContext(documentID string) *RunContext {
	rc := &RunContext{documentID: documentID}
	rc.current.Store(ProgressNotStarted)
	return rc
}

func (rc *RunContext) DocumentID() string { return rc.documentID }

// Report records msg as the latest progress.
func (rc *RunContext) Report(msg string) { rc.current.Store(msg) }

// Progress returns the most recently reported message.
func (rc *RunContext) Progress() string { return rc.current.Load().(string) }

// Finish marks the run as no longer in flight.
func (rc *RunContext) Finish() { rc.done.Store(true) }

func (rc *RunContext) Done() bool { return rc.done.Load() }

// Sink adapts the context to a ProgressFn, forwarding to next when non-nil.
func (rc *RunContext) Sink(next ProgressFn) ProgressFn {
	return func(msg string) {
		rc.Report(msg)
		if next != nil {
			next(msg)
		}
	}
}

// Board indexes run contexts by document ID for a polling layer.
type Board struct {
	mu   sync.RWMutex
	runs map[string]*RunContext
}

func NewBoard() *Board {
	return &Board{runs: map[string]*RunContext{}}
}

// Start registers a fresh run context for documentID, replacing any previous one.
func (b *Board) Start(documentID string) *RunContext {
	rc := NewRunContext(documentID)
	b.mu.Lock()
	b.runs[documentID] = rc
	b.mu.Unlock()
	return rc
}

// Progress returns the latest progress for documentID.
func (b *Board) Progress(documentID string) string {
	b.mu.RLock()
	rc, ok := b.runs[documentID]
	b.mu.RUnlock()
	if !ok {
		return ProgressNotStarted
	}
	return rc.Progress()
}

func (b *Board) Lookup(documentID string) (*RunContext, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rc, ok := b.runs[documentID]
	return rc, ok
}

func (b *Board) Forget(documentID string) {
	b.mu.Lock()
	delete(b.runs, documentID)
	b.mu.Unlock()
}
