package extraction

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// fanOut processes chunks with at most Parallelism requests in flight.
// Outcomes are buffered by index so aggregation order matches the sequential
// path. "part i/n" is emitted once chunks 1..i-1 have completed, the same
// point at which the sequential path would start chunk i.
func (o *Orchestrator) fanOut(ctx context.Context, chunks []string, onProgress ProgressFn) []chunkOutcome {
	n := len(chunks)
	outcomes := make([]chunkOutcome, n)
	seq := &prefixProgress{total: n, onProgress: onProgress, done: make([]bool, n)}

	var g errgroup.Group
	g.SetLimit(o.opts.Parallelism)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		seq.dispatched(i)
		g.Go(func() error {
			outcomes[i] = o.processChunk(ctx, chunk, i+1, n)
			seq.completed(i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// prefixProgress resequences chunk completions into index-ordered progress.
type prefixProgress struct {
	mu         sync.Mutex
	total      int
	onProgress ProgressFn
	done       []bool
	sent       int // progress lines emitted so far
	launched   int // chunks handed to the group so far
}

func (p *prefixProgress) dispatched(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.launched = i + 1
	p.advance()
}

func (p *prefixProgress) completed(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done[i] = true
	p.advance()
}

// advance emits "part k/n" for every launched chunk k whose predecessors are
// all done. Callers hold mu.
func (p *prefixProgress) advance() {
	for p.sent < p.launched && (p.sent == 0 || p.done[p.sent-1]) {
		p.sent++
		emit(p.onProgress, chunkProgress(p.sent, p.total))
	}
}
