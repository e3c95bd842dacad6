package extraction

import (
	"errors"
	"fmt"

	"github.com/joelkehle/prd2tc/internal/llm"
)

// ErrEmptyResult matches every *EmptyResultError through errors.Is.
var ErrEmptyResult = errors.New("no usable test cases")

// ChunkRequestError is a failed model call for one chunk. Index is 1-based.
type ChunkRequestError struct {
	Index int
	Total int
	Class llm.FailureClass
	Err   error
}

func (e *ChunkRequestError) Error() string {
	return fmt.Sprintf("chunk %d/%d request failed (%s): %v", e.Index, e.Total, e.Class, e.Err)
}

func (e *ChunkRequestError) Unwrap() error { return e.Err }

// ChunkFailure records a chunk skipped during a run.
type ChunkFailure struct {
	Index int
	Err   error
}

// EmptyResultError is returned when no record survives a run.
type EmptyResultError struct {
	Document string
	Chunks   int
	Failures []ChunkFailure
}

func (e *EmptyResultError) Error() string {
	name := e.Document
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("%s: %v (%d chunk(s), %d failed)", name, ErrEmptyResult, e.Chunks, len(e.Failures))
}

func (e *EmptyResultError) Is(target error) bool { return target == ErrEmptyResult }

// Unwrap exposes the skipped chunk failures.
func (e *EmptyResultError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}
