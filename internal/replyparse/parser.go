// Package replyparse recovers structured test-case data from free-text model
// replies. Recovery strategies are independent pure functions tried in a fixed
// order; the first whose candidate has a valid shape wins.
package replyparse

import (
	"errors"
	"log/slog"
	"strings"
)

var errNoCandidate = errors.New("no candidate found")

// Candidate is what a strategy recovered: the decoded value and the exact
// text it decoded.
type Candidate struct {
	Value  any
	Source string
}

// Strategy is one recovery attempt over the untouched raw reply.
type Strategy struct {
	Name    string
	Recover func(raw string) (Candidate, error)
}

// Result is a parsed reply.
type Result struct {
	Records    []map[string]any
	Suggestion string
	Bare       bool
	// Strategy names the strategy that succeeded.
	Strategy string
	// Source is the text the winning strategy decoded.
	Source string
}

// DefaultStrategies returns the recovery chain in order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "whole_text", Recover: WholeText},
		{Name: "tagged_fence", Recover: TaggedFence},
		{Name: "any_fence", Recover: AnyFence},
		{Name: "keyed_substring", Recover: KeyedSubstring},
		{Name: "truncation_repair", Recover: TruncationRepair},
		{Name: "independent_objects", Recover: IndependentObjects},
		{Name: "loose_grammar", Recover: LooseGrammar},
		{Name: "title_scrape", Recover: TitleScrape},
	}
}

type Parser struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New returns a parser over the default chain. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Parser {
	return NewWithStrategies(logger, DefaultStrategies())
}

func NewWithStrategies(logger *slog.Logger, strategies []Strategy) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{strategies: strategies, logger: logger}
}

// Parse parses raw with the default chain.
func Parse(raw string) (Result, error) {
	return New(nil).Parse(raw)
}

// Parse runs the chain. It fails with *UnrecoverableResponseError when no
// strategy yields a valid shape.
func (p *Parser) Parse(raw string) (Result, error) {
	attempts := make([]AttemptError, 0, len(p.strategies))
	for _, s := range p.strategies {
		cand, err := s.Recover(raw)
		if err == nil {
			var shape Shape
			shape, err = interpret(cand.Value)
			if err == nil {
				p.logger.Debug("replyparse.strategy.ok",
					"strategy", s.Name,
					"records", len(shape.Cases),
					"failed_before", len(attempts))
				return Result{
					Records:    shape.Cases,
					Suggestion: shape.Suggestion,
					Bare:       shape.Bare,
					Strategy:   s.Name,
					Source:     cand.Source,
				}, nil
			}
		}
		attempts = append(attempts, AttemptError{Strategy: s.Name, Err: err})
	}

	p.logger.Warn("replyparse.unrecoverable", "strategies", len(attempts), "reply_len", len(raw))
	return Result{}, &UnrecoverableResponseError{
		Preview:  Preview(strings.TrimSpace(raw), PreviewRunes),
		Length:   len(raw),
		Attempts: attempts,
	}
}
