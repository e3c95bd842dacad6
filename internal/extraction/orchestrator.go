// Package extraction runs one document through chunking, model requests,
// reply recovery, normalization and aggregation.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/prd2tc/internal/chunker"
	"github.com/joelkehle/prd2tc/internal/llm"
	"github.com/joelkehle/prd2tc/internal/replyparse"
	"github.com/joelkehle/prd2tc/internal/testcase"
	"github.com/joelkehle/prd2tc/internal/tokens"
)

const tracerName = "github.com/joelkehle/prd2tc/internal/extraction"

// Defaults for request parameters.
const (
	DefaultChunkTemperature    = 0.8
	DefaultChunkMaxTokens      = 3000
	DefaultDocumentTemperature = 0.7
	DefaultDocumentMaxTokens   = 4000
)

// Document is the immutable input of a run.
type Document struct {
	ID   string
	Name string
	Text string
}

type Options struct {
	DecisionThreshold   int
	ChunkBudget         int
	RequestTimeout      time.Duration
	ChunkTemperature    float64
	ChunkMaxTokens      int
	DocumentTemperature float64
	DocumentMaxTokens   int
	// Parallelism above 1 issues chunk requests concurrently.
	Parallelism    int
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		DecisionThreshold:   chunker.DefaultDecisionThreshold,
		ChunkBudget:         chunker.DefaultChunkBudget,
		RequestTimeout:      llm.DefaultTimeout,
		ChunkTemperature:    DefaultChunkTemperature,
		ChunkMaxTokens:      DefaultChunkMaxTokens,
		DocumentTemperature: DefaultDocumentTemperature,
		DocumentMaxTokens:   DefaultDocumentMaxTokens,
		Parallelism:         1,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DecisionThreshold <= 0 {
		o.DecisionThreshold = d.DecisionThreshold
	}
	if o.ChunkBudget <= 0 {
		o.ChunkBudget = d.ChunkBudget
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.ChunkTemperature == 0 {
		o.ChunkTemperature = d.ChunkTemperature
	}
	if o.ChunkMaxTokens <= 0 {
		o.ChunkMaxTokens = d.ChunkMaxTokens
	}
	if o.DocumentTemperature == 0 {
		o.DocumentTemperature = d.DocumentTemperature
	}
	if o.DocumentMaxTokens <= 0 {
		o.DocumentMaxTokens = d.DocumentMaxTokens
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
	return o
}

// Outcome is a run result with per-chunk bookkeeping.
type Outcome struct {
	Result   testcase.Result
	Chunks   int
	Failures []ChunkFailure
	// Strategies counts the winning parse strategy per reply.
	Strategies map[string]int
}

type Orchestrator struct {
	caller   llm.Caller
	parser   *replyparse.Parser
	splitter *chunker.Splitter
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
}

func New(caller llm.Caller, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		caller:   caller,
		parser:   replyparse.New(opts.Logger),
		splitter: &chunker.Splitter{DecisionThreshold: opts.DecisionThreshold, Estimate: tokens.Estimate},
		opts:     opts,
		logger:   opts.Logger,
		tracer:   opts.TracerProvider.Tracer(tracerName),
	}
}

// Run extracts the records of doc. A chunkBudget of zero uses the configured
// budget.
func (o *Orchestrator) Run(ctx context.Context, doc Document, chunkBudget int, onProgress ProgressFn) (testcase.Result, error) {
	out, err := o.Execute(ctx, doc, chunkBudget, onProgress)
	return out.Result, err
}

// Execute is Run with per-chunk bookkeeping.
func (o *Orchestrator) Execute(ctx context.Context, doc Document, chunkBudget int, onProgress ProgressFn) (Outcome, error) {
	if chunkBudget <= 0 {
		chunkBudget = o.opts.ChunkBudget
	}
	estimate := o.splitter.Estimate(doc.Text)
	ctx, span := o.tracer.Start(ctx, "extraction.run", trace.WithAttributes(
		attribute.String("document.id", doc.ID),
		attribute.String("document.name", doc.Name),
		attribute.Int("document.estimate", estimate),
	))
	defer span.End()

	emit(onProgress, ProgressStarted)
	var (
		out Outcome
		err error
	)
	if !o.splitter.NeedsSplit(doc.Text) {
		out, err = o.runWhole(ctx, doc)
	} else {
		out, err = o.runChunked(ctx, doc, chunkBudget, onProgress)
	}
	span.SetAttributes(attribute.Int("extraction.chunks", out.Chunks), attribute.Int("extraction.failed_chunks", len(out.Failures)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(onProgress, failedProgress(err))
		o.logger.Error("extraction.run.failed", "document", doc.ID, "chunks", out.Chunks, "err", err)
		return out, err
	}
	span.SetAttributes(attribute.Int("extraction.records", len(out.Result.Records)))
	emit(onProgress, ProgressFinishing)
	o.logger.Info("extraction.run.done",
		"document", doc.ID,
		"chunks", out.Chunks,
		"failed_chunks", len(out.Failures),
		"records", len(out.Result.Records))
	return out, nil
}

// runWhole issues one request for the whole document. Its failure fails the run.
func (o *Orchestrator) runWhole(ctx context.Context, doc Document) (Outcome, error) {
	out := Outcome{Strategies: map[string]int{}}
	if strings.TrimSpace(doc.Text) == "" {
		return out, &EmptyResultError{Document: doc.Name}
	}
	out.Chunks = 1
	o.logger.Info("extraction.run.start", "document", doc.ID, "mode", "whole", "chunks", 1)

	res, err := o.request(ctx, 1, 1, llm.Request{
		Prompt:      DocumentPrompt(doc.Text),
		Temperature: o.opts.DocumentTemperature,
		MaxTokens:   o.opts.DocumentMaxTokens,
	})
	if err != nil {
		return out, err
	}
	out.Strategies[res.Strategy]++

	records := normalizeAll(res.Records, 0)
	suggestion := res.Suggestion
	if suggestion == "" {
		suggestion = SingleRequestSuggestion
	}
	out.Result = testcase.Merge(records, []string{suggestion}, doc.Name)
	if len(out.Result.Records) == 0 {
		return out, &EmptyResultError{Document: doc.Name, Chunks: 1}
	}
	return out, nil
}

// chunkOutcome is the buffered result of one chunk.
type chunkOutcome struct {
	parsed replyparse.Result
	err    error
	ran    bool
}

func (o *Orchestrator) runChunked(ctx context.Context, doc Document, budget int, onProgress ProgressFn) (Outcome, error) {
	chunks := o.splitter.Split(doc.Text, budget)
	n := len(chunks)
	out := Outcome{Chunks: n, Strategies: map[string]int{}}
	o.logger.Info("extraction.run.start",
		"document", doc.ID,
		"mode", "chunked",
		"chunks", n,
		"budget", budget,
		"parallelism", o.opts.Parallelism)

	var outcomes []chunkOutcome
	if o.opts.Parallelism > 1 && n > 1 {
		outcomes = o.fanOut(ctx, chunks, onProgress)
	} else {
		outcomes = o.sequential(ctx, chunks, onProgress)
	}

	var (
		records     []testcase.Record
		suggestions []string
	)
	for i, oc := range outcomes {
		if !oc.ran {
			return out, fmt.Errorf("extraction canceled before chunk %d/%d: %w", i+1, n, ctx.Err())
		}
		if oc.err != nil {
			if n == 1 {
				return out, oc.err
			}
			out.Failures = append(out.Failures, ChunkFailure{Index: i + 1, Err: oc.err})
			continue
		}
		out.Strategies[oc.parsed.Strategy]++
		records = append(records, normalizeAll(oc.parsed.Records, len(records))...)
		suggestions = append(suggestions, oc.parsed.Suggestion)
	}

	out.Result = testcase.Merge(records, suggestions, doc.Name)
	if len(out.Result.Records) == 0 {
		return out, &EmptyResultError{Document: doc.Name, Chunks: n, Failures: out.Failures}
	}
	return out, nil
}

// sequential processes chunks in order, checking for cancellation between them.
func (o *Orchestrator) sequential(ctx context.Context, chunks []string, onProgress ProgressFn) []chunkOutcome {
	n := len(chunks)
	outcomes := make([]chunkOutcome, n)
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		emit(onProgress, chunkProgress(i+1, n))
		outcomes[i] = o.processChunk(ctx, chunk, i+1, n)
	}
	return outcomes
}

func (o *Orchestrator) processChunk(ctx context.Context, chunk string, index, total int) chunkOutcome {
	o.logger.Info("extraction.chunk.start", "chunk", index, "total", total, "estimate", o.splitter.Estimate(chunk))
	res, err := o.request(ctx, index, total, llm.Request{
		Prompt:      ChunkPrompt(chunk, index, total),
		Temperature: o.opts.ChunkTemperature,
		MaxTokens:   o.opts.ChunkMaxTokens,
	})
	if err != nil {
		o.logger.Warn("extraction.chunk.failed", "chunk", index, "total", total, "err", err)
		return chunkOutcome{err: err, ran: true}
	}
	o.logger.Info("extraction.chunk.done",
		"chunk", index,
		"total", total,
		"strategy", res.Strategy,
		"records", len(res.Records))
	return chunkOutcome{parsed: res, ran: true}
}

// request performs one bounded model call and parses the reply. Run
// cancellation does not reach an in-flight request; only the request timeout
// does.
func (o *Orchestrator) request(ctx context.Context, index, total int, req llm.Request) (replyparse.Result, error) {
	ctx, span := o.tracer.Start(ctx, "extraction.request", trace.WithAttributes(
		attribute.Int("chunk.index", index),
		attribute.Int("chunk.total", total),
	))
	defer span.End()

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.RequestTimeout)
	defer cancel()

	started := time.Now()
	raw, err := o.caller.Generate(reqCtx, req)
	if err != nil {
		cerr := &ChunkRequestError{Index: index, Total: total, Class: llm.Classify(err), Err: err}
		o.logger.Warn("llm.request.failed",
			"chunk", index,
			"class", string(cerr.Class),
			"elapsed", time.Since(started).Round(time.Millisecond),
			"err", err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, "request failed")
		return replyparse.Result{}, cerr
	}

	res, err := o.parser.Parse(raw)
	if err != nil {
		o.logger.Warn("extraction.reply.unrecoverable",
			"chunk", index,
			"reply_len", len(raw),
			"preview", replyparse.Preview(raw, replyparse.PreviewRunes))
		span.RecordError(err)
		span.SetStatus(codes.Error, "reply unrecoverable")
		return replyparse.Result{}, err
	}
	span.SetAttributes(attribute.String("reply.strategy", res.Strategy), attribute.Int("reply.records", len(res.Records)))
	return res, nil
}

// normalizeAll normalizes raw records, numbering survivors from offset.
func normalizeAll(raw []map[string]any, offset int) []testcase.Record {
	out := make([]testcase.Record, 0, len(raw))
	for _, m := range raw {
		if rec, ok := testcase.Normalize(m, offset+len(out)); ok {
			out = append(out, rec)
		}
	}
	return out
}

func emit(fn ProgressFn, msg string) {
	if fn != nil {
		fn(msg)
	}
}
