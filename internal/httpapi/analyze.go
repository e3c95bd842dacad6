package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/joelkehle/prd2tc/internal/extraction"
	"github.com/joelkehle/prd2tc/internal/llm"
	"github.com/joelkehle/prd2tc/internal/store"
)

type analyzeRequest struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	Content   string `json:"content"`
}

// handleAnalyze runs extraction synchronously. Progress is observable through
// the progress route while the request is in flight; the session ID is the
// document ID.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, r, validationError("content is required"))
		return
	}

	ctx := r.Context()
	var (
		sess store.Session
		err  error
	)
	if id := strings.TrimSpace(req.SessionID); id != "" {
		sess, err = s.store.GetSession(ctx, id)
	} else {
		sess, err = s.store.CreateSession(ctx, req.FileName)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	caller, err := s.caller(ctx)
	if err != nil {
		s.writeError(w, r, &Error{Status: http.StatusServiceUnavailable, Code: CodeAnalysisFailed, Message: err.Error()})
		return
	}

	rc := s.board.Start(sess.ID)
	defer rc.Finish()

	name := strings.TrimSpace(req.FileName)
	if name == "" {
		name = sess.FileName
	}
	orch := extraction.New(caller, s.opts)
	result, err := orch.Run(ctx, extraction.Document{ID: sess.ID, Name: name, Text: req.Content}, s.opts.ChunkBudget, rc.Sink(nil))
	if err != nil {
		s.writeError(w, r, analysisError(err))
		return
	}
	if _, err := s.store.SaveResult(ctx, sess.ID, result); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"session_id":       sess.ID,
		"test_cases_count": len(result.Records),
		"suggestions":      result.Suggestions,
	})
}

func analysisError(err error) *Error {
	if errors.Is(err, extraction.ErrEmptyResult) {
		return &Error{Status: http.StatusUnprocessableEntity, Code: CodeEmptyResult, Message: err.Error()}
	}
	return &Error{
		Status:    http.StatusBadGateway,
		Code:      CodeAnalysisFailed,
		Message:   err.Error(),
		Transient: llm.Classify(err).Transient(),
	}
}

// caller builds the model caller from the active stored configuration, falling
// back to the environment.
func (s *Server) caller(ctx context.Context) (llm.Caller, error) {
	cfg := s.ai
	active, err := s.store.ActiveAIConfig(ctx)
	switch {
	case err == nil:
		cfg = llm.Config{Provider: active.Provider, Endpoint: active.Endpoint, Model: active.Model, APIKey: active.APIKey}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return s.newCaller(cfg)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"progress": s.board.Progress(id),
	})
}
