// Package httpapi exposes extraction, progress polling and the stored test
// cases over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joelkehle/prd2tc/internal/extraction"
	"github.com/joelkehle/prd2tc/internal/llm"
	"github.com/joelkehle/prd2tc/internal/store"
	"github.com/joelkehle/prd2tc/internal/testcase"
)

const maxBodyBytes = 10 << 20

// Store is the persistence the server needs.
type Store interface {
	CreateSession(ctx context.Context, fileName string) (store.Session, error)
	GetSession(ctx context.Context, id string) (store.Session, error)
	ListSessions(ctx context.Context) ([]store.Session, error)
	RenameSession(ctx context.Context, id, title string) (store.Session, error)
	DeleteSession(ctx context.Context, id string) error
	SaveResult(ctx context.Context, sessionID string, result testcase.Result) ([]store.TestCase, error)
	ListTestCases(ctx context.Context, sessionID string) ([]store.TestCase, error)
	CreateTestCase(ctx context.Context, sessionID string, d testcase.Draft) (store.TestCase, error)
	UpdateTestCase(ctx context.Context, id string, d testcase.Draft) (store.TestCase, error)
	DeleteTestCase(ctx context.Context, id string) error
	CreateAIConfig(ctx context.Context, cfg store.AIConfig) (store.AIConfig, error)
	ListAIConfigs(ctx context.Context) ([]store.AIConfig, error)
	ActiveAIConfig(ctx context.Context) (store.AIConfig, error)
}

type Config struct {
	Store Store
	Board *extraction.Board
	// AI is used when no active configuration is stored.
	AI         llm.Config
	Extraction extraction.Options
	// NewCaller defaults to llm.NewCaller.
	NewCaller func(llm.Config) (llm.Caller, error)
	Logger    *slog.Logger
}

type Server struct {
	store     Store
	board     *extraction.Board
	ai        llm.Config
	opts      extraction.Options
	newCaller func(llm.Config) (llm.Caller, error)
	logger    *slog.Logger
}

func NewServer(cfg Config) http.Handler {
	s := &Server{
		store:     cfg.Store,
		board:     cfg.Board,
		ai:        cfg.AI,
		opts:      cfg.Extraction,
		newCaller: cfg.NewCaller,
		logger:    cfg.Logger,
	}
	if s.board == nil {
		s.board = extraction.NewBoard()
	}
	if s.newCaller == nil {
		s.newCaller = llm.NewCaller
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.opts.Logger == nil {
		s.opts.Logger = s.logger
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/analysis-progress/{id}", s.handleProgress)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleRenameSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/test-cases", s.handleListTestCases)
	mux.HandleFunc("POST /api/sessions/{id}/test-cases", s.handleCreateTestCase)
	mux.HandleFunc("PUT /api/test-cases/{id}", s.handleUpdateTestCase)
	mux.HandleFunc("DELETE /api/test-cases/{id}", s.handleDeleteTestCase)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.handleExport)
	mux.HandleFunc("GET /api/ai-config", s.handleListAIConfigs)
	mux.HandleFunc("POST /api/ai-config", s.handleCreateAIConfig)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// Error codes.
const (
	CodeValidation     = "validation_error"
	CodeNotFound       = "not_found"
	CodeEmptyResult    = "empty_result"
	CodeAnalysisFailed = "analysis_failed"
	CodeInternal       = "internal_error"
)

// Error is the JSON error body.
type Error struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func validationError(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// classify maps domain errors onto the HTTP envelope.
func classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var reqErr *extraction.ChunkRequestError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, store.ErrInvalid):
		return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, extraction.ErrEmptyResult):
		return &Error{Status: http.StatusUnprocessableEntity, Code: CodeEmptyResult, Message: err.Error()}
	case errors.As(err, &reqErr):
		return &Error{Status: http.StatusBadGateway, Code: CodeAnalysisFailed, Message: err.Error(), Transient: reqErr.Class.Transient()}
	}
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: err.Error(), Transient: true}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)
	if apiErr.Status >= 500 {
		s.logger.Error("http.request.failed", "method", r.Method, "path", r.URL.Path, "code", apiErr.Code, "err", err)
	}
	writeJSON(w, apiErr.Status, map[string]any{
		"ok":    false,
		"error": apiErr,
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return validationError("request body required")
	}
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return validationError("read body: %v", err)
	}
	if len(strings.TrimSpace(string(blob))) == 0 {
		blob = []byte("{}")
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return validationError("invalid JSON: %v", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "healthy"})
}
