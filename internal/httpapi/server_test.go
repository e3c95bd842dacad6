package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joelkehle/prd2tc/internal/extraction"
	"github.com/joelkehle/prd2tc/internal/llm"
	"github.com/joelkehle/prd2tc/internal/store"
)

type scriptedCaller struct {
	mu    sync.Mutex
	calls int
	reply func(req llm.Request) (string, error)
}

func (c *scriptedCaller) Generate(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.reply(req)
}

type testEnv struct {
	handler http.Handler
	store   *store.SQLiteStore
	board   *extraction.Board
	configs []llm.Config
}

func newTestEnv(t *testing.T, caller llm.Caller) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	env := &testEnv{store: st, board: extraction.NewBoard()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.handler = NewServer(Config{
		Store:      st,
		Board:      env.board,
		AI:         llm.Config{Provider: llm.ProviderOpenAI, APIKey: "env-key"},
		Extraction: extraction.Options{Logger: logger},
		NewCaller: func(cfg llm.Config) (llm.Caller, error) {
			env.configs = append(env.configs, cfg)
			return caller, nil
		},
		Logger: logger,
	})
	return env
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(blob)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rr)
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

const twoCases = `[{"title": "Login ok", "case_level": "High"}, {"title": "Login locked"}]`

func TestAnalyzeCreatesSessionAndStoresCases(t *testing.T) {
	caller := &scriptedCaller{reply: func(llm.Request) (string, error) { return twoCases, nil }}
	env := newTestEnv(t, caller)

	rr := do(t, env.handler, http.MethodPost, "/api/analyze", map[string]any{
		"file_name": "login.docx",
		"content":   "# Login\nUsers log in with a phone number.",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	id, _ := body["session_id"].(string)
	if id == "" || body["test_cases_count"].(float64) != 2 || body["suggestions"] != extraction.SingleRequestSuggestion {
		t.Fatalf("unexpected body %v", body)
	}
	if got := env.board.Progress(id); got != extraction.ProgressFinishing {
		t.Fatalf("progress = %q", got)
	}
	rr = do(t, env.handler, http.MethodGet, "/api/analysis-progress/"+id, nil)
	if decode(t, rr)["progress"] != extraction.ProgressFinishing {
		t.Fatalf("unexpected progress body %s", rr.Body.String())
	}

	sess, err := env.store.GetSession(context.Background(), id)
	if err != nil || sess.Title != "login test cases" {
		t.Fatalf("unexpected session %+v, %v", sess, err)
	}
	rr = do(t, env.handler, http.MethodGet, "/api/sessions/"+id+"/test-cases", nil)
	cases, _ := decode(t, rr)["test_cases"].([]any)
	if len(cases) != 2 || cases[0].(map[string]any)["title"] != "Login ok" {
		t.Fatalf("unexpected cases %s", rr.Body.String())
	}
	if len(env.configs) != 1 || env.configs[0].APIKey != "env-key" {
		t.Fatalf("expected environment AI config, got %+v", env.configs)
	}
}

func TestAnalyzeUsesStoredAIConfig(t *testing.T) {
	caller := &scriptedCaller{reply: func(llm.Request) (string, error) { return twoCases, nil }}
	env := newTestEnv(t, caller)
	rr := do(t, env.handler, http.MethodPost, "/api/ai-config", map[string]any{
		"provider": "openai", "api_endpoint": "https://llm.example.com/v1", "model_name": "qwen-plus", "api_key": "sk-stored-abcdef",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, env.handler, http.MethodPost, "/api/analyze", map[string]any{"content": "short document"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(env.configs) != 1 || env.configs[0].Model != "qwen-plus" || env.configs[0].APIKey != "sk-stored-abcdef" {
		t.Fatalf("expected stored config, got %+v", env.configs)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		reply  func(llm.Request) (string, error)
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "missing content",
			reply:  func(llm.Request) (string, error) { return twoCases, nil },
			body:   map[string]any{"file_name": "x.md"},
			status: http.StatusBadRequest,
			code:   CodeValidation,
		},
		{
			name:   "empty result",
			reply:  func(llm.Request) (string, error) { return `[]`, nil },
			body:   map[string]any{"content": "short"},
			status: http.StatusUnprocessableEntity,
			code:   CodeEmptyResult,
		},
		{
			name:   "model failure",
			reply:  func(llm.Request) (string, error) { return "", &llm.StatusError{StatusCode: 500, Message: "boom"} },
			body:   map[string]any{"content": "short"},
			status: http.StatusBadGateway,
			code:   CodeAnalysisFailed,
		},
		{
			name:   "unparseable reply",
			reply:  func(llm.Request) (string, error) { return "sorry, no cases", nil },
			body:   map[string]any{"content": "short"},
			status: http.StatusBadGateway,
			code:   CodeAnalysisFailed,
		},
		{
			name:   "unknown session",
			reply:  func(llm.Request) (string, error) { return twoCases, nil },
			body:   map[string]any{"content": "short", "session_id": "missing"},
			status: http.StatusNotFound,
			code:   CodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &scriptedCaller{reply: tt.reply})
			rr := do(t, env.handler, http.MethodPost, "/api/analyze", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if got := errorCode(t, rr); got != tt.code {
				t.Fatalf("code=%q want %q", got, tt.code)
			}
		})
	}
}

func TestModelFailureReportedInProgress(t *testing.T) {
	env := newTestEnv(t, &scriptedCaller{reply: func(llm.Request) (string, error) {
		return "", errors.New("connection refused")
	}})
	rr := do(t, env.handler, http.MethodPost, "/api/sessions", map[string]any{"file_name": "a.md"})
	sess := decode(t, rr)["session"].(map[string]any)
	id := sess["id"].(string)

	rr = do(t, env.handler, http.MethodPost, "/api/analyze", map[string]any{"content": "short", "session_id": id})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := env.board.Progress(id); !strings.HasPrefix(got, "analysis failed: ") {
		t.Fatalf("progress = %q", got)
	}
}

func TestProgressVisibleDuringRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	env := newTestEnv(t, &scriptedCaller{reply: func(llm.Request) (string, error) {
		close(started)
		<-release
		return twoCases, nil
	}})
	rr := do(t, env.handler, http.MethodPost, "/api/sessions", map[string]any{})
	id := decode(t, rr)["session"].(map[string]any)["id"].(string)

	if got := decode(t, do(t, env.handler, http.MethodGet, "/api/analysis-progress/"+id, nil))["progress"]; got != extraction.ProgressNotStarted {
		t.Fatalf("progress before run = %v", got)
	}

	done := make(chan *httptest.ResponseRecorder)
	body := `{"content": "short", "session_id": "` + id + `"}`
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)
		done <- rr
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start")
	}
	if got := env.board.Progress(id); got != extraction.ProgressStarted {
		t.Fatalf("progress during run = %q", got)
	}
	close(release)
	if rr := <-done; rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSessionAndCaseCRUD(t *testing.T) {
	env := newTestEnv(t, &scriptedCaller{reply: func(llm.Request) (string, error) { return twoCases, nil }})
	h := env.handler

	rr := do(t, h, http.MethodPost, "/api/sessions", map[string]any{"file_name": "checkout.pdf"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}
	id := decode(t, rr)["session"].(map[string]any)["id"].(string)

	rr = do(t, h, http.MethodPut, "/api/sessions/"+id, map[string]any{"title": "Checkout"})
	if rr.Code != http.StatusOK || decode(t, rr)["session"].(map[string]any)["title"] != "Checkout" {
		t.Fatalf("rename status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodPost, "/api/sessions/"+id+"/test-cases", map[string]any{"title": "Pay by card", "caseLevel": "High"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create case status=%d body=%s", rr.Code, rr.Body.String())
	}
	tc := decode(t, rr)["test_case"].(map[string]any)
	if tc["case_level"] != "High" || tc["group_name"] != "Default Group" {
		t.Fatalf("unexpected case %v", tc)
	}
	caseID := tc["id"].(string)

	rr = do(t, h, http.MethodPost, "/api/sessions/"+id+"/test-cases", map[string]any{"title": ""})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank title status=%d", rr.Code)
	}

	rr = do(t, h, http.MethodPut, "/api/test-cases/"+caseID, map[string]any{"title": "Pay by card succeeds"})
	if rr.Code != http.StatusOK || decode(t, rr)["test_case"].(map[string]any)["title"] != "Pay by card succeeds" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/api/sessions/"+id+"/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "Checkout.xlsx") {
		t.Fatalf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	rows, _ := f.GetRows("Test Cases")
	f.Close()
	if len(rows) != 4 || rows[3][0] != "Pay by card succeeds" {
		t.Fatalf("unexpected export rows %v", rows)
	}

	if rr := do(t, h, http.MethodDelete, "/api/test-cases/"+caseID, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete case status=%d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/api/test-cases/"+caseID, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/sessions", nil)
	if list := decode(t, rr)["sessions"].([]any); len(list) != 1 {
		t.Fatalf("expected one session, got %v", list)
	}
	if rr := do(t, h, http.MethodDelete, "/api/sessions/"+id, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete session status=%d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/api/sessions/"+id, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("deleted session status=%d", rr.Code)
	}
}

func TestAIConfigKeysMasked(t *testing.T) {
	env := newTestEnv(t, &scriptedCaller{reply: func(llm.Request) (string, error) { return twoCases, nil }})
	rr := do(t, env.handler, http.MethodPost, "/api/ai-config", map[string]any{"provider": "anthropic", "api_key": "sk-ant-1234567890"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "1234567890") {
		t.Fatalf("key leaked: %s", rr.Body.String())
	}
	rr = do(t, env.handler, http.MethodGet, "/api/ai-config", nil)
	configs := decode(t, rr)["configs"].([]any)
	if len(configs) != 1 || configs[0].(map[string]any)["api_key"] != "sk-a*********7890" {
		t.Fatalf("unexpected configs %s", rr.Body.String())
	}
	if rr := do(t, env.handler, http.MethodPost, "/api/ai-config", map[string]any{"api_key": "x"}); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing provider status=%d", rr.Code)
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"short":         "*****",
		"sk-1234567890": "sk-1*****7890",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &scriptedCaller{reply: func(llm.Request) (string, error) { return twoCases, nil }})
	rr := do(t, env.handler, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK || decode(t, rr)["ok"] != true {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}
