package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/joelkehle/prd2tc/internal/export"
	"github.com/joelkehle/prd2tc/internal/store"
	"github.com/joelkehle/prd2tc/internal/testcase"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": sessions})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"file_name"`
	}
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.store.CreateSession(r.Context(), req.FileName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "session": sess})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": sess})
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.store.RenameSession(r.Context(), r.PathValue("id"), req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": sess})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.board.Forget(id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListTestCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.ListTestCases(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "test_cases": cases})
}

// readDraft accepts the same field names and aliases as model replies.
func readDraft(w http.ResponseWriter, r *http.Request) (testcase.Draft, error) {
	var fields map[string]any
	if err := readJSON(w, r, &fields); err != nil {
		return testcase.Draft{}, err
	}
	return testcase.DraftFromMap(fields), nil
}

func (s *Server) handleCreateTestCase(w http.ResponseWriter, r *http.Request) {
	d, err := readDraft(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tc, err := s.store.CreateTestCase(r.Context(), r.PathValue("id"), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "test_case": tc})
}

func (s *Server) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	d, err := readDraft(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tc, err := s.store.UpdateTestCase(r.Context(), r.PathValue("id"), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "test_case": tc})
}

func (s *Server) handleDeleteTestCase(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTestCase(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.store.GetSession(ctx, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cases, err := s.store.ListTestCases(ctx, sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records := make([]testcase.Record, 0, len(cases))
	for _, tc := range cases {
		records = append(records, tc.Record)
	}
	data, err := export.Workbook(records)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := export.FileName(sess.Title)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"export.xlsx\"; filename*=UTF-8''%s", url.PathEscape(name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type aiConfigView struct {
	store.AIConfig
	APIKey string `json:"api_key"`
}

func maskConfig(c store.AIConfig) aiConfigView {
	return aiConfigView{AIConfig: c, APIKey: MaskKey(c.APIKey)}
}

// MaskKey keeps the first and last four characters of long keys.
func MaskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return strings.Repeat("*", len(key))
	default:
		return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
	}
}

func (s *Server) handleListAIConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListAIConfigs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	views := make([]aiConfigView, 0, len(configs))
	for _, c := range configs {
		views = append(views, maskConfig(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "configs": views})
}

func (s *Server) handleCreateAIConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Endpoint string `json:"api_endpoint"`
		Model    string `json:"model_name"`
		APIKey   string `json:"api_key"`
		Active   *bool  `json:"is_active"`
	}
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	active := req.Active == nil || *req.Active
	cfg, err := s.store.CreateAIConfig(r.Context(), store.AIConfig{
		Provider: req.Provider,
		Endpoint: req.Endpoint,
		Model:    req.Model,
		APIKey:   req.APIKey,
		Active:   active,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "config": maskConfig(cfg)})
}
