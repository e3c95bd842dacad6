package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() testcase.Result {
	a, _ := testcase.Normalize(map[string]any{"title": "Login ok", "case_level": "High"}, 0)
	b, _ := testcase.Normalize(map[string]any{"title": "Login locked"}, 4)
	return testcase.Result{Records: []testcase.Record{a, b}, Suggestions: "Check lockout."}
}

func TestSessionTitle(t *testing.T) {
	cases := map[string]string{
		"":                       "New test case analysis",
		"  ":                     "New test case analysis",
		"login.docx":             "login test cases",
		"payment v2.pdf":         "payment v2 test cases",
		"Checkout Test Cases.md": "Checkout Test Cases",
		"README":                 "README test cases",
	}
	for in, want := range cases {
		if got := SessionTitle(in); got != want {
			t.Errorf("SessionTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateSession(ctx, "login.docx")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	renamed, err := s.RenameSession(ctx, first.ID, "  Login flows ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Title != "Login flows" || !renamed.UpdatedAt.After(renamed.CreatedAt) {
		t.Fatalf("unexpected renamed session %+v", renamed)
	}
	if _, err := s.RenameSession(ctx, first.ID, " "); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	if _, err := s.SaveResult(ctx, first.ID, sampleResult()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.DeleteSession(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSession(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted session to be gone, got %v", err)
	}
	if err := s.DeleteSession(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	var remaining int
	if err := s.db.Get(&remaining, "SELECT COUNT(*) FROM test_cases WHERE session_id = ?", first.ID); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected cases removed with the session, got %d", remaining)
	}
}

func TestSaveResultAndEditCases(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess, err := s.CreateSession(ctx, "login.docx")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	saved, err := s.SaveResult(ctx, sess.ID, sampleResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(saved) != 2 || saved[0].AIOrder != 0 || saved[1].AIOrder != 1 || saved[0].ID == "" {
		t.Fatalf("unexpected saved cases %+v", saved)
	}
	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Suggestions != "Check lockout." {
		t.Fatalf("suggestions not stored: %q", got.Suggestions)
	}

	added, err := s.CreateTestCase(ctx, sess.ID, testcase.Draft{Title: "Manual case", CaseType: "Security"})
	if err != nil {
		t.Fatalf("create case: %v", err)
	}
	if added.AIOrder != 2 || added.Maintainer != testcase.DefaultMaintainer || added.CaseType != testcase.TypeSecurity {
		t.Fatalf("unexpected added case %+v", added)
	}
	if _, err := s.CreateTestCase(ctx, sess.ID, testcase.Draft{Title: " "}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	updated, err := s.UpdateTestCase(ctx, saved[0].ID, testcase.Draft{Title: "Login succeeds", CaseLevel: "Low"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Login succeeds" || updated.CaseLevel != testcase.LevelLow || updated.AIOrder != 0 {
		t.Fatalf("unexpected update %+v", updated)
	}
	if err := s.DeleteTestCase(ctx, saved[1].ID); err != nil {
		t.Fatalf("delete case: %v", err)
	}
	if err := s.DeleteTestCase(ctx, saved[1].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	cases, err := s.ListTestCases(ctx, sess.ID)
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if len(cases) != 2 || cases[0].Title != "Login succeeds" || cases[1].Title != "Manual case" {
		t.Fatalf("unexpected cases %+v", cases)
	}

	// Saving again replaces the extracted cases.
	if _, err := s.SaveResult(ctx, sess.ID, sampleResult()); err != nil {
		t.Fatalf("resave: %v", err)
	}
	cases, _ = s.ListTestCases(ctx, sess.ID)
	if len(cases) != 2 || cases[1].Title != "Login locked" {
		t.Fatalf("unexpected cases after resave %+v", cases)
	}
}

func TestSaveResultUnknownSessionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.SaveResult(ctx, "missing", sampleResult()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var n int
	if err := s.db.Get(&n, "SELECT COUNT(*) FROM test_cases"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
	if _, err := s.ListTestCases(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAIConfigActivation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.ActiveAIConfig(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	first, err := s.CreateAIConfig(ctx, AIConfig{Provider: "openai", Endpoint: "https://api.example.com/v1", Model: "gpt-4o-mini", APIKey: "sk-1", Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateAIConfig(ctx, AIConfig{Provider: "anthropic", Active: false}); err != nil {
		t.Fatalf("create inactive: %v", err)
	}
	active, err := s.ActiveAIConfig(ctx)
	if err != nil || active.ID != first.ID {
		t.Fatalf("expected first config active, got %+v, %v", active, err)
	}
	third, err := s.CreateAIConfig(ctx, AIConfig{Provider: "openai", Model: "qwen-plus", Active: true})
	if err != nil {
		t.Fatalf("create third: %v", err)
	}
	active, err = s.ActiveAIConfig(ctx)
	if err != nil || active.ID != third.ID {
		t.Fatalf("expected newest active config, got %+v, %v", active, err)
	}
	all, err := s.ListAIConfigs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	activeCount := 0
	for _, c := range all {
		if c.Active {
			activeCount++
		}
	}
	if len(all) != 3 || activeCount != 1 {
		t.Fatalf("expected one active of three, got %d of %d", activeCount, len(all))
	}
	if _, err := s.CreateAIConfig(ctx, AIConfig{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}
