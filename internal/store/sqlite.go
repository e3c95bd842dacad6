package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	file_name   TEXT NOT NULL DEFAULT '',
	is_deleted  INTEGER NOT NULL DEFAULT 0,
	suggestions TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS test_cases (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL,
	title            TEXT NOT NULL,
	group_name       TEXT NOT NULL DEFAULT '',
	maintainer       TEXT NOT NULL DEFAULT '',
	precondition     TEXT NOT NULL DEFAULT '',
	step_description TEXT NOT NULL DEFAULT '',
	expected_result  TEXT NOT NULL DEFAULT '',
	case_level       TEXT NOT NULL DEFAULT '',
	case_type        TEXT NOT NULL DEFAULT '',
	test_suggestions TEXT NOT NULL DEFAULT '',
	ai_order         INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS test_cases_session ON test_cases (session_id, ai_order);

CREATE TABLE IF NOT EXISTS ai_configurations (
	id           TEXT PRIMARY KEY,
	provider     TEXT NOT NULL,
	api_endpoint TEXT NOT NULL DEFAULT '',
	model_name   TEXT NOT NULL DEFAULT '',
	api_key      TEXT NOT NULL DEFAULT '',
	is_active    INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
`

// SQLiteStore is safe for concurrent use; SQLite serializes writers on the
// single open connection.
type SQLiteStore struct {
	db    *sqlx.DB
	clock func() time.Time
	newID func() string
}

type Option func(*SQLiteStore)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *SQLiteStore) { s.clock = clock }
}

func Open(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &SQLiteStore{
		db:    db,
		clock: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) now() string {
	return s.clock().UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

// --- sessions ---

type sessionRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	FileName    string `db:"file_name"`
	Suggestions string `db:"suggestions"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r sessionRow) session() Session {
	return Session{
		ID:          r.ID,
		Title:       r.Title,
		FileName:    r.FileName,
		Suggestions: r.Suggestions,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

const sessionColumns = "id, title, file_name, suggestions, created_at, updated_at"

// CreateSession opens a session for an uploaded file.
func (s *SQLiteStore) CreateSession(ctx context.Context, fileName string) (Session, error) {
	now := s.now()
	row := sessionRow{
		ID:        s.newID(),
		Title:     SessionTitle(fileName),
		FileName:  strings.TrimSpace(fileName),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO chat_sessions (id, title, file_name, suggestions, created_at, updated_at)
		VALUES (:id, :title, :file_name, :suggestions, :created_at, :updated_at)`, row)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return row.session(), nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, "SELECT "+sessionColumns+" FROM chat_sessions WHERE id = ? AND is_deleted = 0", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return row.session(), nil
}

// ListSessions returns live sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Session, error) {
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+sessionColumns+" FROM chat_sessions WHERE is_deleted = 0 ORDER BY created_at DESC, id"); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.session())
	}
	return out, nil
}

func (s *SQLiteStore) RenameSession(ctx context.Context, id, title string) (Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Session{}, fmt.Errorf("session title: %w", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ? AND is_deleted = 0", title, s.now(), id)
	if err != nil {
		return Session{}, fmt.Errorf("rename session: %w", err)
	}
	if err := requireRow(res, "session", id); err != nil {
		return Session{}, err
	}
	return s.GetSession(ctx, id)
}

// DeleteSession soft-deletes the session and removes its test cases.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE chat_sessions SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0", s.now(), id)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if err := requireRow(res, "session", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM test_cases WHERE session_id = ?", id); err != nil {
			return fmt.Errorf("delete session cases: %w", err)
		}
		return nil
	})
}

// SaveResult replaces the session's test cases with an extraction result and
// stores its suggestions.
func (s *SQLiteStore) SaveResult(ctx context.Context, sessionID string, result testcase.Result) ([]TestCase, error) {
	var saved []TestCase
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx, "UPDATE chat_sessions SET suggestions = ?, updated_at = ? WHERE id = ? AND is_deleted = 0", result.Suggestions, now, sessionID)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if err := requireRow(res, "session", sessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM test_cases WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("clear session cases: %w", err)
		}
		saved = make([]TestCase, 0, len(result.Records))
		for i, rec := range result.Records {
			row := newCaseRow(s.newID(), sessionID, rec, i, now)
			if err := insertCase(ctx, tx, row); err != nil {
				return err
			}
			saved = append(saved, row.testCase())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// --- test cases ---

type caseRow struct {
	ID              string `db:"id"`
	SessionID       string `db:"session_id"`
	Title           string `db:"title"`
	GroupName       string `db:"group_name"`
	Maintainer      string `db:"maintainer"`
	Precondition    string `db:"precondition"`
	StepDescription string `db:"step_description"`
	ExpectedResult  string `db:"expected_result"`
	CaseLevel       string `db:"case_level"`
	CaseType        string `db:"case_type"`
	TestSuggestions string `db:"test_suggestions"`
	AIOrder         int    `db:"ai_order"`
	CreatedAt       string `db:"created_at"`
	UpdatedAt       string `db:"updated_at"`
}

const caseColumns = `id, session_id, title, group_name, maintainer, precondition, step_description,
	expected_result, case_level, case_type, test_suggestions, ai_order, created_at, updated_at`

func newCaseRow(id, sessionID string, rec testcase.Record, order int, now string) caseRow {
	return caseRow{
		ID:              id,
		SessionID:       sessionID,
		Title:           rec.Title,
		GroupName:       rec.GroupName,
		Maintainer:      rec.Maintainer,
		Precondition:    rec.Precondition,
		StepDescription: rec.StepDescription,
		ExpectedResult:  rec.ExpectedResult,
		CaseLevel:       string(rec.CaseLevel),
		CaseType:        string(rec.CaseType),
		TestSuggestions: rec.TestSuggestions,
		AIOrder:         order,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (r caseRow) testCase() TestCase {
	return TestCase{
		ID:        r.ID,
		SessionID: r.SessionID,
		Record: testcase.Record{
			Title:           r.Title,
			GroupName:       r.GroupName,
			Maintainer:      r.Maintainer,
			Precondition:    r.Precondition,
			StepDescription: r.StepDescription,
			ExpectedResult:  r.ExpectedResult,
			CaseLevel:       testcase.Level(r.CaseLevel),
			CaseType:        testcase.Type(r.CaseType),
			TestSuggestions: r.TestSuggestions,
			OriginOrder:     r.AIOrder,
		},
		AIOrder:   r.AIOrder,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

func insertCase(ctx context.Context, ext sqlx.ExtContext, row caseRow) error {
	_, err := sqlx.NamedExecContext(ctx, ext, `INSERT INTO test_cases (`+caseColumns+`)
		VALUES (:id, :session_id, :title, :group_name, :maintainer, :precondition, :step_description,
		:expected_result, :case_level, :case_type, :test_suggestions, :ai_order, :created_at, :updated_at)`, row)
	if err != nil {
		return fmt.Errorf("insert test case: %w", err)
	}
	return nil
}

// ListTestCases returns the session's cases in extraction order.
func (s *SQLiteStore) ListTestCases(ctx context.Context, sessionID string) ([]TestCase, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var rows []caseRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+caseColumns+" FROM test_cases WHERE session_id = ? ORDER BY ai_order, created_at", sessionID); err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	out := make([]TestCase, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.testCase())
	}
	return out, nil
}

// CreateTestCase normalizes d and appends it after the session's last case.
func (s *SQLiteStore) CreateTestCase(ctx context.Context, sessionID string, d testcase.Draft) (TestCase, error) {
	var created TestCase
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var live int
		if err := tx.GetContext(ctx, &live, "SELECT COUNT(*) FROM chat_sessions WHERE id = ? AND is_deleted = 0", sessionID); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if live == 0 {
			return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		var next int
		if err := tx.GetContext(ctx, &next, "SELECT COALESCE(MAX(ai_order) + 1, 0) FROM test_cases WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		rec, ok := testcase.NormalizeDraft(d, next)
		if !ok {
			return fmt.Errorf("test case title: %w", ErrInvalid)
		}
		row := newCaseRow(s.newID(), sessionID, rec, next, s.now())
		if err := insertCase(ctx, tx, row); err != nil {
			return err
		}
		created = row.testCase()
		return nil
	})
	return created, err
}

// UpdateTestCase replaces the editable fields of a case, applying the same
// defaults as extraction.
func (s *SQLiteStore) UpdateTestCase(ctx context.Context, id string, d testcase.Draft) (TestCase, error) {
	var updated TestCase
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var row caseRow
		err := tx.GetContext(ctx, &row, "SELECT "+caseColumns+" FROM test_cases WHERE id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("test case %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get test case: %w", err)
		}
		rec, ok := testcase.NormalizeDraft(d, row.AIOrder)
		if !ok {
			return fmt.Errorf("test case title: %w", ErrInvalid)
		}
		next := newCaseRow(row.ID, row.SessionID, rec, row.AIOrder, s.now())
		next.CreatedAt = row.CreatedAt
		_, err = tx.NamedExecContext(ctx, `UPDATE test_cases SET title = :title, group_name = :group_name,
			maintainer = :maintainer, precondition = :precondition, step_description = :step_description,
			expected_result = :expected_result, case_level = :case_level, case_type = :case_type,
			test_suggestions = :test_suggestions, updated_at = :updated_at WHERE id = :id`, next)
		if err != nil {
			return fmt.Errorf("update test case: %w", err)
		}
		updated = next.testCase()
		return nil
	})
	return updated, err
}

func (s *SQLiteStore) DeleteTestCase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM test_cases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete test case: %w", err)
	}
	return requireRow(res, "test case", id)
}

// --- model configurations ---

type configRow struct {
	ID        string `db:"id"`
	Provider  string `db:"provider"`
	Endpoint  string `db:"api_endpoint"`
	Model     string `db:"model_name"`
	APIKey    string `db:"api_key"`
	Active    bool   `db:"is_active"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r configRow) config() AIConfig {
	return AIConfig{
		ID:        r.ID,
		Provider:  r.Provider,
		Endpoint:  r.Endpoint,
		Model:     r.Model,
		APIKey:    r.APIKey,
		Active:    r.Active,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
	}
}

const configColumns = "id, provider, api_endpoint, model_name, api_key, is_active, created_at, updated_at"

// CreateAIConfig stores cfg. An active config deactivates all others.
func (s *SQLiteStore) CreateAIConfig(ctx context.Context, cfg AIConfig) (AIConfig, error) {
	if strings.TrimSpace(cfg.Provider) == "" {
		return AIConfig{}, fmt.Errorf("provider: %w", ErrInvalid)
	}
	now := s.now()
	row := configRow{
		ID:        s.newID(),
		Provider:  strings.TrimSpace(cfg.Provider),
		Endpoint:  strings.TrimSpace(cfg.Endpoint),
		Model:     strings.TrimSpace(cfg.Model),
		APIKey:    strings.TrimSpace(cfg.APIKey),
		Active:    cfg.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if row.Active {
			if _, err := tx.ExecContext(ctx, "UPDATE ai_configurations SET is_active = 0, updated_at = ? WHERE is_active = 1", now); err != nil {
				return fmt.Errorf("deactivate configs: %w", err)
			}
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO ai_configurations (`+configColumns+`)
			VALUES (:id, :provider, :api_endpoint, :model_name, :api_key, :is_active, :created_at, :updated_at)`, row)
		if err != nil {
			return fmt.Errorf("insert config: %w", err)
		}
		return nil
	})
	if err != nil {
		return AIConfig{}, err
	}
	return row.config(), nil
}

func (s *SQLiteStore) ListAIConfigs(ctx context.Context) ([]AIConfig, error) {
	var rows []configRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT "+configColumns+" FROM ai_configurations ORDER BY created_at DESC, id"); err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	out := make([]AIConfig, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.config())
	}
	return out, nil
}

// ActiveAIConfig returns the most recent active config, or ErrNotFound.
func (s *SQLiteStore) ActiveAIConfig(ctx context.Context) (AIConfig, error) {
	var row configRow
	err := s.db.GetContext(ctx, &row, "SELECT "+configColumns+" FROM ai_configurations WHERE is_active = 1 ORDER BY created_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return AIConfig{}, fmt.Errorf("active config: %w", ErrNotFound)
	}
	if err != nil {
		return AIConfig{}, fmt.Errorf("get active config: %w", err)
	}
	return row.config(), nil
}

// --- helpers ---

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
