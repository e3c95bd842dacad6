// Package store persists analysis sessions, their test cases and model
// configurations in SQLite.
package store

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

const (
	defaultSessionTitle = "New test case analysis"
	titleSuffix         = " test cases"
)

type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	FileName    string    `json:"file_name"`
	Suggestions string    `json:"suggestions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TestCase is a stored record. AIOrder is its position in the extraction
// result; manually added cases are appended after it.
type TestCase struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	testcase.Record
	AIOrder   int       `json:"ai_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AIConfig struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Endpoint  string    `json:"api_endpoint"`
	Model     string    `json:"model_name"`
	APIKey    string    `json:"api_key"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionTitle derives a session title from an uploaded file name.
func SessionTitle(fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		return defaultSessionTitle
	}
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	if strings.Contains(strings.ToLower(name), strings.TrimSpace(titleSuffix)) {
		return name
	}
	return name + titleSuffix
}
