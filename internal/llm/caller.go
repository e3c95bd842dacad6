// Package llm issues single completion requests to an external text
// generation service.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultTimeout bounds one request.
const DefaultTimeout = 60 * time.Second

var (
	ErrNoChoices     = errors.New("reply has no choices")
	ErrEmptyReply    = errors.New("reply content is empty")
	ErrMissingAPIKey = errors.New("AI api key not configured")
)

// Request is one single-turn completion request.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Caller sends one request and returns the raw reply text.
type Caller interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config identifies the service to call.
type Config struct {
	Provider string
	Endpoint string
	Model    string
	APIKey   string
}

// StatusError is a non-success HTTP status from the service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai service returned status %d: %s", e.StatusCode, e.Message)
}

// NewCaller builds the caller for cfg.Provider.
func NewCaller(cfg Config) (Caller, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAICaller(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicCaller(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
