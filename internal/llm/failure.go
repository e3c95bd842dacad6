package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// FailureClass buckets a request failure for logs and callers deciding on
// their own retry policy.
type FailureClass string

const (
	FailureNone      FailureClass = ""
	FailureTimeout   FailureClass = "timeout"
	FailureRateLimit FailureClass = "rate_limit"
	FailureServer    FailureClass = "server"
	FailureClient    FailureClass = "client"
	FailureReply     FailureClass = "reply"
	FailureCanceled  FailureClass = "canceled"
)

// Classify maps an error returned by a Caller to a FailureClass.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, ErrNoChoices) || errors.Is(err, ErrEmptyReply) {
		return FailureReply
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return FailureRateLimit
		case se.StatusCode >= 500:
			return FailureServer
		case se.StatusCode >= 400:
			return FailureClient
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return FailureRateLimit
	case strings.Contains(msg, "timeout"):
		return FailureTimeout
	default:
		return FailureServer
	}
}

// Transient reports whether a retry by the calling layer could succeed.
func (c FailureClass) Transient() bool {
	return c == FailureTimeout || c == FailureRateLimit || c == FailureServer
}
