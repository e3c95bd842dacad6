package replyparse

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// PreviewRunes bounds the raw reply excerpt carried by parse errors.
const PreviewRunes = 500

// AttemptError records why one strategy did not produce a result.
type AttemptError struct {
	Strategy string
	Err      error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

// UnrecoverableResponseError is returned when every strategy failed.
type UnrecoverableResponseError struct {
	Preview  string
	Length   int
	Attempts []AttemptError
}

func (e *UnrecoverableResponseError) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Strategy)
	}
	return fmt.Sprintf("reply unrecoverable after %d strategies (%s); reply length %d, preview: %q",
		len(e.Attempts), strings.Join(names, ","), e.Length, e.Preview)
}

// Preview returns at most n runes of s, marking truncation with "...".
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
