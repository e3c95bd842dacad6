package testcase

import (
	"fmt"
	"strings"
)

const unnamedDocument = "the current document"

// Merge deduplicates records by case-insensitive trimmed title, keeping the
// first occurrence, and joins the non-empty suggestions with a blank line.
// When no suggestion survives, a fallback naming the document and the final
// record count is used.
func Merge(records []Record, suggestions []string, documentName string) Result {
	kept := Dedupe(records)
	return Result{
		Records:     kept,
		Suggestions: joinSuggestions(suggestions, documentName, len(kept)),
	}
}

// Dedupe keeps the first record per title key. Kept records retain their
// OriginOrder.
func Dedupe(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		key := TitleKey(r.Title)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// TitleKey is the identity used for deduplication.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// JoinSuggestions joins non-blank suggestions in order. It returns "" when
// none are present.
func JoinSuggestions(suggestions []string) string {
	parts := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func joinSuggestions(suggestions []string, documentName string, count int) string {
	if joined := JoinSuggestions(suggestions); joined != "" {
		return joined
	}
	return FallbackSuggestion(documentName, count)
}

// FallbackSuggestion is used when no chunk returned suggestion text.
func FallbackSuggestion(documentName string, count int) string {
	name := strings.TrimSpace(documentName)
	if name == "" {
		name = unnamedDocument
	}
	return fmt.Sprintf("Based on the analysis of %q, %d detailed test cases were generated.\n\n"+
		"Review the individual test cases for requirement-specific guidance; each one carries its own test suggestions.",
		name, count)
}
