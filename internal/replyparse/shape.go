package replyparse

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Keys of the wrapped reply shape.
const (
	CasesKey      = "test_cases"
	SuggestionKey = "analysis_suggestions"
)

var casesKeyAliases = []string{"testCases", "cases"}

const replySchema = `{
  "anyOf": [
    {
      "type": "object",
      "required": ["test_cases"],
      "properties": {
        "test_cases": {"type": "array"}
      }
    },
    {"type": "array"}
  ]
}`

var compiledReplySchema = jsonschema.MustCompileString("reply.json", replySchema)

// Shape is a structurally valid reply.
type Shape struct {
	Cases      []map[string]any
	Suggestion string
	// Bare is true for the legacy bare-list form.
	Bare bool
}

// interpret validates a decoded candidate and extracts the cases and suggestion.
// List items that are not objects are dropped.
func interpret(v any) (Shape, error) {
	if obj, ok := v.(map[string]any); ok {
		if _, has := obj[CasesKey]; !has {
			for _, alias := range casesKeyAliases {
				if list, ok := obj[alias]; ok {
					obj[CasesKey] = list
					break
				}
			}
		}
	}
	if err := compiledReplySchema.Validate(v); err != nil {
		return Shape{}, fmt.Errorf("unexpected shape: %w", err)
	}

	switch t := v.(type) {
	case []any:
		return Shape{Cases: objects(t), Bare: true}, nil
	case map[string]any:
		list, _ := t[CasesKey].([]any)
		return Shape{Cases: objects(list), Suggestion: suggestionText(t[SuggestionKey])}, nil
	}
	return Shape{}, fmt.Errorf("unexpected shape %T", v)
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func suggestionText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}
