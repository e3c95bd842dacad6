package replyparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

var (
	greedyKeyedObject = regexp.MustCompile(`\{[\s\S]*"` + CasesKey + `"[\s\S]*\}`)
	greedyArray       = regexp.MustCompile(`\[[\s\S]*\]`)
	flatObject        = regexp.MustCompile(`\{[^{}]*\}`)
	trailingComma     = regexp.MustCompile(`,(\s*[}\]])`)
	bareKey           = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	titleField        = regexp.MustCompile(`["']title["']\s*[:：]\s*(?:"((?:[^"\\]|\\.)*)"|'([^']*)')`)
)

// WholeText decodes the entire reply.
func WholeText(raw string) (Candidate, error) {
	src := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if src == "" {
		return Candidate{}, errors.New("empty reply")
	}
	return decodeCandidate(src)
}

// TaggedFence decodes the first fenced block tagged json that has a valid shape.
func TaggedFence(raw string) (Candidate, error) {
	var bodies []string
	for _, b := range fencedBlocks(raw) {
		if b.Language == "json" {
			bodies = append(bodies, b.Body)
		}
	}
	if len(bodies) == 0 {
		return Candidate{}, errors.New("no json fenced block")
	}
	return firstValid(bodies, decode)
}

// AnyFence decodes the first fenced block, tagged or not, that has a valid shape.
func AnyFence(raw string) (Candidate, error) {
	blocks := fencedBlocks(raw)
	if len(blocks) == 0 {
		return Candidate{}, errors.New("no fenced block")
	}
	bodies := make([]string, 0, len(blocks))
	for _, b := range blocks {
		bodies = append(bodies, b.Body)
	}
	return firstValid(bodies, decode)
}

// KeyedSubstring decodes the smallest balanced object enclosing the cases key,
// then the greedy object span around the key, then the largest array span.
func KeyedSubstring(raw string) (Candidate, error) {
	var spans []string
	spans = append(spans, keyedObjects(raw)...)
	if m := greedyKeyedObject.FindString(raw); m != "" {
		spans = append(spans, m)
	}
	if m := greedyArray.FindString(raw); m != "" {
		spans = append(spans, m)
	}
	if len(spans) == 0 {
		return Candidate{}, errNoCandidate
	}
	return firstValid(spans, decode)
}

// keyedObjects returns, for each occurrence of the cases key, the innermost
// balanced object that contains it.
func keyedObjects(raw string) []string {
	var out []string
	needle := `"` + CasesKey + `"`
	for from := 0; ; {
		idx := strings.Index(raw[from:], needle)
		if idx < 0 {
			return out
		}
		idx += from
		for s := idx - 1; s >= 0; s-- {
			if raw[s] != '{' {
				continue
			}
			if end, ok := matchBalanced(raw, s); ok && end > idx {
				out = append(out, raw[s:end+1])
				break
			}
		}
		from = idx + len(needle)
	}
}

// TruncationRepair recovers replies cut off mid-generation: the text is cut at
// its last closing brace and any brackets still open there are closed.
func TruncationRepair(raw string) (Candidate, error) {
	t := strings.TrimSpace(raw)
	if strings.HasSuffix(t, "}") {
		return Candidate{}, errors.New("reply ends with a closing brace")
	}
	last := strings.LastIndexByte(t, '}')
	if last < 0 {
		return Candidate{}, errors.New("no closing brace")
	}
	cut := t[:last+1]
	spans := []string{cut}
	if start := strings.IndexAny(cut, "{["); start >= 0 {
		body := cut[start:]
		if closers, ok := unclosed(body); ok && closers != "" {
			spans = append(spans, body+closers)
		}
	}
	return firstValid(spans, decode)
}

// IndependentObjects decodes every brace-delimited object without nested
// braces and wraps the ones that decode as a list.
func IndependentObjects(raw string) (Candidate, error) {
	matches := flatObject.FindAllString(raw, -1)
	kept := make([]string, 0, len(matches))
	list := make([]any, 0, len(matches))
	for _, m := range matches {
		v, err := decode(m)
		if err != nil {
			continue
		}
		if obj, ok := v.(map[string]any); ok {
			kept = append(kept, m)
			list = append(list, obj)
		}
	}
	if len(list) == 0 {
		return Candidate{}, errors.New("no decodable object")
	}
	return Candidate{Value: list, Source: "[" + strings.Join(kept, ",") + "]"}, nil
}

// LooseGrammar strips trailing separators, quotes bare keys and decodes the
// result with a permissive grammar (single quotes, comments, bare keys).
func LooseGrammar(raw string) (Candidate, error) {
	var spans []string
	if m := greedyArray.FindString(raw); m != "" {
		spans = append(spans, m)
	}
	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start >= 0 && end > start {
		spans = append(spans, raw[start:end+1])
	}
	if len(spans) == 0 {
		return Candidate{}, errNoCandidate
	}
	for i, s := range spans {
		s = requote(s)
		s = trailingComma.ReplaceAllString(s, "$1")
		spans[i] = bareKey.ReplaceAllString(s, `${1}"${2}":`)
	}
	return firstValid(spans, decodeLoose)
}

// TitleScrape synthesizes one placeholder case per title value found anywhere
// in the reply.
func TitleScrape(raw string) (Candidate, error) {
	var list []any
	for _, m := range titleField.FindAllStringSubmatch(raw, -1) {
		title := m[2]
		if m[1] != "" {
			title = m[1]
			if u, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
				title = u
			}
		}
		if title = strings.TrimSpace(title); title == "" {
			continue
		}
		list = append(list, placeholder(title))
	}
	if len(list) == 0 {
		return Candidate{}, errors.New("no title values")
	}
	b, err := json.Marshal(list)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Value: list, Source: string(b)}, nil
}

func placeholder(title string) map[string]any {
	return map[string]any{
		testcase.FieldTitle:           title,
		testcase.FieldGroupName:       testcase.DefaultGroupName,
		testcase.FieldMaintainer:      testcase.DefaultMaintainer,
		testcase.FieldPrecondition:    testcase.DefaultPrecondition,
		testcase.FieldStepDescription: testcase.DefaultStepDescription,
		testcase.FieldExpectedResult:  testcase.DefaultExpectedResult,
		testcase.FieldCaseLevel:       string(testcase.DefaultCaseLevel),
		testcase.FieldCaseType:        string(testcase.DefaultCaseType),
		testcase.FieldTestSuggestions: testcase.DefaultTestSuggestions,
	}
}

// firstValid returns the first span that decodes to a valid shape. When none
// does, the last error is returned.
func firstValid(spans []string, decodeFn func(string) (any, error)) (Candidate, error) {
	err := errNoCandidate
	for _, s := range spans {
		var v any
		v, err = decodeFn(s)
		if err != nil {
			continue
		}
		if _, err = interpret(v); err != nil {
			continue
		}
		return Candidate{Value: v, Source: s}, nil
	}
	return Candidate{}, err
}

func decodeCandidate(s string) (Candidate, error) {
	v, err := decode(s)
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Value: v, Source: s}, nil
}

// decode is strict JSON with no trailing data.
func decode(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("trailing data after value")
	}
	return v, nil
}

func decodeLoose(s string) (any, error) {
	var v any
	if err := json5.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("loose decode: %w", err)
	}
	return v, nil
}

// requote rewrites single-quoted string literals as JSON strings and maps the
// bare words True, False and None to their JSON forms. Double-quoted strings
// are copied unchanged.
func requote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '"':
			end, _ := stringEnd(s, i, '"')
			b.WriteString(s[i:end])
			i = end
		case c == '\'':
			end, closed := stringEnd(s, i, '\'')
			body := s[i+1 : end]
			if closed {
				body = s[i+1 : end-1]
			}
			b.WriteByte('"')
			writeRequoted(&b, body)
			b.WriteByte('"')
			i = end
		case isWordStart(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			word := s[i:j]
			switch word {
			case "True":
				word = "true"
			case "False":
				word = "false"
			case "None":
				word = "null"
			}
			b.WriteString(word)
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// stringEnd returns the index just past the literal opened by quote at s[start]
// and whether it was closed. An unterminated literal runs to the end of s.
func stringEnd(s string, start int, quote byte) (int, bool) {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1, true
		}
	}
	return len(s), false
}

// writeRequoted copies the body of a single-quoted literal into a
// double-quoted one.
func writeRequoted(b *strings.Builder, body string) {
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(body):
			b.WriteByte(c)
			b.WriteByte(body[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}

// matchBalanced returns the index of the bracket closing s[start], skipping
// string literals.
func matchBalanced(s string, start int) (int, bool) {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 || !pairs(stack[len(stack)-1], c) {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// unclosed returns the closers needed to balance s. It reports false when s
// ends inside a string or holds a mismatched closer.
func unclosed(s string) (string, bool) {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 || !pairs(stack[len(stack)-1], c) {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString {
		return "", false
	}
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), true
}

func pairs(open, closer byte) bool {
	return (open == '{' && closer == '}') || (open == '[' && closer == ']')
}
