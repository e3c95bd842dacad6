// Package report renders an extraction result as a Markdown summary and,
// through headless Chromium, as a PDF.
package report

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

// Summary identifies the analyzed document.
type Summary struct {
	Title       string
	FileName    string
	GeneratedAt time.Time
}

var (
	levelOrder = []testcase.Level{testcase.LevelHigh, testcase.LevelMedium, testcase.LevelLow}
	typeOrder  = []testcase.Type{testcase.TypeFunctional, testcase.TypePerformance, testcase.TypeSecurity, testcase.TypeCompatibility}
)

// BuildMarkdown returns the report body for result.
func BuildMarkdown(s Summary, result testcase.Result) string {
	var b strings.Builder
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = "Test case analysis"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.FileName != "" {
		fmt.Fprintf(&b, "- Source: %s\n", s.FileName)
	}
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", s.GeneratedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Test cases: %d\n\n", len(result.Records))

	b.WriteString("## Coverage\n\n")
	b.WriteString("| Dimension | Value | Count |\n|---|---|---|\n")
	levels := map[testcase.Level]int{}
	types := map[testcase.Type]int{}
	for _, r := range result.Records {
		levels[r.CaseLevel]++
		types[r.CaseType]++
	}
	for _, l := range orderedKeys(levelOrder, levels) {
		fmt.Fprintf(&b, "| Case level | %s | %d |\n", cell(string(l)), levels[l])
	}
	for _, t := range orderedKeys(typeOrder, types) {
		fmt.Fprintf(&b, "| Case type | %s | %d |\n", cell(string(t)), types[t])
	}

	if s := strings.TrimSpace(result.Suggestions); s != "" {
		b.WriteString("\n## Testing Suggestions\n\n")
		b.WriteString(s)
		b.WriteString("\n")
	}

	b.WriteString("\n## Test Cases\n\n")
	b.WriteString("| # | Title | Group | Level | Type | Precondition | Steps | Expected Result |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for i, r := range result.Records {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s |\n",
			i+1,
			cell(r.Title),
			cell(r.GroupName),
			cell(string(r.CaseLevel)),
			cell(string(r.CaseType)),
			cell(r.Precondition),
			cell(r.StepDescription),
			cell(r.ExpectedResult))
	}
	return b.String()
}

// orderedKeys lists the known keys first, then any others sorted.
func orderedKeys[K ~string](known []K, counts map[K]int) []K {
	out := make([]K, 0, len(counts))
	seen := map[K]bool{}
	for _, k := range known {
		if counts[k] > 0 {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []K
	for k := range counts {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

var cellReplacer = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>")

func cell(s string) string {
	return cellReplacer.Replace(strings.TrimSpace(s))
}
