package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

func sampleResult() testcase.Result {
	a, _ := testcase.Normalize(map[string]any{
		"title":            "Login | happy path",
		"case_level":       "High",
		"step_description": "【1】Open login\n【2】Submit",
	}, 0)
	b, _ := testcase.Normalize(map[string]any{"title": "Login throttled", "case_type": "Security"}, 1)
	c, _ := testcase.Normalize(map[string]any{"title": "Login smoke", "case_level": "Critical"}, 2)
	return testcase.Result{Records: []testcase.Record{a, b, c}, Suggestions: "Check lockout."}
}

func TestBuildMarkdown(t *testing.T) {
	md := BuildMarkdown(Summary{
		Title:       "login test cases",
		FileName:    "login.docx",
		GeneratedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}, sampleResult())

	for _, want := range []string{
		"# login test cases\n",
		"- Source: login.docx\n",
		"- Generated: 2026-03-02T09:00:00Z\n",
		"- Test cases: 3\n",
		"| Case level | High | 1 |\n| Case level | Medium | 1 |\n| Case level | Critical | 1 |\n",
		"| Case type | Functional | 2 |\n| Case type | Security | 1 |\n",
		"## Testing Suggestions\n\nCheck lockout.\n",
		`| 1 | Login \| happy path |`,
		"【1】Open login<br>【2】Submit",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestBuildMarkdownDefaultsTitle(t *testing.T) {
	md := BuildMarkdown(Summary{}, testcase.Result{})
	if !strings.HasPrefix(md, "# Test case analysis\n") {
		t.Fatalf("unexpected heading: %q", md)
	}
	if strings.Contains(md, "Testing Suggestions") {
		t.Fatalf("blank suggestions should be omitted")
	}
}

func TestBuildHTMLRendersTable(t *testing.T) {
	r := NewChromiumPDFRenderer("")
	out, err := r.buildHTML("login <cases>", BuildMarkdown(Summary{Title: "login"}, sampleResult()))
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	for _, want := range []string{
		"<title>login &lt;cases&gt;</title>",
		"<table>",
		`<td data-level="High">High</td>`,
		"td[data-level=\"High\"]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestBuildHTMLCustomStylesheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "print.css")
	if err := os.WriteFile(path, []byte("body{color:red}"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := NewChromiumPDFRenderer(path).buildHTML("x", "# x")
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(out, "body{color:red}") {
		t.Fatalf("custom stylesheet not used")
	}

	if _, err := NewChromiumPDFRenderer(filepath.Join(t.TempDir(), "missing.css")).buildHTML("x", "# x"); err == nil {
		t.Fatalf("expected missing stylesheet error")
	}
}
