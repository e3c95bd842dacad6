package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joelkehle/prd2tc/internal/testcase"
)

func TestPrintResult(t *testing.T) {
	a, _ := testcase.Normalize(map[string]any{"title": "Login\nok", "case_level": "High"}, 0)
	var buf bytes.Buffer
	if err := printResult(&buf, testcase.Result{Records: []testcase.Record{a}, Suggestions: "Check lockout."}); err != nil {
		t.Fatalf("printResult: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"TITLE", "Login ok", "High", "1 test cases", "Check lockout."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
