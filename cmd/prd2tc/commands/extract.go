package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/joelkehle/prd2tc/internal/extraction"
	"github.com/joelkehle/prd2tc/internal/llm"
	"github.com/joelkehle/prd2tc/internal/testcase"
)

// ExtractAction runs the pipeline on a local file and prints the result.
func ExtractAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	path := cmd.String("file")
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	name := cmd.String("name")
	if name == "" {
		name = filepath.Base(path)
	}

	caller, err := llm.NewCaller(app.Config.AI)
	if err != nil {
		return err
	}
	orch := extraction.New(caller, app.Config.Extraction.Options(app.Logger))
	doc := extraction.Document{ID: uuid.NewString(), Name: name, Text: string(text)}
	result, err := orch.Run(ctx, doc, 0, func(msg string) {
		fmt.Fprintln(os.Stderr, msg)
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printResult(os.Stdout, result)
}

func printResult(w io.Writer, result testcase.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tGROUP\tLEVEL\tTYPE")
	for i, r := range result.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, oneLine(r.Title), oneLine(r.GroupName), r.CaseLevel, r.CaseType)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d test cases\n\n%s\n", len(result.Records), result.Suggestions)
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
