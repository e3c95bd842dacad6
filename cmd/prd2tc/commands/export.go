package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/joelkehle/prd2tc/internal/export"
	"github.com/joelkehle/prd2tc/internal/report"
	"github.com/joelkehle/prd2tc/internal/store"
	"github.com/joelkehle/prd2tc/internal/testcase"
)

// ExportAction writes a session's test cases as an import workbook.
func ExportAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	sess, result, err := loadSession(ctx, app, cmd.String("session"))
	if err != nil {
		return err
	}
	data, err := export.Workbook(result.Records)
	if err != nil {
		return err
	}
	out := cmd.String("out")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	fmt.Printf("exported %d test cases from %q to %s\n", len(result.Records), sess.Title, out)
	return nil
}

// ReportAction writes a session summary as Markdown, or PDF with --pdf.
func ReportAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	sess, result, err := loadSession(ctx, app, cmd.String("session"))
	if err != nil {
		return err
	}
	md := report.BuildMarkdown(report.Summary{
		Title:       sess.Title,
		FileName:    sess.FileName,
		GeneratedAt: time.Now(),
	}, result)

	data := []byte(md)
	if cmd.Bool("pdf") {
		data, err = report.NewChromiumPDFRenderer(cmd.String("style")).Render(ctx, sess.Title, md)
		if err != nil {
			return err
		}
	}
	out := cmd.String("out")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("wrote report for %q to %s\n", sess.Title, out)
	return nil
}

func loadSession(ctx context.Context, app *AppContext, id string) (store.Session, testcase.Result, error) {
	st, err := app.Store()
	if err != nil {
		return store.Session{}, testcase.Result{}, err
	}
	sess, err := st.GetSession(ctx, id)
	if err != nil {
		return store.Session{}, testcase.Result{}, err
	}
	cases, err := st.ListTestCases(ctx, id)
	if err != nil {
		return store.Session{}, testcase.Result{}, err
	}
	result := testcase.Result{Suggestions: sess.Suggestions, Records: make([]testcase.Record, 0, len(cases))}
	for _, tc := range cases {
		result.Records = append(result.Records, tc.Record)
	}
	return sess, result, nil
}
