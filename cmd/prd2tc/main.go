package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/joelkehle/prd2tc/cmd/prd2tc/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "path to an env file",
		Value: ".env",
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "prd2tc",
		Usage: "generate structured test cases from product requirement documents",
		Commands: []*cli.Command{
			{
				Name:  "extract",
				Usage: "extract test cases from a plain-text document",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{Name: "file", Usage: "document to analyze", Required: true},
					&cli.StringFlag{Name: "name", Usage: "document name (defaults to the file name)"},
					&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
				},
				Action: commands.ExtractAction,
			},
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{Name: "addr", Usage: "listen address (overrides HTTP_ADDR)"},
				},
				Action: commands.ServeAction,
			},
			{
				Name:  "export",
				Usage: "export a session's test cases as a Teambition import workbook",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{Name: "session", Usage: "session ID", Required: true},
					&cli.StringFlag{Name: "out", Usage: "output .xlsx path", Required: true},
				},
				Action: commands.ExportAction,
			},
			{
				Name:  "report",
				Usage: "write a session summary as Markdown or PDF",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{Name: "session", Usage: "session ID", Required: true},
					&cli.StringFlag{Name: "out", Usage: "output path", Required: true},
					&cli.BoolFlag{Name: "pdf", Usage: "render PDF with headless Chromium"},
					&cli.StringFlag{Name: "style", Usage: "stylesheet for PDF output"},
				},
				Action: commands.ReportAction,
			},
		},
	}
}
