package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/joelkehle/prd2tc/internal/extraction"
	"github.com/joelkehle/prd2tc/internal/httpapi"
)

// ServeAction runs the HTTP API until the context is canceled.
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	st, err := app.Store()
	if err != nil {
		return err
	}
	addr := cmd.String("addr")
	if addr == "" {
		addr = app.Config.HTTPAddr
	}

	handler := httpapi.NewServer(httpapi.Config{
		Store:      st,
		Board:      extraction.NewBoard(),
		AI:         app.Config.AI,
		Extraction: app.Config.Extraction.Options(app.Logger),
		Logger:     app.Logger,
	})
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("http.listen", "addr", addr, "db", app.Config.DatabasePath, "provider", app.Config.AI.Provider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
