// Package commands implements the prd2tc subcommands.
package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joelkehle/prd2tc/internal/config"
	"github.com/joelkehle/prd2tc/internal/store"
	"github.com/joelkehle/prd2tc/internal/telemetry"
)

// AppContext holds what every subcommand needs.
type AppContext struct {
	Config *config.Config
	Logger *slog.Logger

	store    *store.SQLiteStore
	shutdown func(context.Context) error
}

func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	_, shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	return &AppContext{Config: cfg, Logger: logger, shutdown: shutdown}, nil
}

// Store opens the database on first use.
func (a *AppContext) Store() (*store.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.Open(a.Config.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.store = st
	return st, nil
}

func (a *AppContext) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(context.Background()))
	}
	return errors.Join(errs...)
}
