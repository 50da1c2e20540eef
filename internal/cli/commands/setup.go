// Package commands implements the leapboard CLI commands.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapboard/internal/cli/config"
	"github.com/leapstack-labs/leapboard/internal/client"
	"github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/query"
	"github.com/leapstack-labs/leapboard/internal/state"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Store   core.Store
	Service *dashboards.Service
	Out     io.Writer
}

// NewCommandContext opens the configured store and builds a dashboard
// service on it. The cleanup function must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	store, cleanup, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cache := newCache(cfg, metrics.NewQueryMetrics(nil), logger)
	svc := dashboards.NewService(store, cache, metrics.NewDashboardMetrics(nil), logger)

	return &CommandContext{
		Cfg:     cfg,
		Logger:  logger,
		Store:   store,
		Service: svc,
		Out:     cmd.OutOrStdout(),
	}, cleanup, nil
}

// openStore returns the remote API client when a backend URL is configured,
// otherwise the local SQLite store with migrations applied.
func openStore(cfg *config.Config, logger *slog.Logger) (core.Store, func(), error) {
	if cfg.Backend.URL != "" {
		c, err := client.New(cfg.Backend.URL, client.WithUser(cfg.User), client.WithToken(cfg.Backend.Token))
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using remote backend", "url", cfg.Backend.URL)
		return c, func() {}, nil
	}

	store, err := openLocalStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func openLocalStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newCache(cfg *config.Config, m *metrics.QueryMetrics, logger *slog.Logger) *query.Cache[*core.Dashboard] {
	return query.NewCache[*core.Dashboard](query.Options{
		StaleTime:    cfg.Query.StaleTime,
		FetchTimeout: cfg.Query.FetchTimeout,
		MaxEntries:   cfg.Query.MaxEntries,
		Metrics:      m,
		Logger:       logger,
	})
}
