// Command server runs the favorites and collections API for the desktop.
//
// Configuration comes from config.yaml and environment variables (a .env
// file in the working directory is loaded first, if present). See
// internal/config for every setting.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sakif/spacedesk/internal/config"
	"github.com/sakif/spacedesk/internal/repository"
	"github.com/sakif/spacedesk/internal/repository/postgres"
	"github.com/sakif/spacedesk/internal/repository/sqlite"
	"github.com/sakif/spacedesk/internal/server"
)

func main() {
	// .env is a convenience for local development; production sets real env vars.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	store, err := openStore(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to open database",
			slog.String("driver", cfg.Database.Driver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.New(ctx, cfg.DSN, postgres.WithQueryTimeout(cfg.QueryTimeout))
	default:
		if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		return sqlite.New(cfg.Path, sqlite.WithQueryTimeout(cfg.QueryTimeout))
	}
}
