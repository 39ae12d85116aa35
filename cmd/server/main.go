// Package main is the entry point for the cardbook API server.
//
// main stays minimal: it loads configuration, builds the logger and the
// store, and hands them to internal/server.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sakif/cardbook/internal/config"
	"github.com/sakif/cardbook/internal/repository"
	mongoRepo "github.com/sakif/cardbook/internal/repository/mongo"
	sqliteRepo "github.com/sakif/cardbook/internal/repository/sqlite"
	"github.com/sakif/cardbook/internal/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("driver", cfg.Store.Driver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer store.Close()

	if !cfg.Google.Enabled() {
		logger.Warn("GOOGLE_CLIENT_ID not set, Google sign-in routes are disabled")
	}
	if cfg.Mail.Host == "" {
		logger.Warn("SMTP_HOST not set, reset mails are written to the log")
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		store.Close()
		os.Exit(1)
	}
}

// newLogger writes text in development and JSON in production.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return mongoRepo.New(ctx, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
	default:
		// os.MkdirAll is a no-op when the directory exists.
		if err := os.MkdirAll(filepath.Dir(cfg.Store.DBPath), 0755); err != nil {
			return nil, err
		}
		return sqliteRepo.New(cfg.Store.DBPath)
	}
}
