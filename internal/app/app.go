// Package app assembles the storage, data sources and pipeline from Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/option"

	"rank_tracker/internal/config"
	"rank_tracker/internal/gsc"
	"rank_tracker/internal/notify"
	"rank_tracker/internal/pipeline"
	"rank_tracker/internal/serp"
	"rank_tracker/internal/storage"
)

// App holds the long-lived components shared by the server and the CLI.
type App struct {
	Store    *storage.SQLite
	Pipeline *pipeline.Pipeline
}

// New opens the database and builds the pipeline. Missing source
// credentials leave the matching source unconfigured rather than failing.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	store, err := OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	var gscOpts []option.ClientOption
	if cfg.GSCCredentialsFile != "" {
		gscOpts = append(gscOpts, option.WithCredentialsFile(cfg.GSCCredentialsFile))
	}
	analytics, err := gsc.New(ctx, cfg.GSCProperty, gscOpts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var login, password string
	if cfg.SERPConfigured() {
		login, password = cfg.DataForSEOLogin, cfg.DataForSEOPassword
	}
	serpClient := serp.New(&http.Client{}, cfg.DataForSEOBaseURL, login, password, cfg.SERPBatchPause, cfg.SourceTimeout)

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.SourceTimeout, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	log.Info("sources",
		"analytics", analytics.Configured(),
		"serp", serpClient.Configured(),
		"notifications", notifier.Enabled(),
	)

	return &App{
		Store:    store,
		Pipeline: pipeline.New(store, analytics, serpClient, notifier, cfg.SourceTimeout, log),
	}, nil
}

// OpenStore creates the database directory if needed and opens a migrated
// store.
func OpenStore(path string) (*storage.SQLite, error) {
	if !strings.HasPrefix(path, ":memory:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data directory %s: %w", dir, err)
			}
		}
	}
	store, err := storage.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return store, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}

// NewLogger returns a text logger writing to stderr at the named level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
