// Package app wires the configuration, Ollama client, conversation
// manager and session archive into one application instance the CLI
// commands share.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xandai-project/xandai/src/config"
	"github.com/xandai-project/xandai/src/history"
	"github.com/xandai-project/xandai/src/ollama"
	"github.com/xandai-project/xandai/src/storage"
)

// App represents the main application with all services
type App struct {
	Client  *ollama.Client
	History *history.Manager
	Archive *storage.DB
	Config  *config.Config
	Logger  *slog.Logger
}

// New creates a new App instance with all services initialized
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	client := ollama.NewClient(ollama.Config{
		BaseURL:    cfg.Server.BaseURL,
		Timeout:    cfg.Server.Timeout,
		RetryCount: cfg.Server.MaxRetries,
		RetryDelay: cfg.Server.RetryDelay,
		Logger:     logger,
	})

	manager, err := history.NewManager(history.Options{
		Dir:       cfg.History.Directory,
		Logger:    logger,
		Strategy:  cfg.Strategy(),
		Generator: client,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation history: %w", err)
	}
	if cfg.Model.Default != "" {
		manager.SetModel(cfg.Model.Default)
	}

	app := &App{
		Client:  client,
		History: manager,
		Config:  cfg,
		Logger:  logger,
	}

	if cfg.Archive.Enabled {
		path := cfg.Archive.DatabasePath
		if path == "" {
			path = config.GetDefaultArchivePath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
		archive, err := storage.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open session archive: %w", err)
		}
		app.Archive = archive
	}

	return app, nil
}

// ArchiveCurrentSession stores the live conversation in the archive. A
// no-op when archiving is disabled or the conversation is empty.
func (a *App) ArchiveCurrentSession(ctx context.Context) error {
	if a.Archive == nil {
		return nil
	}
	h := a.History.History()
	if h == nil || len(h.Messages) == 0 {
		return nil
	}

	if _, err := storage.ArchiveSession(ctx, a.Archive, h, a.History.Model()); err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	a.Logger.Info("session archived", "id", h.ID, "messages", h.TotalMessages)
	return nil
}

// Close closes all resources held by the app
func (a *App) Close() error {
	if a.Archive != nil {
		return a.Archive.Close()
	}
	return nil
}
