package main

import (
	"context"
	"log/slog"

	"github.com/xandai-project/xandai/src/app"
	"github.com/xandai-project/xandai/src/config"
)

// loadConfig loads the configuration from the specified path or default
// locations
func loadConfig(path string) (*config.Config, error) {
	precedence := config.GetConfigPaths()
	if path != "" {
		precedence.UserConfig = path
	}

	loader := config.NewLoader(precedence)
	return loader.Load()
}

// overrideConfigFromCLI overrides configuration values with CLI flags
func overrideConfigFromCLI(cfg *config.Config, cli *CLI) {
	if cli.Model != "" {
		cfg.Model.Default = cli.Model
	}
	if cli.OllamaURL != "" {
		cfg.Server.BaseURL = cli.OllamaURL
	}
}

// buildApp loads config, applies CLI overrides and wires the application
func buildApp(ctx context.Context, cli *CLI, logger *slog.Logger) (*app.App, error) {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return nil, err
	}
	overrideConfigFromCLI(cfg, cli)
	return app.New(ctx, cfg, logger)
}
