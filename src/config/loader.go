// Package config loads, merges and validates the xandai configuration
// from its standard file locations and environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/xandai-project/xandai/src/tokenbudget"
)

// Precedence lists the configuration sources in merge order. Later
// sources override earlier ones.
type Precedence struct {
	UserConfig        string
	ProjectConfig     string
	LocalConfig       string
	EnvironmentPrefix string
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() Precedence {
	return Precedence{
		UserConfig:        filepath.Join(xdg.ConfigHome, "xandai", "config.json"),
		ProjectConfig:     filepath.Join(".xandai", "config.json"),
		LocalConfig:       filepath.Join(".xandai", "config.local.json"),
		EnvironmentPrefix: "XANDAI",
	}
}

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	precedence Precedence
	validator  *Validator
}

// NewLoader creates a new configuration loader
func NewLoader(precedence Precedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
	}
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	sources := []struct {
		path string
		name string
	}{
		{l.precedence.UserConfig, "user"},
		{l.precedence.ProjectConfig, "project"},
		{l.precedence.LocalConfig, "local"},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}
		if cfg, err := l.loadFile(src.path); err == nil {
			config = l.mergeConfigs(config, cfg)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.name, src.path, err)
		}
	}

	if l.precedence.EnvironmentPrefix != "" {
		l.applyEnvironmentOverrides(config)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &config, nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// mergeConfigs merges two configurations with the second taking precedence
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Server.BaseURL != "" {
		result.Server.BaseURL = override.Server.BaseURL
	}
	if override.Server.Timeout != 0 {
		result.Server.Timeout = override.Server.Timeout
	}
	if override.Server.MaxRetries != 0 {
		result.Server.MaxRetries = override.Server.MaxRetries
	}
	if override.Server.RetryDelay != 0 {
		result.Server.RetryDelay = override.Server.RetryDelay
	}

	if override.Model.Default != "" {
		result.Model.Default = override.Model.Default
	}
	if override.Model.SystemPrompt != "" {
		result.Model.SystemPrompt = override.Model.SystemPrompt
	}

	if override.Budget.PreserveRecentMessages != 0 {
		result.Budget.PreserveRecentMessages = override.Budget.PreserveRecentMessages
	}
	if override.Budget.TargetUtilization != 0 {
		result.Budget.TargetUtilization = override.Budget.TargetUtilization
	}
	if override.Budget.EmergencyThreshold != 0 {
		result.Budget.EmergencyThreshold = override.Budget.EmergencyThreshold
	}

	result.Summarization.Enabled = override.Summarization.Enabled
	if override.Summarization.Threshold != 0 {
		result.Summarization.Threshold = override.Summarization.Threshold
	}
	if override.Summarization.MessagesPerSummary != 0 {
		result.Summarization.MessagesPerSummary = override.Summarization.MessagesPerSummary
	}
	if override.Summarization.MinAgeHours != 0 {
		result.Summarization.MinAgeHours = override.Summarization.MinAgeHours
	}

	if override.History.Directory != "" {
		result.History.Directory = override.History.Directory
	}
	result.History.BackupOnClear = override.History.BackupOnClear

	result.Archive.Enabled = override.Archive.Enabled
	if override.Archive.DatabasePath != "" {
		result.Archive.DatabasePath = override.Archive.DatabasePath
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		result.Logging.File = override.Logging.File
	}

	if override.Debug {
		result.Debug = true
	}

	return &result
}

// applyEnvironmentOverrides applies environment variable overrides to config
func (l *Loader) applyEnvironmentOverrides(config *Config) {
	prefix := l.precedence.EnvironmentPrefix

	if url := os.Getenv(prefix + "_OLLAMA_URL"); url != "" {
		config.Server.BaseURL = url
	}
	// Honor the conventional Ollama variable too
	if config.Server.BaseURL == "" {
		if url := os.Getenv("OLLAMA_HOST"); url != "" {
			config.Server.BaseURL = url
		}
	}

	if model := os.Getenv(prefix + "_MODEL"); model != "" {
		config.Model.Default = model
	}
	if dir := os.Getenv(prefix + "_HISTORY_DIR"); dir != "" {
		config.History.Directory = dir
	}
	if level := os.Getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if timeout := os.Getenv(prefix + "_TIMEOUT_SECONDS"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			config.Server.Timeout = time.Duration(secs) * time.Second
		}
	}
	if debug := os.Getenv(prefix + "_DEBUG"); debug == "true" || debug == "1" {
		config.Debug = true
	}
}

// Strategy converts the budget and summarization settings into the
// token budget strategy the history manager consumes.
func (c *Config) Strategy() tokenbudget.Strategy {
	s := tokenbudget.DefaultStrategy()

	if c.Budget.PreserveRecentMessages != 0 {
		s.PreserveRecentMessages = c.Budget.PreserveRecentMessages
	}
	if c.Budget.TargetUtilization != 0 {
		s.TargetUtilization = c.Budget.TargetUtilization
	}
	if c.Budget.EmergencyThreshold != 0 {
		s.EmergencyThreshold = c.Budget.EmergencyThreshold
	}
	if c.Summarization.Threshold != 0 {
		s.SummarizeThreshold = c.Summarization.Threshold
	}
	if c.Summarization.MessagesPerSummary != 0 {
		s.MessagesPerSummary = c.Summarization.MessagesPerSummary
	}
	if c.Summarization.MinAgeHours != 0 {
		s.MinSummaryAgeHours = c.Summarization.MinAgeHours
	}

	return s
}
