package config

import "time"

// Config represents the complete configuration for xandai
type Config struct {
	// Version of the configuration format
	Version string `json:"version"`

	// Server holds the Ollama server connection settings
	Server ServerConfig `json:"server"`

	// Model holds model selection settings
	Model ModelConfig `json:"model"`

	// Budget holds context budget settings
	Budget BudgetConfig `json:"budget"`

	// Summarization holds summarization settings
	Summarization SummarizationConfig `json:"summarization"`

	// History holds conversation persistence settings
	History HistoryConfig `json:"history"`

	// Logging configuration
	Logging LoggingConfig `json:"logging,omitempty"`

	// Archive holds the session archive settings
	Archive ArchiveConfig `json:"archive,omitempty"`

	// Debug enables general debug logging
	Debug bool `json:"debug,omitempty"`
}

// ServerConfig defines how to reach the Ollama server
type ServerConfig struct {
	// BaseURL of the Ollama HTTP API
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Timeout for HTTP requests
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries for failed requests
	MaxRetries int `json:"max_retries,omitempty" validate:"gte=0,lte=10"`

	// RetryDelay between retries
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}

// ModelConfig defines model selection
type ModelConfig struct {
	// Default model bound at startup
	Default string `json:"default,omitempty"`

	// SystemPrompt injected at the start of new conversations
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// BudgetConfig defines the context budget strategy
type BudgetConfig struct {
	// PreserveRecentMessages is the size of the sliding window that is
	// never trimmed
	PreserveRecentMessages int `json:"preserve_recent_messages,omitempty" validate:"gte=0"`

	// TargetUtilization is the fraction of available context to fill
	TargetUtilization float64 `json:"target_utilization,omitempty" validate:"gte=0,lte=1"`

	// EmergencyThreshold is the utilization fraction treated as critical
	EmergencyThreshold float64 `json:"emergency_threshold,omitempty" validate:"gte=0,lte=1"`
}

// SummarizationConfig defines when background summarization kicks in
type SummarizationConfig struct {
	// Enabled toggles automatic summarization
	Enabled bool `json:"enabled"`

	// Threshold is the conversation length that triggers summarization
	Threshold int `json:"threshold,omitempty" validate:"gte=0"`

	// MessagesPerSummary is the chunk size for each summary
	MessagesPerSummary int `json:"messages_per_summary,omitempty" validate:"gte=0"`

	// MinAgeHours is how old messages must be before summarization
	MinAgeHours int `json:"min_age_hours,omitempty" validate:"gte=0"`
}

// HistoryConfig defines conversation persistence
type HistoryConfig struct {
	// Directory where the conversation file and backups live. Defaults
	// to the XDG state directory.
	Directory string `json:"directory,omitempty"`

	// BackupOnClear snapshots the conversation before clearing it
	BackupOnClear bool `json:"backup_on_clear"`
}

// ArchiveConfig defines the sqlite session archive
type ArchiveConfig struct {
	// Enabled toggles archiving of completed sessions
	Enabled bool `json:"enabled"`

	// DatabasePath overrides the default archive location
	DatabasePath string `json:"database_path,omitempty"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `json:"level,omitempty" validate:"omitempty,log_level"`

	// Format is the output format (text, json)
	Format string `json:"format,omitempty" validate:"omitempty,log_format"`

	// File is an optional log file path; empty logs to stderr only
	File string `json:"file,omitempty"`
}
