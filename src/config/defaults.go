package config

import (
	"time"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			BaseURL:    "http://localhost:11434",
			Timeout:    120 * time.Second,
			MaxRetries: 3,
			RetryDelay: 1 * time.Second,
		},
		Model: ModelConfig{
			Default: "llama3:8b",
		},
		Budget: BudgetConfig{
			PreserveRecentMessages: 20,
			TargetUtilization:      0.75,
			EmergencyThreshold:     0.90,
		},
		Summarization: SummarizationConfig{
			Enabled:            true,
			Threshold:          50,
			MessagesPerSummary: 20,
			MinAgeHours:        1,
		},
		History: HistoryConfig{
			Directory:     GetDefaultHistoryDir(),
			BackupOnClear: true,
		},
		Archive: ArchiveConfig{
			Enabled:      true,
			DatabasePath: GetDefaultArchivePath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
