package ollama

import (
	"log/slog"
	"time"
)

// Config holds configuration for the Ollama client
type Config struct {
	BaseURL    string        // Base URL of the Ollama server
	Logger     *slog.Logger  // Logger for debugging
	Timeout    time.Duration // HTTP timeout
	RetryCount int           // Number of retries for failed requests
	RetryDelay time.Duration // Delay between retries
}
