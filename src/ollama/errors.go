package ollama

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error variables
var (
	// ErrModelNotFound indicates the requested model is not installed
	ErrModelNotFound = errors.New("model not found")

	// ErrEmptyResponse indicates the server returned an empty completion
	ErrEmptyResponse = errors.New("empty response from server")

	// ErrServerUnavailable indicates the Ollama server could not be reached
	ErrServerUnavailable = errors.New("ollama server unavailable")
)

// errorResponse matches the Ollama error format: {"error":"..."}
type errorResponse struct {
	Error string `json:"error"`
}

// APIError represents an error response from the Ollama server.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("ollama API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error is retryable.
func (e *APIError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound returns true if the server rejected the model name.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
