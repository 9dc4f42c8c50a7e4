package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/xandai-project/xandai/src/history"
	"github.com/xandai-project/xandai/src/ollama"
)

func TestGetExitCode(t *testing.T) {
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic error", errors.New("something broke"), ExitError},
		{"persistence error", &history.PersistenceError{Err: errors.New("disk full")}, ExitError},
		{"server unavailable", fmt.Errorf("chat: %w", ollama.ErrServerUnavailable), ExitNetwork},
		{"configuration error", errors.New("configuration invalid: bad url"), ExitConfig},
		{"connection refused", errors.New("connection refused"), ExitNetwork},
		{"timeout", errors.New("request timeout exceeded"), ExitTimeout},
		{"interrupted", errors.New("interrupted by signal"), ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handler.getExitCode(tt.err)
			if got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestGetExitCodeWrappedPersistence(t *testing.T) {
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Persistence errors keep the general exit code even when wrapped,
	// since the conversation itself survived in memory.
	err := fmt.Errorf("history: %w", &history.PersistenceError{Err: errors.New("io error")})
	if got := handler.getExitCode(err); got != ExitError {
		t.Errorf("wrapped persistence error = %d, want %d", got, ExitError)
	}
}
