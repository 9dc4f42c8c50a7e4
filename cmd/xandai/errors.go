package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xandai-project/xandai/src/history"
	"github.com/xandai-project/xandai/src/ollama"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

// ErrorHandler handles different types of errors and exits with appropriate codes
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError handles an error and exits with the appropriate code
func (h *ErrorHandler) HandleError(err error) {
	if err == nil {
		return
	}

	h.logger.Error("Command failed", "error", err)
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	os.Exit(h.getExitCode(err))
}

// getExitCode determines the appropriate exit code for an error
func (h *ErrorHandler) getExitCode(err error) int {
	var perr *history.PersistenceError
	if errors.As(err, &perr) {
		return ExitError
	}
	if errors.Is(err, ollama.ErrServerUnavailable) {
		return ExitNetwork
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "configuration"):
		return ExitConfig
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"):
		return ExitNetwork
	case strings.Contains(errStr, "timeout"):
		return ExitTimeout
	case strings.Contains(errStr, "interrupted"):
		return ExitInterrupted
	case strings.Contains(errStr, "usage"), strings.Contains(errStr, "invalid"):
		return ExitUsage
	default:
		return ExitError
	}
}

// warnPersistence reports a persistence failure without aborting; the
// in-memory conversation is still good.
func warnPersistence(logger *slog.Logger, err error) error {
	var perr *history.PersistenceError
	if errors.As(err, &perr) {
		logger.Warn("conversation not saved", "error", perr.Err)
		fmt.Fprintf(os.Stderr, "warning: conversation not saved: %v\n", perr.Err)
		return nil
	}
	return err
}
