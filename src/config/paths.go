package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// GetDefaultHistoryDir returns the conversation storage directory using
// XDG base directories. State data belongs under XDG_STATE_HOME.
func GetDefaultHistoryDir() string {
	return filepath.Join(xdg.StateHome, "xandai", "history")
}

// GetDefaultArchivePath returns the default session archive location
func GetDefaultArchivePath() string {
	return filepath.Join(xdg.StateHome, "xandai", "sessions.db")
}

// GetDefaultCachePath returns the default cache directory path
func GetDefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, "xandai")
}

// GetDefaultLogPath returns the default log file location
func GetDefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "xandai", "xandai.log")
}
