package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/xandai-project/xandai/src/conversation"
)

const (
	historyFileName  = "conversation_history.json"
	backupPrefix     = "conversation_backup_"
	clearedPrefix    = "conversation_cleared_"
	backupTimeLayout = "20060102_150405"

	// maxBackups bounds how many timestamped backups are retained.
	maxBackups = 10
)

// Store persists a conversation history as a JSON document with rotating
// timestamped backups. It runs on an afero filesystem so tests can use an
// in-memory one.
type Store struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// NewStore creates the storage directory if needed.
func NewStore(fs afero.Fs, dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{fs: fs, dir: dir, logger: logger}, nil
}

func (s *Store) primaryPath() string {
	return filepath.Join(s.dir, historyFileName)
}

// Load reads the persisted history. A missing file returns (nil, nil); a
// corrupt or unreadable file is logged and also returns (nil, nil) so
// startup degrades to a fresh conversation instead of crashing.
func (s *Store) Load() (*conversation.History, error) {
	path := s.primaryPath()

	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("check history file: %w", err)
	}
	if !exists {
		return nil, nil
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		s.logger.Warn("could not read conversation history, starting fresh", "path", path, "error", err)
		return nil, nil
	}

	var h conversation.History
	if err := json.Unmarshal(data, &h); err != nil {
		s.logger.Warn("conversation history is corrupt, starting fresh", "path", path, "error", err)
		return nil, nil
	}

	h.UpdateStatistics()
	return &h, nil
}

// Save writes the history to the primary file. The previous primary is
// first renamed to a timestamped backup, so an interruption mid-write
// always leaves either the backup or the new primary recoverable.
func (s *Store) Save(h *conversation.History) error {
	path := s.primaryPath()
	backupPath := filepath.Join(s.dir, backupPrefix+time.Now().Format(backupTimeLayout)+".json")

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	if exists, _ := afero.Exists(s.fs, path); exists {
		// A second save within the same clock second reuses the backup name.
		if backupExists, _ := afero.Exists(s.fs, backupPath); backupExists {
			_ = s.fs.Remove(backupPath)
		}
		if err := s.fs.Rename(path, backupPath); err != nil {
			return fmt.Errorf("rotate history backup: %w", err)
		}
	}

	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		// Put the old file back so at least one copy stays live.
		if backupExists, _ := afero.Exists(s.fs, backupPath); backupExists {
			_ = s.fs.Rename(backupPath, path)
		}
		return fmt.Errorf("write conversation history: %w", err)
	}

	s.pruneBackups()
	return nil
}

// pruneBackups deletes all but the most recent backups. Names embed a
// sortable timestamp, so lexical order is age order.
func (s *Store) pruneBackups() {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		s.logger.Warn("could not scan backup directory", "error", err)
		return
	}

	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), backupPrefix) {
			backups = append(backups, entry.Name())
		}
	}
	if len(backups) <= maxBackups {
		return
	}

	sort.Strings(backups)
	for _, name := range backups[:len(backups)-maxBackups] {
		if err := s.fs.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("could not remove old backup", "name", name, "error", err)
		}
	}
}

// Snapshot writes the history to a one-off cleared snapshot file and
// returns its name. Used before ClearConversation discards the log.
func (s *Store) Snapshot(h *conversation.History) (string, error) {
	name := clearedPrefix + time.Now().Format(backupTimeLayout) + ".json"

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode conversation snapshot: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write conversation snapshot: %w", err)
	}
	return name, nil
}
