package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/xandai-project/xandai/src/conversation"
)

// ArchiveSession stores a finished conversation with its messages and
// summaries. The whole archive is one transaction.
func ArchiveSession(ctx context.Context, db *DB, h *conversation.History, model string) (*ArchivedSession, error) {
	if h == nil || len(h.Messages) == 0 {
		return nil, errors.New("nothing to archive")
	}

	session := &ArchivedSession{
		ID:           h.ID,
		Model:        model,
		StartedAt:    h.CreatedAt,
		EndedAt:      h.LastUpdated,
		MessageCount: h.TotalMessages,
		TokenCount:   h.TotalTokens,
		SummaryCount: len(h.Summaries),
		CreatedAt:    time.Now(),
	}
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	tx, err := db.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO sessions (id, model, started_at, ended_at, message_count, token_count, summary_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query,
		session.ID, session.Model, session.StartedAt, session.EndedAt,
		session.MessageCount, session.TokenCount, session.SummaryCount, session.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	for _, msg := range h.Messages {
		if err := createMessage(ctx, tx, session.ID, msg); err != nil {
			return nil, err
		}
	}
	for _, sum := range h.Summaries {
		if err := createSummary(ctx, tx, session.ID, sum); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit archive: %w", err)
	}
	return session, nil
}

func createMessage(ctx context.Context, db Execer, sessionID string, msg *conversation.Message) error {
	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}

	query := `INSERT INTO session_messages (id, session_id, role, message_type, content, tokens, model, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		id, sessionID, string(msg.Role), string(msg.MessageType),
		msg.Content, msg.Tokens, msg.ModelUsed, JSONStringMap(msg.Metadata), msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message %s: %w", id, err)
	}
	return nil
}

func createSummary(ctx context.Context, db Execer, sessionID string, sum *conversation.Summary) error {
	id := sum.ID
	if id == "" {
		id = uuid.New().String()
	}

	query := `INSERT INTO session_summaries (id, session_id, content, original_message_count, original_token_count, summary_tokens, time_range_start, time_range_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		id, sessionID, sum.SummaryContent,
		sum.OriginalMessageCount, sum.OriginalTokenCount, sum.SummaryTokens,
		sum.TimeRangeStart, sum.TimeRangeEnd, sum.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert summary %s: %w", id, err)
	}
	return nil
}

// GetSessionByID retrieves an archived session by its ID
func GetSessionByID(ctx context.Context, db sqlscan.Querier, sessionID string) (*ArchivedSession, error) {
	query := `SELECT id, model, started_at, ended_at, message_count, token_count, summary_count, created_at
		FROM sessions WHERE id = ?`
	var s ArchivedSession
	err := sqlscan.Get(ctx, db, &s, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &s, nil
}

// ListSessions retrieves archived sessions newest first. limit <= 0 means
// no limit.
func ListSessions(ctx context.Context, db sqlscan.Querier, limit int) ([]ArchivedSession, error) {
	query := `SELECT id, model, started_at, ended_at, message_count, token_count, summary_count, created_at
		FROM sessions ORDER BY ended_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var sessions []ArchivedSession
	if err := sqlscan.Select(ctx, db, &sessions, query, args...); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetMessagesBySessionID retrieves all messages for a session ordered by
// creation time
func GetMessagesBySessionID(ctx context.Context, db sqlscan.Querier, sessionID string) ([]ArchivedMessage, error) {
	query := `SELECT id, session_id, role, message_type, content, tokens, model, metadata, created_at
		FROM session_messages WHERE session_id = ? ORDER BY created_at`
	var messages []ArchivedMessage
	if err := sqlscan.Select(ctx, db, &messages, query, sessionID); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetSummariesBySessionID retrieves all summaries for a session
func GetSummariesBySessionID(ctx context.Context, db sqlscan.Querier, sessionID string) ([]ArchivedSummary, error) {
	query := `SELECT id, session_id, content, original_message_count, original_token_count, summary_tokens, time_range_start, time_range_end, created_at
		FROM session_summaries WHERE session_id = ? ORDER BY time_range_start`
	var summaries []ArchivedSummary
	if err := sqlscan.Select(ctx, db, &summaries, query, sessionID); err != nil {
		return nil, err
	}
	return summaries, nil
}

// DeleteSession removes an archived session and its rows
func DeleteSession(ctx context.Context, db Execer, sessionID string) error {
	// Child tables first; older sqlite builds may not enforce cascades.
	if _, err := db.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM session_summaries WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}
