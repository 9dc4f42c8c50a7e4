package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ArchivedSession is one completed conversation session.
type ArchivedSession struct {
	ID           string    `json:"id" db:"id"`
	Model        string    `json:"model" db:"model"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	EndedAt      time.Time `json:"ended_at" db:"ended_at"`
	MessageCount int       `json:"message_count" db:"message_count"`
	TokenCount   int       `json:"token_count" db:"token_count"`
	SummaryCount int       `json:"summary_count" db:"summary_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ArchivedMessage is one message inside an archived session.
type ArchivedMessage struct {
	ID          string        `json:"id" db:"id"`
	SessionID   string        `json:"session_id" db:"session_id"`
	Role        string        `json:"role" db:"role"`
	MessageType string        `json:"message_type" db:"message_type"`
	Content     string        `json:"content" db:"content"`
	Tokens      int           `json:"tokens" db:"tokens"`
	Model       string        `json:"model" db:"model"`
	Metadata    JSONStringMap `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// ArchivedSummary is one context summary inside an archived session.
type ArchivedSummary struct {
	ID                   string    `json:"id" db:"id"`
	SessionID            string    `json:"session_id" db:"session_id"`
	Content              string    `json:"content" db:"content"`
	OriginalMessageCount int       `json:"original_message_count" db:"original_message_count"`
	OriginalTokenCount   int       `json:"original_token_count" db:"original_token_count"`
	SummaryTokens        int       `json:"summary_tokens" db:"summary_tokens"`
	TimeRangeStart       time.Time `json:"time_range_start" db:"time_range_start"`
	TimeRangeEnd         time.Time `json:"time_range_end" db:"time_range_end"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// JSONStringMap stores a string map as a JSON column.
type JSONStringMap map[string]string

// Scan implements the sql.Scanner interface for JSONStringMap
func (j *JSONStringMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case string:
		if v == "" || v == "{}" {
			*j = nil
			return nil
		}
		return json.Unmarshal([]byte(v), j)
	case []byte:
		if len(v) == 0 || string(v) == "{}" {
			*j = nil
			return nil
		}
		return json.Unmarshal(v, j)
	default:
		return fmt.Errorf("cannot scan type %T into JSONStringMap", value)
	}
}

// Value implements the driver.Valuer interface for JSONStringMap
func (j JSONStringMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
