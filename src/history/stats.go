package history

import (
	"time"

	"github.com/xandai-project/xandai/src/conversation"
	"github.com/xandai-project/xandai/src/summarizer"
	"github.com/xandai-project/xandai/src/tokenbudget"
)

// MessageCounts breaks the conversation down by role and kind.
type MessageCounts struct {
	Total        int `json:"total"`
	Conversation int `json:"conversation"`
	System       int `json:"system"`
	Tool         int `json:"tool"`
	User         int `json:"user"`
	Assistant    int `json:"assistant"`
}

// TokenCounts breaks token totals down.
type TokenCounts struct {
	Total            int `json:"total"`
	ConversationOnly int `json:"conversation_only"`
}

// ModelSnapshot captures the bound model's budget facts at read time.
type ModelSnapshot struct {
	Name             string `json:"name"`
	Family           string `json:"family"`
	ContextLength    int    `json:"context_length"`
	AvailableContext int    `json:"available_context"`
}

// Statistics is the read-only observability surface exposed to the host
// CLI.
type Statistics struct {
	ConversationID string            `json:"conversation_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastUpdated    time.Time         `json:"last_updated"`
	DurationHours  float64           `json:"duration_hours"`
	Messages       MessageCounts     `json:"messages"`
	Tokens         TokenCounts       `json:"tokens"`
	SummaryCount   int               `json:"summary_count"`
	Model          *ModelSnapshot    `json:"model,omitempty"`
	Summarization  *summarizer.Stats `json:"summarization,omitempty"`
}

// Statistics computes the current snapshot. Pure read, no side effects.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history
	stats := Statistics{
		ConversationID: h.ID,
		CreatedAt:      h.CreatedAt,
		LastUpdated:    h.LastUpdated,
		DurationHours:  h.LastUpdated.Sub(h.CreatedAt).Hours(),
		SummaryCount:   len(h.Summaries),
	}

	for _, msg := range h.Messages {
		stats.Messages.Total++
		switch {
		case msg.IsConversationMessage():
			stats.Messages.Conversation++
		case msg.IsSystemMessage():
			stats.Messages.System++
		case msg.IsToolMessage():
			stats.Messages.Tool++
		}
		switch msg.Role {
		case conversation.RoleUser:
			stats.Messages.User++
		case conversation.RoleAssistant:
			stats.Messages.Assistant++
		}
		if msg.IsConversationMessage() {
			stats.Tokens.ConversationOnly += msg.Tokens
		}
	}
	stats.Tokens.Total = h.TotalTokens

	if m.budget != nil {
		info := m.budget.ModelInfo()
		stats.Model = &ModelSnapshot{
			Name:             info.Name,
			Family:           string(info.Family),
			ContextLength:    info.ContextLength,
			AvailableContext: info.AvailableContext(),
		}
	}

	if len(h.Summaries) > 0 {
		s := summarizer.ComputeStats(h.Summaries)
		stats.Summarization = &s
	}

	return stats
}

// ConversationSummary returns a chronological digest of everything that has
// been compacted so far. Empty when no summaries exist yet.
func (m *Manager) ConversationSummary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return summarizer.CombineSummaries(m.history.Summaries)
}

// Strategy returns the budget strategy the manager applies to bound models.
func (m *Manager) Strategy() tokenbudget.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strategy
}
