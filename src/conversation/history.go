package conversation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// History is the aggregate root for one conversation: an ordered message
// sequence, its compaction summaries, and derived counters. The message
// sequence is kept sorted by timestamp at all times, including after
// optimization and compaction.
type History struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	LastUpdated time.Time         `json:"last_updated"`
	Messages    []*Message        `json:"messages"`
	Summaries   []*Summary        `json:"summaries"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	TotalTokens   int `json:"total_tokens"`
	TotalMessages int `json:"total_messages"`
}

// NewHistory creates an empty conversation history.
func NewHistory() *History {
	now := time.Now()
	return &History{
		ID:          uuid.New().String(),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// AddMessage appends a message, stamps it with the conversation ID, and
// refreshes counters. Appends arrive in temporal order in normal operation;
// if one does not, the sequence is re-sorted to keep the ordering invariant.
func (h *History) AddMessage(msg *Message) {
	msg.SessionID = h.ID
	h.Messages = append(h.Messages, msg)

	if n := len(h.Messages); n > 1 && h.Messages[n-2].Timestamp.After(msg.Timestamp) {
		h.SortMessages()
	}

	h.LastUpdated = time.Now()
	h.UpdateStatistics()
}

// AddUserMessage appends a user turn and returns the created message.
func (h *History) AddUserMessage(content string) *Message {
	msg := NewMessage(RoleUser, content)
	h.AddMessage(msg)
	return msg
}

// AddAssistantMessage appends an assistant turn and returns the created message.
func (h *History) AddAssistantMessage(content string) *Message {
	msg := NewMessage(RoleAssistant, content)
	h.AddMessage(msg)
	return msg
}

// AddSystemMessage appends a system message of the given type.
func (h *History) AddSystemMessage(content string, msgType MessageType) *Message {
	msg := NewMessage(RoleSystem, content)
	msg.MessageType = msgType
	h.AddMessage(msg)
	return msg
}

// AddToolCallMessage appends an assistant message that requests tool calls.
func (h *History) AddToolCallMessage(content string, calls []ToolCall) *Message {
	msg := NewMessage(RoleAssistant, content)
	msg.MessageType = TypeToolCall
	msg.ToolCalls = calls
	h.AddMessage(msg)
	return msg
}

// AddToolResultMessage appends a tool-role message carrying tool results.
func (h *History) AddToolResultMessage(results []ToolResult) *Message {
	msg := NewMessage(RoleTool, "")
	msg.MessageType = TypeToolResult
	msg.ToolResults = results
	msg.Content = fmt.Sprintf("Tool results: %d result(s)", len(results))
	h.AddMessage(msg)
	return msg
}

// ConversationMessages returns only plain user/assistant turns.
func (h *History) ConversationMessages() []*Message {
	var out []*Message
	for _, msg := range h.Messages {
		if msg.IsConversationMessage() {
			out = append(out, msg)
		}
	}
	return out
}

// RecentMessages returns the last count messages, or all of them when count
// exceeds the sequence length. A non-positive count yields nil.
func (h *History) RecentMessages(count int) []*Message {
	if count <= 0 {
		return nil
	}
	if count > len(h.Messages) {
		count = len(h.Messages)
	}
	return h.Messages[len(h.Messages)-count:]
}

// MessagesByType returns messages of a specific type.
func (h *History) MessagesByType(msgType MessageType) []*Message {
	var out []*Message
	for _, msg := range h.Messages {
		if msg.MessageType == msgType {
			out = append(out, msg)
		}
	}
	return out
}

// MessagesInRange returns messages whose timestamps fall within
// [start, end], inclusive on both ends.
func (h *History) MessagesInRange(start, end time.Time) []*Message {
	var out []*Message
	for _, msg := range h.Messages {
		if !msg.Timestamp.Before(start) && !msg.Timestamp.After(end) {
			out = append(out, msg)
		}
	}
	return out
}

// TokenCount sums estimated tokens for the given messages, or the whole
// history when msgs is nil.
func (h *History) TokenCount(msgs []*Message) int {
	if msgs == nil {
		msgs = h.Messages
	}
	total := 0
	for _, msg := range msgs {
		total += msg.EstimateTokens()
	}
	return total
}

// AddSummary records a compaction summary.
func (h *History) AddSummary(summary *Summary) {
	h.Summaries = append(h.Summaries, summary)
	h.LastUpdated = time.Now()
}

// ReplaceMessages swaps the message sequence wholesale, re-sorts it, and
// refreshes counters. Used by optimization and compaction.
func (h *History) ReplaceMessages(msgs []*Message) {
	h.Messages = msgs
	h.SortMessages()
	h.LastUpdated = time.Now()
	h.UpdateStatistics()
}

// SortMessages restores timestamp order. The sort is stable so messages
// created within the same clock tick keep their insertion order.
func (h *History) SortMessages() {
	sort.SliceStable(h.Messages, func(i, j int) bool {
		return h.Messages[i].Timestamp.Before(h.Messages[j].Timestamp)
	})
}

// UpdateStatistics recomputes the derived counters. Call after any
// structural change to the message sequence.
func (h *History) UpdateStatistics() {
	h.TotalMessages = len(h.Messages)
	h.TotalTokens = h.TokenCount(nil)
}
