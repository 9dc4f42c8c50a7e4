// Package conversation defines the persistent conversation data model:
// messages, tool call records, summaries, and the history aggregate.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

// MessageType classifies a message beyond its role.
type MessageType string

const (
	TypeConversation   MessageType = "conversation"
	TypeToolCall       MessageType = "tool_call"
	TypeToolResult     MessageType = "tool_result"
	TypeSystemPrompt   MessageType = "system_prompt"
	TypeCodingRule     MessageType = "coding_rule"
	TypeContextSummary MessageType = "context_summary"
	TypeSessionMarker  MessageType = "session_marker"
)

// ToolCall records a tool/function invocation requested by the model.
type ToolCall struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// ToolResult records the outcome of a tool call.
type ToolResult struct {
	ToolCallID string            `json:"tool_call_id"`
	Content    string            `json:"content"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Message is a single turn or system/tool event in a conversation.
// Messages are immutable once created; compaction replaces ranges of
// messages wholesale rather than editing them in place.
type Message struct {
	ID          string      `json:"id"`
	Role        Role        `json:"role"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
	Tokens      int         `json:"tokens"`
	MessageType MessageType `json:"message_type"`

	ToolCalls   []ToolCall        `json:"tool_calls,omitempty"`
	ToolResults []ToolResult      `json:"tool_results,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	ModelUsed        string `json:"model_used,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
}

// NewMessage creates a message with a fresh ID and the current timestamp.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:          uuid.New().String(),
		Role:        role,
		Content:     content,
		Timestamp:   time.Now(),
		MessageType: TypeConversation,
	}
}

// IsConversationMessage reports whether the message is a plain user or
// assistant turn.
func (m *Message) IsConversationMessage() bool {
	return (m.Role == RoleUser || m.Role == RoleAssistant) && m.MessageType == TypeConversation
}

// IsSystemMessage reports whether the message carries the system role.
func (m *Message) IsSystemMessage() bool {
	return m.Role == RoleSystem
}

// IsToolMessage reports whether the message records tool activity.
func (m *Message) IsToolMessage() bool {
	return m.MessageType == TypeToolCall || m.MessageType == TypeToolResult
}

// EstimateTokens returns the cached token count when one was assigned at
// creation, falling back to a rough character-based estimate. Any message
// with content costs at least one token.
func (m *Message) EstimateTokens() int {
	if m.Tokens > 0 {
		return m.Tokens
	}

	base := len(m.Content) / 4
	for _, tc := range m.ToolCalls {
		base += len(fmt.Sprint(tc.Arguments))/4 + 10
	}
	for _, tr := range m.ToolResults {
		base += len(tr.Content)/4 + 5
	}
	if base < 1 {
		base = 1
	}
	return base
}
