package conversation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMessagesKeepsOrder(t *testing.T) {
	h := NewHistory()

	h.AddUserMessage("first")
	h.AddAssistantMessage("second")
	h.AddUserMessage("third")

	require.Len(t, h.Messages, 3)
	for i := 1; i < len(h.Messages); i++ {
		assert.False(t, h.Messages[i].Timestamp.Before(h.Messages[i-1].Timestamp),
			"messages must be sorted by timestamp")
	}
	assert.Equal(t, 3, h.TotalMessages)
}

func TestAddMessageResortsOutOfOrderInsert(t *testing.T) {
	h := NewHistory()
	h.AddUserMessage("recent")

	old := NewMessage(RoleAssistant, "from the past")
	old.Timestamp = time.Now().Add(-time.Hour)
	h.AddMessage(old)

	require.Len(t, h.Messages, 2)
	assert.Equal(t, "from the past", h.Messages[0].Content)
	assert.Equal(t, "recent", h.Messages[1].Content)
}

func TestMessagePredicates(t *testing.T) {
	tests := []struct {
		name         string
		msg          *Message
		conversation bool
		system       bool
		tool         bool
	}{
		{
			name:         "user turn",
			msg:          NewMessage(RoleUser, "hi"),
			conversation: true,
		},
		{
			name: "system prompt",
			msg: func() *Message {
				m := NewMessage(RoleSystem, "rules")
				m.MessageType = TypeSystemPrompt
				return m
			}(),
			system: true,
		},
		{
			name: "tool result",
			msg: func() *Message {
				m := NewMessage(RoleTool, "out")
				m.MessageType = TypeToolResult
				return m
			}(),
			tool: true,
		},
		{
			name: "assistant tool call is not plain conversation",
			msg: func() *Message {
				m := NewMessage(RoleAssistant, "calling")
				m.MessageType = TypeToolCall
				return m
			}(),
			tool: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.conversation, tt.msg.IsConversationMessage())
			assert.Equal(t, tt.system, tt.msg.IsSystemMessage())
			assert.Equal(t, tt.tool, tt.msg.IsToolMessage())
		})
	}
}

func TestEstimateTokensMinimum(t *testing.T) {
	msg := NewMessage(RoleUser, "x")
	assert.Equal(t, 1, msg.EstimateTokens(), "non-empty content costs at least one token")

	msg.Tokens = 42
	assert.Equal(t, 42, msg.EstimateTokens(), "cached count wins once set")
}

func TestEstimateTokensIncludesToolData(t *testing.T) {
	msg := NewMessage(RoleAssistant, "running tool")
	msg.MessageType = TypeToolCall
	msg.ToolCalls = []ToolCall{{ID: "tc1", Name: "read_file", Arguments: map[string]string{"path": "/tmp/a.txt"}}}

	plain := NewMessage(RoleAssistant, "running tool")
	assert.Greater(t, msg.EstimateTokens(), plain.EstimateTokens())
}

func TestConversationMessagesFilter(t *testing.T) {
	h := NewHistory()
	h.AddSystemMessage("prompt", TypeSystemPrompt)
	h.AddUserMessage("question")
	h.AddAssistantMessage("answer")
	h.AddToolResultMessage([]ToolResult{{ToolCallID: "tc1", Content: "ok", Success: true}})

	conv := h.ConversationMessages()
	require.Len(t, conv, 2)
	assert.Equal(t, RoleUser, conv[0].Role)
	assert.Equal(t, RoleAssistant, conv[1].Role)
}

func TestRecentMessages(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		h.AddUserMessage("msg")
	}

	assert.Len(t, h.RecentMessages(3), 3)
	assert.Len(t, h.RecentMessages(10), 5)
	assert.Nil(t, h.RecentMessages(0))
}

func TestReplaceMessagesRecomputesStatistics(t *testing.T) {
	h := NewHistory()
	h.AddUserMessage("one")
	h.AddUserMessage("two")
	h.AddUserMessage("three")
	before := h.TotalTokens

	h.ReplaceMessages(h.Messages[:1])

	assert.Equal(t, 1, h.TotalMessages)
	assert.Less(t, h.TotalTokens, before)
}

func TestHistoryJSONRoundTrip(t *testing.T) {
	h := NewHistory()
	h.Metadata = map[string]string{"workspace": "/home/dev/project"}
	h.AddSystemMessage("you are a coding assistant", TypeSystemPrompt)
	h.AddUserMessage("create a server")

	asst := h.AddToolCallMessage("let me write that file", []ToolCall{
		{ID: "tc1", Name: "write_file", Arguments: map[string]string{"path": "main.go"}},
	})
	asst.ModelUsed = "llama3:8b"
	asst.WorkingDirectory = "/home/dev/project"

	h.AddToolResultMessage([]ToolResult{
		{ToolCallID: "tc1", Content: "written", Success: true},
		{ToolCallID: "tc2", Content: "", Success: false, Error: "permission denied"},
	})
	h.AddAssistantMessage("done")
	h.AddSystemMessage("[summary] earlier work", TypeContextSummary)
	h.AddSummary(&Summary{
		ID:                   "s1",
		OriginalMessageCount: 12,
		OriginalTokenCount:   900,
		SummaryContent:       "earlier work",
		SummaryTokens:        80,
		TimeRangeStart:       time.Now().Add(-2 * time.Hour),
		TimeRangeEnd:         time.Now().Add(-time.Hour),
		CreatedAt:            time.Now(),
		Metadata:             map[string]string{"conversation_type": "code_session"},
	})

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var loaded History
	require.NoError(t, json.Unmarshal(data, &loaded))

	assert.Equal(t, h.ID, loaded.ID)
	assert.Equal(t, h.TotalMessages, loaded.TotalMessages)
	assert.Equal(t, h.TotalTokens, loaded.TotalTokens)
	require.Len(t, loaded.Messages, len(h.Messages))
	for i := range h.Messages {
		assert.Equal(t, h.Messages[i].ID, loaded.Messages[i].ID)
		assert.Equal(t, h.Messages[i].Role, loaded.Messages[i].Role)
		assert.Equal(t, h.Messages[i].MessageType, loaded.Messages[i].MessageType)
		assert.Equal(t, h.Messages[i].Content, loaded.Messages[i].Content)
		assert.True(t, h.Messages[i].Timestamp.Equal(loaded.Messages[i].Timestamp))
	}
	require.Len(t, loaded.Summaries, 1)
	assert.Equal(t, "earlier work", loaded.Summaries[0].SummaryContent)
	assert.Equal(t, "code_session", loaded.Summaries[0].Metadata["conversation_type"])
	require.Len(t, loaded.Messages[2].ToolCalls, 1)
	assert.Equal(t, "write_file", loaded.Messages[2].ToolCalls[0].Name)
	require.Len(t, loaded.Messages[3].ToolResults, 2)
	assert.Equal(t, "permission denied", loaded.Messages[3].ToolResults[1].Error)
}

func TestCompressionRatio(t *testing.T) {
	s := &Summary{OriginalTokenCount: 1000, SummaryTokens: 100}
	assert.InDelta(t, 0.1, s.CompressionRatio(), 1e-9)

	zero := &Summary{OriginalTokenCount: 0, SummaryTokens: 5}
	assert.InDelta(t, 5.0, zero.CompressionRatio(), 1e-9, "guards the zero denominator")
}
