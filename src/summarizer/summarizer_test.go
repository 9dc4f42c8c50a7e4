package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xandai-project/xandai/src/conversation"
	"github.com/xandai-project/xandai/src/tokenbudget"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

func agedMessage(role conversation.Role, content string, age time.Duration) *conversation.Message {
	msg := conversation.NewMessage(role, content)
	msg.Timestamp = time.Now().Add(-age)
	return msg
}

func agedConversation(n int, age time.Duration) []*conversation.Message {
	var msgs []*conversation.Message
	for i := 0; i < n; i++ {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		msgs = append(msgs, agedMessage(role, fmt.Sprintf("this is substantial message number %d", i), age))
	}
	return msgs
}

func newSummarizer() *Summarizer {
	return New(tokenbudget.NewManager("llama3:8b", tokenbudget.DefaultStrategy()))
}

func TestCanSummarize(t *testing.T) {
	s := newSummarizer()

	tests := []struct {
		name   string
		msgs   []*conversation.Message
		minAge time.Duration
		want   bool
	}{
		{
			name: "empty range",
			want: false,
		},
		{
			name:   "three old substantial messages",
			msgs:   agedConversation(3, 10*time.Minute),
			minAge: 5 * time.Minute,
			want:   true,
		},
		{
			name:   "same messages but fresh",
			msgs:   agedConversation(3, 0),
			minAge: 5 * time.Minute,
			want:   false,
		},
		{
			name:   "too few messages",
			msgs:   agedConversation(2, 10*time.Minute),
			minAge: 5 * time.Minute,
			want:   false,
		},
		{
			name: "trivial content does not count",
			msgs: []*conversation.Message{
				agedMessage(conversation.RoleUser, "ok", 2*time.Hour),
				agedMessage(conversation.RoleAssistant, "y", 2*time.Hour),
				agedMessage(conversation.RoleUser, "sure", 2*time.Hour),
			},
			minAge: time.Hour,
			want:   false,
		},
		{
			name: "one fresh message poisons the range",
			msgs: append(agedConversation(3, 2*time.Hour),
				agedMessage(conversation.RoleUser, "a very recent substantial follow-up", time.Minute)),
			minAge: time.Hour,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.CanSummarize(tt.msgs, tt.minAge))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := newSummarizer()
	gen := &fakeGenerator{response: "The user and assistant discussed project setup."}

	msgs := agedConversation(6, 3*time.Hour)
	summary, err := s.Summarize(context.Background(), msgs, gen, "llama3:8b", "test session")
	require.NoError(t, err)

	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, 6, summary.OriginalMessageCount)
	assert.Greater(t, summary.OriginalTokenCount, 0)
	assert.Greater(t, summary.SummaryTokens, 0)
	assert.Equal(t, "The user and assistant discussed project setup.", summary.SummaryContent)
	assert.False(t, summary.TimeRangeEnd.Before(summary.TimeRangeStart))
	assert.Equal(t, "llama3:8b", summary.Metadata["model_used"])
	assert.Equal(t, string(TypeConversation), summary.Metadata["conversation_type"])
	assert.NotEmpty(t, summary.Metadata["compression_ratio"])

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Context: test session")
	assert.Contains(t, gen.prompts[0], "USER:")
}

func TestSummarizeRejectsFreshMessages(t *testing.T) {
	s := newSummarizer()
	gen := &fakeGenerator{response: "should not be called"}

	msgs := agedConversation(6, 10*time.Minute)
	_, err := s.Summarize(context.Background(), msgs, gen, "llama3:8b", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooRecent)
	assert.Empty(t, gen.prompts, "generator must not run for ineligible input")
}

func TestSummarizeRejectsTooFewMessages(t *testing.T) {
	s := newSummarizer()
	gen := &fakeGenerator{response: "should not be called"}

	_, err := s.Summarize(context.Background(), agedConversation(2, 3*time.Hour), gen, "llama3:8b", "")
	assert.ErrorIs(t, err, ErrIneligibleInput)
}

func TestSummarizeEmptyGeneration(t *testing.T) {
	s := newSummarizer()
	gen := &fakeGenerator{response: "   \n  "}

	_, err := s.Summarize(context.Background(), agedConversation(6, 3*time.Hour), gen, "llama3:8b", "")
	assert.ErrorIs(t, err, ErrEmptySummary)
}

func TestSummarizePropagatesGeneratorError(t *testing.T) {
	s := newSummarizer()
	gen := &fakeGenerator{err: errors.New("connection refused")}

	_, err := s.Summarize(context.Background(), agedConversation(6, 3*time.Hour), gen, "llama3:8b", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClassify(t *testing.T) {
	t.Run("tool heavy range", func(t *testing.T) {
		var msgs []*conversation.Message
		for i := 0; i < 4; i++ {
			m := agedMessage(conversation.RoleTool, "tool output", time.Hour)
			m.MessageType = conversation.TypeToolResult
			msgs = append(msgs, m)
		}
		msgs = append(msgs, agedMessage(conversation.RoleUser, "please run it", time.Hour))

		assert.Equal(t, TypeToolUsage, Classify(msgs))
	})

	t.Run("code heavy range", func(t *testing.T) {
		msgs := []*conversation.Message{
			agedMessage(conversation.RoleUser, "write a function to parse this", time.Hour),
			agedMessage(conversation.RoleAssistant, "here is the class definition", time.Hour),
			agedMessage(conversation.RoleUser, "now add an import for json", time.Hour),
			agedMessage(conversation.RoleAssistant, "sounds good", time.Hour),
		}
		assert.Equal(t, TypeCodeSession, Classify(msgs))
	})

	t.Run("plain conversation", func(t *testing.T) {
		msgs := []*conversation.Message{
			agedMessage(conversation.RoleUser, "how was your day", time.Hour),
			agedMessage(conversation.RoleAssistant, "let's talk about the weather", time.Hour),
		}
		assert.Equal(t, TypeConversation, Classify(msgs))
	})
}

func TestTranscriptFormat(t *testing.T) {
	msg := agedMessage(conversation.RoleUser, "hello there", time.Hour)
	call := agedMessage(conversation.RoleAssistant, "running the tool", time.Hour)
	call.MessageType = conversation.TypeToolCall
	call.ToolCalls = []conversation.ToolCall{{ID: "tc1", Name: "read_file", Arguments: map[string]string{"path": "a.go"}}}
	result := agedMessage(conversation.RoleTool, "tool finished", time.Hour)
	result.MessageType = conversation.TypeToolResult
	result.ToolResults = []conversation.ToolResult{{ToolCallID: "tc1", Content: "file contents here", Success: true}}

	text := Transcript([]*conversation.Message{msg, call, result})

	assert.Contains(t, text, "USER: hello there")
	assert.Contains(t, text, "ASSISTANT: running the tool")
	assert.Contains(t, text, "Tools used:")
	assert.Contains(t, text, "read_file")
	assert.Contains(t, text, "Results:")
	assert.Contains(t, text, "ok: file contents here")
}

func TestTranscriptTruncatesLongBodies(t *testing.T) {
	long := agedMessage(conversation.RoleAssistant, strings.Repeat("line of generated output\n", 200), time.Hour)
	text := Transcript([]*conversation.Message{long})

	assert.Contains(t, text, "[... truncated ...]")
	assert.Less(t, len(text), 1500, "transcript input must stay bounded")
}

func TestCombineSummaries(t *testing.T) {
	now := time.Now()
	first := &conversation.Summary{
		SummaryContent: "earlier work",
		TimeRangeStart: now.Add(-4 * time.Hour),
		Metadata:       map[string]string{"conversation_type": "code_session"},
	}
	second := &conversation.Summary{
		SummaryContent: "later work",
		TimeRangeStart: now.Add(-2 * time.Hour),
	}

	assert.Equal(t, "later work", CombineSummaries([]*conversation.Summary{second}))

	combined := CombineSummaries([]*conversation.Summary{second, first})
	assert.Contains(t, combined, "Session 1")
	assert.Contains(t, combined, "Session 2")
	assert.Less(t, strings.Index(combined, "earlier work"), strings.Index(combined, "later work"),
		"combined digest is chronological")
}

func TestComputeStats(t *testing.T) {
	summaries := []*conversation.Summary{
		{OriginalMessageCount: 20, OriginalTokenCount: 1000, SummaryTokens: 100},
		{OriginalMessageCount: 10, OriginalTokenCount: 500, SummaryTokens: 250},
	}

	stats := ComputeStats(summaries)
	assert.Equal(t, 2, stats.TotalSummaries)
	assert.Equal(t, 30, stats.TotalOriginalMessages)
	assert.Equal(t, 1150, stats.TokensSaved)
	assert.InDelta(t, 0.1, stats.BestCompressionRatio, 1e-9)
	assert.InDelta(t, 0.5, stats.WorstCompressionRatio, 1e-9)
	assert.InDelta(t, 0.3, stats.AverageCompressionRatio, 1e-9)

	assert.Zero(t, ComputeStats(nil).TotalSummaries)
}
