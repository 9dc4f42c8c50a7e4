package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xandai-project/xandai/src/conversation"
	"github.com/xandai-project/xandai/src/tokenbudget"
)

type fakeGenerator struct {
	response string
	failures int
	calls    int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, _ string) (string, error) {
	g.calls++
	if g.calls <= g.failures {
		return "", errors.New("model unavailable")
	}
	return g.response, nil
}

func newTestManager(t *testing.T, gen *fakeGenerator) (*Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	opts := Options{Fs: fs, Dir: "/data/sessions"}
	if gen != nil {
		opts.Generator = gen
	}
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m, fs
}

func backdate(msgs []*conversation.Message, age time.Duration) {
	for _, msg := range msgs {
		msg.Timestamp = msg.Timestamp.Add(-age)
	}
}

func TestAddBeforeSetModelFails(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.AddUserMessage("hello")
	assert.ErrorIs(t, err, ErrNoModelSet)

	_, err = m.AddAssistantMessage("hi", nil)
	assert.ErrorIs(t, err, ErrNoModelSet)

	_, err = m.AddSystemMessage("prompt", conversation.TypeSystemPrompt)
	assert.ErrorIs(t, err, ErrNoModelSet)

	_, err = m.AddToolResults([]conversation.ToolResult{{ToolCallID: "tc", Content: "x"}})
	assert.ErrorIs(t, err, ErrNoModelSet)
}

func TestAddMessagePersistsAndReloads(t *testing.T) {
	m, fs := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	msg, err := m.AddUserMessage("remember this")
	require.NoError(t, err)
	assert.Greater(t, msg.Tokens, 0)
	assert.Equal(t, "llama3:8b", msg.ModelUsed)

	_, err = m.AddAssistantMessage("will do", nil)
	require.NoError(t, err)

	reloaded, err := NewManager(Options{Fs: fs, Dir: "/data/sessions"})
	require.NoError(t, err)
	require.Len(t, reloaded.History().Messages, 2)
	assert.Equal(t, msg.ID, reloaded.History().Messages[0].ID)
	assert.Equal(t, m.History().ID, reloaded.History().ID)
}

func TestAssistantMessageWithToolCalls(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	msg, err := m.AddAssistantMessage("running the tool", []conversation.ToolCall{
		{ID: "tc1", Name: "write_file", Arguments: map[string]string{"path": "main.go"}},
	})
	require.NoError(t, err)
	assert.Equal(t, conversation.TypeToolCall, msg.MessageType)
	require.Len(t, msg.ToolCalls, 1)
}

func TestSetModelIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.SetModel("llama3:8b")
	budget := m.budget
	m.SetModel("llama3:8b")
	assert.Same(t, budget, m.budget, "rebinding the same model keeps the budget manager")

	m.SetModel("mistral:7b")
	assert.NotSame(t, budget, m.budget)
}

func TestContextForModelDoesNotMutate(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	big := strings.TrimSpace(strings.Repeat("word ", 700))
	for i := 0; i < 60; i++ {
		_, err := m.AddUserMessage(big)
		require.NoError(t, err)
	}
	stored := len(m.History().Messages)

	ctx := m.ContextForModel(0)
	assert.Less(t, len(ctx), stored, "context slice is trimmed")
	assert.Equal(t, stored, len(m.History().Messages), "stored log is untouched")
}

func TestContextForModelWithOverride(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	for i := 0; i < 30; i++ {
		_, err := m.AddUserMessage(strings.TrimSpace(strings.Repeat("word ", 150)))
		require.NoError(t, err)
	}

	full := m.ContextForModel(0)
	tight := m.ContextForModel(1024)
	assert.LessOrEqual(t, len(tight), len(full))
}

func TestForceOptimizationReplacesStoredLog(t *testing.T) {
	m, fs := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	big := strings.TrimSpace(strings.Repeat("word ", 700))
	for i := 0; i < 60; i++ {
		_, err := m.AddUserMessage(big)
		require.NoError(t, err)
	}

	report, err := m.ForceOptimization()
	require.NoError(t, err)
	assert.Equal(t, tokenbudget.ActionOptimized, report.Action)
	assert.Equal(t, report.OptimizedMessages, len(m.History().Messages))
	assert.Less(t, len(m.History().Messages), 60)

	reloaded, err := NewManager(Options{Fs: fs, Dir: "/data/sessions"})
	require.NoError(t, err)
	assert.Len(t, reloaded.History().Messages, report.OptimizedMessages, "optimized log is persisted")
}

func TestForceOptimizationNoopWhenSmall(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	_, err := m.AddUserMessage("tiny")
	require.NoError(t, err)

	report, err := m.ForceOptimization()
	require.NoError(t, err)
	assert.Equal(t, tokenbudget.ActionNoOptimizationNeeded, report.Action)
	assert.Len(t, m.History().Messages, 1)
}

func TestAutoSummarizeCompactsOldRanges(t *testing.T) {
	gen := &fakeGenerator{response: "Earlier, the user set up the project and fixed the build."}
	m, _ := newTestManager(t, gen)
	m.SetModel("llama3:8b")

	for i := 0; i < 55; i++ {
		_, err := m.AddUserMessage(fmt.Sprintf("substantial conversation message number %d", i))
		require.NoError(t, err)
	}
	backdate(m.History().Messages, 3*time.Hour)
	tokensBefore := m.History().TotalTokens

	report, err := m.AutoSummarize(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, report)

	// 35 eligible messages: one chunk of 20 and a remainder of 15.
	assert.Equal(t, 2, report.SummariesCreated)
	assert.Equal(t, 35, report.MessagesSummarized)
	assert.Len(t, m.History().Summaries, 2)
	assert.Len(t, m.History().Messages, 55-35+2)
	assert.Less(t, m.History().TotalTokens, tokensBefore, "compaction reduces total tokens")

	summaryMsgs := m.History().MessagesByType(conversation.TypeContextSummary)
	require.Len(t, summaryMsgs, 2)
	assert.Contains(t, summaryMsgs[0].Content, "[CONVERSATION SUMMARY]")
	assert.NotEmpty(t, summaryMsgs[0].Metadata["summary_id"])

	msgs := m.History().Messages
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp),
			"ordering invariant holds after compaction")
	}
}

func TestConversationSummaryDigest(t *testing.T) {
	gen := &fakeGenerator{response: "Earlier, the user set up the project and fixed the build."}
	m, _ := newTestManager(t, gen)
	m.SetModel("llama3:8b")

	assert.Empty(t, m.ConversationSummary(), "no digest before anything is compacted")

	for i := 0; i < 55; i++ {
		_, err := m.AddUserMessage(fmt.Sprintf("substantial conversation message number %d", i))
		require.NoError(t, err)
	}
	backdate(m.History().Messages, 3*time.Hour)

	_, err := m.AutoSummarize(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, m.History().Summaries, 2)

	digest := m.ConversationSummary()
	assert.Contains(t, digest, "Session 1")
	assert.Contains(t, digest, "Session 2")
	assert.Contains(t, digest, gen.response)
}

func TestAutoSummarizeNothingToDo(t *testing.T) {
	gen := &fakeGenerator{response: "summary"}
	m, _ := newTestManager(t, gen)
	m.SetModel("llama3:8b")

	for i := 0; i < 5; i++ {
		_, err := m.AddUserMessage("short recent conversation")
		require.NoError(t, err)
	}

	report, err := m.AutoSummarize(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Zero(t, gen.calls)
}

func TestAutoSummarizeForceBypassesThreshold(t *testing.T) {
	gen := &fakeGenerator{response: "A short session about configuration."}
	m, _ := newTestManager(t, gen)
	m.SetModel("llama3:8b")

	for i := 0; i < 30; i++ {
		_, err := m.AddUserMessage(fmt.Sprintf("substantial conversation message number %d", i))
		require.NoError(t, err)
	}
	backdate(m.History().Messages, 3*time.Hour)

	report, err := m.AutoSummarize(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.SummariesCreated)
	assert.Equal(t, 10, report.MessagesSummarized, "the recent window stays protected even when forced")
}

func TestAutoSummarizeSkipsFailedRangeAndContinues(t *testing.T) {
	gen := &fakeGenerator{response: "recovered summary", failures: 1}
	m, _ := newTestManager(t, gen)
	m.SetModel("llama3:8b")

	for i := 0; i < 55; i++ {
		_, err := m.AddUserMessage(fmt.Sprintf("substantial conversation message number %d", i))
		require.NoError(t, err)
	}
	backdate(m.History().Messages, 3*time.Hour)

	report, err := m.AutoSummarize(context.Background(), false)
	require.NoError(t, err, "a failed range is skipped, not fatal")
	require.NotNil(t, report)
	assert.Equal(t, 1, report.SummariesCreated)
	assert.Equal(t, 1, report.RangesSkipped)

	// The failed range's messages are untouched: only the second chunk of
	// 15 was absorbed.
	assert.Len(t, m.History().Messages, 55-15+1)
}

func TestAutoSummarizeLeavesFreshRangesAlone(t *testing.T) {
	gen := &fakeGenerator{response: "should not appear"}
	m, _ := newTestManager(t, gen)
	m.SetModel("llama3:8b")

	for i := 0; i < 55; i++ {
		_, err := m.AddUserMessage(fmt.Sprintf("substantial conversation message number %d", i))
		require.NoError(t, err)
	}

	report, err := m.AutoSummarize(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, report, "messages newer than the minimum age are never summarized")
	assert.Zero(t, gen.calls)
	assert.Len(t, m.History().Messages, 55)
}

func TestClearConversation(t *testing.T) {
	m, fs := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	_, err := m.AddUserMessage("about to be cleared")
	require.NoError(t, err)
	oldID := m.History().ID

	require.NoError(t, m.ClearConversation(true))

	assert.NotEqual(t, oldID, m.History().ID)
	assert.Empty(t, m.History().Messages)

	entries, err := afero.ReadDir(fs, "/data/sessions")
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), clearedPrefix) {
			found = true
		}
	}
	assert.True(t, found, "clearing snapshots the old conversation")
}

func TestLoadCorruptHistoryStartsFreshManager(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/sessions/conversation_history.json", []byte("garbage"), 0o644))

	m, err := NewManager(Options{Fs: fs, Dir: "/data/sessions"})
	require.NoError(t, err)
	assert.Empty(t, m.History().Messages)
}

// failWriteFs rejects writes to the primary history file so persistence
// failures can be observed.
type failWriteFs struct {
	afero.Fs
}

func (f *failWriteFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if strings.HasSuffix(name, historyFileName) && flag&os.O_WRONLY != 0 {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestPersistenceFailureKeepsMessage(t *testing.T) {
	fs := &failWriteFs{Fs: afero.NewMemMapFs()}
	m, err := NewManager(Options{Fs: fs, Dir: "/data/sessions"})
	require.NoError(t, err)
	m.SetModel("llama3:8b")

	msg, err := m.AddUserMessage("do not lose this")
	require.Error(t, err)

	var perr *PersistenceError
	assert.ErrorAs(t, err, &perr)
	require.NotNil(t, msg, "the message is created even when the flush fails")
	assert.Len(t, m.History().Messages, 1, "the in-memory log stays authoritative")
}

func TestExportFormats(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.SetModel("llama3:8b")
	_, err := m.AddUserMessage("export me")
	require.NoError(t, err)
	_, err = m.AddAssistantMessage("exported", nil)
	require.NoError(t, err)

	jsonOut, err := m.Export(FormatJSON, true)
	require.NoError(t, err)
	assert.Contains(t, jsonOut, `"messages"`)

	mdOut, err := m.Export(FormatMarkdown, true)
	require.NoError(t, err)
	assert.Contains(t, mdOut, "# Conversation")
	assert.Contains(t, mdOut, "export me")

	txtOut, err := m.Export(FormatText, true)
	require.NoError(t, err)
	assert.Contains(t, txtOut, "USER: export me")

	_, err = m.Export("yaml", true)
	assert.Error(t, err)
}

func TestStatistics(t *testing.T) {
	m, _ := newTestManager(t, nil)
	m.SetModel("llama3:8b")

	_, err := m.AddSystemMessage("prompt", conversation.TypeSystemPrompt)
	require.NoError(t, err)
	_, err = m.AddUserMessage("question")
	require.NoError(t, err)
	_, err = m.AddAssistantMessage("answer", nil)
	require.NoError(t, err)

	stats := m.Statistics()
	assert.Equal(t, 3, stats.Messages.Total)
	assert.Equal(t, 2, stats.Messages.Conversation)
	assert.Equal(t, 1, stats.Messages.System)
	assert.Equal(t, 1, stats.Messages.User)
	assert.Equal(t, 1, stats.Messages.Assistant)
	assert.Greater(t, stats.Tokens.Total, 0)
	require.NotNil(t, stats.Model)
	assert.Equal(t, "llama3:8b", stats.Model.Name)
	assert.Equal(t, 7168, stats.Model.AvailableContext)
	assert.Nil(t, stats.Summarization)
}
