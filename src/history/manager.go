// Package history is the façade over the conversation engine: it owns the
// active conversation, binds it to a model's token budget and summarizer,
// and persists every mutation.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/xandai-project/xandai/src/conversation"
	"github.com/xandai-project/xandai/src/summarizer"
	"github.com/xandai-project/xandai/src/tokenbudget"
)

// ErrNoModelSet means an operation that needs a bound model ran before
// SetModel.
var ErrNoModelSet = errors.New("no model set")

// PersistenceError wraps a failed disk write. The in-memory mutation that
// triggered the write has already been applied and remains authoritative;
// callers should surface the error as a warning, not roll back.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "could not persist conversation: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Options configures a Manager.
type Options struct {
	// Fs is the filesystem the store writes to. Defaults to the OS fs.
	Fs afero.Fs

	// Dir is the storage directory for the history file and its backups.
	Dir string

	// Logger receives operational warnings. Defaults to slog.Default().
	Logger *slog.Logger

	// Strategy is the budget strategy applied to every bound model.
	Strategy tokenbudget.Strategy

	// Generator is the generation collaborator used for summarization.
	// When nil, AutoSummarize is a no-op.
	Generator summarizer.Generator
}

// Manager wires a conversation history to a budget manager and summarizer
// for the active model. Mutating operations are serialized under one mutex;
// the engine is otherwise designed for single-writer use.
type Manager struct {
	mu sync.Mutex

	store    *Store
	logger   *slog.Logger
	strategy tokenbudget.Strategy
	gen      summarizer.Generator

	history *conversation.History
	model   string
	budget  *tokenbudget.Manager
	summ    *summarizer.Summarizer
}

// NewManager loads the persisted conversation from opts.Dir, or starts a
// fresh one when nothing usable is on disk.
func NewManager(opts Options) (*Manager, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Strategy == (tokenbudget.Strategy{}) {
		opts.Strategy = tokenbudget.DefaultStrategy()
	}

	store, err := NewStore(opts.Fs, opts.Dir, opts.Logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		store:    store,
		logger:   opts.Logger,
		strategy: opts.Strategy,
		gen:      opts.Generator,
	}

	h, err := store.Load()
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = conversation.NewHistory()
		m.logger.Debug("created new conversation history", "id", h.ID)
	} else {
		m.logger.Debug("loaded conversation history", "id", h.ID, "messages", h.TotalMessages)
	}
	m.history = h

	return m, nil
}

// SetModel binds the manager to a model, rebuilding the budget manager and
// summarizer. A no-op when the name is unchanged.
func (m *Manager) SetModel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == m.model && m.budget != nil {
		return
	}

	m.model = name
	m.budget = tokenbudget.NewManager(name, m.strategy)
	m.summ = summarizer.New(m.budget)
	m.logger.Debug("history manager bound to model", "model", name)
}

// Model returns the currently bound model name, or "".
func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// History exposes the live conversation aggregate. Callers must treat it
// as read-only.
func (m *Manager) History() *conversation.History {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history
}

// persist saves the conversation, converting failure into a
// PersistenceError. The caller's mutation stays applied either way.
func (m *Manager) persist() error {
	if err := m.store.Save(m.history); err != nil {
		m.logger.Error("failed to persist conversation", "error", err)
		return &PersistenceError{Err: err}
	}
	return nil
}

// AddUserMessage appends a user turn, persists, and returns the message.
// The message is created and kept even when persistence fails.
func (m *Manager) AddUserMessage(content string) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return nil, ErrNoModelSet
	}

	msg := m.history.AddUserMessage(content)
	msg.Tokens = m.budget.EstimateTokens(content)
	msg.ModelUsed = m.model
	m.history.UpdateStatistics()

	return msg, m.persist()
}

// AddAssistantMessage appends an assistant turn, as a tool-call message
// when calls are present.
func (m *Manager) AddAssistantMessage(content string, calls []conversation.ToolCall) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return nil, ErrNoModelSet
	}

	tokens := m.budget.EstimateTokens(content)
	for _, tc := range calls {
		tokens += m.budget.EstimateTokens(fmt.Sprint(tc.Arguments))
	}

	var msg *conversation.Message
	if len(calls) > 0 {
		msg = m.history.AddToolCallMessage(content, calls)
	} else {
		msg = m.history.AddAssistantMessage(content)
	}
	msg.Tokens = tokens
	msg.ModelUsed = m.model
	m.history.UpdateStatistics()

	return msg, m.persist()
}

// AddSystemMessage appends a system message of the given type.
func (m *Manager) AddSystemMessage(content string, msgType conversation.MessageType) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return nil, ErrNoModelSet
	}

	msg := m.history.AddSystemMessage(content, msgType)
	msg.Tokens = m.budget.EstimateTokens(content)
	m.history.UpdateStatistics()

	return msg, m.persist()
}

// AddToolResults appends a tool-result message.
func (m *Manager) AddToolResults(results []conversation.ToolResult) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return nil, ErrNoModelSet
	}

	tokens := 0
	for _, tr := range results {
		tokens += m.budget.EstimateTokens(tr.Content)
	}

	msg := m.history.AddToolResultMessage(results)
	msg.Tokens = tokens
	m.history.UpdateStatistics()

	return msg, m.persist()
}

// ContextForModel returns the in-budget message slice for the bound model
// without mutating the stored conversation. maxTokens, when positive,
// overrides the model's own budget.
func (m *Manager) ContextForModel(maxTokens int) []*conversation.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil || m.history == nil {
		return nil
	}

	budget := m.budget
	if maxTokens > 0 {
		override := m.strategy
		override.TargetUtilization = float64(maxTokens) / float64(m.budget.ModelInfo().ContextLength)
		if override.TargetUtilization > 1 {
			override.TargetUtilization = 1
		}
		budget = tokenbudget.NewManager(m.model, override)
	}

	optimized, _ := budget.Optimize(m.history.Messages)
	return optimized
}

// AssessFit reports how the stored conversation relates to the bound
// model's budget.
func (m *Manager) AssessFit() (tokenbudget.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return tokenbudget.Assessment{}, ErrNoModelSet
	}
	return m.budget.AssessFit(m.history.Messages), nil
}

// ContextStatus returns the coarse utilization snapshot for display.
func (m *Manager) ContextStatus() (tokenbudget.ContextStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return tokenbudget.ContextStatus{}, ErrNoModelSet
	}
	return m.budget.ContextStatus(m.history.Messages), nil
}

// ForceOptimization trims the stored conversation to budget and persists
// the result. This is the only operation that discards messages outright
// instead of summarizing them; the optimized list replaces the stored one
// only when it is strictly shorter.
func (m *Manager) ForceOptimization() (tokenbudget.OptimizeReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return tokenbudget.OptimizeReport{}, ErrNoModelSet
	}

	optimized, report := m.budget.Optimize(m.history.Messages)
	if len(optimized) < len(m.history.Messages) {
		m.history.ReplaceMessages(optimized)
		if err := m.persist(); err != nil {
			return report, err
		}
		m.logger.Info("conversation optimized",
			"tokens_saved", report.TokensSaved,
			"messages", report.OptimizedMessages)
	}
	return report, nil
}

// SummarizeReport describes one AutoSummarize pass.
type SummarizeReport struct {
	SummariesCreated   int       `json:"summaries_created"`
	MessagesSummarized int       `json:"messages_summarized"`
	TokensSaved        int       `json:"tokens_saved"`
	RangesSkipped      int       `json:"ranges_skipped"`
	Timestamp          time.Time `json:"timestamp"`
}

// AutoSummarize compacts eligible older ranges into summary messages. A
// failed range is logged and skipped, never fatal; each replacement is
// all-or-nothing per range. Returns nil when there was nothing to do.
func (m *Manager) AutoSummarize(ctx context.Context, force bool) (*SummarizeReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget == nil {
		return nil, ErrNoModelSet
	}
	if m.gen == nil {
		return nil, nil
	}

	candidates := m.budget.SuggestSummarizationCandidates(m.history)
	if len(candidates) == 0 {
		if !force {
			return nil, nil
		}
		// Force drops the message-count gate but keeps chunking rules.
		relaxed := m.strategy
		relaxed.SummarizeThreshold = 0
		candidates = tokenbudget.NewManager(m.model, relaxed).SuggestSummarizationCandidates(m.history)
		if len(candidates) == 0 {
			return nil, nil
		}
	}

	// Candidate indexes refer to the conversation-message view; resolve
	// them to message pointers before any splicing changes positions.
	convMsgs := m.history.ConversationMessages()
	minAge := time.Duration(m.strategy.MinSummaryAgeHours) * time.Hour

	report := &SummarizeReport{Timestamp: time.Now()}
	for _, r := range candidates {
		if r.Start < 0 || r.End > len(convMsgs) || r.Start >= r.End {
			continue
		}
		chunk := convMsgs[r.Start:r.End]

		if !m.summ.CanSummarize(chunk, minAge) {
			report.RangesSkipped++
			continue
		}

		hint := fmt.Sprintf("CLI session from %s", chunk[0].Timestamp.Format(time.RFC3339))
		sum, err := m.summ.Summarize(ctx, chunk, m.gen, m.model, hint)
		if err != nil {
			m.logger.Warn("summarization failed for range, skipping",
				"start", r.Start, "end", r.End, "error", err)
			report.RangesSkipped++
			continue
		}

		m.spliceSummary(chunk, sum)
		report.SummariesCreated++
		report.MessagesSummarized += len(chunk)
		report.TokensSaved += sum.OriginalTokenCount - sum.SummaryTokens
	}

	if report.SummariesCreated == 0 {
		return nil, nil
	}

	if err := m.persist(); err != nil {
		return report, err
	}
	m.logger.Info("auto-summarization complete",
		"summaries", report.SummariesCreated,
		"tokens_saved", report.TokensSaved)
	return report, nil
}

// spliceSummary atomically replaces the chunk's messages with a single
// context-summary message carrying the summary text. The summary message
// is stamped with the range's end time so timestamp order survives.
func (m *Manager) spliceSummary(chunk []*conversation.Message, sum *conversation.Summary) {
	removed := make(map[string]bool, len(chunk))
	for _, msg := range chunk {
		removed[msg.ID] = true
	}

	summaryMsg := conversation.NewMessage(conversation.RoleSystem, "[CONVERSATION SUMMARY] "+sum.SummaryContent)
	summaryMsg.MessageType = conversation.TypeContextSummary
	summaryMsg.Timestamp = sum.TimeRangeEnd
	summaryMsg.Tokens = sum.SummaryTokens
	summaryMsg.SessionID = m.history.ID
	summaryMsg.Metadata = map[string]string{
		"summary_id":             sum.ID,
		"original_message_count": fmt.Sprint(sum.OriginalMessageCount),
		"compression_ratio":      sum.Metadata["compression_ratio"],
	}

	next := make([]*conversation.Message, 0, len(m.history.Messages)-len(chunk)+1)
	inserted := false
	for _, msg := range m.history.Messages {
		if removed[msg.ID] {
			if !inserted {
				next = append(next, summaryMsg)
				inserted = true
			}
			continue
		}
		next = append(next, msg)
	}

	m.history.AddSummary(sum)
	m.history.ReplaceMessages(next)
}

// ClearConversation replaces the conversation with a fresh one. When
// backup is true the old conversation is snapshotted to a cleared file
// first.
func (m *Manager) ClearConversation(backup bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if backup && m.history != nil && len(m.history.Messages) > 0 {
		name, err := m.store.Snapshot(m.history)
		if err != nil {
			return &PersistenceError{Err: err}
		}
		m.logger.Info("conversation backed up before clear", "file", name)
	}

	m.history = conversation.NewHistory()
	return m.persist()
}
