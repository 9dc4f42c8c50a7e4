package tokenbudget

import (
	"fmt"
	"sort"

	"github.com/xandai-project/xandai/src/conversation"
)

// Manager assesses whether a message sequence fits a model's budget and
// produces trimmed subsequences when it does not. All operations are total
// functions over their inputs; they never fail.
type Manager struct {
	modelInfo ModelInfo
	strategy  Strategy
	estimator *Estimator
}

// NewManager resolves the model and builds a budget manager for it.
func NewManager(modelName string, strategy Strategy) *Manager {
	info := Resolve(modelName)
	return &Manager{
		modelInfo: info,
		strategy:  strategy,
		estimator: NewEstimator(info.Family),
	}
}

// ModelInfo returns the resolved model facts.
func (m *Manager) ModelInfo() ModelInfo {
	return m.modelInfo
}

// Strategy returns the active budget strategy.
func (m *Manager) Strategy() Strategy {
	return m.strategy
}

// EstimateTokens estimates tokens for a piece of text using the model
// family's estimator.
func (m *Manager) EstimateTokens(text string) int {
	return m.estimator.EstimateTokens(text)
}

// messageTokens estimates the full cost of a message: content plus any
// embedded tool-call arguments and tool-result payloads.
func (m *Manager) messageTokens(msg *conversation.Message) int {
	total := m.estimator.EstimateTokens(msg.Content)
	for _, tc := range msg.ToolCalls {
		total += m.estimator.EstimateTokens(fmt.Sprint(tc.Arguments))
	}
	for _, tr := range msg.ToolResults {
		total += m.estimator.EstimateTokens(tr.Content)
	}
	return total
}

// Assessment reports how a message sequence relates to the model's budget.
type Assessment struct {
	TotalTokens       int      `json:"total_tokens"`
	AvailableContext  int      `json:"available_context"`
	Utilization       float64  `json:"utilization"`
	Fits              bool     `json:"fits"`
	Emergency         bool     `json:"emergency"`
	NeedsOptimization bool     `json:"needs_optimization"`
	MessagesAnalyzed  int      `json:"messages_analyzed"`
	Recommendations   []string `json:"recommendations,omitempty"`
}

// AssessFit computes budget utilization for the given messages.
func (m *Manager) AssessFit(messages []*conversation.Message) Assessment {
	total := 0
	for _, msg := range messages {
		total += m.messageTokens(msg)
	}

	available := m.modelInfo.AvailableContext()
	utilization := float64(total) / float64(available)

	a := Assessment{
		TotalTokens:       total,
		AvailableContext:  available,
		Utilization:       utilization,
		Fits:              total <= available,
		Emergency:         utilization >= m.strategy.EmergencyThreshold,
		NeedsOptimization: utilization >= m.strategy.TargetUtilization,
		MessagesAnalyzed:  len(messages),
	}

	if a.Emergency {
		a.Recommendations = append(a.Recommendations,
			"context usage is critical, immediate compression needed")
	} else if a.NeedsOptimization {
		a.Recommendations = append(a.Recommendations,
			"consider summarizing older messages")
	}
	if len(messages) > m.strategy.SummarizeThreshold {
		a.Recommendations = append(a.Recommendations, fmt.Sprintf(
			"%d messages exceeds the summarization threshold of %d",
			len(messages), m.strategy.SummarizeThreshold))
	}

	return a
}

// OptimizeReport describes what an optimization pass did.
type OptimizeReport struct {
	Action            string  `json:"action"`
	OriginalMessages  int     `json:"original_messages"`
	OptimizedMessages int     `json:"optimized_messages"`
	OriginalTokens    int     `json:"original_tokens"`
	OptimizedTokens   int     `json:"optimized_tokens"`
	TokensSaved       int     `json:"tokens_saved"`
	UtilizationBefore float64 `json:"utilization_before"`
	UtilizationAfter  float64 `json:"utilization_after"`
	PriorityPreserved int     `json:"priority_preserved"`
	RecentPreserved   int     `json:"recent_preserved"`
	OlderIncluded     int     `json:"older_included"`
}

const (
	ActionNoMessages           = "no_messages"
	ActionNoOptimizationNeeded = "no_optimization_needed"
	ActionOptimized            = "optimized"
)

func (m *Manager) isPriority(msg *conversation.Message) bool {
	if msg.IsSystemMessage() {
		return true
	}
	for _, t := range m.modelInfo.PriorityPreservation {
		if msg.MessageType == t {
			return true
		}
	}
	return false
}

// Optimize trims messages to the budget target. Priority messages and the
// recent window are never dropped, even when they alone exceed the budget:
// the caller is expected to resolve a still-over-budget result through
// summarization, not tighter trimming.
func (m *Manager) Optimize(messages []*conversation.Message) ([]*conversation.Message, OptimizeReport) {
	if len(messages) == 0 {
		return nil, OptimizeReport{Action: ActionNoMessages}
	}

	analysis := m.AssessFit(messages)
	if analysis.Fits && !analysis.NeedsOptimization {
		return messages, OptimizeReport{
			Action:            ActionNoOptimizationNeeded,
			OriginalMessages:  len(messages),
			OptimizedMessages: len(messages),
			OriginalTokens:    analysis.TotalTokens,
			OptimizedTokens:   analysis.TotalTokens,
			UtilizationBefore: analysis.Utilization,
			UtilizationAfter:  analysis.Utilization,
		}
	}

	var priority, regular []*conversation.Message
	for _, msg := range messages {
		if m.isPriority(msg) {
			priority = append(priority, msg)
		} else {
			regular = append(regular, msg)
		}
	}

	recentCutoff := len(regular) - m.strategy.PreserveRecentMessages
	if recentCutoff < 0 {
		recentCutoff = 0
	}
	recent := regular[recentCutoff:]
	older := regular[:recentCutoff]

	optimized := make([]*conversation.Message, 0, len(priority)+len(recent))
	optimized = append(optimized, priority...)
	optimized = append(optimized, recent...)

	currentTokens := 0
	for _, msg := range optimized {
		currentTokens += m.estimator.EstimateTokens(msg.Content)
	}

	// Walk older messages newest first, keeping a contiguous window: the
	// first message that would blow the target ends the walk.
	targetTokens := int(float64(m.modelInfo.AvailableContext()) * m.strategy.TargetUtilization)
	olderIncluded := 0
	for i := len(older) - 1; i >= 0; i-- {
		msgTokens := m.estimator.EstimateTokens(older[i].Content)
		if currentTokens+msgTokens > targetTokens {
			break
		}
		optimized = append(optimized, older[i])
		currentTokens += msgTokens
		olderIncluded++
	}

	sort.SliceStable(optimized, func(i, j int) bool {
		return optimized[i].Timestamp.Before(optimized[j].Timestamp)
	})

	optimizedTokens := 0
	for _, msg := range optimized {
		optimizedTokens += m.estimator.EstimateTokens(msg.Content)
	}
	available := m.modelInfo.AvailableContext()

	report := OptimizeReport{
		Action:            ActionOptimized,
		OriginalMessages:  len(messages),
		OptimizedMessages: len(optimized),
		OriginalTokens:    analysis.TotalTokens,
		OptimizedTokens:   optimizedTokens,
		TokensSaved:       analysis.TotalTokens - optimizedTokens,
		UtilizationBefore: analysis.Utilization,
		UtilizationAfter:  float64(optimizedTokens) / float64(available),
		PriorityPreserved: len(priority),
		RecentPreserved:   len(recent),
		OlderIncluded:     olderIncluded,
	}

	return optimized, report
}

// Range marks a half-open [Start, End) slice of message indexes.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SuggestSummarizationCandidates proposes contiguous chunks of older
// conversation messages worth compacting. The recent window is excluded,
// and a trailing chunk smaller than half the chunk size is discarded as
// not worth a summarization round trip.
func (m *Manager) SuggestSummarizationCandidates(h *conversation.History) []Range {
	messages := h.ConversationMessages()
	if len(messages) < m.strategy.SummarizeThreshold {
		return nil
	}

	eligible := 0
	if m.strategy.PreserveRecentMessages < len(messages) {
		eligible = len(messages) - m.strategy.PreserveRecentMessages
	}

	var candidates []Range
	chunk := m.strategy.MessagesPerSummary
	for i := 0; i < eligible; i += chunk {
		end := i + chunk
		if end > eligible {
			end = eligible
		}
		if end-i >= chunk/2 {
			candidates = append(candidates, Range{Start: i, End: end})
		}
	}
	return candidates
}

// ContextStatus is a compact utilization snapshot for display layers.
type ContextStatus struct {
	Level            string  `json:"level"`
	TotalTokens      int     `json:"total_tokens"`
	AvailableContext int     `json:"available_context"`
	Utilization      float64 `json:"utilization"`
}

// ContextStatus classifies current utilization into a coarse level.
func (m *Manager) ContextStatus(messages []*conversation.Message) ContextStatus {
	analysis := m.AssessFit(messages)

	level := "LOW"
	switch {
	case analysis.Utilization >= 0.9:
		level = "CRITICAL"
	case analysis.Utilization >= 0.75:
		level = "HIGH"
	case analysis.Utilization >= 0.5:
		level = "MODERATE"
	}

	return ContextStatus{
		Level:            level,
		TotalTokens:      analysis.TotalTokens,
		AvailableContext: analysis.AvailableContext,
		Utilization:      analysis.Utilization,
	}
}
