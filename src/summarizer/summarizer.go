// Package summarizer compacts ranges of conversation history into summary
// entities by asking the model to summarize its own transcript. It never
// mutates the history; splicing summaries in is the caller's job.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xandai-project/xandai/src/conversation"
	"github.com/xandai-project/xandai/src/tokenbudget"
)

var (
	// ErrIneligibleInput means the range has too few substantial messages
	// to be worth summarizing.
	ErrIneligibleInput = errors.New("messages are not eligible for summarization")

	// ErrTooRecent means part of the range is newer than the minimum
	// summary age and may still be actively referenced.
	ErrTooRecent = errors.New("messages are too recent to summarize")

	// ErrEmptySummary means the generation collaborator produced no usable
	// output.
	ErrEmptySummary = errors.New("empty summary generated")
)

// minEligibleMessages is the smallest range worth a generation round trip.
const minEligibleMessages = 3

// minSubstantialContent filters out trivial turns ("ok", "y") from the
// eligibility count.
const minSubstantialContent = 10

// transcript shaping bounds so summarizer input stays manageable.
const (
	maxMessageChars   = 1000
	headLines         = 10
	tailLines         = 5
	truncatedAt       = 800
	resultPreviewSize = 100
)

// Generator is the generation collaborator: it turns a prompt into text
// using the named model.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Summarizer produces conversation summaries for a specific model budget.
type Summarizer struct {
	budget *tokenbudget.Manager
}

// New creates a summarizer that shares the budget manager's token
// estimator, so summary token counts line up with history accounting.
func New(budget *tokenbudget.Manager) *Summarizer {
	return &Summarizer{budget: budget}
}

// CanSummarize reports whether a message range is eligible: every message
// must be at least minAge old, and the range must contain at least three
// conversation messages with substantial content.
func (s *Summarizer) CanSummarize(messages []*conversation.Message, minAge time.Duration) bool {
	if len(messages) == 0 {
		return false
	}

	cutoff := time.Now().Add(-minAge)
	for _, msg := range messages {
		if msg.Timestamp.After(cutoff) {
			return false
		}
	}

	substantial := 0
	for _, msg := range messages {
		if msg.IsConversationMessage() && len(strings.TrimSpace(msg.Content)) > minSubstantialContent {
			substantial++
		}
	}
	return substantial >= minEligibleMessages
}

// Summarize compacts a message range into a single summary entity.
// contextHint, when non-empty, is prepended to the transcript to orient the
// model. The range itself is left untouched.
func (s *Summarizer) Summarize(
	ctx context.Context,
	messages []*conversation.Message,
	gen Generator,
	modelName string,
	contextHint string,
) (*conversation.Summary, error) {
	if len(messages) == 0 {
		return nil, ErrIneligibleInput
	}

	minAge := time.Duration(s.budget.Strategy().MinSummaryAgeHours) * time.Hour
	cutoff := time.Now().Add(-minAge)
	for _, msg := range messages {
		if msg.Timestamp.After(cutoff) {
			return nil, fmt.Errorf("message %s: %w", msg.ID, ErrTooRecent)
		}
	}
	if !s.CanSummarize(messages, minAge) {
		return nil, ErrIneligibleInput
	}

	convType := Classify(messages)
	transcript := Transcript(messages)
	if contextHint != "" {
		transcript = "Context: " + contextHint + "\n\n" + transcript
	}

	prompt := fmt.Sprintf(promptTemplate(convType), transcript)
	content, err := gen.Generate(ctx, modelName, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptySummary
	}

	originalTokens := 0
	start, end := messages[0].Timestamp, messages[0].Timestamp
	for _, msg := range messages {
		originalTokens += s.budget.EstimateTokens(msg.Content)
		if msg.Timestamp.Before(start) {
			start = msg.Timestamp
		}
		if msg.Timestamp.After(end) {
			end = msg.Timestamp
		}
	}
	summaryTokens := s.budget.EstimateTokens(content)

	ratio := float64(summaryTokens) / float64(max(originalTokens, 1))

	return &conversation.Summary{
		ID:                   uuid.New().String(),
		OriginalMessageCount: len(messages),
		OriginalTokenCount:   originalTokens,
		SummaryContent:       content,
		SummaryTokens:        summaryTokens,
		TimeRangeStart:       start,
		TimeRangeEnd:         end,
		CreatedAt:            time.Now(),
		Metadata: map[string]string{
			"conversation_type": string(convType),
			"model_used":        modelName,
			"compression_ratio": strconv.FormatFloat(ratio, 'f', 4, 64),
		},
	}, nil
}

// codeIndicators are keywords whose presence marks a message as code
// related for classification.
var codeIndicators = []string{
	"function", "class", "import", "def ", "const ", "var ",
	"let ", "if (", "for (", "while (", "<code", "git ", "npm ", "pip ",
	"func ", "package ", "go build", "go test",
}

// Classify buckets a message range into a conversation type by simple
// heuristics: tool-heavy ranges, then code-heavy ranges, then everything
// else.
func Classify(messages []*conversation.Message) ConversationType {
	if len(messages) == 0 {
		return TypeConversation
	}

	toolMessages := 0
	codeMessages := 0
	for _, msg := range messages {
		if msg.IsToolMessage() {
			toolMessages++
		}
		lower := strings.ToLower(msg.Content)
		for _, indicator := range codeIndicators {
			if strings.Contains(lower, indicator) {
				codeMessages++
				break
			}
		}
	}

	total := float64(len(messages))
	if float64(toolMessages)/total > 0.3 {
		return TypeToolUsage
	}
	if float64(codeMessages)/total > 0.4 {
		return TypeCodeSession
	}
	return TypeConversation
}

// Transcript serializes a message range into a flat text form for the
// summary prompt: one block per message, tool activity inline, long bodies
// truncated head-and-tail.
func Transcript(messages []*conversation.Message) string {
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, formatMessage(msg))
	}
	return strings.Join(blocks, "\n\n")
}

func formatMessage(msg *conversation.Message) string {
	content := strings.TrimSpace(msg.Content)

	if len(msg.ToolCalls) > 0 {
		parts := make([]string, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			parts = append(parts, fmt.Sprintf("Tool: %s(%v)", tc.Name, tc.Arguments))
		}
		content += "\n[Tools used: " + strings.Join(parts, "; ") + "]"
	}

	if len(msg.ToolResults) > 0 {
		parts := make([]string, 0, len(msg.ToolResults))
		for _, tr := range msg.ToolResults {
			status := "ok"
			if !tr.Success {
				status = "failed"
			}
			preview := tr.Content
			if len(preview) > resultPreviewSize {
				preview = preview[:resultPreviewSize] + "..."
			}
			parts = append(parts, status+": "+preview)
		}
		content += "\n[Results: " + strings.Join(parts, "; ") + "]"
	}

	if len(content) > maxMessageChars {
		content = truncateBody(content)
	}

	timestamp := msg.Timestamp.Format("2006-01-02 15:04")
	role := strings.ToUpper(string(msg.Role))
	return fmt.Sprintf("[%s] %s: %s", timestamp, role, content)
}

// truncateBody keeps the head and tail of an oversized body and marks the
// gap, preserving line structure when there is one to preserve.
func truncateBody(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > headLines+tailLines+5 {
		head := strings.Join(lines[:headLines], "\n")
		tail := strings.Join(lines[len(lines)-tailLines:], "\n")
		return head + "\n[... truncated ...]\n" + tail
	}
	return content[:truncatedAt] + "\n[... truncated ...]"
}

// CombineSummaries merges several summaries into one chronological digest.
func CombineSummaries(summaries []*conversation.Summary) string {
	if len(summaries) == 0 {
		return ""
	}
	if len(summaries) == 1 {
		return summaries[0].SummaryContent
	}

	sorted := make([]*conversation.Summary, len(summaries))
	copy(sorted, summaries)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].TimeRangeStart.Before(sorted[j-1].TimeRangeStart); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	parts := make([]string, 0, len(sorted))
	for i, s := range sorted {
		convType := s.Metadata["conversation_type"]
		if convType == "" {
			convType = string(TypeConversation)
		}
		parts = append(parts, fmt.Sprintf("Session %d (%s, %s):\n%s",
			i+1, s.TimeRangeStart.Format("2006-01-02 15:04"), convType, s.SummaryContent))
	}
	return strings.Join(parts, "\n\n")
}

// Stats aggregates compression efficiency across summaries.
type Stats struct {
	TotalSummaries          int     `json:"total_summaries"`
	TotalOriginalMessages   int     `json:"total_original_messages"`
	TotalOriginalTokens     int     `json:"total_original_tokens"`
	TotalSummaryTokens      int     `json:"total_summary_tokens"`
	TokensSaved             int     `json:"tokens_saved"`
	AverageCompressionRatio float64 `json:"average_compression_ratio"`
	BestCompressionRatio    float64 `json:"best_compression_ratio"`
	WorstCompressionRatio   float64 `json:"worst_compression_ratio"`
}

// ComputeStats summarizes how much compaction has saved so far.
func ComputeStats(summaries []*conversation.Summary) Stats {
	if len(summaries) == 0 {
		return Stats{}
	}

	stats := Stats{TotalSummaries: len(summaries)}
	sum := 0.0
	best := summaries[0].CompressionRatio()
	worst := best
	for _, s := range summaries {
		stats.TotalOriginalMessages += s.OriginalMessageCount
		stats.TotalOriginalTokens += s.OriginalTokenCount
		stats.TotalSummaryTokens += s.SummaryTokens

		ratio := s.CompressionRatio()
		sum += ratio
		if ratio < best {
			best = ratio
		}
		if ratio > worst {
			worst = ratio
		}
	}
	stats.TokensSaved = stats.TotalOriginalTokens - stats.TotalSummaryTokens
	stats.AverageCompressionRatio = sum / float64(len(summaries))
	stats.BestCompressionRatio = best
	stats.WorstCompressionRatio = worst
	return stats
}
