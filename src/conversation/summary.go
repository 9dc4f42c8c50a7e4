package conversation

import "time"

// Summary is a compaction artifact: a compact stand-in for a contiguous
// range of messages that has been summarized away. Summaries are created
// by the summarizer, owned by the history, and never mutated.
type Summary struct {
	ID                   string            `json:"id"`
	OriginalMessageCount int               `json:"original_message_count"`
	OriginalTokenCount   int               `json:"original_token_count"`
	SummaryContent       string            `json:"summary_content"`
	SummaryTokens        int               `json:"summary_tokens"`
	TimeRangeStart       time.Time         `json:"time_range_start"`
	TimeRangeEnd         time.Time         `json:"time_range_end"`
	CreatedAt            time.Time         `json:"created_at"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// CompressionRatio returns summary tokens over original tokens. A ratio
// below 1.0 means the summary actually saved space.
func (s *Summary) CompressionRatio() float64 {
	original := s.OriginalTokenCount
	if original < 1 {
		original = 1
	}
	return float64(s.SummaryTokens) / float64(original)
}
