package tokenbudget

// Strategy configures sliding-window trimming and summarization triggers.
// It is runtime configuration, never persisted.
type Strategy struct {
	// PreserveRecentMessages is the size of the recent window that is
	// never trimmed.
	PreserveRecentMessages int

	// PreserveSystemMessages keeps system-role messages out of eviction.
	PreserveSystemMessages bool

	// TargetUtilization is the fraction of available context to aim for
	// when trimming.
	TargetUtilization float64

	// EmergencyThreshold is the utilization above which trimming is
	// mandatory.
	EmergencyThreshold float64

	// SummarizeThreshold is the message count that makes the conversation
	// a summarization candidate at all.
	SummarizeThreshold int

	// MessagesPerSummary is the chunk size for compaction ranges.
	MessagesPerSummary int

	// MinSummaryAgeHours protects fresh conversation from being
	// summarized while it may still be actively referenced.
	MinSummaryAgeHours int
}

// DefaultStrategy returns the stock strategy.
func DefaultStrategy() Strategy {
	return Strategy{
		PreserveRecentMessages: 20,
		PreserveSystemMessages: true,
		TargetUtilization:      0.75,
		EmergencyThreshold:     0.90,
		SummarizeThreshold:     50,
		MessagesPerSummary:     20,
		MinSummaryAgeHours:     1,
	}
}
