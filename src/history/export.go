package history

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportFormat selects the textual form Export produces.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
	FormatText     ExportFormat = "txt"
)

// Export renders the conversation for a user-facing dump. Pure read, no
// mutation.
func (m *Manager) Export(format ExportFormat, includeSummaries bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.history == nil {
		return "", nil
	}

	switch format {
	case FormatJSON:
		h := *m.history
		if !includeSummaries {
			h.Summaries = nil
		}
		data, err := json.MarshalIndent(&h, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode conversation: %w", err)
		}
		return string(data), nil

	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "# Conversation %s\n", m.history.ID)
		fmt.Fprintf(&b, "*Created: %s*\n\n", m.history.CreatedAt.Format("2006-01-02 15:04:05"))
		for _, msg := range m.history.Messages {
			role := strings.ToUpper(string(msg.Role)[:1]) + string(msg.Role)[1:]
			fmt.Fprintf(&b, "## %s (%s)\n%s\n\n", role, msg.Timestamp.Format("15:04"), msg.Content)
		}
		if includeSummaries && len(m.history.Summaries) > 0 {
			b.WriteString("## Summaries\n")
			for _, s := range m.history.Summaries {
				fmt.Fprintf(&b, "- %s (%d messages, %d tokens)\n",
					s.TimeRangeStart.Format("2006-01-02 15:04"), s.OriginalMessageCount, s.OriginalTokenCount)
			}
		}
		return b.String(), nil

	case FormatText:
		var b strings.Builder
		for _, msg := range m.history.Messages {
			fmt.Fprintf(&b, "[%s] %s: %s\n\n",
				msg.Timestamp.Format("2006-01-02 15:04:05"),
				strings.ToUpper(string(msg.Role)),
				msg.Content)
		}
		return b.String(), nil

	default:
		return "", fmt.Errorf("unsupported export format: %s", format)
	}
}
