package summarizer

// ConversationType selects which summary template is used. Classification
// changes what the summary emphasizes, not how it is produced.
type ConversationType string

const (
	TypeConversation ConversationType = "conversation"
	TypeToolUsage    ConversationType = "tool_usage"
	TypeCodeSession  ConversationType = "code_session"
)

const conversationPrompt = `You are tasked with creating a concise but comprehensive summary of a conversation between a user and an AI assistant.

The conversation involves a user working with a CLI coding assistant that helps with coding tasks, file operations, and project management.

**Instructions:**
1. Summarize the key topics discussed, decisions made, and outcomes achieved
2. Preserve important technical details, file names, commands, and configurations
3. Note any ongoing context that might be relevant for future conversations
4. Keep the summary concise but informative (aim for 200-400 tokens)
5. Use clear, structured format with bullet points where appropriate

**Conversation to Summarize:**
%s

**Summary:**`

const toolUsagePrompt = `Summarize this conversation session that involved significant tool usage and file operations.

Focus on:
- Files created, modified, or read
- Commands executed
- Project structure changes
- Technical configurations
- Any errors encountered and solutions

**Session to Summarize:**
%s

**Technical Summary:**`

const codeSessionPrompt = `Summarize this coding session, focusing on the development work accomplished.

Highlight:
- Programming languages and frameworks used
- Features implemented or bugs fixed
- Architecture decisions made
- Testing or debugging activities
- Next steps or TODOs mentioned

**Coding Session:**
%s

**Development Summary:**`

func promptTemplate(ct ConversationType) string {
	switch ct {
	case TypeToolUsage:
		return toolUsagePrompt
	case TypeCodeSession:
		return codeSessionPrompt
	default:
		return conversationPrompt
	}
}
