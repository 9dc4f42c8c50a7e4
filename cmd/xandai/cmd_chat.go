package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/xandai-project/xandai/src/app"
	"github.com/xandai-project/xandai/src/conversation"
	"github.com/xandai-project/xandai/src/ollama"
	"github.com/xandai-project/xandai/src/theme"
)

// ChatCmd starts the interactive chat loop
type ChatCmd struct {
	System string `short:"s" help:"System prompt for this session"`
}

// Run executes the chat command
func (c *ChatCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := createChatLogger(cli.LogLevel)
	ctx := context.Background()

	instance, err := buildApp(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	model := instance.History.Model()
	fmt.Println(theme.Title.Render("xandai") + theme.Muted.Render("  model: "+model))
	fmt.Println(theme.Muted.Render("Type /help for commands, /exit to quit."))

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := c.handleCommand(ctx, instance, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if done {
				break
			}
			continue
		}

		if err := c.chatTurn(ctx, instance, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	return instance.ArchiveCurrentSession(ctx)
}

// chatTurn runs one user turn: record, send the in-budget context, stream
// the reply, record the reply, then compact in the background if needed.
func (c *ChatCmd) chatTurn(ctx context.Context, instance *app.App, input string) error {
	logger := instance.Logger

	if _, err := instance.History.AddUserMessage(input); err != nil {
		if err := warnPersistence(logger, err); err != nil {
			return err
		}
	}

	msgs := buildChatMessages(instance.History.ContextForModel(0), c.systemPrompt(instance))

	var reply strings.Builder
	err := instance.Client.ChatStream(ctx, instance.History.Model(), msgs, func(chunk ollama.ChatResponse) error {
		fmt.Print(chunk.Message.Content)
		reply.WriteString(chunk.Message.Content)
		return nil
	})
	fmt.Println()
	if err != nil {
		return err
	}

	if _, err := instance.History.AddAssistantMessage(reply.String(), nil); err != nil {
		if err := warnPersistence(logger, err); err != nil {
			return err
		}
	}

	assessment, err := instance.History.AssessFit()
	if err != nil {
		return err
	}
	if assessment.Emergency {
		fmt.Println(theme.Danger.Render("context nearly full, summarizing older messages"))
	}
	if assessment.NeedsOptimization && instance.Config.Summarization.Enabled {
		if report, err := instance.History.AutoSummarize(ctx, false); err != nil {
			logger.Warn("auto-summarization failed", "error", err)
		} else if report != nil {
			fmt.Println(theme.Muted.Render(fmt.Sprintf(
				"compacted %d messages into %d summaries, saved ~%d tokens",
				report.MessagesSummarized, report.SummariesCreated, report.TokensSaved)))
		}
	}
	return nil
}

func (c *ChatCmd) systemPrompt(instance *app.App) string {
	if c.System != "" {
		return c.System
	}
	return instance.Config.Model.SystemPrompt
}

// handleCommand dispatches a slash command. Returns true when the loop
// should exit.
func (c *ChatCmd) handleCommand(ctx context.Context, instance *app.App, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Println(`Commands:
  /stats       conversation statistics
  /context     context budget status
  /optimize    trim the conversation to budget now
  /summarize   summarize older messages now
  /model NAME  switch model
  /clear       clear the conversation (with backup)
  /exit        quit`)
		return false, nil

	case "/stats":
		printStatistics(instance.History.Statistics())
		return false, nil

	case "/context":
		status, err := instance.History.ContextStatus()
		if err != nil {
			return false, err
		}
		printContextStatus(status)
		return false, nil

	case "/optimize":
		report, err := instance.History.ForceOptimization()
		if err != nil {
			if err := warnPersistence(instance.Logger, err); err != nil {
				return false, err
			}
		}
		fmt.Printf("%s: %d -> %d messages, %d tokens saved\n",
			report.Action, report.OriginalMessages, report.OptimizedMessages, report.TokensSaved)
		return false, nil

	case "/summarize":
		report, err := instance.History.AutoSummarize(ctx, true)
		if err != nil {
			if err := warnPersistence(instance.Logger, err); err != nil {
				return false, err
			}
		}
		if report == nil {
			fmt.Println("nothing eligible to summarize")
		} else {
			fmt.Printf("created %d summaries covering %d messages, saved ~%d tokens\n",
				report.SummariesCreated, report.MessagesSummarized, report.TokensSaved)
		}
		return false, nil

	case "/model":
		if len(fields) < 2 {
			return false, errors.New("usage: /model NAME")
		}
		instance.History.SetModel(fields[1])
		fmt.Println("model set to " + fields[1])
		return false, nil

	case "/clear":
		if err := instance.ArchiveCurrentSession(ctx); err != nil {
			instance.Logger.Warn("could not archive session before clear", "error", err)
		}
		if err := instance.History.ClearConversation(instance.Config.History.BackupOnClear); err != nil {
			if err := warnPersistence(instance.Logger, err); err != nil {
				return false, err
			}
		}
		fmt.Println("conversation cleared")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
}

// buildChatMessages converts the stored conversation into chat turns for
// the model, filtering message types the model should not see raw.
func buildChatMessages(msgs []*conversation.Message, systemPrompt string) []ollama.ChatMessage {
	out := make([]ollama.ChatMessage, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, ollama.ChatMessage{Role: "system", Content: systemPrompt})
	}

	for _, msg := range msgs {
		switch msg.MessageType {
		case conversation.TypeToolCall, conversation.TypeToolResult, conversation.TypeSessionMarker:
			continue
		}
		role := string(msg.Role)
		if msg.MessageType == conversation.TypeContextSummary {
			role = "system"
		}
		out = append(out, ollama.ChatMessage{Role: role, Content: msg.Content})
	}
	return out
}
