package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
)

// PromptCmd represents the single prompt command
type PromptCmd struct {
	Text   []string `arg:"" help:"The prompt text to send"`
	System string   `short:"s" help:"System prompt"`
	File   string   `short:"f" help:"Load prompt from file"`
	Bare   bool     `help:"Do not record the exchange in the conversation history"`
}

// Run executes the prompt command
func (p *PromptCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	ctx := context.Background()

	text := strings.Join(p.Text, " ")
	if p.File != "" {
		data, err := os.ReadFile(p.File)
		if err != nil {
			return fmt.Errorf("failed to read prompt file: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return fmt.Errorf("empty prompt")
	}

	instance, err := buildApp(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	if p.Bare {
		var out string
		if p.System != "" {
			out, err = instance.Client.GenerateWithSystem(ctx, instance.History.Model(), p.System, text)
		} else {
			out, err = instance.Client.Generate(ctx, instance.History.Model(), text)
		}
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	if _, err := instance.History.AddUserMessage(text); err != nil {
		if err := warnPersistence(logger, err); err != nil {
			return err
		}
	}

	system := p.System
	if system == "" {
		system = instance.Config.Model.SystemPrompt
	}
	msgs := buildChatMessages(instance.History.ContextForModel(0), system)

	resp, err := instance.Client.Chat(ctx, instance.History.Model(), msgs)
	if err != nil {
		return err
	}
	fmt.Println(resp.Message.Content)

	if _, err := instance.History.AddAssistantMessage(resp.Message.Content, nil); err != nil {
		if err := warnPersistence(logger, err); err != nil {
			return err
		}
	}
	return nil
}
