package main

import (
	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config    string `short:"c" help:"Path to config file"`
	Model     string `short:"m" help:"Model to use" env:"XANDAI_MODEL"`
	OllamaURL string `help:"Ollama server URL" env:"XANDAI_OLLAMA_URL"`
	LogLevel  string `default:"warn" help:"Log level"`

	Chat    ChatCmd    `cmd:"" default:"1" help:"Start an interactive chat session (default)"`
	Prompt  PromptCmd  `cmd:"" help:"Execute a single prompt"`
	History HistoryCmd `cmd:"" help:"Inspect and manage the conversation history"`
	Session SessionCmd `cmd:"" help:"Browse archived sessions"`
	Model_  ModelCmd   `cmd:"" name:"model" help:"Model management and information"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("xandai"),
		kong.Description("Ollama chat CLI with context budget management"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if err := ctx.Run(&cli); err != nil {
		handler := NewErrorHandler(createCLILogger(cli.LogLevel))
		handler.HandleError(err)
	}
}
