package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/xandai-project/xandai/src/tokenbudget"
)

// ModelCmd manages model operations
type ModelCmd struct {
	List ModelListCmd `cmd:"" help:"List models installed on the Ollama server"`
	Info ModelInfoCmd `cmd:"" help:"Show context budget facts for a model"`
}

// ModelListCmd lists installed models
type ModelListCmd struct {
	Format string `help:"Output format (table, json)" default:"table"`
}

// Run executes the model list command
func (c *ModelListCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	instance, err := buildApp(ctx, cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	models, err := instance.Client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if c.Format == "json" {
		data, err := json.MarshalIndent(models, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFAMILY\tCONTEXT\tUSABLE\tSIZE")
	for _, m := range models {
		info := tokenbudget.Resolve(m.Name)
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1fGB\n",
			m.Name, info.Family, info.ContextLength, info.AvailableContext(),
			float64(m.Size)/1e9)
	}
	return w.Flush()
}

// ModelInfoCmd shows budget facts for one model
type ModelInfoCmd struct {
	Model  string `arg:"" help:"Model name, e.g. llama3:8b"`
	Format string `help:"Output format (table, json)" default:"table"`
}

// Run executes the model info command
func (c *ModelInfoCmd) Run(kctx *kong.Context, cli *CLI) error {
	info := tokenbudget.Resolve(c.Model)

	if c.Format == "json" {
		out := map[string]interface{}{
			"name":                c.Model,
			"family":              info.Family,
			"context_length":      info.ContextLength,
			"recommended_reserve": info.RecommendedReserve,
			"available_context":   info.AvailableContext(),
			"supports_tool_calls": info.SupportsToolCalls,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "model\t%s\n", c.Model)
	fmt.Fprintf(w, "family\t%s\n", info.Family)
	fmt.Fprintf(w, "context length\t%d\n", info.ContextLength)
	fmt.Fprintf(w, "response reserve\t%d\n", info.RecommendedReserve)
	fmt.Fprintf(w, "usable context\t%d\n", info.AvailableContext())
	fmt.Fprintf(w, "tool calls\t%v\n", info.SupportsToolCalls)
	return w.Flush()
}
