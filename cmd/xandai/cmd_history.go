package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/xandai-project/xandai/src/history"
	"github.com/xandai-project/xandai/src/theme"
	"github.com/xandai-project/xandai/src/tokenbudget"
)

// HistoryCmd manages the stored conversation
type HistoryCmd struct {
	Stats     HistoryStatsCmd     `cmd:"" help:"Show conversation statistics"`
	Context   HistoryContextCmd   `cmd:"" help:"Show context budget status"`
	Export    HistoryExportCmd    `cmd:"" help:"Export the conversation"`
	Optimize  HistoryOptimizeCmd  `cmd:"" help:"Trim the conversation to budget"`
	Summarize HistorySummarizeCmd `cmd:"" help:"Summarize older messages"`
	Summary   HistorySummaryCmd   `cmd:"" help:"Show the combined summary digest"`
	Clear     HistoryClearCmd     `cmd:"" help:"Clear the conversation"`
}

// HistoryStatsCmd shows conversation statistics
type HistoryStatsCmd struct {
	Format string `help:"Output format (table, json)" default:"table"`
}

// Run executes the history stats command
func (c *HistoryStatsCmd) Run(kctx *kong.Context, cli *CLI) error {
	instance, err := buildApp(context.Background(), cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	stats := instance.History.Statistics()
	if c.Format == "json" {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	printStatistics(stats)
	return nil
}

// HistoryContextCmd shows the context budget status
type HistoryContextCmd struct{}

// Run executes the history context command
func (c *HistoryContextCmd) Run(kctx *kong.Context, cli *CLI) error {
	instance, err := buildApp(context.Background(), cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	status, err := instance.History.ContextStatus()
	if err != nil {
		return err
	}
	printContextStatus(status)

	assessment, err := instance.History.AssessFit()
	if err != nil {
		return err
	}
	for _, rec := range assessment.Recommendations {
		fmt.Println(theme.Muted.Render("  - " + rec))
	}
	return nil
}

// HistoryExportCmd exports the conversation to a file or stdout
type HistoryExportCmd struct {
	Format    string `help:"Export format (json, markdown, txt)" default:"markdown"`
	Output    string `short:"o" help:"Output file (default stdout)"`
	Summaries bool   `help:"Include summaries" default:"true" negatable:""`
}

// Run executes the history export command
func (c *HistoryExportCmd) Run(kctx *kong.Context, cli *CLI) error {
	instance, err := buildApp(context.Background(), cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	out, err := instance.History.Export(history.ExportFormat(c.Format), c.Summaries)
	if err != nil {
		return err
	}

	if c.Output == "" {
		fmt.Print(out)
		return nil
	}
	if err := os.WriteFile(c.Output, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("exported to %s\n", c.Output)
	return nil
}

// HistoryOptimizeCmd trims the conversation to budget
type HistoryOptimizeCmd struct{}

// Run executes the history optimize command
func (c *HistoryOptimizeCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	instance, err := buildApp(context.Background(), cli, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	report, err := instance.History.ForceOptimization()
	if err != nil {
		if err := warnPersistence(logger, err); err != nil {
			return err
		}
	}
	fmt.Printf("%s: %d -> %d messages, %d tokens saved\n",
		report.Action, report.OriginalMessages, report.OptimizedMessages, report.TokensSaved)
	return nil
}

// HistorySummarizeCmd summarizes older messages now
type HistorySummarizeCmd struct {
	Force bool `help:"Summarize even below the usual message threshold"`
}

// Run executes the history summarize command
func (c *HistorySummarizeCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	ctx := context.Background()
	instance, err := buildApp(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	report, err := instance.History.AutoSummarize(ctx, c.Force)
	if err != nil {
		if err := warnPersistence(logger, err); err != nil {
			return err
		}
	}
	if report == nil {
		fmt.Println("nothing eligible to summarize")
		return nil
	}
	fmt.Printf("created %d summaries covering %d messages, saved ~%d tokens\n",
		report.SummariesCreated, report.MessagesSummarized, report.TokensSaved)
	if report.RangesSkipped > 0 {
		fmt.Printf("skipped %d ranges\n", report.RangesSkipped)
	}
	return nil
}

// HistorySummaryCmd shows the combined digest of compacted summaries
type HistorySummaryCmd struct{}

// Run executes the history summary command
func (c *HistorySummaryCmd) Run(kctx *kong.Context, cli *CLI) error {
	instance, err := buildApp(context.Background(), cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	digest := instance.History.ConversationSummary()
	if digest == "" {
		fmt.Println("no summaries yet")
		return nil
	}
	fmt.Println(digest)
	return nil
}

// HistoryClearCmd clears the conversation
type HistoryClearCmd struct {
	NoBackup bool `help:"Skip the backup snapshot"`
}

// Run executes the history clear command
func (c *HistoryClearCmd) Run(kctx *kong.Context, cli *CLI) error {
	logger := createCLILogger(cli.LogLevel)
	ctx := context.Background()
	instance, err := buildApp(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	if err := instance.ArchiveCurrentSession(ctx); err != nil {
		logger.Warn("could not archive session before clear", "error", err)
	}
	if err := instance.History.ClearConversation(!c.NoBackup); err != nil {
		if err := warnPersistence(logger, err); err != nil {
			return err
		}
	}
	fmt.Println("conversation cleared")
	return nil
}

// printStatistics renders conversation statistics as a table
func printStatistics(stats history.Statistics) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "conversation\t%s\n", stats.ConversationID)
	fmt.Fprintf(w, "started\t%s\n", stats.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "duration\t%.1fh\n", stats.DurationHours)
	fmt.Fprintf(w, "messages\t%d (%d conversation, %d system, %d tool)\n",
		stats.Messages.Total, stats.Messages.Conversation, stats.Messages.System, stats.Messages.Tool)
	fmt.Fprintf(w, "tokens\t%d\n", stats.Tokens.Total)
	fmt.Fprintf(w, "summaries\t%d\n", stats.SummaryCount)
	if stats.Model != nil {
		fmt.Fprintf(w, "model\t%s (%s, %d ctx, %d usable)\n",
			stats.Model.Name, stats.Model.Family, stats.Model.ContextLength, stats.Model.AvailableContext)
	}
	if stats.Summarization != nil {
		fmt.Fprintf(w, "compression\t%.2f avg ratio, %d tokens saved\n",
			stats.Summarization.AverageCompressionRatio, stats.Summarization.TokensSaved)
	}
	w.Flush()
}

// printContextStatus renders the coarse utilization snapshot
func printContextStatus(status tokenbudget.ContextStatus) {
	style := theme.UtilizationStyle(status.Level)
	fmt.Printf("%s  %d / %d tokens (%.0f%%)\n",
		style.Render(status.Level),
		status.TotalTokens, status.AvailableContext, status.Utilization*100)
}
