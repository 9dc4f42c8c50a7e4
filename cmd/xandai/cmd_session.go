package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/xandai-project/xandai/src/storage"
)

// SessionCmd browses the session archive
type SessionCmd struct {
	List   SessionListCmd   `cmd:"" help:"List archived sessions"`
	Show   SessionShowCmd   `cmd:"" help:"Show an archived session"`
	Delete SessionDeleteCmd `cmd:"" help:"Delete an archived session"`
}

// SessionListCmd lists archived sessions
type SessionListCmd struct {
	Limit  int    `help:"Maximum sessions to show" default:"20"`
	Format string `help:"Output format (table, json)" default:"table"`
}

// Run executes the session list command
func (c *SessionListCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	instance, err := buildApp(ctx, cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	if instance.Archive == nil {
		return fmt.Errorf("session archive is disabled in configuration")
	}

	sessions, err := storage.ListSessions(ctx, instance.Archive.DB(), c.Limit)
	if err != nil {
		return err
	}

	if c.Format == "json" {
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tENDED\tMESSAGES\tTOKENS\tSUMMARIES")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			s.ID, s.Model, s.EndedAt.Format("2006-01-02 15:04"),
			s.MessageCount, s.TokenCount, s.SummaryCount)
	}
	return w.Flush()
}

// SessionShowCmd shows one archived session with its messages
type SessionShowCmd struct {
	ID        string `arg:"" help:"Session ID"`
	Summaries bool   `help:"Show summaries too" default:"true" negatable:""`
}

// Run executes the session show command
func (c *SessionShowCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	instance, err := buildApp(ctx, cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	if instance.Archive == nil {
		return fmt.Errorf("session archive is disabled in configuration")
	}

	session, err := storage.GetSessionByID(ctx, instance.Archive.DB(), c.ID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", c.ID)
	}

	fmt.Printf("session %s  model=%s  %s - %s\n\n",
		session.ID, session.Model,
		session.StartedAt.Format("2006-01-02 15:04"),
		session.EndedAt.Format("2006-01-02 15:04"))

	messages, err := storage.GetMessagesBySessionID(ctx, instance.Archive.DB(), c.ID)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04"), msg.Role, msg.Content)
	}

	if c.Summaries {
		summaries, err := storage.GetSummariesBySessionID(ctx, instance.Archive.DB(), c.ID)
		if err != nil {
			return err
		}
		for _, sum := range summaries {
			fmt.Printf("\nsummary (%d messages, %d -> %d tokens):\n%s\n",
				sum.OriginalMessageCount, sum.OriginalTokenCount, sum.SummaryTokens, sum.Content)
		}
	}
	return nil
}

// SessionDeleteCmd deletes an archived session
type SessionDeleteCmd struct {
	ID string `arg:"" help:"Session ID"`
}

// Run executes the session delete command
func (c *SessionDeleteCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	instance, err := buildApp(ctx, cli, createCLILogger(cli.LogLevel))
	if err != nil {
		return err
	}
	defer instance.Close()

	if instance.Archive == nil {
		return fmt.Errorf("session archive is disabled in configuration")
	}

	if err := storage.DeleteSession(ctx, instance.Archive.DB(), c.ID); err != nil {
		return err
	}
	fmt.Printf("deleted session %s\n", c.ID)
	return nil
}
