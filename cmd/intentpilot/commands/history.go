package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/history"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived intents of the configured actor",
		RunE:  runHistory,
	}
	cmd.Flags().Bool("clear", false, "Delete the actor's history")
	cmd.Flags().String("actor", "", "Actor to show (default from config)")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	wipe, actor := false, ""
	if cmd != nil {
		wipe, _ = cmd.Flags().GetBool("clear")
		actor, _ = cmd.Flags().GetString("actor")
	}
	if actor == "" {
		actor = cfg.Workflow.ActorID
	}

	store, err := history.OpenStore(cfg.History.Backend, cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	archive := history.NewArchiver(store, cfg.History.MaxEntries)
	defer archive.Close()

	ctx := context.Background()
	if wipe {
		if err := archive.Clear(ctx, actor); err != nil {
			return err
		}
		fmt.Printf("History of %s cleared.\n", actor)
		return nil
	}

	entries, err := archive.List(ctx, actor)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No archived intents for %s.\n", actor)
		return nil
	}
	fmt.Print(renderHistory(actor, entries))
	return nil
}

func renderHistory(actor string, entries []history.Entry) string {
	cols := []column{
		{title: "INTENT", width: 24},
		{title: "TYPE", width: 18},
		{title: "STATE", width: 20},
		{title: "DECISIONS", width: 9},
		{title: "ACTIONS", width: 7},
		{title: "ARCHIVED", width: 19},
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		done := 0
		for _, a := range e.Actions {
			if a.Outcome.Done() {
				done++
			}
		}
		rows = append(rows, []string{
			e.Intent.ID,
			orDash(e.Intent.Type),
			string(e.Lifecycle),
			strconv.Itoa(len(e.Decisions)),
			fmt.Sprintf("%d/%d", done, len(e.Actions)),
			e.ArchivedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	return table("History of "+actor, cols, rows, func(col int, cell string) lipgloss.Style {
		switch col {
		case 0:
			return dimStyle.MarginRight(1)
		case 2:
			if c, ok := stateColors[cell]; ok {
				return cellStyle.Foreground(c)
			}
		}
		return cellStyle
	}) + "\n"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
