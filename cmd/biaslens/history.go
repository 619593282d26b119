package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"biaslens/internal/app"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently analyzed articles",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Number of entries (0 = storage.history_limit)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	repo, err := app.OpenRepository(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if repo != nil {
		defer func() { _ = repo.Close() }()
	}

	orch, err := app.NewOrchestrator(cfg, logger, app.NewAnalyzer(cfg, logger), repo)
	if err != nil {
		return err
	}

	entries, err := orch.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No analyses yet.")
		return nil
	}

	for i, e := range entries {
		title := e.Title
		if title == "" {
			title = e.Source
		}
		fmt.Fprintf(out, "%2d. %s  %s\n", i+1, e.CreatedAt.Local().Format("2006-01-02 15:04"), title)
		fmt.Fprintf(out, "    %s\n", e.Source)
		fmt.Fprintf(out, "    found=%d context=%d  %s\n", e.FoundCount, e.ContextCount, orch.Preview(e.Text))
	}
	return nil
}
