package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"biaslens/internal/analysis"
	"biaslens/internal/app"
	"biaslens/internal/pipeline"
	"biaslens/internal/report"
)

var (
	analyzeFormat   string
	analyzeOut      string
	analyzeEnhanced bool
	analyzeBrowser  bool
	analyzeSanitize bool
	analyzeNoCache  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url|file>",
	Short: "Analyze an article and write the annotated result",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "html", "Output format: html, markdown or json")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "Write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeEnhanced, "enhanced", false, "Ask the backend for enhanced analysis")
	analyzeCmd.Flags().BoolVar(&analyzeBrowser, "browser", false, "Load the page in a headless browser")
	analyzeCmd.Flags().BoolVar(&analyzeSanitize, "sanitize", false, "Sanitize the replacement HTML before diffing")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Ignore results stored in history")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(analyzeFormat)
	if err != nil {
		return err
	}

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

	_, outcome, err := orch.Run(cmd.Context(), app.Session{}, app.Request{
		Target:  args[0],
		Browser: analyzeBrowser,
		NoCache: analyzeNoCache,
		Options: pipeline.Options{
			Analysis: analysis.Options{
				EnhancedMode: analyzeEnhanced || cfg.Analysis.EnhancedMode,
			},
			Sanitize: analyzeSanitize || cfg.Render.SanitizeReplacement,
		},
	})
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if analyzeOut != "" {
		file, err := os.Create(analyzeOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", analyzeOut, err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	if err := report.NewWriter(format, app.Classes(cfg)).Write(out, outcome.Report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	summary := outcome.Report.Summary
	fmt.Fprintf(cmd.ErrOrStderr(), "Found %d biased phrases, %d context notes", summary.FoundCount, summary.ContextCount)
	if outcome.Report.Cached {
		fmt.Fprint(cmd.ErrOrStderr(), " (from history)")
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	return nil
}
