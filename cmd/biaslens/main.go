package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"biaslens/internal/analysis"
	"biaslens/internal/app"
	"biaslens/internal/config"
	"biaslens/internal/extract"
	"biaslens/internal/observability"
	"biaslens/internal/render"
)

const (
	exitOK         = 0
	exitFailure    = 1
	exitExtraction = 2
	exitTransport  = 3
	exitRender     = 4
)

var (
	configPath string

	cfg      *config.Config
	logger   *observability.Logger
	stopFunc context.CancelFunc = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "biaslens",
	Short:         "Highlight biased wording in news articles",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		logger, err = observability.NewLogger(cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		ctx, cancel := app.GracefulShutdown(logger, 0)
		stopFunc = cancel
		cmd.SetContext(ctx)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config (defaults are used when empty)")
	rootCmd.AddCommand(analyzeCmd, historyCmd)
}

func main() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	stopFunc()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode различает ошибки извлечения, сети и отрисовки.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var extractionErr *extract.ExtractionError
	var transportErr *analysis.TransportError
	var renderErr *render.RenderError

	switch {
	case errors.As(err, &extractionErr):
		return exitExtraction
	case errors.As(err, &transportErr):
		return exitTransport
	case errors.As(err, &renderErr):
		return exitRender
	}
	return exitFailure
}
