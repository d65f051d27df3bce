// Package cli implements the lakeingest command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lake-ingest/internal/app"
	"lake-ingest/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if getOutputFormat(rootCmd) == "json" {
			_ = PrintJSON(os.Stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		output  string
		envFile string
	)

	rootCmd := &cobra.Command{
		Use:           "lakeingest",
		Short:         "Event-driven data-lake ingestion",
		Long:          "Classifies landed files against the lake config, validates them, writes partitioned Parquet and registers tables in the catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			return config.LoadDotEnv(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load; existing variables win")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTelemetryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newRouteCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// runtime is the environment shared by commands that run pipeline stages.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	app    *app.App
}

// loadRuntime loads env config, builds the JSON logger on the command's stderr
// and wires the application. The caller must call close.
func loadRuntime(cmd *cobra.Command) (*runtime, func(), error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	a, err := app.New(cmd.Context(), app.Deps{Cfg: cfg, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	return &runtime{cfg: cfg, logger: logger, app: a}, closeFn, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

var errRejected = errors.New("file rejected")
