// Package cli provides the command-line interface for healthrag.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/healthrag-go/internal/config"
	"github.com/raphaelgruber/healthrag-go/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE.
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	app      *service.App
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "healthrag",
	Short: "Safety-guarded health report pipeline",
	Long: `Healthrag turns free-text health statements into structured wellness
reports: intake validation, structuring, optional retrieval from a
knowledge base and a safety-guarded report.

Configuration comes from HEALTHRAG_* environment variables and an optional
YAML file (--config or HEALTHRAG_CONFIG).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg)
		return nil
	},
}

// shutdown closes what PersistentPreRunE and getApp opened. Cobra skips
// post-run hooks when a command fails, so Execute calls it instead.
func shutdown() {
	if app != nil {
		if err := app.Close(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
		app = nil
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
}

// getApp wires the application on first use. Commands adjust cfg before
// calling it.
func getApp(ctx context.Context) (*service.App, error) {
	if app != nil {
		return app, nil
	}
	var err error
	app, err = service.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init application: %w", err)
	}
	return app, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer shutdown()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(intakeCmd)
	rootCmd.AddCommand(guardCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "healthrag %s\n", Version)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
