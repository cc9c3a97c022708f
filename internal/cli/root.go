// Package cli implements the rerender command-line tool.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/me/rerender/internal/config"
	"github.com/me/rerender/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig        string
	flagDebug         bool
	flagLogLevel      string
	flagLogFormat     string
	flagJournal       string
	flagMaxLoops      int
	flagBacktracking  bool
	flagMaxBacktracks int

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the rerender CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rerender",
		Short: "rerender: revalidation scheduler simulator",
		Long: "rerender runs scripted scenarios through the render scheduler, serves a debug API " +
			"over a running scenario, and reads the pass and fault journal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	pf.BoolVar(&flagDebug, "debug", false, "Shorthand for --log-level=debug")
	pf.StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&flagJournal, "journal", "", "SQLite journal path (empty disables journaling)")
	pf.IntVar(&flagMaxLoops, "max-reflush-loops", 10, "Forced re-entries before a renderer is destroyed")
	pf.BoolVar(&flagBacktracking, "detect-backtracking", false, "Rerender roots that write state they render")
	pf.IntVar(&flagMaxBacktracks, "max-backtracks", 10, "Consecutive rerenders of one root before it fails")

	root.AddCommand(
		newSimulateCmd(),
		newServeCmd(),
		newJournalCmd(),
	)

	return root
}

// setup loads the config file and applies explicitly set flags over it.
func setup(cmd *cobra.Command) error {
	cfg = config.DefaultConfig()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flags.Changed("journal") {
		cfg.JournalPath = flagJournal
	}
	if flags.Changed("max-reflush-loops") {
		cfg.MaxReflushLoops = flagMaxLoops
	}
	if flags.Changed("detect-backtracking") {
		cfg.DetectBacktracking = flagBacktracking
	}
	if flags.Changed("max-backtracks") {
		cfg.MaxBacktracks = flagMaxBacktracks
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}

	if err := logging.ValidateFormat(cfg.LogFormat); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger = logging.NewWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}
