// Package cmd implements the gridwright CLI.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridwright/gridwright/internal/config"
	"github.com/gridwright/gridwright/internal/observability"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagLogLevel   string
	flagLogProfile string
)

var rootCmd = &cobra.Command{
	Use:   "gridwright",
	Short: "Normalize and validate spreadsheet business data",
	Long: `gridwright ingests client, worker, and task spreadsheets, normalizes
every cell to a canonical type, and validates the result: per-cell schema
checks, duplicate IDs, and cross-entity references.

Data can be validated in one shot, served over HTTP for interactive
editing, repaired with AI suggestions, and exported as a clean bundle.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if flagLogLevel != "" {
			overrides["logging.level"] = flagLogLevel
		}
		if flagLogProfile != "" {
			overrides["logging.profile"] = flagLogProfile
		}

		cfg, err := config.Load(cmd.Context(), overrides)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&flagLogProfile, "log-profile", "", "Log profile (STRUCTURED|CONSOLE)")
}

// exitCodeError carries a process exit code alongside the error chain.
type exitCodeError struct {
	code int
	msg  string
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

func exitError(code int, msg string, err error) error {
	return &exitCodeError{code: code, msg: msg, err: err}
}

// Execute runs the CLI and exits the process with the error's code.
func Execute() {
	defer observability.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var coded *exitCodeError
		if errors.As(err, &coded) {
			observability.Sync()
			os.Exit(coded.code)
		}
		observability.Sync()
		os.Exit(1)
	}
}
