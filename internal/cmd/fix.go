package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridwright/gridwright/internal/config"
	"github.com/gridwright/gridwright/internal/observability"
	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/export"
	"github.com/gridwright/gridwright/pkg/ingest"
	"github.com/gridwright/gridwright/pkg/suggest"
	"github.com/gridwright/gridwright/pkg/workspace"
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Repair validation errors with AI suggestions",
	Long: `Load data files, validate them, and send every errored cell to the
configured AI model in a single fix-all pass. Returned fixes are
applied, the data is revalidated, and the repaired files are written
as an export bundle.

Requires GEMINI_API_KEY.

Example:
  gridwright fix --data ./data --out ./fixed
  gridwright fix --data ./data --out ./fixed --format xlsx`,
	RunE: runFix,
}

var (
	fixDataDir  string
	fixOutDir   string
	fixFormat   string
	fixPatterns []string
)

func init() {
	rootCmd.AddCommand(fixCmd)

	fixCmd.Flags().StringVarP(&fixDataDir, "data", "d", ".", "Directory to scan for data files")
	fixCmd.Flags().StringVarP(&fixOutDir, "out", "O", "fixed", "Output directory for repaired files")
	fixCmd.Flags().StringVarP(&fixFormat, "format", "f", "csv", "Output format (csv|xlsx)")
	fixCmd.Flags().StringSliceVar(&fixPatterns, "pattern", nil, "Glob patterns for data files")
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	if cfg.AI.APIKey == "" {
		return exitError(foundry.ExitInvalidArgument, "AI is not configured",
			fmt.Errorf("set GEMINI_API_KEY to use fix"))
	}

	format, err := export.ParseFormat(fixFormat)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}

	files, err := ingest.DiscoverFiles(fixDataDir, fixPatterns)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read data files", err)
	}
	if len(files) == 0 {
		return exitError(foundry.ExitFileNotFound, "No data files found",
			fmt.Errorf("no client/worker/task files under %s", fixDataDir))
	}

	ws := workspace.New(workspace.WithLogger(observability.CLILogger))
	defer ws.Close()

	for kind, rows := range loadDatasets(files) {
		if err := ws.ReplaceDataset(kind, rows); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to load dataset", err)
		}
	}

	errs := ws.Errors()
	if errs.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "No validation errors found; nothing to fix.")
		return nil
	}
	observability.CLILogger.Info("Requesting fixes",
		zap.Int("findings", errs.Count()))

	producer, err := suggest.NewGemini(ctx, suggest.GeminiConfig{
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to initialize AI producer", err)
	}

	datasets := map[entity.Kind][]entity.Row{}
	for _, kind := range entity.Kinds() {
		if ds := ws.Dataset(kind); ds != nil {
			datasets[kind] = ds.Rows
		}
	}

	fixes, err := producer.FixAll(ctx, datasets, errs)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Fix-all request failed", err)
	}

	applied := ws.ApplyFixes(fixes)
	remaining := ws.Errors().Count()

	fmt.Fprintf(cmd.OutOrStdout(), "Applied %d fixes, %d findings remain.\n", applied, remaining)

	out := make(map[entity.Kind]*entity.Dataset, len(datasets))
	for _, kind := range entity.Kinds() {
		if ds := ws.Dataset(kind); ds != nil {
			out[kind] = ds
		}
	}

	written, err := export.Bundle(fixOutDir, format, out, nil)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write repaired files", err)
	}
	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}

	if remaining > 0 {
		return exitError(foundry.ExitInvalidArgument, "Findings remain after fixes",
			fmt.Errorf("%d findings", remaining))
	}
	return nil
}
