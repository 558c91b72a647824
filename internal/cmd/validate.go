package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridwright/gridwright/internal/observability"
	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/ingest"
	"github.com/gridwright/gridwright/pkg/normalize"
	"github.com/gridwright/gridwright/pkg/report"
	"github.com/gridwright/gridwright/pkg/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate spreadsheet data files",
	Long: `Discover client, worker, and task files in a directory, normalize
them, and run the full validation pass: schema checks, duplicate IDs,
and cross-entity references.

Findings are written as JSONL records followed by a summary record.
The exit code is non-zero when any finding is produced.

Example:
  gridwright validate --data ./data
  gridwright validate --data ./data --output findings.jsonl
  gridwright validate --data ./data --pattern "**/*.csv"`,
	RunE: runValidate,
}

var (
	validateDataDir  string
	validateOutput   string
	validatePatterns []string
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateDataDir, "data", "d", ".", "Directory to scan for data files")
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "-", "Findings destination (JSONL file or - for stdout)")
	validateCmd.Flags().StringSliceVar(&validatePatterns, "pattern", nil, "Glob patterns for data files (default **/*.csv, **/*.xlsx)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	files, err := ingest.DiscoverFiles(validateDataDir, validatePatterns)
	if err != nil {
		observability.CLILogger.Error("Failed to discover data files",
			zap.String("dir", validateDataDir),
			zap.Error(err))
		return exitError(foundry.ExitFileReadError, "Failed to read data files", err)
	}
	if len(files) == 0 {
		return exitError(foundry.ExitFileNotFound, "No data files found",
			fmt.Errorf("no client/worker/task files under %s", validateDataDir))
	}

	rowSets := loadDatasets(files)

	errs := validate.All(validate.Datasets{
		Clients: rowSets[entity.Clients],
		Workers: rowSets[entity.Workers],
		Tasks:   rowSets[entity.Tasks],
	})

	datasets := make(map[entity.Kind]*entity.Dataset, len(rowSets))
	for kind, rows := range rowSets {
		datasets[kind] = entity.NewDataset(kind, rows)
	}

	out, closeOut, err := openOutput(validateOutput)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to open output", err)
	}
	defer closeOut()

	w := report.NewJSONLWriter(out, uuid.New().String())
	defer func() { _ = w.Close() }()

	if err := report.WriteErrors(ctx, w, errs); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write findings", err)
	}
	if err := w.WriteSummary(ctx, report.Summarize(datasets, errs, time.Since(start))); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write summary", err)
	}

	observability.CLILogger.Info("Validation complete",
		zap.Int("findings", errs.Count()),
		zap.Duration("elapsed", time.Since(start)))

	if !errs.Empty() {
		return exitError(foundry.ExitInvalidArgument, "Validation completed with findings",
			fmt.Errorf("%d findings", errs.Count()))
	}
	return nil
}

// loadDatasets normalizes discovered files into per-entity row sets.
// Multiple files of the same kind append in discovery order.
func loadDatasets(files []*ingest.File) map[entity.Kind][]entity.Row {
	datasets := map[entity.Kind][]entity.Row{}
	for _, f := range files {
		observability.CLILogger.Debug("Loaded data file",
			zap.String("path", f.Path),
			zap.String("kind", string(f.Kind)),
			zap.Int("rows", len(f.Rows)))
		datasets[f.Kind] = append(datasets[f.Kind], normalize.Dataset(f.Kind, f.Rows)...)
	}
	return datasets
}

func openOutput(dest string) (io.Writer, func(), error) {
	if dest == "" || dest == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
