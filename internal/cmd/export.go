package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridwright/gridwright/internal/observability"
	"github.com/gridwright/gridwright/pkg/entity"
	"github.com/gridwright/gridwright/pkg/export"
	"github.com/gridwright/gridwright/pkg/ingest"
	"github.com/gridwright/gridwright/pkg/rules"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export normalized data as a clean bundle",
	Long: `Load data files, normalize them, and write one export file per
entity plus rules.json when a ruleset is provided.

Validation findings do not block export; the bundle reflects the data
as-is with canonical columns and flattened list values.

Example:
  gridwright export --data ./data --out ./dist
  gridwright export --data ./data --out ./dist --format xlsx --rules rules.yaml`,
	RunE: runExport,
}

var (
	exportDataDir   string
	exportOutDir    string
	exportFormat    string
	exportRulesPath string
	exportPatterns  []string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportDataDir, "data", "d", ".", "Directory to scan for data files")
	exportCmd.Flags().StringVarP(&exportOutDir, "out", "O", "export", "Output directory for the bundle")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format (csv|xlsx)")
	exportCmd.Flags().StringVar(&exportRulesPath, "rules", "", "Ruleset file to include as rules.json")
	exportCmd.Flags().StringSliceVar(&exportPatterns, "pattern", nil, "Glob patterns for data files")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}

	var rs *rules.Ruleset
	if exportRulesPath != "" {
		rs, err = rules.Load(exportRulesPath)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid ruleset", err)
		}
		for _, warning := range rs.Warnings() {
			observability.CLILogger.Warn("ruleset warning", zap.String("warning", warning))
		}
	}

	files, err := ingest.DiscoverFiles(exportDataDir, exportPatterns)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read data files", err)
	}
	if len(files) == 0 {
		return exitError(foundry.ExitFileNotFound, "No data files found",
			fmt.Errorf("no client/worker/task files under %s", exportDataDir))
	}

	rowSets := loadDatasets(files)
	datasets := make(map[entity.Kind]*entity.Dataset, len(rowSets))
	for kind, rows := range rowSets {
		datasets[kind] = entity.NewDataset(kind, rows)
	}

	written, err := export.Bundle(exportOutDir, format, datasets, rs)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Export failed", err)
	}

	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	observability.CLILogger.Info("Export complete",
		zap.String("dir", exportOutDir),
		zap.Int("files", len(written)))
	return nil
}
