// =============================================================================
// Commission Report - Process Command
// =============================================================================
//
// This file defines the 'process' command, the batch entry point.
//
// COMMAND USAGE:
//   commission process --file <export.csv> [flags]
//
// FLAGS:
//   --file        : The export to process (.csv or .xlsx); required
//   --output-dir  : Where to write the workbooks (default: output_dir)
//   --details     : Also write one workbook per Sub_id2
//   --dry-run     : Aggregate and print totals without writing files
//   --archive     : Move the input to input_archive_dir after success
//
// On success the exit code is 0 and a run_<id>.log summary is written to
// the output directory. Any failure exits non-zero with a diagnostic.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/commission-report/internal/money"
	"github.com/ginjaninja78/commission-report/internal/pipeline"
	"github.com/ginjaninja78/commission-report/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	filePath  string
	outputDir string
	details   bool
	dryRun    bool
	archive   bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Aggregate a commission export into Excel reports",
	Long: `The process command reads one commission export, groups orders by Sub_id2
(and Sub_id4 for detail workbooks), and writes TONG_HOA_HONG_ALL_SUPID2.xlsx to
the output directory.

Rows whose commission cannot be parsed abort the run unless
invalid_money_policy is set to "skip", in which case they are listed in
skipped_rows.txt next to the report.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("details") {
			mainConfig.WriteDetails = details
		}
		if cmd.Flags().Changed("archive") {
			mainConfig.ArchiveInputs = archive
		}
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the export to process (.csv or .xlsx)")
	processCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the generated workbooks (default: output_dir)")
	processCmd.Flags().BoolVar(&details, "details", false, "Also write one workbook per Sub_id2")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Aggregate without writing any file")
	processCmd.Flags().BoolVar(&archive, "archive", false, "Move the input to the archive directory after success")
	processCmd.MarkFlagRequired("file")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	files := newFileManager()
	input := files.ResolveInput(filePath)
	if !utils.FileExists(input) {
		return fmt.Errorf("input file not found: %s", filePath)
	}

	dir := outputDir
	if dir == "" {
		dir = mainConfig.OutputDir
	}

	p := pipeline.New(mainConfig, files, logger)
	result := p.Run(pipeline.Options{
		InputPath:    input,
		OutputDir:    dir,
		WriteDetails: mainConfig.WriteDetails,
		DryRun:       dryRun,
		Archive:      mainConfig.ArchiveInputs,
	})

	formatter := money.Formatter{Symbol: mainConfig.CurrencySymbol}

	if !dryRun {
		summary := utils.RunSummary{
			RunID:       result.RunID,
			StartTime:   startTime,
			EndTime:     time.Now(),
			InputFile:   input,
			SummaryFile: result.SummaryPath,
			DetailFiles: len(result.DetailPaths),
			ArchivePath: result.ArchivePath,
			RowsRead:    result.Stats.RowsRead,
			Aggregated:  result.Stats.RowsAggregated,
			Skipped:     len(result.Stats.Skipped),
			Groups:      result.Stats.Groups,
			Orders:      result.Grand.Orders,
			GrandTotal:  formatter.Format(result.Grand.Total),
		}
		if result.Error != nil {
			summary.Error = result.Error.Error()
		}
		if err := os.MkdirAll(dir, 0755); err == nil {
			if path, err := utils.WriteSummaryLog(summary, dir); err != nil {
				logger.Warn("failed to write run summary", "error", err)
			} else {
				logger.Debug("wrote run summary", "path", path)
			}
		}
	}

	if !result.Success {
		return result.Error
	}

	fmt.Fprintln(out, "=== Commission Report ===")
	for _, row := range result.Rows {
		fmt.Fprintf(out, "  %-30s %6d  %s\n", row.Key, row.Orders, formatter.Format(row.Total))
	}
	fmt.Fprintf(out, "  %-30s %6d  %s\n", mainConfig.Labels.GrandTotal, result.Grand.Orders, formatter.Format(result.Grand.Total))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows read:       %d\n", result.Stats.RowsRead)
	fmt.Fprintf(out, "Rows skipped:    %d\n", len(result.Stats.Skipped))
	fmt.Fprintf(out, "Time elapsed:    %s\n", result.Stats.ProcessingTime)

	if dryRun {
		fmt.Fprintln(out, "Dry run: no files written.")
		return nil
	}

	fmt.Fprintf(out, "Summary:         %s\n", result.SummaryPath)
	if len(result.DetailPaths) > 0 {
		fmt.Fprintf(out, "Details:         %d file(s) in %s\n", len(result.DetailPaths), filepath.Join(dir, pipeline.DetailsDir))
	}
	if result.IssueLogPath != "" {
		fmt.Fprintf(out, "Skipped rows:    %s\n", result.IssueLogPath)
	}
	if result.ArchivePath != "" {
		fmt.Fprintf(out, "Archived input:  %s\n", result.ArchivePath)
	}

	return nil
}
