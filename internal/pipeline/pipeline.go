// =============================================================================
// Commission Report - Processing Pipeline
// =============================================================================
//
// This module runs one processing pass for a single input file. Both the
// batch command and the HTTP server go through Run.
//
// PIPELINE:
//   1. Open the input as a record source (.csv or .xlsx)
//   2. Aggregate every record by primary and secondary key
//   3. Write the summary workbook
//   4. Optionally write one detail workbook per primary key
//   5. Write the skipped-row log, if rows were skipped
//   6. Optionally archive the input
//
// Every run builds its own Aggregate; nothing is shared between runs, so
// concurrent runs are safe as long as their output directories differ.
//
// =============================================================================

package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/commission-report/internal/aggregate"
	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/csvparser"
	"github.com/ginjaninja78/commission-report/internal/logging"
	"github.com/ginjaninja78/commission-report/internal/money"
	"github.com/ginjaninja78/commission-report/internal/report"
	"github.com/ginjaninja78/commission-report/internal/types"
	"github.com/ginjaninja78/commission-report/internal/validation"
	"github.com/ginjaninja78/commission-report/internal/xlsxparser"
	"github.com/ginjaninja78/commission-report/pkg/utils"
)

// ErrUnsupportedFormat is returned for inputs that are neither .csv nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// DetailsDir is the subdirectory of the output directory holding detail
// workbooks.
const DetailsDir = "details"

// IssueLogName is the skipped-row log written next to the summary.
const IssueLogName = "skipped_rows.txt"

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// RunID identifies the run in logs and the run summary.
	RunID string

	// FilePath is the path to the input file that was processed.
	FilePath string

	// SummaryPath is the generated summary workbook. Empty on failure and in
	// dry-run mode.
	SummaryPath string

	// DetailPaths lists the generated detail workbooks.
	DetailPaths []string

	// IssueLogPath is the skipped-row log, when rows were skipped.
	IssueLogPath string

	// ArchivePath is where the input was moved, when archiving is enabled.
	ArchivePath string

	// Rows are the summary rows, largest total first.
	Rows []report.RowSummary

	// Grand is the grand total over Rows.
	Grand report.RowSummary

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsRead is the number of data rows read from the input.
	RowsRead int

	// RowsAggregated is the number of rows added to the aggregate.
	RowsAggregated int

	// Skipped lists rows dropped for an invalid commission value.
	Skipped []validation.RowIssue

	// Groups is the number of distinct primary keys.
	Groups int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// Options controls a single run.
type Options struct {
	// InputPath is the file to process.
	InputPath string

	// OutputDir receives the workbooks. Defaults to the configured OutputDir.
	OutputDir string

	// WriteDetails emits one workbook per primary key.
	WriteDetails bool

	// DryRun aggregates without writing any file.
	DryRun bool

	// Archive moves the input to the archive directory after success.
	Archive bool

	// RunID overrides the generated run id (the server passes its job id).
	RunID string
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline processes commission exports into reports.
type Pipeline struct {
	config  *config.MainConfig
	builder *report.Builder
	files   *utils.FileManager
	logger  logging.Logger
}

// New creates a Pipeline. A nil logger discards output.
func New(cfg *config.MainConfig, files *utils.FileManager, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		config:  cfg,
		builder: report.NewBuilder(cfg),
		files:   files,
		logger:  logger,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for one file.
//
// RETURNS:
//   - A Result describing the outcome. Result.Error is set when Success is
//     false; IsInvalidInput tells data problems apart from I/O failures.
func (p *Pipeline) Run(opts Options) Result {
	startTime := time.Now()

	runID := opts.RunID
	if runID == "" {
		runID = utils.NewJobID()
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = p.config.OutputDir
	}

	result := Result{RunID: runID, FilePath: opts.InputPath}
	logger := p.logger

	fail := func(err error) Result {
		result.Error = err
		result.Stats.ProcessingTime = time.Since(startTime)
		logger.Error("processing failed", "run", runID, "file", opts.InputPath, "error", err)
		return result
	}

	logger.Info("processing file", "run", runID, "file", opts.InputPath, "dry_run", opts.DryRun)

	// =========================================================================
	// STEP 1: OPEN INPUT
	// =========================================================================

	src, err := OpenSource(opts.InputPath, p.config)
	if err != nil {
		return fail(err)
	}

	// =========================================================================
	// STEP 2: AGGREGATE
	// =========================================================================

	agg, stats, err := aggregate.Ingest(src, aggregate.OptionsFromConfig(p.config, logger))
	// Closed before archiving moves the file.
	src.Close()
	result.Stats.RowsRead = stats.RowsRead
	result.Stats.RowsAggregated = stats.RowsAggregated
	result.Stats.Skipped = stats.Skipped
	if err != nil {
		return fail(fmt.Errorf("failed to aggregate: %w", err))
	}

	result.Stats.Groups = agg.Len()
	result.Rows = report.Summaries(agg)
	result.Grand = report.GrandTotal(result.Rows)
	logger.Debug("aggregated rows", "rows", stats.RowsRead, "groups", agg.Len(), "skipped", len(stats.Skipped))

	if opts.DryRun {
		result.Success = true
		result.Stats.ProcessingTime = time.Since(startTime)
		return result
	}

	// =========================================================================
	// STEP 3: WRITE SUMMARY
	// =========================================================================

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}

	summaryPath := filepath.Join(outputDir, p.config.Labels.SummaryFile)
	if _, err := p.builder.WriteSummary(agg, summaryPath); err != nil {
		return fail(fmt.Errorf("failed to write summary: %w", err))
	}
	result.SummaryPath = summaryPath
	logger.Info("wrote summary", "path", summaryPath, "groups", len(result.Rows))

	// =========================================================================
	// STEP 4: WRITE DETAILS
	// =========================================================================

	if opts.WriteDetails {
		dir := filepath.Join(outputDir, DetailsDir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fail(fmt.Errorf("failed to create details directory: %w", err))
		}
		paths, err := p.builder.WriteDetails(agg, dir)
		result.DetailPaths = paths
		if err != nil {
			return fail(err)
		}
		logger.Info("wrote details", "dir", dir, "files", len(paths))
	}

	// =========================================================================
	// STEP 5: SKIPPED-ROW LOG
	// =========================================================================

	if len(stats.Skipped) > 0 {
		issuePath := filepath.Join(outputDir, IssueLogName)
		if err := validation.WriteIssueLog(stats.Skipped, issuePath); err != nil {
			// The report itself is complete; the log is informational.
			logger.Warn("failed to write skipped-row log", "error", err)
		} else {
			result.IssueLogPath = issuePath
		}
	}

	// =========================================================================
	// STEP 6: ARCHIVE INPUT
	// =========================================================================

	if opts.Archive && p.files != nil {
		archived, err := p.files.ArchiveInputFile(opts.InputPath)
		if err != nil {
			logger.Warn("failed to archive input", "file", opts.InputPath, "error", err)
		} else {
			result.ArchivePath = archived
		}
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)

	return result
}

// =============================================================================
// INPUT SOURCES
// =============================================================================

// Source is a record source over an open file.
type Source interface {
	types.RecordSource
	Close() error
}

// OpenSource opens path with the parser matching its extension. Files without
// a recognised extension are read as CSV.
func OpenSource(path string, cfg *config.MainConfig) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		parser, err := xlsxparser.Open(path, cfg.Columns)
		if err != nil {
			return nil, err
		}
		return parser, nil
	case ".xls":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	default:
		parser, err := csvparser.Open(path, csvparser.SettingsFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		return parser, nil
	}
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// IsInvalidInput reports whether err was caused by the content of the input
// rather than by the environment.
func IsInvalidInput(err error) bool {
	var parseErr *csv.ParseError
	switch {
	case errors.Is(err, money.ErrInvalidMoneyFormat),
		errors.Is(err, validation.ErrMissingColumn),
		errors.Is(err, csvparser.ErrEmptyFile),
		errors.Is(err, xlsxparser.ErrEmptySheet),
		errors.Is(err, xlsxparser.ErrNoSheets),
		errors.Is(err, xlsxparser.ErrInvalidWorkbook),
		errors.Is(err, ErrUnsupportedFormat),
		errors.As(err, &parseErr):
		return true
	}
	return false
}
