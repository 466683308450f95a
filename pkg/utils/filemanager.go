// =============================================================================
// Commission Report - File Manager Utility
// =============================================================================
//
// This module provides file management utilities, including:
//   - Directory management
//   - Per-job upload and output directories for the HTTP server
//   - Input archival after a successful batch run
//   - Retention cleanup of old job directories
//   - Run summary log generation
//
// JOB LAYOUT:
//   uploads/<job-id>/input.csv
//   outputs/<job-id>/TONG_HOA_HONG_ALL_SUPID2.xlsx
//
// Job ids are random UUIDs, so concurrent uploads never share a path.
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidJobID is returned for a job id that is not a UUID.
var ErrInvalidJobID = errors.New("invalid job id")

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the batch command and the server.
type FileManager struct {
	// InputDir is where relative batch inputs are resolved.
	InputDir string

	// OutputDir receives reports. Server jobs use a subdirectory per job.
	OutputDir string

	// UploadDir receives uploaded files, one subdirectory per job.
	UploadDir string

	// InputArchiveDir receives inputs after a successful batch run.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/file.csv
	UseTimestampSubdirs bool

	// now is replaced in tests.
	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, uploadDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		UploadDir:       uploadDir,
		InputArchiveDir: inputArchiveDir,
		now:             time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and upload directories if they don't
// exist. The archive directory is created on first use.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.UploadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ResolveInput returns path unchanged when it exists, otherwise tries it
// relative to InputDir.
func (fm *FileManager) ResolveInput(path string) string {
	if filepath.IsAbs(path) || FileExists(path) || fm.InputDir == "" {
		return path
	}
	candidate := filepath.Join(fm.InputDir, path)
	if FileExists(candidate) {
		return candidate
	}
	return path
}

// =============================================================================
// JOBS
// =============================================================================

// NewJobID returns a fresh job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// ParseJobID validates a client-supplied job id and returns its canonical form.
func ParseJobID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	return parsed.String(), nil
}

// JobUploadDir is the upload directory of a job.
func (fm *FileManager) JobUploadDir(jobID string) string {
	return filepath.Join(fm.UploadDir, jobID)
}

// JobOutputDir is the output directory of a job.
func (fm *FileManager) JobOutputDir(jobID string) string {
	return filepath.Join(fm.OutputDir, jobID)
}

// SaveUpload stores r as the job's input file. The extension of name is kept
// when it is .csv or .xlsx; anything else is stored as .csv.
//
// RETURNS:
//   - The stored path and the number of bytes written.
func (fm *FileManager) SaveUpload(jobID, name string, r io.Reader) (string, int64, error) {
	dir := fm.JobUploadDir(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".xlsx" {
		ext = ".csv"
	}
	path := filepath.Join(dir, "input"+ext)

	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to save upload: %w", err)
	}

	return path, n, file.Close()
}

// CleanOldJobs removes job directories under UploadDir and OutputDir whose
// modification time is older than maxAge. Only directories named by a job id
// are considered. A zero maxAge disables cleanup.
//
// RETURNS:
//   - The number of directories removed.
func (fm *FileManager) CleanOldJobs(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := fm.now().Add(-maxAge)

	removed := 0
	for _, root := range []string{fm.UploadDir, fm.OutputDir} {
		entries, err := os.ReadDir(root)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", root, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if _, err := uuid.Parse(entry.Name()); err != nil {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
				return removed, fmt.Errorf("failed to remove job %s: %w", entry.Name(), err)
			}
			removed++
		}
	}

	return removed, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// If rename fails (e.g., cross-device), try copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// getArchivePath constructs the archive path for a file.
func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.now()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary contains summary information about one processing run.
type RunSummary struct {
	RunID       string
	StartTime   time.Time
	EndTime     time.Time
	InputFile   string
	SummaryFile string
	DetailFiles int
	ArchivePath string
	RowsRead    int
	Aggregated  int
	Skipped     int
	Groups      int
	Orders      int
	GrandTotal  string
	Error       string
}

// WriteSummaryLog writes a run summary to run_<id>.log in outputDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary RunSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("run_%s.log", summary.RunID))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	status := "SUCCESS"
	if summary.Error != "" {
		status = "FAILED"
	}

	fmt.Fprintf(writer, "Commission Report - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Status:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Input:          %s\n\n",
		summary.RunID,
		status,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.InputFile)

	fmt.Fprintf(writer, "Statistics:\n"+
		"  Rows Read:       %d\n"+
		"  Rows Aggregated: %d\n"+
		"  Rows Skipped:    %d\n"+
		"  Groups:          %d\n"+
		"  Orders:          %d\n"+
		"  Grand Total:     %s\n\n",
		summary.RowsRead,
		summary.Aggregated,
		summary.Skipped,
		summary.Groups,
		summary.Orders,
		summary.GrandTotal)

	if summary.SummaryFile != "" {
		fmt.Fprintf(writer, "Output:\n  Summary:        %s\n  Detail Files:   %d\n", summary.SummaryFile, summary.DetailFiles)
		if summary.ArchivePath != "" {
			fmt.Fprintf(writer, "  Archived Input: %s\n", summary.ArchivePath)
		}
		writer.WriteString("\n")
	}

	if summary.Error != "" {
		fmt.Fprintf(writer, "Error:\n  %s\n\n", summary.Error)
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
