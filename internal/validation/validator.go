// =============================================================================
// Commission Report - Validation Module
// =============================================================================
//
// This module performs the two checks the pipeline needs:
//
//   1. Column resolution: every configured column must be present in the
//      header row. Matching is case-insensitive, ignores surrounding space
//      and a UTF-8 byte order mark, and compares Unicode NFC forms so that
//      "Tổng hoa hồng" typed with combining marks still matches.
//   2. Row issues: rows dropped under the "skip" money policy are collected
//      and can be written to an issue log next to the reports.
//
// =============================================================================

package validation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ginjaninja78/commission-report/internal/config"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// =============================================================================
// COLUMN RESOLUTION
// =============================================================================

// ColumnIndex holds the position of each logical field in a data row.
type ColumnIndex struct {
	SubID1     int
	SubID2     int
	SubID3     int
	SubID4     int
	Commission int
}

// NormalizeHeader returns the comparison form of a header cell.
func NormalizeHeader(header string) string {
	header = strings.TrimPrefix(header, "\ufeff")
	header = strings.TrimSpace(header)
	return strings.ToLower(norm.NFC.String(header))
}

// ResolveColumns maps the configured column names onto header positions.
//
// PARAMETERS:
//   - headers: The header row as read from the file.
//   - columns: The configured column names.
//
// RETURNS:
//   - The resolved ColumnIndex.
//   - An error wrapping ErrMissingColumn naming every absent column.
func ResolveColumns(headers []string, columns config.Columns) (ColumnIndex, error) {
	positions := make(map[string]int, len(headers))
	for i, header := range headers {
		key := NormalizeHeader(header)
		// First occurrence wins for duplicated headers.
		if _, exists := positions[key]; !exists {
			positions[key] = i
		}
	}

	var missing []string
	lookup := func(name string) int {
		if i, ok := positions[NormalizeHeader(name)]; ok {
			return i
		}
		missing = append(missing, name)
		return -1
	}

	index := ColumnIndex{
		SubID1:     lookup(columns.SubID1),
		SubID2:     lookup(columns.SubID2),
		SubID3:     lookup(columns.SubID3),
		SubID4:     lookup(columns.SubID4),
		Commission: lookup(columns.Commission),
	}

	if len(missing) > 0 {
		return ColumnIndex{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return index, nil
}

// Cell returns row[i] trimmed, or "" when the row is too short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// =============================================================================
// ROW ISSUES
// =============================================================================

// RowIssue describes a row that was dropped during aggregation.
type RowIssue struct {
	// RowNumber is the 1-indexed row in the source file.
	RowNumber int

	// Value is the offending raw value.
	Value string

	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (i RowIssue) Error() string {
	return fmt.Sprintf("row %d: %s (value %q)", i.RowNumber, i.Reason, i.Value)
}

// FormatIssues formats row issues for display or logging.
func FormatIssues(issues []RowIssue) string {
	if len(issues) == 0 {
		return "No skipped rows."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Skipped %d row(s):\n\n", len(issues)))
	for i, issue := range issues {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, issue.Error()))
	}

	return builder.String()
}

// WriteIssueLog writes row issues to filePath.
func WriteIssueLog(issues []RowIssue, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create issue log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	writer.WriteString(FormatIssues(issues))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write issue log: %w", err)
	}

	return file.Close()
}
