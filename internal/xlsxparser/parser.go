// =============================================================================
// Commission Report - XLSX Parser Module
// =============================================================================
//
// Some affiliate dashboards export the same commission table as an .xlsx
// workbook instead of CSV. This module reads the first sheet of such a
// workbook with the same rules as the CSV parser:
//
//   - Row 1 is the header; columns are addressed by name (case-insensitive)
//   - Values are trimmed, empty rows are skipped
//   - Missing required columns fail with validation.ErrMissingColumn
//
// Cells are read as their formatted text, so a commission cell displayed as
// "10,000đ" arrives exactly like its CSV counterpart.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/types"
	"github.com/ginjaninja78/commission-report/internal/validation"
	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for a workbook without worksheets.
var ErrNoSheets = errors.New("workbook has no sheets")

// ErrEmptySheet is returned when the first sheet has no header row.
var ErrEmptySheet = errors.New("sheet is empty")

// ErrInvalidWorkbook is returned when the file exists but is not a readable
// workbook.
var ErrInvalidWorkbook = errors.New("invalid workbook")

// =============================================================================
// PARSER STRUCTURE
// =============================================================================

// Parser streams commission records from the first sheet of a workbook.
// It implements types.RecordSource.
type Parser struct {
	file      *excelize.File
	rows      *excelize.Rows
	sheetName string
	index     validation.ColumnIndex
	current   types.Record
	rowNumber int
	err       error
}

// Open opens the workbook at filePath.
//
// PARAMETERS:
//   - filePath: The path to the .xlsx file.
//   - columns: The configured column names.
//
// RETURNS:
//   - The parser; the caller must Close it.
//   - An error if the workbook cannot be opened or the header is unusable.
func Open(filePath string, columns config.Columns) (*Parser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	return OpenReader(file, columns)
}

// OpenReader reads a whole workbook from r. Failures to decode it wrap
// ErrInvalidWorkbook.
func OpenReader(r io.Reader, columns config.Columns) (*Parser, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	return newParser(f, columns)
}

func newParser(f *excelize.File, columns config.Columns) (*Parser, error) {
	// Use the first sheet; commission exports carry a single table.
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		f.Close()
		return nil, ErrNoSheets
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	p := &Parser{file: f, rows: rows, sheetName: sheetName}
	if err := p.readHeaders(columns); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// readHeaders consumes the header row and resolves the required columns.
func (p *Parser) readHeaders(columns config.Columns) error {
	if !p.rows.Next() {
		if err := p.rows.Error(); err != nil {
			return fmt.Errorf("error reading header row: %w", err)
		}
		return ErrEmptySheet
	}
	p.rowNumber++

	header, err := p.rows.Columns()
	if err != nil {
		return fmt.Errorf("error reading header row: %w", err)
	}

	index, err := validation.ResolveColumns(header, columns)
	if err != nil {
		return err
	}
	p.index = index

	return nil
}

// =============================================================================
// ITERATION
// =============================================================================

// Next advances to the next non-empty row.
func (p *Parser) Next() bool {
	for p.err == nil && p.rows.Next() {
		p.rowNumber++

		row, err := p.rows.Columns()
		if err != nil {
			p.err = fmt.Errorf("error reading row %d: %w", p.rowNumber, err)
			return false
		}
		if isRowEmpty(row) {
			continue
		}

		p.current = types.Record{
			SubID1:     validation.Cell(row, p.index.SubID1),
			SubID2:     validation.Cell(row, p.index.SubID2),
			SubID3:     validation.Cell(row, p.index.SubID3),
			SubID4:     validation.Cell(row, p.index.SubID4),
			Commission: validation.Cell(row, p.index.Commission),
			RowNumber:  p.rowNumber,
		}
		return true
	}

	if p.err == nil {
		if err := p.rows.Error(); err != nil {
			p.err = fmt.Errorf("error reading sheet %s: %w", p.sheetName, err)
		}
	}
	return false
}

// Record returns the current record.
func (p *Parser) Record() types.Record {
	return p.current
}

// Err returns any error that occurred during iteration.
func (p *Parser) Err() error {
	return p.err
}

// Close releases the row iterator and the workbook.
func (p *Parser) Close() error {
	if p.rows != nil {
		p.rows.Close()
	}
	return p.file.Close()
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
