// =============================================================================
// Commission Report - CSV Parser Module
// =============================================================================
//
// This module reads commission exports in CSV form. The first row is the
// header; fields are addressed by header name, never by position, so the
// export may add, drop or reorder unrelated columns freely.
//
// FEATURES:
//   - Streaming: rows are decoded one at a time (StreamingParser)
//   - Case-insensitive, NFC-normalized header matching (validation package)
//   - Optional transcoding from ISO-8859-1 / Windows-1252 to UTF-8
//   - Trimmed field values, empty rows skipped
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/types"
	"github.com/ginjaninja78/commission-report/internal/validation"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrEmptyFile is returned when the input has no header row.
var ErrEmptyFile = errors.New("file is empty")

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how a CSV export is read.
type Settings struct {
	// Encoding is "UTF-8" (default), "ISO-8859-1" or "Windows-1252".
	Encoding string

	// Columns names the required columns.
	Columns config.Columns
}

// SettingsFromConfig builds parser settings from the main configuration.
func SettingsFromConfig(cfg *config.MainConfig) Settings {
	return Settings{Encoding: cfg.Encoding, Columns: cfg.Columns}
}

// decoderFor returns the decoder for a named encoding, or nil for UTF-8.
func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return nil, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser reads commission records one row at a time.
// It implements types.RecordSource.
//
// USAGE:
//   parser, err := Open(filePath, settings)
//   if err != nil {
//       return err
//   }
//   defer parser.Close()
//
//   for parser.Next() {
//       rec := parser.Record()
//       // Process the record...
//   }
//
//   if err := parser.Err(); err != nil {
//       return err
//   }
type StreamingParser struct {
	closer    io.Closer
	reader    *csv.Reader
	index     validation.ColumnIndex
	current   types.Record
	rowNumber int
	err       error
}

// Open opens filePath and prepares a StreamingParser over it.
//
// RETURNS:
//   - The parser; the caller must Close it.
//   - An error if the file cannot be opened, the header row is missing, or a
//     required column is absent (wraps validation.ErrMissingColumn).
func Open(filePath string, settings Settings) (*StreamingParser, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	parser, err := NewStreamingParser(file, settings)
	if err != nil {
		file.Close()
		return nil, err
	}
	parser.closer = file

	return parser, nil
}

// NewStreamingParser creates a parser over an arbitrary reader. The reader is
// not closed by the parser.
func NewStreamingParser(r io.Reader, settings Settings) (*StreamingParser, error) {
	decoder, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	var source io.Reader = bufio.NewReader(r)
	if decoder != nil {
		source = transform.NewReader(source, decoder)
	}

	reader := csv.NewReader(source)
	configureReader(reader)

	parser := &StreamingParser{reader: reader}

	if err := parser.readHeaders(settings.Columns); err != nil {
		return nil, err
	}

	return parser, nil
}

// configureReader applies the reader options used for commission exports.
func configureReader(reader *csv.Reader) {
	// Allow variable number of fields per row.
	reader.FieldsPerRecord = -1

	// Exports occasionally contain stray quotes inside product names.
	reader.LazyQuotes = true

	reader.TrimLeadingSpace = true
}

// readHeaders reads the header row and resolves the required columns.
func (p *StreamingParser) readHeaders(columns config.Columns) error {
	row, err := p.reader.Read()
	if err == io.EOF {
		return ErrEmptyFile
	}
	if err != nil {
		return fmt.Errorf("error reading header row: %w", err)
	}
	p.rowNumber++

	index, err := validation.ResolveColumns(row, columns)
	if err != nil {
		return err
	}

	p.index = index
	return nil
}

// Next advances to the next non-empty row. Returns false when there are no
// more rows or an error occurred.
func (p *StreamingParser) Next() bool {
	for p.err == nil {
		row, err := p.reader.Read()
		if err == io.EOF {
			return false
		}
		if err != nil {
			p.err = fmt.Errorf("error reading row %d: %w", p.rowNumber+1, err)
			return false
		}
		p.rowNumber++

		if isRowEmpty(row) {
			continue
		}

		// Report the physical line, since blank lines are not returned.
		line, _ := p.reader.FieldPos(0)

		p.current = types.Record{
			SubID1:     validation.Cell(row, p.index.SubID1),
			SubID2:     validation.Cell(row, p.index.SubID2),
			SubID3:     validation.Cell(row, p.index.SubID3),
			SubID4:     validation.Cell(row, p.index.SubID4),
			Commission: validation.Cell(row, p.index.Commission),
			RowNumber:  line,
		}
		return true
	}
	return false
}

// Record returns the current record.
func (p *StreamingParser) Record() types.Record {
	return p.current
}

// Err returns any error that occurred during parsing.
func (p *StreamingParser) Err() error {
	return p.err
}

// Close closes the underlying file when the parser was created by Open.
func (p *StreamingParser) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// ReadAll parses the whole file into memory. Intended for small files and tests.
func ReadAll(filePath string, settings Settings) ([]types.Record, error) {
	parser, err := Open(filePath, settings)
	if err != nil {
		return nil, err
	}
	defer parser.Close()

	var records []types.Record
	for parser.Next() {
		records = append(records, parser.Record())
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}

	return records, nil
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
