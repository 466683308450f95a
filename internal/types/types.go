// =============================================================================
// Commission Report - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - csvparser
//   - xlsxparser
//   - aggregate
//   - pipeline
//
// =============================================================================

package types

// =============================================================================
// RECORD TYPES
// =============================================================================

// Record represents a single data row of the commission export.
// Records are read once by a RecordSource and never persisted.
type Record struct {
	// SubID1 through SubID4 are the free-text tracking identifiers.
	// Values are already trimmed by the parser and may be empty.
	SubID1 string
	SubID2 string
	SubID3 string
	SubID4 string

	// Commission is the raw, locale-formatted commission value
	// (for example "10,000đ"). It is parsed by the money package.
	Commission string

	// RowNumber is the 1-indexed row number in the source file,
	// counting the header row. Useful for error reporting.
	RowNumber int
}

// RecordSource yields records one at a time.
//
// USAGE:
//   for src.Next() {
//       rec := src.Record()
//       // Process the record...
//   }
//   if err := src.Err(); err != nil {
//       return err
//   }
type RecordSource interface {
	Next() bool
	Record() Record
	Err() error
}
