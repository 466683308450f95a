// =============================================================================
// Commission Report - Money Module
// =============================================================================
//
// This module converts locale-formatted currency strings such as "10,000đ"
// into exact decimal values and renders decimals back for display
// ("1,234,567 ₫").
//
// All arithmetic uses github.com/shopspring/decimal. Totals must reconcile
// exactly across repeated additions, so float64 never appears here.
//
// =============================================================================

package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

// DefaultSymbol is the trailing currency glyph used by Format.
const DefaultSymbol = "₫"

// ErrInvalidMoneyFormat is returned when a commission value is not a decimal
// numeral once glyphs and separators are removed.
var ErrInvalidMoneyFormat = errors.New("invalid money format")

// strippedGlyphs are removed from raw values before parsing.
// Exports use both the Latin "đ" and the dong sign "₫".
var strippedGlyphs = []string{"đ", "₫", ","}

// =============================================================================
// PARSING
// =============================================================================

// Parse converts a raw commission string into an exact decimal.
//
// PARAMETERS:
//   - raw: The value from the export, e.g. "10,000đ", " 5,000 ₫", "".
//
// RETURNS:
//   - decimal.Zero for a blank value.
//   - An error wrapping ErrInvalidMoneyFormat if the cleaned text is not a
//     decimal numeral.
func Parse(raw string) (decimal.Decimal, error) {
	cleaned := raw
	for _, glyph := range strippedGlyphs {
		cleaned = strings.ReplaceAll(cleaned, glyph, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return decimal.Zero, nil
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMoneyFormat, raw)
	}

	return value, nil
}

// =============================================================================
// FORMATTING
// =============================================================================

// Formatter renders decimals with thousands separators, no fraction digits
// and a trailing currency glyph.
type Formatter struct {
	// Symbol is appended after a single space. Defaults to DefaultSymbol.
	Symbol string
}

// Format renders value using the default formatter, e.g. "1,234,567 ₫".
func Format(value decimal.Decimal) string {
	return Formatter{}.Format(value)
}

// Format renders value rounded half away from zero to whole units.
func (f Formatter) Format(value decimal.Decimal) string {
	symbol := f.Symbol
	if symbol == "" {
		symbol = DefaultSymbol
	}

	digits := value.Round(0).String()

	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign = "-"
		digits = digits[1:]
	}

	return sign + groupThousands(digits) + " " + symbol
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var builder strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		builder.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if builder.Len() > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(digits[i : i+3])
	}

	return builder.String()
}
