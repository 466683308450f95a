package aggregate

import (
	"strings"

	"github.com/ginjaninja78/commission-report/internal/types"
)

// Unknown replaces blank identifiers.
const Unknown = "UNKNOWN"

// DefaultFallbackLiteral is the literal checked by the primary key fallback.
//
// The check is "literal contains the Sub_id2 value", not the reverse, so it
// fires for values such as "Tran", "Duong" or "TranChauDuongDen" itself. This
// matches the behaviour downstream consumers were built against; configure
// a different literal (or "" to disable) rather than changing the predicate.
const DefaultFallbackLiteral = "TranChauDuongDen"

// KeyPair is the two-level grouping key of a record. Both parts are
// lowercased.
type KeyPair struct {
	Primary   string
	Secondary string
}

// KeyNormalizer derives KeyPairs from records.
type KeyNormalizer struct {
	// FallbackLiteral enables the Sub_id1/Sub_id3 fallback. Empty disables it.
	FallbackLiteral string
}

// Keys computes the grouping key for rec:
//
//  1. primary = Sub_id2, secondary = Sub_id4
//  2. when FallbackLiteral contains primary: primary = Sub_id1, secondary = Sub_id3
//
// Blank values become UNKNOWN before the fallback check; both keys are
// lowercased afterwards.
func (n KeyNormalizer) Keys(rec types.Record) KeyPair {
	primary := normalize(rec.SubID2)
	secondary := normalize(rec.SubID4)

	if n.FallbackLiteral != "" && strings.Contains(n.FallbackLiteral, primary) {
		primary = normalize(rec.SubID1)
		secondary = normalize(rec.SubID3)
	}

	return KeyPair{
		Primary:   strings.ToLower(primary),
		Secondary: strings.ToLower(secondary),
	}
}

// normalize trims v and substitutes Unknown for blanks.
func normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Unknown
	}
	return v
}
