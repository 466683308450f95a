// =============================================================================
// Commission Report - Aggregation Module
// =============================================================================
//
// This module groups commission records by a two-level key
// (primary -> secondary) and keeps a running order count and exact decimal
// total for every pair.
//
// An Aggregate is created per processing run and returned to the caller; no
// state is shared between runs.
//
// INVALID MONEY VALUES:
//   config.PolicyAbort - Ingest stops and returns the row's error
//   config.PolicySkip  - the row is dropped, logged and listed in Stats.Skipped
//
// =============================================================================

package aggregate

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/logging"
	"github.com/ginjaninja78/commission-report/internal/money"
	"github.com/ginjaninja78/commission-report/internal/types"
	"github.com/ginjaninja78/commission-report/internal/validation"
	"github.com/shopspring/decimal"
)

// =============================================================================
// STAT
// =============================================================================

// Stat is the running aggregate for one key pair.
type Stat struct {
	Count int
	Total decimal.Decimal
}

// Add records one order worth amount.
func (s *Stat) Add(amount decimal.Decimal) {
	s.Count++
	s.Total = s.Total.Add(amount)
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate maps primary key -> secondary key -> Stat.
type Aggregate struct {
	groups map[string]map[string]*Stat
}

// New returns an empty Aggregate.
func New() *Aggregate {
	return &Aggregate{groups: make(map[string]map[string]*Stat)}
}

// Add accumulates amount under key, creating the Stat on first use.
func (a *Aggregate) Add(key KeyPair, amount decimal.Decimal) {
	inner, ok := a.groups[key.Primary]
	if !ok {
		inner = make(map[string]*Stat)
		a.groups[key.Primary] = inner
	}
	stat, ok := inner[key.Secondary]
	if !ok {
		stat = &Stat{Total: decimal.Zero}
		inner[key.Secondary] = stat
	}
	stat.Add(amount)
}

// Primaries returns the primary keys in ascending order.
func (a *Aggregate) Primaries() []string {
	keys := make([]string, 0, len(a.groups))
	for k := range a.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Secondaries returns a copy of the stats under primary.
func (a *Aggregate) Secondaries(primary string) map[string]Stat {
	inner := a.groups[primary]
	out := make(map[string]Stat, len(inner))
	for k, s := range inner {
		out[k] = *s
	}
	return out
}

// Group sums every Stat under primary.
func (a *Aggregate) Group(primary string) Stat {
	total := Stat{Total: decimal.Zero}
	for _, s := range a.groups[primary] {
		total.Count += s.Count
		total.Total = total.Total.Add(s.Total)
	}
	return total
}

// Lookup returns the Stat for key.
func (a *Aggregate) Lookup(key KeyPair) (Stat, bool) {
	s, ok := a.groups[key.Primary][key.Secondary]
	if !ok {
		return Stat{}, false
	}
	return *s, true
}

// Len returns the number of primary keys.
func (a *Aggregate) Len() int {
	return len(a.groups)
}

// =============================================================================
// INGEST
// =============================================================================

// Options controls Ingest.
type Options struct {
	// FallbackLiteral is passed to the KeyNormalizer.
	FallbackLiteral string

	// MoneyPolicy is config.PolicyAbort (default) or config.PolicySkip.
	MoneyPolicy string

	// Logger receives skipped-row warnings. Nil discards them.
	Logger logging.Logger
}

// OptionsFromConfig builds Options from the main configuration.
func OptionsFromConfig(cfg *config.MainConfig, logger logging.Logger) Options {
	return Options{
		FallbackLiteral: cfg.Fallback(),
		MoneyPolicy:     cfg.InvalidMoneyPolicy,
		Logger:          logger,
	}
}

// Stats describes one Ingest pass.
type Stats struct {
	// RowsRead counts every record taken from the source.
	RowsRead int

	// RowsAggregated counts records added to the Aggregate.
	RowsAggregated int

	// Skipped lists rows dropped under config.PolicySkip.
	Skipped []validation.RowIssue
}

// Ingest reads every record from src into a new Aggregate.
//
// RETURNS:
//   - The Aggregate (empty, never nil, for a source without rows).
//   - Stats for the pass.
//   - The source's error, or an error wrapping money.ErrInvalidMoneyFormat
//     under config.PolicyAbort.
func Ingest(src types.RecordSource, opts Options) (*Aggregate, Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	normalizer := KeyNormalizer{FallbackLiteral: opts.FallbackLiteral}

	agg := New()
	var stats Stats

	for src.Next() {
		rec := src.Record()
		stats.RowsRead++

		amount, err := money.Parse(rec.Commission)
		if err != nil {
			if opts.MoneyPolicy != config.PolicySkip {
				return nil, stats, fmt.Errorf("row %d: %w", rec.RowNumber, err)
			}
			issue := validation.RowIssue{RowNumber: rec.RowNumber, Value: rec.Commission, Reason: money.ErrInvalidMoneyFormat.Error()}
			stats.Skipped = append(stats.Skipped, issue)
			logger.Warn("skipping row with invalid commission", "row", rec.RowNumber, "value", rec.Commission)
			continue
		}

		agg.Add(normalizer.Keys(rec), amount)
		stats.RowsAggregated++
	}

	if err := src.Err(); err != nil {
		return nil, stats, err
	}

	return agg, stats, nil
}
