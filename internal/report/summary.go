package report

import (
	"sort"

	"github.com/ginjaninja78/commission-report/internal/aggregate"
	"github.com/shopspring/decimal"
)

// RowSummary is one rendered line: a key with its order count and total.
type RowSummary struct {
	Key    string
	Orders int
	Total  decimal.Decimal
}

// Summaries returns one row per primary key, largest total first.
func Summaries(agg *aggregate.Aggregate) []RowSummary {
	primaries := agg.Primaries()
	rows := make([]RowSummary, 0, len(primaries))
	for _, primary := range primaries {
		g := agg.Group(primary)
		rows = append(rows, RowSummary{Key: primary, Orders: g.Count, Total: g.Total})
	}
	sortRows(rows)
	return rows
}

// Details returns one row per secondary key under primary, largest total first.
func Details(agg *aggregate.Aggregate, primary string) []RowSummary {
	secondaries := agg.Secondaries(primary)
	rows := make([]RowSummary, 0, len(secondaries))
	for key, stat := range secondaries {
		rows = append(rows, RowSummary{Key: key, Orders: stat.Count, Total: stat.Total})
	}
	sortRows(rows)
	return rows
}

// GrandTotal sums rows. The returned Key is empty.
func GrandTotal(rows []RowSummary) RowSummary {
	total := RowSummary{Total: decimal.Zero}
	for _, r := range rows {
		total.Orders += r.Orders
		total.Total = total.Total.Add(r.Total)
	}
	return total
}

// sortRows orders by total descending, then key ascending.
func sortRows(rows []RowSummary) {
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].Key < rows[j].Key
	})
}
