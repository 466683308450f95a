// =============================================================================
// Commission Report - Report Writer Module
// =============================================================================
//
// This module renders an Aggregate into .xlsx workbooks:
//
//   SUMMARY WORKBOOK (one per run):
//     Sup_id2 | Tổng số đơn | Tổng hoa hồng
//     <one row per primary key, largest total first>
//     TỔNG TẤT CẢ | <all orders> | <all commission>
//
//   DETAIL WORKBOOK (one per primary key, optional):
//     Tổng số đơn   | <orders>
//     Tổng hoa hồng | <commission>
//     <blank>
//     Sub_id4 | Số đơn | Hoa hồng
//     <one row per secondary key, largest total first>
//
// Totals are written as formatted text ("15,000 ₫"), the format downstream
// consumers read. Column widths are fitted to the content.
//
// =============================================================================

package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/commission-report/internal/aggregate"
	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/money"
	"github.com/xuri/excelize/v2"
)

// Workbook extension for every generated file.
const Extension = ".xlsx"

// maxSheetNameLength is the Excel limit on worksheet names.
const maxSheetNameLength = 31

// maxColumnWidth caps fitted column widths.
const maxColumnWidth = 80.0

// maxFileNameBytes keeps detail paths under the excelize path length limit.
const maxFileNameBytes = 100

// =============================================================================
// BUILDER
// =============================================================================

// Builder writes summary and detail workbooks.
type Builder struct {
	Labels    config.Labels
	Formatter money.Formatter
}

// NewBuilder returns a Builder using the configured labels and currency symbol.
func NewBuilder(cfg *config.MainConfig) *Builder {
	return &Builder{
		Labels:    cfg.Labels,
		Formatter: money.Formatter{Symbol: cfg.CurrencySymbol},
	}
}

// WriteSummary writes the all-groups summary workbook to path.
//
// RETURNS:
//   - The rows written, grand total excluded.
//   - An error if the workbook cannot be built or saved.
func (b *Builder) WriteSummary(agg *aggregate.Aggregate, path string) ([]RowSummary, error) {
	rows := Summaries(agg)
	grand := GrandTotal(rows)

	sheet := SanitizeSheetName(b.Labels.SummarySheet)
	table := [][]interface{}{{b.Labels.PrimaryKey, b.Labels.TotalOrders, b.Labels.TotalAmount}}
	for _, r := range rows {
		table = append(table, []interface{}{r.Key, r.Orders, b.Formatter.Format(r.Total)})
	}
	table = append(table, []interface{}{b.Labels.GrandTotal, grand.Orders, b.Formatter.Format(grand.Total)})

	boldRows := []int{1, len(table)}
	if err := b.save(path, sheet, table, boldRows); err != nil {
		return nil, err
	}

	return rows, nil
}

// WriteDetail writes the workbook for one primary key to path.
func (b *Builder) WriteDetail(agg *aggregate.Aggregate, primary string, path string) ([]RowSummary, error) {
	rows := Details(agg, primary)
	group := GrandTotal(rows)

	table := [][]interface{}{
		{b.Labels.TotalOrders, group.Orders},
		{b.Labels.TotalAmount, b.Formatter.Format(group.Total)},
		{},
		{b.Labels.SecondaryKey, b.Labels.Orders, b.Labels.Amount},
	}
	for _, r := range rows {
		table = append(table, []interface{}{r.Key, r.Orders, b.Formatter.Format(r.Total)})
	}

	if err := b.save(path, SanitizeSheetName(primary), table, []int{1, 2, 4}); err != nil {
		return nil, err
	}

	return rows, nil
}

// WriteDetails writes one detail workbook per primary key into dir.
//
// RETURNS:
//   - The paths written, in primary key order.
func (b *Builder) WriteDetails(agg *aggregate.Aggregate, dir string) ([]string, error) {
	var paths []string
	taken := make(map[string]bool)

	for _, primary := range agg.Primaries() {
		// Distinct keys may sanitize to the same file name, or to a name
		// an earlier suffix already produced.
		base := FileName(primary)
		name := base
		for n := 2; taken[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[strings.ToLower(name)] = true

		path := filepath.Join(dir, name+Extension)
		if _, err := b.WriteDetail(agg, primary, path); err != nil {
			return paths, fmt.Errorf("failed to write detail for %q: %w", primary, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// save renders table into a single-sheet workbook at path.
func (b *Builder) save(path, sheet string, table [][]interface{}, boldRows []int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i := range table {
		if len(table[i]) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &table[i]); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	for _, row := range boldRows {
		if row > len(table) || len(table[row-1]) == 0 {
			continue
		}
		end, _ := excelize.CoordinatesToCellName(len(table[row-1]), row)
		if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), end, bold); err != nil {
			return fmt.Errorf("failed to style row %d: %w", row, err)
		}
	}

	if err := autoFit(f, sheet, table); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}

// autoFit sets every column to the width of its longest value.
func autoFit(f *excelize.File, sheet string, table [][]interface{}) error {
	var widths []int
	for _, row := range table {
		for col, value := range row {
			n := utf8.RuneCountInString(fmt.Sprint(value))
			for len(widths) <= col {
				widths = append(widths, 0)
			}
			if n > widths[col] {
				widths[col] = n
			}
		}
	}

	for col, w := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		width := float64(w) + 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	return nil
}

// =============================================================================
// NAMING
// =============================================================================

// SanitizeSheetName makes name acceptable as a worksheet name.
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)

	if utf8.RuneCountInString(name) > maxSheetNameLength {
		name = string([]rune(name)[:maxSheetNameLength])
	}
	// Excel rejects a leading or trailing apostrophe.
	name = strings.Trim(name, "' ")
	if name == "" {
		return "Sheet1"
	}
	return name
}

// FileName turns a primary key into a safe file base name of at most
// maxFileNameBytes bytes.
func FileName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, strings.TrimSpace(key))
	name = truncateBytes(name, maxFileNameBytes)

	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
