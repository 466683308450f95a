package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/money"
	"github.com/ginjaninja78/commission-report/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const header = "Sub_id1,Sub_id2,Sub_id3,Sub_id4,Tổng hoa hồng đơn hàng(₫)\n"

const scenario = header +
	"a,b,c,d,\"10,000đ\"\n" +
	"a,b,c,d,\"5,000đ\"\n" +
	"x,y,z,w,\"1,000đ\"\n"

type fixture struct {
	cfg      *config.MainConfig
	files    *utils.FileManager
	pipeline *Pipeline
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.InputDir = filepath.Join(dir, "input")
	cfg.OutputDir = filepath.Join(dir, "outputs")
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.InputArchiveDir = filepath.Join(dir, "input_archive")

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.UploadDir, cfg.InputArchiveDir)
	return &fixture{cfg: cfg, files: files, pipeline: New(cfg, files, nil), dir: dir}
}

func (f *fixture) input(t *testing.T, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(f.cfg.InputDir, 0755))
	path := filepath.Join(f.cfg.InputDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func sheetRows(t *testing.T, path string) [][]string {
	t.Helper()
	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(wb.GetSheetName(0))
	require.NoError(t, err)
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "march.csv", scenario)

	result := f.pipeline.Run(Options{InputPath: in})
	require.NoError(t, result.Error)
	require.True(t, result.Success)

	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "TONG_HOA_HONG_ALL_SUPID2.xlsx"), result.SummaryPath)
	assert.Equal(t, 3, result.Stats.RowsRead)
	assert.Equal(t, 2, result.Stats.Groups)
	assert.Equal(t, 3, result.Grand.Orders)
	assert.Equal(t, "16,000 ₫", money.Format(result.Grand.Total))
	assert.NotEmpty(t, result.RunID)

	assert.Equal(t, [][]string{
		{"Sup_id2", "Tổng số đơn", "Tổng hoa hồng"},
		{"b", "2", "15,000 ₫"},
		{"y", "1", "1,000 ₫"},
		{"TỔNG TẤT CẢ", "3", "16,000 ₫"},
	}, sheetRows(t, result.SummaryPath))

	assert.FileExists(t, in, "input stays in place without archiving")
	assert.Empty(t, result.IssueLogPath)
}

func TestRunWritesDetailsThatReconcile(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "march.csv", scenario+"a,b,c,e,\"2,500đ\"\n")

	result := f.pipeline.Run(Options{InputPath: in, WriteDetails: true})
	require.NoError(t, result.Error)
	require.Len(t, result.DetailPaths, 2)

	detail := sheetRows(t, filepath.Join(f.cfg.OutputDir, DetailsDir, "b.xlsx"))
	assert.Equal(t, []string{"Tổng số đơn", "3"}, detail[0])
	assert.Equal(t, []string{"Tổng hoa hồng", "17,500 ₫"}, detail[1])

	summary := sheetRows(t, result.SummaryPath)
	assert.Equal(t, []string{"b", "3", "17,500 ₫"}, summary[1])
}

func TestRunHeaderOnlyProducesEmptyReport(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "empty.csv", header)

	result := f.pipeline.Run(Options{InputPath: in})
	require.NoError(t, result.Error)
	assert.Empty(t, result.Rows)
	assert.Equal(t, [][]string{
		{"Sup_id2", "Tổng số đơn", "Tổng hoa hồng"},
		{"TỔNG TẤT CẢ", "0", "0 ₫"},
	}, sheetRows(t, result.SummaryPath))
}

func TestRunAbortsOnInvalidMoney(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "bad.csv", header+"a,b,c,d,abc\n")

	result := f.pipeline.Run(Options{InputPath: in})
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Error, money.ErrInvalidMoneyFormat)
	assert.True(t, IsInvalidInput(result.Error))
	assert.Empty(t, result.SummaryPath)
	assert.NoFileExists(t, filepath.Join(f.cfg.OutputDir, f.cfg.Labels.SummaryFile))
}

func TestRunSkipPolicyWritesIssueLog(t *testing.T) {
	f := newFixture(t)
	f.cfg.InvalidMoneyPolicy = config.PolicySkip
	f.pipeline = New(f.cfg, f.files, nil)
	in := f.input(t, "bad.csv", scenario+"a,b,c,d,abc\n")

	result := f.pipeline.Run(Options{InputPath: in})
	require.NoError(t, result.Error)
	require.Len(t, result.Stats.Skipped, 1)
	assert.Equal(t, 5, result.Stats.Skipped[0].RowNumber)
	assert.Equal(t, 3, result.Grand.Orders)

	data, err := os.ReadFile(result.IssueLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "row 5")
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "march.csv", scenario)

	result := f.pipeline.Run(Options{InputPath: in, DryRun: true, WriteDetails: true, Archive: true})
	require.NoError(t, result.Error)
	assert.Len(t, result.Rows, 2)
	assert.Empty(t, result.SummaryPath)
	assert.NoDirExists(t, f.cfg.OutputDir)
	assert.FileExists(t, in)
}

func TestRunArchivesInput(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "march.csv", scenario)

	result := f.pipeline.Run(Options{InputPath: in, Archive: true})
	require.NoError(t, result.Error)
	assert.Equal(t, filepath.Join(f.cfg.InputArchiveDir, "march.csv"), result.ArchivePath)
	assert.NoFileExists(t, in)
}

func TestRunCustomOutputDir(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "march.csv", scenario)
	out := filepath.Join(f.dir, "job")

	result := f.pipeline.Run(Options{InputPath: in, OutputDir: out, RunID: "job-1"})
	require.NoError(t, result.Error)
	assert.Equal(t, "job-1", result.RunID)
	assert.Equal(t, filepath.Join(out, f.cfg.Labels.SummaryFile), result.SummaryPath)
}

func TestRunXLSXInput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.cfg.InputDir, 0755))

	wb := excelize.NewFile()
	rows := [][]interface{}{
		{"Sub_id1", "Sub_id2", "Sub_id3", "Sub_id4", "Tổng hoa hồng đơn hàng(₫)"},
		{"a", "b", "c", "d", "10,000đ"},
		{"a", "B", "c", "d", "5,000đ"},
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, wb.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	in := filepath.Join(f.cfg.InputDir, "march.xlsx")
	require.NoError(t, wb.SaveAs(in))
	require.NoError(t, wb.Close())

	result := f.pipeline.Run(Options{InputPath: in})
	require.NoError(t, result.Error)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "b", result.Rows[0].Key)
	assert.Equal(t, 2, result.Rows[0].Orders)
}

func TestRunMissingFileIsNotInvalidInput(t *testing.T) {
	f := newFixture(t)

	result := f.pipeline.Run(Options{InputPath: filepath.Join(f.dir, "nope.csv")})
	require.Error(t, result.Error)
	assert.True(t, errors.Is(result.Error, os.ErrNotExist))
	assert.False(t, IsInvalidInput(result.Error))
}

func TestRunMissingColumnIsInvalidInput(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "cols.csv", "Sub_id1,Sub_id2\na,b\n")

	result := f.pipeline.Run(Options{InputPath: in})
	require.Error(t, result.Error)
	assert.True(t, IsInvalidInput(result.Error))
}

func TestOpenSourceRejectsLegacyXLS(t *testing.T) {
	_, err := OpenSource("report.xls", config.Default())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.True(t, IsInvalidInput(err))
}
