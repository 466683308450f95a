package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMainConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "./outputs", cfg.OutputDir)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, PolicyAbort, cfg.InvalidMoneyPolicy)
	assert.Equal(t, "TranChauDuongDen", cfg.Fallback())
	assert.Equal(t, "Tổng hoa hồng đơn hàng(₫)", cfg.Columns.Commission)
	assert.Equal(t, "TONG_HOA_HONG_ALL_SUPID2.xlsx", cfg.Labels.SummaryFile)
	assert.Equal(t, "TỔNG TẤT CẢ", cfg.Labels.GrandTotal)
}

func TestLoadMainConfigFromYAML(t *testing.T) {
	path := writeConfig(t, `
output_dir: /tmp/reports
invalid_money_policy: skip
fallback_literal: ""
job_retention: 2h
archive_timestamp_subdirs: true
columns:
  commission: Commission
labels:
  grand_total: ALL TOTAL
`)
	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/reports", cfg.OutputDir)
	assert.Equal(t, PolicySkip, cfg.InvalidMoneyPolicy)
	assert.Equal(t, "", cfg.Fallback(), "explicit empty literal disables the fallback")
	assert.Equal(t, "Commission", cfg.Columns.Commission)
	assert.Equal(t, "Sub_id2", cfg.Columns.SubID2)
	assert.Equal(t, "ALL TOTAL", cfg.Labels.GrandTotal)
	assert.True(t, cfg.ArchiveTimestampSubdirs)

	retention, err := cfg.Retention()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, retention)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "output_dir: /from/yaml\n")
	t.Setenv("COMMISSION_OUTPUT_DIR", "/from/env")
	t.Setenv("COMMISSION_WRITE_DETAILS", "true")
	t.Setenv("COMMISSION_FALLBACK_LITERAL", "Placeholder")
	t.Setenv("COMMISSION_ARCHIVE_TIMESTAMP_SUBDIRS", "1")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.OutputDir)
	assert.True(t, cfg.WriteDetails)
	assert.Equal(t, "Placeholder", cfg.Fallback())
	assert.True(t, cfg.ArchiveTimestampSubdirs)
}

func TestLoadMainConfigRejectsInvalidValues(t *testing.T) {
	for _, body := range []string{
		"invalid_money_policy: coerce\n",
		"log_level: chatty\n",
		"job_retention: soon\n",
		"output_dir: [unterminated\n",
	} {
		_, err := LoadMainConfig(writeConfig(t, body))
		assert.Error(t, err, body)
	}
}

func TestRetentionZeroDisablesCleanup(t *testing.T) {
	cfg := Default()
	cfg.JobRetention = "0"
	d, err := cfg.Retention()
	require.NoError(t, err)
	assert.Zero(t, d)
}
