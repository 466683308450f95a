// =============================================================================
// Commission Report - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration. Settings come from three layers, later layers winning:
//
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. The YAML config file (config.yaml by default, optional)
//   3. COMMISSION_* environment variables, including any found in a .env file
//
// The column names and report labels default to the Vietnamese export that
// downstream consumers already rely on. They are configurable so a renamed
// export column does not require a rebuild.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Policies for commission values that cannot be parsed.
const (
	// PolicyAbort stops the run and reports the offending row.
	PolicyAbort = "abort"

	// PolicySkip drops the row, logs a warning and records it in the run stats.
	PolicySkip = "skip"
)

// envPrefix is prepended to every environment override.
const envPrefix = "COMMISSION_"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is where the batch command looks for relative input files.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the generated workbooks. The HTTP server writes each
	// job into its own subdirectory of OutputDir.
	// Default: "./outputs"
	OutputDir string `yaml:"output_dir"`

	// UploadDir receives files posted to /upload, one subdirectory per job.
	// Default: "./uploads"
	UploadDir string `yaml:"upload_dir"`

	// InputArchiveDir is where processed inputs are moved when ArchiveInputs
	// is enabled.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional file that receives a copy of all log output.
	LogFile string `yaml:"log_file"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	// ListenAddr is the address the HTTP server binds to.
	// Default: ":8080"
	ListenAddr string `yaml:"listen_addr"`

	// JobRetention is how long job directories are kept before the server
	// removes them. Zero disables cleanup.
	// Default: "24h"
	JobRetention string `yaml:"job_retention"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// Encoding of the input CSV. Valid values: "UTF-8", "ISO-8859-1",
	// "Windows-1252".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// FallbackLiteral drives the primary key fallback: when this literal
	// contains the normalized Sub_id2 value, Sub_id1/Sub_id3 are used
	// instead. An explicit empty string in YAML disables the fallback.
	// Default: "TranChauDuongDen"
	FallbackLiteral *string `yaml:"fallback_literal"`

	// InvalidMoneyPolicy is PolicyAbort or PolicySkip.
	// Default: "abort"
	InvalidMoneyPolicy string `yaml:"invalid_money_policy"`

	// CurrencySymbol is appended to formatted totals.
	// Default: "₫"
	CurrencySymbol string `yaml:"currency_symbol"`

	// WriteDetails makes the batch command emit one workbook per primary key.
	WriteDetails bool `yaml:"write_details"`

	// ArchiveInputs moves the batch input to InputArchiveDir after success.
	ArchiveInputs bool `yaml:"archive_inputs"`

	// ArchiveTimestampSubdirs files archived inputs under YYYY/MM/DD.
	ArchiveTimestampSubdirs bool `yaml:"archive_timestamp_subdirs"`

	// Columns names the input columns.
	Columns Columns `yaml:"columns"`

	// Labels holds the literal strings written into the reports.
	Labels Labels `yaml:"labels"`
}

// Columns maps logical fields to CSV header names. Matching is
// case-insensitive.
type Columns struct {
	SubID1     string `yaml:"sub_id1"`
	SubID2     string `yaml:"sub_id2"`
	SubID3     string `yaml:"sub_id3"`
	SubID4     string `yaml:"sub_id4"`
	Commission string `yaml:"commission"`
}

// Labels are the fixed, human-readable strings used in the reports.
type Labels struct {
	SummarySheet string `yaml:"summary_sheet"`
	SummaryFile  string `yaml:"summary_file"`
	PrimaryKey   string `yaml:"primary_key"`
	SecondaryKey string `yaml:"secondary_key"`
	TotalOrders  string `yaml:"total_orders"`
	TotalAmount  string `yaml:"total_amount"`
	Orders       string `yaml:"orders"`
	Amount       string `yaml:"amount"`
	GrandTotal   string `yaml:"grand_total"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file is
//     not an error; defaults and environment overrides still apply.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or the result is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	// Pick up a local .env file when one exists.
	_ = godotenv.Load()

	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(&config)
	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration populated with defaults only.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./outputs"
	}
	if config.UploadDir == "" {
		config.UploadDir = "./uploads"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.JobRetention == "" {
		config.JobRetention = "24h"
	}
	if config.Encoding == "" {
		config.Encoding = "UTF-8"
	}
	if config.FallbackLiteral == nil {
		literal := "TranChauDuongDen"
		config.FallbackLiteral = &literal
	}
	if config.InvalidMoneyPolicy == "" {
		config.InvalidMoneyPolicy = PolicyAbort
	}
	if config.CurrencySymbol == "" {
		config.CurrencySymbol = "₫"
	}

	// Column defaults match the affiliate commission export.
	setDefault(&config.Columns.SubID1, "Sub_id1")
	setDefault(&config.Columns.SubID2, "Sub_id2")
	setDefault(&config.Columns.SubID3, "Sub_id3")
	setDefault(&config.Columns.SubID4, "Sub_id4")
	setDefault(&config.Columns.Commission, "Tổng hoa hồng đơn hàng(₫)")

	setDefault(&config.Labels.SummarySheet, "Tong_Hop_SupId2")
	setDefault(&config.Labels.SummaryFile, "TONG_HOA_HONG_ALL_SUPID2.xlsx")
	setDefault(&config.Labels.PrimaryKey, "Sup_id2")
	setDefault(&config.Labels.SecondaryKey, "Sub_id4")
	setDefault(&config.Labels.TotalOrders, "Tổng số đơn")
	setDefault(&config.Labels.TotalAmount, "Tổng hoa hồng")
	setDefault(&config.Labels.Orders, "Số đơn")
	setDefault(&config.Labels.Amount, "Hoa hồng")
	setDefault(&config.Labels.GrandTotal, "TỔNG TẤT CẢ")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// applyEnvOverrides copies COMMISSION_* environment variables over the
// values read from YAML.
func applyEnvOverrides(config *MainConfig) {
	overrideString(&config.InputDir, "INPUT_DIR")
	overrideString(&config.OutputDir, "OUTPUT_DIR")
	overrideString(&config.UploadDir, "UPLOAD_DIR")
	overrideString(&config.InputArchiveDir, "INPUT_ARCHIVE_DIR")
	overrideString(&config.LogFile, "LOG_FILE")
	overrideString(&config.LogLevel, "LOG_LEVEL")
	overrideString(&config.ListenAddr, "LISTEN_ADDR")
	overrideString(&config.JobRetention, "JOB_RETENTION")
	overrideString(&config.Encoding, "ENCODING")
	overrideString(&config.InvalidMoneyPolicy, "INVALID_MONEY_POLICY")
	overrideString(&config.CurrencySymbol, "CURRENCY_SYMBOL")

	if value, ok := os.LookupEnv(envPrefix + "FALLBACK_LITERAL"); ok {
		config.FallbackLiteral = &value
	}
	overrideBool(&config.WriteDetails, "WRITE_DETAILS")
	overrideBool(&config.ArchiveInputs, "ARCHIVE_INPUTS")
	overrideBool(&config.ArchiveTimestampSubdirs, "ARCHIVE_TIMESTAMP_SUBDIRS")
}

func overrideString(field *string, key string) {
	if value := strings.TrimSpace(os.Getenv(envPrefix + key)); value != "" {
		*field = value
	}
}

func overrideBool(field *bool, key string) {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			*field = parsed
		}
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	switch config.InvalidMoneyPolicy {
	case PolicyAbort, PolicySkip:
	default:
		return fmt.Errorf("invalid_money_policy must be %q or %q, got %q",
			PolicyAbort, PolicySkip, config.InvalidMoneyPolicy)
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	if _, err := config.Retention(); err != nil {
		return err
	}

	return nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Retention parses JobRetention. "0" disables cleanup.
func (c *MainConfig) Retention() (time.Duration, error) {
	if c.JobRetention == "" || c.JobRetention == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.JobRetention)
	if err != nil {
		return 0, fmt.Errorf("invalid job_retention %q: %w", c.JobRetention, err)
	}
	return d, nil
}

// Fallback returns the fallback literal, or "" when disabled.
func (c *MainConfig) Fallback() string {
	if c.FallbackLiteral == nil {
		return ""
	}
	return *c.FallbackLiteral
}
