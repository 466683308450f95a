// =============================================================================
// Commission Report - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (commission)
//   ├── processCmd (commission process)
//   ├── serveCmd   (commission serve)
//   └── versionCmd (commission version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration before any subcommand runs
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/commission-report/internal/config"
	"github.com/ginjaninja78/commission-report/internal/logging"
	"github.com/ginjaninja78/commission-report/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// mainConfig and logger are prepared by loadRuntime for every subcommand.
var (
	mainConfig *config.MainConfig
	logger     *logging.SlogLogger
	closeLog   = func() error { return nil }
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "commission",
	Short: "Commission Report - Aggregate affiliate commission exports into Excel reports",
	Long: `Commission Report reads affiliate commission exports (CSV or XLSX), groups
orders by Sub_id2 and Sub_id4, and writes the totals to Excel workbooks.

Key Features:
  - Exact decimal totals, formatted as "15,000 ₫"
  - Summary workbook with a grand total row
  - Optional per-Sub_id2 detail workbooks
  - Web upload/download server with isolated jobs

Example Usage:
  commission process --file export.csv            # Write the summary workbook
  commission process --file export.csv --details  # Also write detail workbooks
  commission serve                                # Start the upload server`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadRuntime()
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (default is config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// loadRuntime reads the configuration and builds the logger.
func loadRuntime() error {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}

	l, closer, err := logging.New(logging.Config{
		Level:     level,
		File:      cfg.LogFile,
		Component: "commission",
	})
	if err != nil {
		return err
	}

	mainConfig, logger, closeLog = cfg, l, closer
	return nil
}

// newFileManager builds the FileManager described by mainConfig.
func newFileManager() *utils.FileManager {
	files := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.UploadDir, mainConfig.InputArchiveDir)
	files.UseTimestampSubdirs = mainConfig.ArchiveTimestampSubdirs
	return files
}
