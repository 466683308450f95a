// =============================================================================
// Commission Report - Main Entry Point
// =============================================================================
//
// USAGE:
//   commission process --file export.csv  - Aggregate one export into reports
//   commission serve                       - Start the upload/download server
//   commission version                     - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Parsing, aggregation, report writing, HTTP server
//   - pkg/       : Shared file management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/commission-report/cmd"
)

func main() {
	cmd.Execute()
}
