// Package config assembles the runtime configurations of the reconciler
// CLI from flag and environment values.
package config

import (
	"fmt"

	"github.com/neumann-mlucas/BWGI/internal/parsers"
	"github.com/neumann-mlucas/BWGI/internal/reconciler"
	"github.com/neumann-mlucas/BWGI/internal/reporter"
	"github.com/neumann-mlucas/BWGI/pkg/logger"
)

// CreateParseConfig builds the row-level parsing policy from CLI values.
// Strict mode aborts on the first malformed row; tolerant mode skips bad
// rows up to maxErrors.
func CreateParseConfig(strict bool, maxErrors int) *parsers.ParseConfig {
	config := parsers.DefaultParseConfig()
	config.StrictMode = strict
	if maxErrors > 0 {
		config.MaxErrors = maxErrors
	}
	return config
}

// CreateServiceConfig builds the reconciliation pipeline configuration
func CreateServiceConfig(parseConfig *parsers.ParseConfig, analyzeDiscrepancies bool) *reconciler.Config {
	config := reconciler.DefaultConfig()
	config.ParseConfig = parseConfig
	config.AnalyzeDiscrepancies = analyzeDiscrepancies
	return config
}

// CreateReportConfig builds a report configuration for the requested
// output format
func CreateReportConfig(format string, includeSummary bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.IncludeSummary = includeSummary

	switch format {
	case "text":
		config.Format = reporter.FormatText
	case "console":
		config.Format = reporter.FormatConsole
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		// CSV carries the row data only
		config.IncludeDiscrepancies = false
		config.IncludeProcessingStats = false
	default:
		return nil, fmt.Errorf("invalid output format %q, valid formats: text, console, json, csv", format)
	}

	return config, nil
}

// ResolveProfile finds the ledger layout profile for a run. Custom
// profiles from profileFile shadow the built-ins; an empty name selects
// the standard profile.
func ResolveProfile(name, profileFile string) (*parsers.LedgerProfile, error) {
	if name == "" {
		name = "standard"
	}
	return parsers.ResolveLedgerProfile(name, profileFile)
}

// CreateLoggerConfig builds the logger configuration from the global
// flags
func CreateLoggerConfig(verbose bool, logFormat string) (*logger.Config, error) {
	var config *logger.Config
	if verbose {
		config = logger.DebugConfig()
	} else {
		config = logger.DefaultConfig()
	}

	switch logFormat {
	case "", "text":
		config.Format = logger.TextFormat
	case "json":
		config.Format = logger.JSONFormat
	default:
		return nil, fmt.Errorf("invalid log format %q, valid formats: text, json", logFormat)
	}

	return config, nil
}
