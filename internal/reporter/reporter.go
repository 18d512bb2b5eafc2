// Package reporter renders reconciliation results for people and
// machines. The default text format is the plain ledger listing; the
// console format adds summary, discrepancy and timing sections on top,
// and JSON/CSV serve downstream tooling.
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(nil)
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/neumann-mlucas/BWGI/internal/models"
	"github.com/neumann-mlucas/BWGI/internal/reconciler"

	"github.com/shopspring/decimal"
)

// OutputFormat selects how a result is rendered
type OutputFormat string

const (
	// FormatText is the plain ledger listing, one annotated line per entry
	FormatText OutputFormat = "text"
	// FormatConsole is the text listing plus summary sections
	FormatConsole OutputFormat = "console"
	// FormatJSON is an indented JSON encoding of the result
	FormatJSON OutputFormat = "json"
	// FormatCSV is one row per ledger entry with status columns
	FormatCSV OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatText, FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Section toggles for console and JSON output
	IncludeSummary         bool `json:"include_summary"`
	IncludeUnmatched       bool `json:"include_unmatched"`
	IncludeDiscrepancies   bool `json:"include_discrepancies"`
	IncludeProcessingStats bool `json:"include_processing_stats"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`

	// MaxListedEntries truncates the unmatched listings in console output;
	// zero lists everything
	MaxListedEntries int `json:"max_listed_entries"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                 FormatText,
		IncludeSummary:         true,
		IncludeUnmatched:       true,
		IncludeDiscrepancies:   true,
		IncludeProcessingStats: true,
		CSVDelimiter:           ',',
		CSVHeaders:             true,
		MaxListedEntries:       10,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.CSVDelimiter == 0 {
		return fmt.Errorf("csv delimiter cannot be empty")
	}
	if c.MaxListedEntries < 0 {
		return fmt.Errorf("max listed entries cannot be negative, got %d", c.MaxListedEntries)
	}
	return nil
}

// ReportGenerator renders reconciliation results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator. A nil config selects the
// defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the result to the writer in the configured format
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatText:
		return rg.generateTextReport(result, writer)
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateTextReport writes the plain ledger listing: ledger A in file
// order, a blank line, then ledger B, every entry annotated with its
// final status.
func (rg *ReportGenerator) generateTextReport(result *reconciler.Result, writer io.Writer) error {
	fmt.Fprintf(writer, "Transactions A:\n")
	for _, entry := range result.LedgerA {
		fmt.Fprintf(writer, "%s\n", entry.String())
	}

	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "Transactions B:\n")
	for _, entry := range result.LedgerB {
		fmt.Fprintf(writer, "%s\n", entry.String())
	}

	return nil
}

// generateConsoleReport writes the ledger listing followed by summary,
// unmatched, discrepancy and timing sections
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.Result, writer io.Writer) error {
	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Run ID:    %s\n", result.RunID)
	fmt.Fprintf(writer, "Generated: %s\n\n", result.ProcessedAt.Format(time.RFC3339))

	if err := rg.generateTextReport(result, writer); err != nil {
		return err
	}
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeSummary && result.Summary != nil {
		fmt.Fprintf(writer, "=== SUMMARY ===\n")
		rg.printSummary(result.Summary, writer)
		fmt.Fprintf(writer, "\n")

		fmt.Fprintf(writer, "=== FINANCIAL SUMMARY ===\n")
		rg.printFinancialSummary(result.Summary, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatched {
		unmatchedA := filterMissing(result.LedgerA)
		unmatchedB := filterMissing(result.LedgerB)

		if len(unmatchedA) > 0 {
			fmt.Fprintf(writer, "=== UNMATCHED IN LEDGER A ===\n")
			rg.printEntryList(unmatchedA, writer)
			fmt.Fprintf(writer, "\n")
		}
		if len(unmatchedB) > 0 {
			fmt.Fprintf(writer, "=== UNMATCHED IN LEDGER B ===\n")
			rg.printEntryList(unmatchedB, writer)
			fmt.Fprintf(writer, "\n")
		}
	}

	if rg.config.IncludeDiscrepancies && len(result.Discrepancies) > 0 {
		fmt.Fprintf(writer, "=== DISCREPANCIES ===\n")
		rg.printDiscrepancies(result.Discrepancies, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		fmt.Fprintf(writer, "=== PROCESSING STATISTICS ===\n")
		rg.printProcessingStats(result.ProcessingStats, writer)
	}

	return nil
}

// generateJSONReport writes an indented JSON encoding of the result,
// filtered by the configured section toggles
func (rg *ReportGenerator) generateJSONReport(result *reconciler.Result, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(result))
}

// generateCSVReport writes one row per ledger entry across both ledgers
func (rg *ReportGenerator) generateCSVReport(result *reconciler.Result, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{"ledger", "date", "department", "value", "counterpart", "status"}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	writeSide := func(side string, entries []*models.Transaction) error {
		for _, entry := range entries {
			record := []string{
				side,
				entry.Date.Format(models.DateLayout),
				entry.Department,
				entry.Value.String(),
				entry.Counterpart,
				string(entry.Status),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write ledger %s record: %w", side, err)
			}
		}
		return nil
	}

	if err := writeSide("A", result.LedgerA); err != nil {
		return err
	}
	if err := writeSide("B", result.LedgerB); err != nil {
		return err
	}

	return csvWriter.Error()
}

// Console section helpers

func (rg *ReportGenerator) printSummary(summary *reconciler.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Ledger A entries: %d\n", summary.TotalLedgerA)
	fmt.Fprintf(writer, "Ledger B entries: %d\n", summary.TotalLedgerB)
	fmt.Fprintf(writer, "Matched pairs:    %d\n", summary.MatchedPairs)
	fmt.Fprintf(writer, "Unmatched A:      %d (%.1f%%)\n",
		summary.UnmatchedA, percentage(summary.UnmatchedA, summary.TotalLedgerA))
	fmt.Fprintf(writer, "Unmatched B:      %d (%.1f%%)\n",
		summary.UnmatchedB, percentage(summary.UnmatchedB, summary.TotalLedgerB))
	// MatchRate already arrives as a percentage
	fmt.Fprintf(writer, "Match rate:       %.1f%%\n", summary.MatchRate)

	if summary.DateRange != nil {
		fmt.Fprintf(writer, "Date window:      %s to %s\n",
			summary.DateRange.Start.Format(models.DateLayout),
			summary.DateRange.End.Format(models.DateLayout))
	}
}

func (rg *ReportGenerator) printFinancialSummary(summary *reconciler.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Total value A:     %s\n", summary.TotalValueA.StringFixed(2))
	fmt.Fprintf(writer, "Total value B:     %s\n", summary.TotalValueB.StringFixed(2))
	fmt.Fprintf(writer, "Matched value:     %s\n", summary.MatchedValue.StringFixed(2))
	fmt.Fprintf(writer, "Unmatched value A: %s\n", summary.UnmatchedValueA.StringFixed(2))
	fmt.Fprintf(writer, "Unmatched value B: %s\n", summary.UnmatchedValueB.StringFixed(2))

	gap := summary.TotalValueA.Sub(summary.TotalValueB)
	if !gap.IsZero() {
		fmt.Fprintf(writer, "Ledger value gap:  %s\n", gap.StringFixed(2))
		if !summary.TotalValueA.IsZero() {
			gapPct := gap.Abs().Div(summary.TotalValueA).Mul(decimal.NewFromInt(100))
			fmt.Fprintf(writer, "Gap percentage:    %s%%\n", gapPct.StringFixed(2))
		}
	}
}

func (rg *ReportGenerator) printEntryList(entries []*models.Transaction, writer io.Writer) {
	limit := len(entries)
	if rg.config.MaxListedEntries > 0 && rg.config.MaxListedEntries < limit {
		limit = rg.config.MaxListedEntries
	}

	for i := 0; i < limit; i++ {
		fmt.Fprintf(writer, "  %d. %s\n", i+1, entries[i].String())
	}
	if limit < len(entries) {
		fmt.Fprintf(writer, "  ... and %d more\n", len(entries)-limit)
	}
}

func (rg *ReportGenerator) printDiscrepancies(discrepancies []*reconciler.Discrepancy, writer io.Writer) {
	fmt.Fprintf(writer, "Total discrepancies found: %d\n\n", len(discrepancies))

	severityGroups := make(map[reconciler.Severity][]*reconciler.Discrepancy)
	for _, disc := range discrepancies {
		severityGroups[disc.Severity] = append(severityGroups[disc.Severity], disc)
	}

	severities := []reconciler.Severity{
		reconciler.SeverityCritical,
		reconciler.SeverityHigh,
		reconciler.SeverityMedium,
		reconciler.SeverityLow,
		reconciler.SeverityInfo,
	}

	for _, severity := range severities {
		discs := severityGroups[severity]
		if len(discs) == 0 {
			continue
		}

		fmt.Fprintf(writer, "%s severity (%d):\n", strings.ToUpper(string(severity)), len(discs))
		for _, disc := range discs {
			fmt.Fprintf(writer, "  - %s: %s", disc.Type, disc.Description)
			if !disc.ValueDelta.IsZero() {
				fmt.Fprintf(writer, " (delta: %s)", disc.ValueDelta.StringFixed(2))
			}
			fmt.Fprintf(writer, "\n")
		}
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) printProcessingStats(stats *reconciler.ProcessingStats, writer io.Writer) {
	fmt.Fprintf(writer, "Files processed:  %d\n", stats.FilesProcessed)
	fmt.Fprintf(writer, "Parse errors:     %d\n", stats.ParseErrors)
	fmt.Fprintf(writer, "Records/second:   %.2f\n", stats.RecordsPerSecond)
	fmt.Fprintf(writer, "Parsing time:     %v\n", stats.ParsingTime)
	fmt.Fprintf(writer, "Matching time:    %v\n", stats.MatchingTime)
	fmt.Fprintf(writer, "Total processing: %v\n", stats.TotalProcessingTime)
}

// filterResultForOutput builds the JSON payload honoring the section
// toggles
func (rg *ReportGenerator) filterResultForOutput(result *reconciler.Result) map[string]interface{} {
	output := map[string]interface{}{
		"run_id":       result.RunID,
		"processed_at": result.ProcessedAt,
		"ledger_a":     result.LedgerA,
		"ledger_b":     result.LedgerB,
	}

	if rg.config.IncludeSummary && result.Summary != nil {
		output["summary"] = result.Summary
	}

	if rg.config.IncludeUnmatched {
		if unmatched := filterMissing(result.LedgerA); len(unmatched) > 0 {
			output["unmatched_a"] = unmatched
		}
		if unmatched := filterMissing(result.LedgerB); len(unmatched) > 0 {
			output["unmatched_b"] = unmatched
		}
	}

	if rg.config.IncludeDiscrepancies && result.Discrepancies != nil {
		output["discrepancies"] = result.Discrepancies
	}

	if rg.config.IncludeProcessingStats && result.ProcessingStats != nil {
		output["processing_stats"] = result.ProcessingStats
	}

	return output
}

// UpdateConfiguration replaces the generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// filterMissing selects the entries still marked MISSING
func filterMissing(entries []*models.Transaction) []*models.Transaction {
	var missing []*models.Transaction
	for _, entry := range entries {
		if entry.Status == models.StatusMissing {
			missing = append(missing, entry)
		}
	}
	return missing
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
