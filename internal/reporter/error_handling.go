package reporter

import (
	"fmt"
	"io"

	"github.com/neumann-mlucas/BWGI/internal/parsers"
	"github.com/neumann-mlucas/BWGI/pkg/errors"
	"github.com/neumann-mlucas/BWGI/pkg/logger"
)

// DefaultSampleErrors caps the rows shown per file in a parse-problem
// report
const DefaultSampleErrors = 5

// ParseProblemReporter renders parse statistics and row-level problems
// so tolerant-mode runs can show what was skipped and why
type ParseProblemReporter struct {
	maxSamples int
	logger     logger.Logger
}

// NewParseProblemReporter creates a parse-problem reporter. maxSamples
// caps the rows shown per file; values below one select the default.
func NewParseProblemReporter(maxSamples int) *ParseProblemReporter {
	if maxSamples < 1 {
		maxSamples = DefaultSampleErrors
	}

	return &ParseProblemReporter{
		maxSamples: maxSamples,
		logger:     logger.GetGlobalLogger().WithComponent("parse_problem_reporter"),
	}
}

// ReportParseProblems writes a human-readable account of the parse
// problems for one ledger file. It writes nothing when the stats carry
// no errors.
func (pr *ParseProblemReporter) ReportParseProblems(filePath string, stats *parsers.ParseStats, writer io.Writer) error {
	if stats == nil || !stats.HasErrors() {
		return nil
	}

	pr.logger.WithFields(logger.Fields{
		"file_path":   filePath,
		"error_count": stats.ErrorCount,
	}).Warn("Reporting parse problems")

	fmt.Fprintf(writer, "Parse problems in %s:\n", filePath)
	fmt.Fprintf(writer, "  %s\n", stats.String())

	samples := stats.GetSampleErrors(pr.maxSamples)
	for _, sample := range samples {
		fmt.Fprintf(writer, "  - %s\n", sample)
	}
	if stats.ErrorCount > len(samples) {
		fmt.Fprintf(writer, "  ... and %d more\n", stats.ErrorCount-len(samples))
	}

	if suggestion := suggestionForErrors(stats.Errors); suggestion != "" {
		fmt.Fprintf(writer, "  Suggestion: %s\n", suggestion)
	}

	return nil
}

// ReportError writes a single reconciliation error with its suggestion
// and context, for surfacing failures alongside a partial report
func (pr *ParseProblemReporter) ReportError(err error, writer io.Writer) {
	if err == nil {
		return
	}

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		fmt.Fprintf(writer, "Error: %s\n", reconcilerErr.Message)
		if reconcilerErr.Suggestion != "" {
			fmt.Fprintf(writer, "Suggestion: %s\n", reconcilerErr.Suggestion)
		}
		for key, value := range reconcilerErr.Context {
			fmt.Fprintf(writer, "  %s: %v\n", key, value)
		}
		return
	}

	fmt.Fprintf(writer, "Error: %v\n", err)
}

// suggestionForErrors picks one actionable hint from the dominant field
// among the failed rows
func suggestionForErrors(parseErrors []*parsers.ParseError) string {
	fieldCounts := make(map[string]int)
	for _, parseError := range parseErrors {
		fieldCounts[parseError.Field]++
	}

	var dominant string
	var dominantCount int
	for field, count := range fieldCounts {
		if count > dominantCount {
			dominant, dominantCount = field, count
		}
	}

	switch dominant {
	case "date":
		return "Check the date column uses the YYYY-MM-DD layout, or select a profile with the right column order"
	case "value":
		return "Check the value column holds plain decimal amounts without currency symbols"
	case "record":
		return "Check the file delimiter and column count, or select a different ledger profile"
	default:
		return ""
	}
}
