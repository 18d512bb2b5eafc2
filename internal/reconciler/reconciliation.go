// Package reconciler drives a complete reconciliation run end to end:
// parse the two ledger files, apply the optional date filter, run the
// matching engine, analyze discrepancies and assemble the annotated
// result. The matching semantics live in internal/matcher; this package
// owns the pipeline around them.
//
// Example usage:
//
//	service, err := reconciler.NewReconciliationService(nil)
//	result, err := service.ProcessReconciliation(ctx, &reconciler.Request{
//		LedgerAPath: "ledgerA.csv",
//		LedgerBPath: "ledgerB.csv",
//	})
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/neumann-mlucas/BWGI/internal/matcher"
	"github.com/neumann-mlucas/BWGI/internal/models"
	"github.com/neumann-mlucas/BWGI/internal/parsers"
	"github.com/neumann-mlucas/BWGI/pkg/errors"
	"github.com/neumann-mlucas/BWGI/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationService runs the reconciliation pipeline for one pair of
// ledger files per call. The service itself is stateless between calls;
// a fresh matching engine index is built per run.
type ReconciliationService struct {
	config *Config
	logger logger.Logger
}

// Config holds policy options for the reconciliation pipeline
type Config struct {
	// ParseConfig is the row-level parsing policy for both ledger files;
	// nil selects the default (strict) policy
	ParseConfig *parsers.ParseConfig

	// AnalyzeDiscrepancies enables the report-only discrepancy pass
	// (duplicate clusters, near-miss value pairs)
	AnalyzeDiscrepancies bool

	// NearMissLimit caps reported near-miss pairs per run
	NearMissLimit int

	// IncludeStatistics populates ProcessingStats on the result
	IncludeStatistics bool
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		AnalyzeDiscrepancies: true,
		NearMissLimit:        25,
		IncludeStatistics:    true,
	}
}

// Validate checks the configuration for usable values
func (c *Config) Validate() error {
	if c.NearMissLimit < 0 {
		return fmt.Errorf("near-miss limit cannot be negative, got %d", c.NearMissLimit)
	}
	return nil
}

// Request describes one reconciliation run: the two ledger files, the
// layout profile to parse them with, and an optional date window
type Request struct {
	LedgerAPath string `json:"ledger_a_path"`
	LedgerBPath string `json:"ledger_b_path"`

	// Profile describes the CSV layout of both files; nil selects the
	// standard headerless [date, department, value, counterpart] layout
	Profile *parsers.LedgerProfile `json:"profile,omitempty"`

	// StartDate and EndDate bound the entries considered for matching
	// (inclusive); entries outside the window are dropped before matching
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Validate checks that the request can be processed
func (r *Request) Validate() error {
	if r.LedgerAPath == "" {
		return errors.ValidationError(
			errors.CodeMissingField,
			"ledger_a_path",
			nil,
			nil,
		).WithSuggestion("Provide the path of the first ledger file")
	}

	if r.LedgerBPath == "" {
		return errors.ValidationError(
			errors.CodeMissingField,
			"ledger_b_path",
			nil,
			nil,
		).WithSuggestion("Provide the path of the second ledger file")
	}

	if r.StartDate != nil && r.EndDate != nil && r.StartDate.After(*r.EndDate) {
		return errors.InvalidDateRangeError(
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
		)
	}

	return nil
}

// Result is the complete outcome of one reconciliation run
type Result struct {
	// RunID uniquely identifies this run in logs and reports
	RunID string `json:"run_id"`

	// LedgerA and LedgerB are the parsed entries in file order, statuses
	// annotated by the matching engine
	LedgerA []*models.Transaction `json:"ledger_a"`
	LedgerB []*models.Transaction `json:"ledger_b"`

	// Matches lists every confirmed pairing
	Matches []*matcher.MatchResult `json:"matches,omitempty"`

	Summary         *Summary         `json:"summary"`
	ProcessingStats *ProcessingStats `json:"processing_stats,omitempty"`
	Discrepancies   []*Discrepancy   `json:"discrepancies,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
	Request     *Request  `json:"request,omitempty"`
}

// Summary aggregates the outcome of a run, including the monetary value
// matched and left open on each side. All amounts are exact decimals.
type Summary struct {
	TotalLedgerA int     `json:"total_ledger_a"`
	TotalLedgerB int     `json:"total_ledger_b"`
	MatchedPairs int     `json:"matched_pairs"`
	UnmatchedA   int     `json:"unmatched_a"`
	UnmatchedB   int     `json:"unmatched_b"`
	MatchRate    float64 `json:"match_rate"`

	TotalValueA     decimal.Decimal `json:"total_value_a"`
	TotalValueB     decimal.Decimal `json:"total_value_b"`
	MatchedValue    decimal.Decimal `json:"matched_value"`
	UnmatchedValueA decimal.Decimal `json:"unmatched_value_a"`
	UnmatchedValueB decimal.Decimal `json:"unmatched_value_b"`

	DateRange          *DateRange    `json:"date_range,omitempty"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// ProcessingStats records per-phase timing and throughput for a run
type ProcessingStats struct {
	FilesProcessed int `json:"files_processed"`
	ParseErrors    int `json:"parse_errors"`

	ParsingTime         time.Duration `json:"parsing_time"`
	MatchingTime        time.Duration `json:"matching_time"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	RecordsPerSecond    float64       `json:"records_per_second"`
}

// Discrepancy flags a suspicious pattern found while analyzing the run.
// Discrepancy analysis is report-only and never changes match outcomes.
type Discrepancy struct {
	Type        DiscrepancyType       `json:"type"`
	Ledger      string                `json:"ledger,omitempty"`
	Entries     []*models.Transaction `json:"entries"`
	Description string                `json:"description"`
	ValueDelta  decimal.Decimal       `json:"value_delta,omitempty"`
	Severity    Severity              `json:"severity"`
}

// DiscrepancyType classifies detected discrepancies
type DiscrepancyType string

const (
	// DiscrepancyDuplicateCluster marks several entries of one ledger
	// sharing the same grouping key
	DiscrepancyDuplicateCluster DiscrepancyType = "duplicate_cluster"

	// DiscrepancyNearMissValue marks an unmatched cross-ledger pair that
	// agrees on department, counterpart and date window but not on value
	DiscrepancyNearMissValue DiscrepancyType = "near_miss_value"
)

// Severity grades how urgently a discrepancy deserves review
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// DateRange is an inclusive calendar-day window
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewReconciliationService creates a reconciliation service. A nil config
// selects the defaults.
func NewReconciliationService(config *Config) (*ReconciliationService, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"reconciliation_config",
			config,
			err,
		)
	}

	return &ReconciliationService{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reconciliation_service"),
	}, nil
}

// Config returns the service configuration
func (rs *ReconciliationService) Config() *Config {
	return rs.config
}

// ProcessReconciliation runs the full pipeline for one pair of ledger
// files: validate the request, parse both files (concurrently), apply the
// optional date window, run the matching engine, analyze discrepancies
// and assemble the result.
func (rs *ReconciliationService) ProcessReconciliation(ctx context.Context, request *Request) (*Result, error) {
	startTime := time.Now()

	// Step 1: validate the request
	if err := request.Validate(); err != nil {
		rs.logger.WithError(err).Error("Reconciliation request validation failed")
		return nil, err
	}

	runID := uuid.New().String()
	rs.logger.WithFields(logger.Fields{
		"run_id":   runID,
		"ledger_a": request.LedgerAPath,
		"ledger_b": request.LedgerBPath,
	}).Info("Starting reconciliation run")

	// Step 2: parse both ledgers concurrently
	parsingStart := time.Now()
	ledgerA, ledgerB, parseOutcome, err := rs.parseLedgers(ctx, request)
	if err != nil {
		return nil, err
	}
	parsingTime := time.Since(parsingStart)

	// Step 3: date-range filtering
	ledgerA, ledgerB = rs.filterByDateRange(ledgerA, ledgerB, request)

	// Step 4: matching
	matchingStart := time.Now()
	engine := matcher.NewMatchingEngine()
	matchResult := engine.Reconcile(ledgerA, ledgerB)
	matchingTime := time.Since(matchingStart)

	rs.logger.WithFields(logger.Fields{
		"run_id":        runID,
		"matched_pairs": matchResult.Summary.MatchedPairs,
		"unmatched_a":   matchResult.Summary.UnmatchedA,
		"unmatched_b":   matchResult.Summary.UnmatchedB,
	}).Info("Matching completed")

	// Step 5: discrepancy analysis (report-only)
	var discrepancies []*Discrepancy
	if rs.config.AnalyzeDiscrepancies {
		discrepancies = rs.analyzeDiscrepancies(matchResult)
	}

	// Step 6: assemble the final result
	result := rs.assembleResult(runID, request, matchResult, discrepancies, assembleTimings{
		startedAt:    startTime,
		parsingTime:  parsingTime,
		matchingTime: matchingTime,
		parseErrors:  parseOutcome.errorCount,
	})

	rs.logger.WithFields(logger.Fields{
		"run_id":   runID,
		"duration": result.Summary.ProcessingDuration,
	}).Info("Reconciliation run completed")

	return result, nil
}
