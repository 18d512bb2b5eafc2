package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neumann-mlucas/BWGI/internal/matcher"
	"github.com/neumann-mlucas/BWGI/internal/models"
	"github.com/neumann-mlucas/BWGI/internal/parsers"
	"github.com/neumann-mlucas/BWGI/pkg/errors"
	"github.com/neumann-mlucas/BWGI/pkg/logger"

	"github.com/shopspring/decimal"
)

// parseOutcome aggregates parse statistics across the two ledger files
type parseOutcome struct {
	statsA     *parsers.ParseStats
	statsB     *parsers.ParseStats
	errorCount int
}

// parseLedgers parses both ledger files, one goroutine per file. Entries
// come back in file order with status MISSING.
func (rs *ReconciliationService) parseLedgers(ctx context.Context, request *Request) ([]*models.Transaction, []*models.Transaction, *parseOutcome, error) {
	type sideResult struct {
		entries []*models.Transaction
		stats   *parsers.ParseStats
		err     error
	}

	parse := func(path string, out *sideResult) {
		parser, err := parsers.NewLedgerParser(request.Profile, rs.config.ParseConfig)
		if err != nil {
			out.err = err
			return
		}
		out.entries, out.stats, out.err = parser.ParseLedgerWithContext(ctx, path)
	}

	var a, b sideResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		parse(request.LedgerAPath, &a)
	}()
	go func() {
		defer wg.Done()
		parse(request.LedgerBPath, &b)
	}()
	wg.Wait()

	if a.err != nil {
		return nil, nil, nil, errors.WrapIfNeeded(a.err, errors.CategoryParse, errors.CodeInvalidFormat,
			fmt.Sprintf("failed to parse ledger A from %s", request.LedgerAPath))
	}
	if b.err != nil {
		return nil, nil, nil, errors.WrapIfNeeded(b.err, errors.CategoryParse, errors.CodeInvalidFormat,
			fmt.Sprintf("failed to parse ledger B from %s", request.LedgerBPath))
	}

	outcome := &parseOutcome{statsA: a.stats, statsB: b.stats}
	if a.stats != nil {
		outcome.errorCount += a.stats.ErrorCount
	}
	if b.stats != nil {
		outcome.errorCount += b.stats.ErrorCount
	}

	rs.logger.WithFields(logger.Fields{
		"ledger_a_entries": len(a.entries),
		"ledger_b_entries": len(b.entries),
		"parse_errors":     outcome.errorCount,
	}).Debug("Parsed both ledgers")

	return a.entries, b.entries, outcome, nil
}

// filterByDateRange drops entries outside the request's date window.
// Without a window both ledgers pass through untouched.
func (rs *ReconciliationService) filterByDateRange(ledgerA, ledgerB []*models.Transaction, request *Request) ([]*models.Transaction, []*models.Transaction) {
	if request.StartDate == nil && request.EndDate == nil {
		return ledgerA, ledgerB
	}

	filter := func(entries []*models.Transaction) []*models.Transaction {
		filtered := make([]*models.Transaction, 0, len(entries))
		for _, entry := range entries {
			if request.StartDate != nil && entry.Date.Before(models.NormalizeDate(*request.StartDate)) {
				continue
			}
			if request.EndDate != nil && entry.Date.After(models.NormalizeDate(*request.EndDate)) {
				continue
			}
			filtered = append(filtered, entry)
		}
		return filtered
	}

	filteredA := filter(ledgerA)
	filteredB := filter(ledgerB)

	rs.logger.WithFields(logger.Fields{
		"ledger_a_kept":    len(filteredA),
		"ledger_a_dropped": len(ledgerA) - len(filteredA),
		"ledger_b_kept":    len(filteredB),
		"ledger_b_dropped": len(ledgerB) - len(filteredB),
	}).Debug("Applied date-range filter")

	return filteredA, filteredB
}

// analyzeDiscrepancies inspects a completed run for patterns worth a
// second look: duplicate grouping-key clusters inside each ledger and
// near-miss pairs among the unmatched entries. The analysis never changes
// any status.
func (rs *ReconciliationService) analyzeDiscrepancies(result *matcher.ReconciliationResult) []*Discrepancy {
	var discrepancies []*Discrepancy

	discrepancies = append(discrepancies, rs.findDuplicateClusters(result.LedgerA, "A")...)
	discrepancies = append(discrepancies, rs.findDuplicateClusters(result.LedgerB, "B")...)
	discrepancies = append(discrepancies, rs.findNearMisses(result.UnmatchedA, result.UnmatchedB)...)

	if len(discrepancies) > 0 {
		rs.logger.WithField("discrepancy_count", len(discrepancies)).Info("Discrepancy analysis flagged entries")
	}

	return discrepancies
}

// findDuplicateClusters flags groups of entries within one ledger that
// share a grouping key. Duplicates are legal input, but clusters are where
// partial matches come from, so they are surfaced for review.
func (rs *ReconciliationService) findDuplicateClusters(ledger []*models.Transaction, side string) []*Discrepancy {
	groups := make(map[models.GroupKey][]*models.Transaction)
	var order []models.GroupKey
	for _, entry := range ledger {
		key := entry.GroupKey()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entry)
	}

	var discrepancies []*Discrepancy
	for _, key := range order {
		cluster := groups[key]
		if len(cluster) < 2 {
			continue
		}

		discrepancies = append(discrepancies, &Discrepancy{
			Type:   DiscrepancyDuplicateCluster,
			Ledger: side,
			Entries: cluster,
			Description: fmt.Sprintf("ledger %s holds %d entries with key %s",
				side, len(cluster), key),
			Severity: SeverityLow,
		})
	}

	return discrepancies
}

// findNearMisses pairs unmatched entries across the ledgers that agree on
// department, counterpart and date window but differ in value. These are
// the likeliest data-entry errors (the 50.00 vs 49.99 shape).
func (rs *ReconciliationService) findNearMisses(unmatchedA, unmatchedB []*models.Transaction) []*Discrepancy {
	type partyKey struct {
		department  string
		counterpart string
	}

	byParty := make(map[partyKey][]*models.Transaction)
	for _, b := range unmatchedB {
		key := partyKey{department: b.Department, counterpart: b.Counterpart}
		byParty[key] = append(byParty[key], b)
	}

	var discrepancies []*Discrepancy
	for _, a := range unmatchedA {
		key := partyKey{department: a.Department, counterpart: a.Counterpart}
		for _, b := range byParty[key] {
			if a.Value.Equal(b.Value) {
				continue
			}
			if !models.WithinDayTolerance(a.Date, b.Date) {
				continue
			}

			delta := a.Value.Sub(b.Value).Abs()
			discrepancies = append(discrepancies, &Discrepancy{
				Type:    DiscrepancyNearMissValue,
				Entries: []*models.Transaction{a, b},
				Description: fmt.Sprintf("%s/%s on %s: values %s and %s differ by %s",
					a.Department, a.Counterpart, a.Date.Format(models.DateLayout),
					a.Value.StringFixed(2), b.Value.StringFixed(2), delta.StringFixed(2)),
				ValueDelta: delta,
				Severity:   severityForDelta(delta),
			})

			if rs.config.NearMissLimit > 0 && len(discrepancies) >= rs.config.NearMissLimit {
				rs.logger.WithField("limit", rs.config.NearMissLimit).Debug("Near-miss limit reached, stopping analysis")
				return discrepancies
			}
		}
	}

	return discrepancies
}

// severityForDelta grades a near-miss by the absolute value difference
func severityForDelta(delta decimal.Decimal) Severity {
	switch {
	case delta.GreaterThanOrEqual(decimal.NewFromInt(1000)):
		return SeverityCritical
	case delta.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return SeverityHigh
	case delta.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// assembleTimings carries phase timings into result assembly
type assembleTimings struct {
	startedAt    time.Time
	parsingTime  time.Duration
	matchingTime time.Duration
	parseErrors  int
}

// assembleResult builds the final Result from the matching outcome
func (rs *ReconciliationService) assembleResult(
	runID string,
	request *Request,
	matchResult *matcher.ReconciliationResult,
	discrepancies []*Discrepancy,
	timings assembleTimings,
) *Result {
	summary := &Summary{
		TotalLedgerA: matchResult.Summary.TotalLedgerA,
		TotalLedgerB: matchResult.Summary.TotalLedgerB,
		MatchedPairs: matchResult.Summary.MatchedPairs,
		UnmatchedA:   matchResult.Summary.UnmatchedA,
		UnmatchedB:   matchResult.Summary.UnmatchedB,
		MatchRate:    matchResult.Summary.MatchRate,
	}

	summary.TotalValueA = sumValues(matchResult.LedgerA)
	summary.TotalValueB = sumValues(matchResult.LedgerB)
	summary.UnmatchedValueA = sumValues(matchResult.UnmatchedA)
	summary.UnmatchedValueB = sumValues(matchResult.UnmatchedB)
	summary.MatchedValue = summary.TotalValueA.Sub(summary.UnmatchedValueA)

	if request.StartDate != nil && request.EndDate != nil {
		summary.DateRange = &DateRange{
			Start: models.NormalizeDate(*request.StartDate),
			End:   models.NormalizeDate(*request.EndDate),
		}
	}

	result := &Result{
		RunID:         runID,
		LedgerA:       matchResult.LedgerA,
		LedgerB:       matchResult.LedgerB,
		Matches:       matchResult.Matches,
		Summary:       summary,
		Discrepancies: discrepancies,
		ProcessedAt:   timings.startedAt,
		Request:       request,
	}

	summary.ProcessingDuration = time.Since(timings.startedAt)

	if rs.config.IncludeStatistics {
		stats := &ProcessingStats{
			FilesProcessed:      2,
			ParseErrors:         timings.parseErrors,
			ParsingTime:         timings.parsingTime,
			MatchingTime:        timings.matchingTime,
			TotalProcessingTime: summary.ProcessingDuration,
		}
		if stats.TotalProcessingTime > 0 {
			total := float64(summary.TotalLedgerA + summary.TotalLedgerB)
			stats.RecordsPerSecond = total / stats.TotalProcessingTime.Seconds()
		}
		result.ProcessingStats = stats
	}

	return result
}

// sumValues totals the Value fields of the given entries
func sumValues(entries []*models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Value)
	}
	return total
}
