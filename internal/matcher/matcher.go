// Package matcher implements the two-ledger reconciliation matching engine.
//
// Matching is exact on the grouping key (department, counterpart, value)
// and tolerant on dates: entries whose calendar days differ by at most one
// day may be paired. The engine performs a grouped greedy one-pass walk:
// ledger A is indexed by grouping key, then each ledger B entry, in order,
// claims the chronologically earliest still-unmatched compatible candidate
// from its group. Pairings are one-to-one; once an entry is FOUND it is
// never considered again, so at most min(count_A, count_B) of a duplicate
// cluster ends up matched.
//
// The engine is a synchronous in-memory computation with no error paths of
// its own: malformed input is rejected upstream by the parsers, and a match
// either marks both sides FOUND or changes nothing.
//
// Example usage:
//
//	engine := matcher.NewMatchingEngine()
//	result := engine.Reconcile(ledgerA, ledgerB)
//	fmt.Printf("matched %d of %d/%d entries\n",
//		result.Summary.MatchedPairs, len(ledgerA), len(ledgerB))
package matcher

import (
	"github.com/neumann-mlucas/BWGI/internal/models"
)

// MatchingEngine pairs entries of two ledgers under the grouped greedy
// matching policy. A fresh grouping index is built per Reconcile call;
// the most recent one is retained for stats reporting.
type MatchingEngine struct {
	// Index is the grouping index over ledger A from the most recent
	// Reconcile call, nil before the first run
	Index *LedgerIndex
}

// MatchResult represents one confirmed pairing between the two ledgers
type MatchResult struct {
	LedgerAEntry *models.Transaction `json:"ledger_a_entry"`
	LedgerBEntry *models.Transaction `json:"ledger_b_entry"`
	DateDiffDays int                 `json:"date_diff_days"`
}

// ReconciliationResult contains the annotated ledgers and match details
// of one engine run. LedgerA and LedgerB are the input slices themselves,
// statuses updated in place.
type ReconciliationResult struct {
	LedgerA    []*models.Transaction `json:"ledger_a"`
	LedgerB    []*models.Transaction `json:"ledger_b"`
	Matches    []*MatchResult        `json:"matches"`
	UnmatchedA []*models.Transaction `json:"unmatched_a"`
	UnmatchedB []*models.Transaction `json:"unmatched_b"`
	Summary    ReconciliationSummary `json:"summary"`
}

// ReconciliationSummary provides aggregate statistics for a run
type ReconciliationSummary struct {
	TotalLedgerA int     `json:"total_ledger_a"`
	TotalLedgerB int     `json:"total_ledger_b"`
	MatchedPairs int     `json:"matched_pairs"`
	UnmatchedA   int     `json:"unmatched_a"`
	UnmatchedB   int     `json:"unmatched_b"`
	MatchRate    float64 `json:"match_rate"`
}

// NewMatchingEngine creates a new matching engine
func NewMatchingEngine() *MatchingEngine {
	return &MatchingEngine{}
}

// Reconcile pairs the entries of ledgerA and ledgerB and returns the
// annotated result. Statuses are mutated in place through the slices'
// own pointers: every confirmed pair has both sides marked FOUND, all
// other entries keep their incoming status.
//
// The pairing is a partial bijection. Entries already FOUND on input
// (for example from an earlier incremental run) are never rematched and
// never unmatched. Empty ledgers are valid input and cause no mutation.
func (me *MatchingEngine) Reconcile(ledgerA, ledgerB []*models.Transaction) *ReconciliationResult {
	me.Index = NewLedgerIndex(ledgerA)

	var matches []*MatchResult

	for _, b := range ledgerB {
		if b.Status == models.StatusFound {
			continue
		}

		// Candidates come back date-sorted, earliest first, so the first
		// compatible entry is the chronologically earliest eligible one.
		for _, a := range me.Index.GetCandidates(b) {
			if !a.IsCompatibleWith(b) {
				continue
			}

			a.MarkFound()
			b.MarkFound()
			matches = append(matches, &MatchResult{
				LedgerAEntry: a,
				LedgerBEntry: b,
				DateDiffDays: models.DateDiffDays(a.Date, b.Date),
			})
			break
		}
	}

	result := &ReconciliationResult{
		LedgerA:    ledgerA,
		LedgerB:    ledgerB,
		Matches:    matches,
		UnmatchedA: collectMissing(ledgerA),
		UnmatchedB: collectMissing(ledgerB),
	}
	result.Summary = calculateSummary(result)

	return result
}

// GetIndexStats returns statistics about the ledger A index of the most
// recent run. Before the first run it returns zero stats.
func (me *MatchingEngine) GetIndexStats() IndexStats {
	if me.Index == nil {
		return IndexStats{}
	}
	return me.Index.GetIndexStats()
}

// collectMissing returns the entries still MISSING, in ledger order
func collectMissing(ledger []*models.Transaction) []*models.Transaction {
	var missing []*models.Transaction
	for _, entry := range ledger {
		if entry.Status == models.StatusMissing {
			missing = append(missing, entry)
		}
	}
	return missing
}

// calculateSummary computes aggregate statistics for a completed run
func calculateSummary(result *ReconciliationResult) ReconciliationSummary {
	summary := ReconciliationSummary{
		TotalLedgerA: len(result.LedgerA),
		TotalLedgerB: len(result.LedgerB),
		MatchedPairs: len(result.Matches),
		UnmatchedA:   len(result.UnmatchedA),
		UnmatchedB:   len(result.UnmatchedB),
	}

	// Share of all entries, across both ledgers, that found a counterpart
	total := summary.TotalLedgerA + summary.TotalLedgerB
	if total > 0 {
		summary.MatchRate = float64(2*summary.MatchedPairs) / float64(total) * 100
	}

	return summary
}
