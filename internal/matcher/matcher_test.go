package matcher

import (
	"fmt"
	"testing"

	"github.com/neumann-mlucas/BWGI/internal/models"
)

// assertStatuses checks each ledger entry's status against the expected list
func assertStatuses(t *testing.T, name string, ledger []*models.Transaction, want []models.Status) {
	t.Helper()

	if len(ledger) != len(want) {
		t.Fatalf("%s: expected %d entries, got %d", name, len(want), len(ledger))
	}

	for i, entry := range ledger {
		if entry.Status != want[i] {
			t.Errorf("%s[%d] status = %s, want %s (%s)", name, i, entry.Status, want[i], entry)
		}
	}
}

// countFound returns the number of FOUND entries in a ledger
func countFound(ledger []*models.Transaction) int {
	count := 0
	for _, entry := range ledger {
		if entry.Status == models.StatusFound {
			count++
		}
	}
	return count
}

func TestNewMatchingEngine(t *testing.T) {
	engine := NewMatchingEngine()

	if engine == nil {
		t.Fatal("Expected non-nil engine")
	}
	if engine.Index != nil {
		t.Error("Expected no index before the first run")
	}

	stats := engine.GetIndexStats()
	if stats.TotalEntries != 0 {
		t.Errorf("Expected zero stats before the first run, got %+v", stats)
	}
}

func TestMatchingEngine_Reconcile_ExactMatch(t *testing.T) {
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}

	engine := NewMatchingEngine()
	result := engine.Reconcile(ledgerA, ledgerB)

	assertStatuses(t, "ledgerA", ledgerA, []models.Status{models.StatusFound})
	assertStatuses(t, "ledgerB", ledgerB, []models.Status{models.StatusFound})

	if len(result.Matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matches))
	}
	if result.Matches[0].LedgerAEntry != ledgerA[0] || result.Matches[0].LedgerBEntry != ledgerB[0] {
		t.Error("Expected the match to reference the original entries")
	}
	if result.Matches[0].DateDiffDays != 0 {
		t.Errorf("Expected zero day difference, got %d", result.Matches[0].DateDiffDays)
	}
}

func TestMatchingEngine_Reconcile_EmptyLedgers(t *testing.T) {
	tests := []struct {
		name    string
		ledgerA []*models.Transaction
		ledgerB []*models.Transaction
	}{
		{
			name:    "Empty ledger A",
			ledgerA: nil,
			ledgerB: []*models.Transaction{newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00")},
		},
		{
			name:    "Empty ledger B",
			ledgerA: []*models.Transaction{newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00")},
			ledgerB: nil,
		},
		{
			name:    "Both empty",
			ledgerA: nil,
			ledgerB: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewMatchingEngine()
			result := engine.Reconcile(tt.ledgerA, tt.ledgerB)

			if len(result.Matches) != 0 {
				t.Errorf("Expected no matches, got %d", len(result.Matches))
			}

			// The non-empty side stays MISSING, untouched
			for i, entry := range append(tt.ledgerA, tt.ledgerB...) {
				if entry.Status != models.StatusMissing {
					t.Errorf("entry[%d] status = %s, want MISSING", i, entry.Status)
				}
			}

			if result.Summary.MatchedPairs != 0 || result.Summary.MatchRate != 0 {
				t.Errorf("Expected empty summary, got %+v", result.Summary)
			}
		})
	}
}

func TestMatchingEngine_Reconcile_DateToleranceBoundary(t *testing.T) {
	tests := []struct {
		name      string
		dateA     string
		dateB     string
		wantMatch bool
	}{
		{"Same day", "2020-12-04", "2020-12-04", true},
		{"A one day before B", "2020-12-03", "2020-12-04", true},
		{"A one day after B", "2020-12-05", "2020-12-04", true},
		{"Two days apart", "2020-12-04", "2020-12-06", false},
		{"Two days apart reversed", "2020-12-06", "2020-12-04", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledgerA := []*models.Transaction{newEntry(tt.dateA, "Tecnologia", "Bitbucket", "16.00")}
			ledgerB := []*models.Transaction{newEntry(tt.dateB, "Tecnologia", "Bitbucket", "16.00")}

			NewMatchingEngine().Reconcile(ledgerA, ledgerB)

			want := models.StatusMissing
			if tt.wantMatch {
				want = models.StatusFound
			}
			assertStatuses(t, "ledgerA", ledgerA, []models.Status{want})
			assertStatuses(t, "ledgerB", ledgerB, []models.Status{want})
		})
	}
}

func TestMatchingEngine_Reconcile_EarliestDateWins(t *testing.T) {
	// Both A entries are compatible with B's single entry; the policy is
	// to hand out the chronologically earliest one first
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-03", "Tecnologia", "Bitbucket", "16.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}

	NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	assertStatuses(t, "ledgerA", ledgerA, []models.Status{models.StatusMissing, models.StatusFound})
	assertStatuses(t, "ledgerB", ledgerB, []models.Status{models.StatusFound})
}

func TestMatchingEngine_Reconcile_SameDayTieKeepsLedgerOrder(t *testing.T) {
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}

	NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	assertStatuses(t, "ledgerA", ledgerA, []models.Status{models.StatusFound, models.StatusMissing})
}

func TestMatchingEngine_Reconcile_DuplicateExhaustion(t *testing.T) {
	t.Run("More duplicates in B than A", func(t *testing.T) {
		ledgerA := []*models.Transaction{
			newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		}
		ledgerB := []*models.Transaction{
			newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
			newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		}

		result := NewMatchingEngine().Reconcile(ledgerA, ledgerB)

		// First-encountered B entry wins; the second finds A exhausted
		assertStatuses(t, "ledgerA", ledgerA, []models.Status{models.StatusFound})
		assertStatuses(t, "ledgerB", ledgerB, []models.Status{models.StatusFound, models.StatusMissing})

		if len(result.Matches) != 1 {
			t.Errorf("Expected exactly 1 match from the duplicate cluster, got %d", len(result.Matches))
		}
	})

	t.Run("More duplicates in A than B", func(t *testing.T) {
		ledgerA := []*models.Transaction{
			newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
			newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		}
		ledgerB := []*models.Transaction{
			newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		}

		NewMatchingEngine().Reconcile(ledgerA, ledgerB)

		assertStatuses(t, "ledgerA", ledgerA, []models.Status{models.StatusFound, models.StatusMissing})
		assertStatuses(t, "ledgerB", ledgerB, []models.Status{models.StatusFound})
	})
}

func TestMatchingEngine_Reconcile_ExactFieldMismatch(t *testing.T) {
	base := func() *models.Transaction {
		return newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00")
	}

	tests := []struct {
		name  string
		other *models.Transaction
	}{
		{"Different department", newEntry("2020-12-04", "Juridico", "Bitbucket", "16.00")},
		{"Different counterpart", newEntry("2020-12-04", "Tecnologia", "GitHub", "16.00")},
		{"Different value", newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledgerA := []*models.Transaction{base()}
			ledgerB := []*models.Transaction{tt.other}

			NewMatchingEngine().Reconcile(ledgerA, ledgerB)

			assertStatuses(t, "ledgerA", ledgerA, []models.Status{models.StatusMissing})
			assertStatuses(t, "ledgerB", ledgerB, []models.Status{models.StatusMissing})
		})
	}
}

func TestMatchingEngine_Reconcile_BOrderPriority(t *testing.T) {
	// Two B duplicates compete for two A entries on different days.
	// B is processed in order, so B[0] takes the earliest A entry and
	// B[1] takes the remaining one.
	ledgerA := []*models.Transaction{
		newEntry("2020-12-05", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "Bitbucket", "16.00"),
	}

	result := NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	if len(result.Matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(result.Matches))
	}

	// B[0] pairs with A[1] (2020-12-04, the earliest), B[1] with A[0]
	if result.Matches[0].LedgerAEntry != ledgerA[1] || result.Matches[0].LedgerBEntry != ledgerB[0] {
		t.Error("Expected B[0] to claim the chronologically earliest A entry")
	}
	if result.Matches[1].LedgerAEntry != ledgerA[0] || result.Matches[1].LedgerBEntry != ledgerB[1] {
		t.Error("Expected B[1] to claim the remaining A entry")
	}
}

func TestMatchingEngine_Reconcile_WorkedExample(t *testing.T) {
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-04", "Juridico", "LinkSquares", "60.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "50.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "49.99"),
		newEntry("2020-12-04", "Juridico", "LinkSquares", "60.00"),
	}

	result := NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	// The AWS entries differ in value (50.00 vs 49.99) and must not pair
	assertStatuses(t, "ledgerA", ledgerA, []models.Status{
		models.StatusFound, models.StatusFound, models.StatusMissing,
	})
	assertStatuses(t, "ledgerB", ledgerB, []models.Status{
		models.StatusFound, models.StatusMissing, models.StatusFound,
	})

	if result.Summary.MatchedPairs != 2 {
		t.Errorf("Expected 2 matched pairs, got %d", result.Summary.MatchedPairs)
	}
	if len(result.UnmatchedA) != 1 || len(result.UnmatchedB) != 1 {
		t.Errorf("Expected 1 unmatched entry per side, got %d/%d",
			len(result.UnmatchedA), len(result.UnmatchedB))
	}
}

func TestMatchingEngine_Reconcile_ExtendedExample(t *testing.T) {
	// Worked example extended with a duplicated Datadog row in B: the
	// single Datadog entry in A can only satisfy one of them
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-04", "Juridico", "LinkSquares", "60.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "50.00"),
		newEntry("2020-12-05", "Tecnologia", "Datadog", "10.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "49.99"),
		newEntry("2020-12-04", "Juridico", "LinkSquares", "60.00"),
		newEntry("2020-12-06", "Tecnologia", "Datadog", "10.00"),
		newEntry("2020-12-06", "Tecnologia", "Datadog", "10.00"),
	}

	NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	assertStatuses(t, "ledgerA", ledgerA, []models.Status{
		models.StatusFound, models.StatusFound, models.StatusMissing, models.StatusFound,
	})
	assertStatuses(t, "ledgerB", ledgerB, []models.Status{
		models.StatusFound, models.StatusMissing, models.StatusFound,
		models.StatusFound, models.StatusMissing,
	})
}

func TestMatchingEngine_Reconcile_AlreadyFoundNeverRematched(t *testing.T) {
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}

	// Simulate a previous partial run having claimed the A entry
	ledgerA[0].MarkFound()

	result := NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	if len(result.Matches) != 0 {
		t.Errorf("Expected no matches against a FOUND entry, got %d", len(result.Matches))
	}
	assertStatuses(t, "ledgerB", ledgerB, []models.Status{models.StatusMissing})
}

func TestMatchingEngine_Reconcile_Incremental(t *testing.T) {
	// A second run over the same records must not rematch or unmatch
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "50.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}

	engine := NewMatchingEngine()
	first := engine.Reconcile(ledgerA, ledgerB)
	second := engine.Reconcile(ledgerA, ledgerB)

	if len(first.Matches) != 1 {
		t.Fatalf("Expected 1 match on the first run, got %d", len(first.Matches))
	}
	if len(second.Matches) != 0 {
		t.Errorf("Expected no new matches on the second run, got %d", len(second.Matches))
	}

	assertStatuses(t, "ledgerA", ledgerA, []models.Status{models.StatusFound, models.StatusMissing})
	assertStatuses(t, "ledgerB", ledgerB, []models.Status{models.StatusFound})
}

func TestMatchingEngine_Reconcile_NeverMutatesFields(t *testing.T) {
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-05", "Tecnologia", "Bitbucket", "16.00"),
	}

	before := *ledgerA[0]
	NewMatchingEngine().Reconcile(ledgerA, ledgerB)
	after := ledgerA[0]

	if !after.Date.Equal(before.Date) || after.Department != before.Department ||
		after.Counterpart != before.Counterpart || !after.Value.Equal(before.Value) {
		t.Error("Expected matching to leave every field except status untouched")
	}
	if after.Status != models.StatusFound {
		t.Errorf("Expected status FOUND, got %s", after.Status)
	}
}

func TestMatchingEngine_Reconcile_BijectionProperty(t *testing.T) {
	// A messy mix of duplicates and near misses; whatever the pairing,
	// FOUND counts must agree on both sides and match the pair count
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "50.00"),
		newEntry("2020-12-07", "Tecnologia", "AWS", "50.00"),
		newEntry("2020-12-04", "Juridico", "LinkSquares", "60.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-06", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "49.99"),
		newEntry("2020-12-09", "Tecnologia", "AWS", "50.00"),
		newEntry("2020-12-03", "Juridico", "LinkSquares", "60.00"),
	}

	result := NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	foundA := countFound(ledgerA)
	foundB := countFound(ledgerB)

	if foundA != foundB {
		t.Errorf("Bijection violated: %d FOUND in A vs %d in B", foundA, foundB)
	}
	if foundA != len(result.Matches) {
		t.Errorf("FOUND count %d does not equal match count %d", foundA, len(result.Matches))
	}

	// Every reported pair must be key-equal and within the day window
	for i, match := range result.Matches {
		a, b := match.LedgerAEntry, match.LedgerBEntry
		if a.GroupKey() != b.GroupKey() {
			t.Errorf("match[%d] pairs different grouping keys", i)
		}
		if !models.WithinDayTolerance(a.Date, b.Date) {
			t.Errorf("match[%d] exceeds the one-day window: %s vs %s",
				i, a.Date.Format(models.DateLayout), b.Date.Format(models.DateLayout))
		}
		if a.Status != models.StatusFound || b.Status != models.StatusFound {
			t.Errorf("match[%d] has an unmarked side", i)
		}
	}
}

func TestMatchingEngine_Reconcile_Summary(t *testing.T) {
	ledgerA := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
		newEntry("2020-12-04", "Juridico", "LinkSquares", "60.00"),
		newEntry("2020-12-05", "Tecnologia", "AWS", "50.00"),
	}
	ledgerB := []*models.Transaction{
		newEntry("2020-12-04", "Tecnologia", "Bitbucket", "16.00"),
	}

	result := NewMatchingEngine().Reconcile(ledgerA, ledgerB)

	summary := result.Summary
	if summary.TotalLedgerA != 3 || summary.TotalLedgerB != 1 {
		t.Errorf("Unexpected totals: %+v", summary)
	}
	if summary.MatchedPairs != 1 {
		t.Errorf("Expected 1 matched pair, got %d", summary.MatchedPairs)
	}
	if summary.UnmatchedA != 2 || summary.UnmatchedB != 0 {
		t.Errorf("Unexpected unmatched counts: %+v", summary)
	}

	// 2 of 4 entries found a counterpart
	if summary.MatchRate != 50.0 {
		t.Errorf("Expected 50%% match rate, got %.2f", summary.MatchRate)
	}
}

func TestMatchingEngine_GetIndexStats(t *testing.T) {
	ledgerA := createTestLedger()
	engine := NewMatchingEngine()
	engine.Reconcile(ledgerA, nil)

	stats := engine.GetIndexStats()
	if stats.TotalEntries != len(ledgerA) {
		t.Errorf("Expected %d indexed entries, got %d", len(ledgerA), stats.TotalEntries)
	}
}

func BenchmarkMatchingEngine_Reconcile(b *testing.B) {
	makeLedgers := func(n int) ([]*models.Transaction, []*models.Transaction) {
		ledgerA := make([]*models.Transaction, 0, n)
		ledgerB := make([]*models.Transaction, 0, n)
		for i := 0; i < n; i++ {
			day := fmt.Sprintf("2020-12-%02d", (i%28)+1)
			counterpart := fmt.Sprintf("Vendor%03d", i%50)
			value := fmt.Sprintf("%d.00", (i%200)+1)
			ledgerA = append(ledgerA, newEntry(day, "Tecnologia", counterpart, value))
			ledgerB = append(ledgerB, newEntry(day, "Tecnologia", counterpart, value))
		}
		return ledgerA, ledgerB
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		ledgerA, ledgerB := makeLedgers(1000)
		b.StartTimer()

		NewMatchingEngine().Reconcile(ledgerA, ledgerB)
	}
}
