package matcher

import (
	"sort"

	"github.com/neumann-mlucas/BWGI/internal/models"
)

// LedgerIndex provides grouped lookups over one ledger for matching operations.
// Entries are bucketed by their grouping key; within each bucket the ledger's
// original relative order is preserved. The index stores the same pointers as
// the source slice, so status changes made through index candidates are
// visible to holders of the original ledger.
type LedgerIndex struct {
	// Groups maps each grouping key to the entries sharing it,
	// in original ledger order
	Groups map[models.GroupKey][]*models.Transaction

	// AllEntries holds all indexed entries in original ledger order
	AllEntries []*models.Transaction
}

// NewLedgerIndex creates a new ledger index from a slice of entries
func NewLedgerIndex(entries []*models.Transaction) *LedgerIndex {
	index := &LedgerIndex{
		Groups:     make(map[models.GroupKey][]*models.Transaction),
		AllEntries: entries,
	}

	index.buildGroups()
	return index
}

// buildGroups constructs the grouping-key buckets
func (li *LedgerIndex) buildGroups() {
	for _, entry := range li.AllEntries {
		key := entry.GroupKey()
		li.Groups[key] = append(li.Groups[key], entry)
	}
}

// GetGroup returns the entries sharing the given grouping key,
// in original ledger order. The returned slice is the index's own bucket
// and must not be reordered by callers.
func (li *LedgerIndex) GetGroup(key models.GroupKey) []*models.Transaction {
	return li.Groups[key]
}

// GetCandidates returns the match candidates for the given entry: the
// entries sharing its grouping key, sorted by date ascending. The sort is
// stable, so entries on the same day keep their original ledger order.
// The result is a fresh slice; the index's buckets are never reordered.
func (li *LedgerIndex) GetCandidates(entry *models.Transaction) []*models.Transaction {
	group := li.Groups[entry.GroupKey()]
	if len(group) == 0 {
		return nil
	}

	candidates := make([]*models.Transaction, len(group))
	copy(candidates, group)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Date.Before(candidates[j].Date)
	})

	return candidates
}

// AddEntry adds a new entry to the index, appending it to its group bucket
func (li *LedgerIndex) AddEntry(entry *models.Transaction) {
	li.AllEntries = append(li.AllEntries, entry)

	key := entry.GroupKey()
	li.Groups[key] = append(li.Groups[key], entry)
}

// GetIndexStats returns statistics about the ledger index
func (li *LedgerIndex) GetIndexStats() IndexStats {
	stats := IndexStats{
		TotalEntries: len(li.AllEntries),
		UniqueKeys:   len(li.Groups),
	}

	for _, group := range li.Groups {
		if len(group) > stats.LargestGroup {
			stats.LargestGroup = len(group)
		}
		if len(group) > 1 {
			stats.DuplicateKeys++
		}
	}

	return stats
}

// IndexStats provides statistics about index shape and duplicate pressure
type IndexStats struct {
	TotalEntries  int
	UniqueKeys    int
	LargestGroup  int
	DuplicateKeys int
}
