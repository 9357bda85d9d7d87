package store

import "sort"

// DedupResult reports what a deduplication pass did. Kept is the number of
// distinct surviving keyed items; Removed the number deleted.
type DedupResult struct {
	Removed int
	Kept    int
}

// keyedItem is the minimal view of a record the deduplicator needs.
type keyedItem struct {
	id        string
	key       string
	timestamp int64
}

// DedupLabels collapses labels sharing the same reference down to the most
// recent one. Labels with an empty reference are left alone: distinct
// unidentified records are never treated as duplicates of each other.
//
// Each deletion is an independent operation, so a crash mid-pass leaves a
// partially deduplicated store; re-running finishes the job.
func (s *LocalStore) DedupLabels() (DedupResult, error) {
	items := []keyedItem{}
	for _, rec := range s.GetLabels() {
		items = append(items, keyedItem{id: rec.ID, key: rec.Reference, timestamp: rec.Timestamp})
	}
	return dedupeItems(items, s.DeleteLabel)
}

// DedupOrders collapses orders sharing the same normalized order number,
// keeping the most recent. Empty order numbers are skipped like empty
// references in DedupLabels.
func (s *LocalStore) DedupOrders() (DedupResult, error) {
	items := []keyedItem{}
	for _, rec := range s.GetOrders() {
		items = append(items, keyedItem{
			id:        rec.ID,
			key:       NormalizeOrderNumber(rec.OrderNumber),
			timestamp: rec.Timestamp,
		})
	}
	return dedupeItems(items, s.DeleteOrder)
}

// dedupeItems partitions items by key, keeps the max-timestamp item of every
// group and deletes the rest. Items with an empty key are not grouped.
func dedupeItems(items []keyedItem, del func(id string) error) (DedupResult, error) {
	groups := make(map[string][]keyedItem)
	for _, item := range items {
		if item.key == "" {
			continue
		}
		groups[item.key] = append(groups[item.key], item)
	}

	result := DedupResult{Kept: len(groups)}
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}

		sort.Slice(group, func(i, j int) bool {
			return group[i].timestamp > group[j].timestamp
		})

		for _, loser := range group[1:] {
			if err := del(loser.id); err != nil {
				return result, err
			}
			result.Removed++
		}
	}

	return result, nil
}
