package models

import "sort"

// RankLess reports whether a outranks b in a waiting line. Lower acuity is
// more urgent and wins; within the same acuity, first arrived wins. Untriaged
// entries (nil acuity) rank after every triaged entry, ordered by arrival.
func RankLess(a, b QueueEntry) bool {
	switch {
	case a.AcuityLevel != nil && b.AcuityLevel == nil:
		return true
	case a.AcuityLevel == nil && b.AcuityLevel != nil:
		return false
	case a.AcuityLevel != nil && *a.AcuityLevel != *b.AcuityLevel:
		return *a.AcuityLevel < *b.AcuityLevel
	}
	return a.JoinedAt.Before(b.JoinedAt)
}

// SortByRank orders entries in place by rank. The sort is stable so entries
// with identical acuity and arrival keep their relative order.
func SortByRank(entries []QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return RankLess(entries[i], entries[j])
	})
}

// ComputePositions assigns 1-based positions to WAITING entries in rank order.
// Entries in any other status get a nil position. The input must already be
// rank-ordered within its waiting subset.
func ComputePositions(entries []QueueEntry) {
	position := 0
	for i := range entries {
		if entries[i].Status != StatusWaiting {
			entries[i].Position = nil
			continue
		}
		position++
		p := position
		entries[i].Position = &p
	}
}
