package models

import (
	"testing"
	"time"
)

func entry(id string, acuity *int, joined time.Time, status string) QueueEntry {
	return QueueEntry{EntryID: id, AcuityLevel: acuity, JoinedAt: joined, Status: status}
}

func ptr(v int) *int { return &v }

func TestSortByRankAcuityBeatsArrival(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []QueueEntry{
		entry("later-urgent", ptr(2), base.Add(10*time.Minute), StatusWaiting),
		entry("early-routine", ptr(4), base, StatusWaiting),
	}

	SortByRank(entries)

	if entries[0].EntryID != "later-urgent" {
		t.Fatalf("expected urgent entry first, got %s", entries[0].EntryID)
	}
}

func TestSortByRankFIFOWithinAcuity(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []QueueEntry{
		entry("second", ptr(3), base.Add(time.Minute), StatusWaiting),
		entry("first", ptr(3), base, StatusWaiting),
	}

	SortByRank(entries)

	if entries[0].EntryID != "first" || entries[1].EntryID != "second" {
		t.Fatalf("expected FIFO within acuity, got %s, %s", entries[0].EntryID, entries[1].EntryID)
	}
}

func TestSortByRankUntriagedLast(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []QueueEntry{
		entry("untriaged-early", nil, base, StatusWaiting),
		entry("least-urgent", ptr(5), base.Add(time.Hour), StatusWaiting),
		entry("untriaged-late", nil, base.Add(time.Minute), StatusWaiting),
	}

	SortByRank(entries)

	if entries[0].EntryID != "least-urgent" {
		t.Fatalf("expected triaged entry first, got %s", entries[0].EntryID)
	}
	if entries[1].EntryID != "untriaged-early" || entries[2].EntryID != "untriaged-late" {
		t.Fatalf("expected untriaged entries in arrival order, got %s, %s", entries[1].EntryID, entries[2].EntryID)
	}
}

func TestComputePositionsWaitingOnly(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	entries := []QueueEntry{
		entry("called", ptr(1), base, StatusCalled),
		entry("first-waiting", ptr(2), base, StatusWaiting),
		entry("second-waiting", ptr(3), base, StatusWaiting),
	}

	ComputePositions(entries)

	if entries[0].Position != nil {
		t.Fatalf("called entry should have nil position, got %d", *entries[0].Position)
	}
	if entries[1].Position == nil || *entries[1].Position != 1 {
		t.Fatalf("expected position 1, got %v", entries[1].Position)
	}
	if entries[2].Position == nil || *entries[2].Position != 2 {
		t.Fatalf("expected position 2, got %v", entries[2].Position)
	}
}

func TestRankLessSameAcuitySameInstant(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := entry("a", ptr(3), at, StatusWaiting)
	b := entry("b", ptr(3), at, StatusWaiting)

	if RankLess(a, b) || RankLess(b, a) {
		t.Fatal("identical rank keys must compare equal both ways")
	}
}
