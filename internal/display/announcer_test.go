package display

import (
	"testing"
	"time"

	"clinicops/internal/models"
)

func calledEntry(id string, calledAt time.Time) models.PublicEntry {
	at := calledAt
	return models.PublicEntry{
		EntryID:     id,
		EntryNumber: "TRI-001",
		Status:      models.StatusCalled,
		CalledAt:    &at,
	}
}

func TestAnnouncerFirstSyncIsSilent(t *testing.T) {
	var announced []string
	a := NewAnnouncer(func(entry models.PublicEntry) {
		announced = append(announced, entry.EntryID)
	})

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a.Observe([]models.PublicEntry{calledEntry("e1", at), calledEntry("e2", at)})

	if len(announced) != 0 {
		t.Fatalf("calls before connect must not replay, got %v", announced)
	}
}

func TestAnnouncerAnnouncesNewCallOnce(t *testing.T) {
	var announced []string
	a := NewAnnouncer(func(entry models.PublicEntry) {
		announced = append(announced, entry.EntryID)
	})

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a.Observe(nil)
	a.Observe([]models.PublicEntry{calledEntry("e1", at)})
	a.Observe([]models.PublicEntry{calledEntry("e1", at)})
	a.Observe([]models.PublicEntry{calledEntry("e1", at)})

	if len(announced) != 1 || announced[0] != "e1" {
		t.Fatalf("expected exactly one announcement, got %v", announced)
	}
}

func TestAnnouncerFreshCallOfSameEntryAnnouncesAgain(t *testing.T) {
	var announced []string
	a := NewAnnouncer(func(entry models.PublicEntry) {
		announced = append(announced, entry.EntryID)
	})

	first := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	a.Observe(nil)
	a.Observe([]models.PublicEntry{calledEntry("e1", first)})
	// entry leaves the called set, then is called again later
	a.Observe(nil)
	a.Observe([]models.PublicEntry{calledEntry("e1", second)})

	if len(announced) != 2 {
		t.Fatalf("expected two announcements for two distinct calls, got %v", announced)
	}
}

func TestAnnouncerPrunesDepartedEntries(t *testing.T) {
	a := NewAnnouncer(func(models.PublicEntry) {})

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a.Observe(nil)
	for i := 0; i < 100; i++ {
		a.Observe([]models.PublicEntry{calledEntry("e1", at.Add(time.Duration(i)*time.Minute))})
	}
	a.Observe(nil)

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.seen) != 0 {
		t.Fatalf("expected seen set pruned, got %d keys", len(a.seen))
	}
}

func TestAnnouncerIgnoresEntriesWithoutCalledAt(t *testing.T) {
	var announced []string
	a := NewAnnouncer(func(entry models.PublicEntry) {
		announced = append(announced, entry.EntryID)
	})

	a.Observe(nil)
	a.Observe([]models.PublicEntry{{EntryID: "e1", Status: models.StatusCalled}})

	if len(announced) != 0 {
		t.Fatalf("entries without called_at must not announce, got %v", announced)
	}
}
