package display

import (
	"log"
	"sync"
	"time"

	"clinicops/internal/models"
)

// Announcer turns called-entry observations into at-most-one announcement per
// call. The dedup key is (entry, called_at), so a re-observed call stays
// silent while a fresh call of the same entry announces again.
type Announcer struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	seeded bool
	notify func(models.PublicEntry)
}

// NewAnnouncer wires the announcement sink. A nil notify falls back to
// logging.
func NewAnnouncer(notify func(models.PublicEntry)) *Announcer {
	if notify == nil {
		notify = logAnnouncement
	}
	return &Announcer{
		seen:   make(map[string]struct{}),
		notify: notify,
	}
}

// Observe reconciles the current set of called entries. The first observation
// after startup seeds the dedup set without announcing: calls that happened
// before the board connected are shown, not replayed. Keys for entries no
// longer called are pruned so the set stays bounded.
func (a *Announcer) Observe(called []models.PublicEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := make(map[string]struct{}, len(called))
	var fresh []models.PublicEntry
	for _, entry := range called {
		key := announceKey(entry)
		if key == "" {
			continue
		}
		current[key] = struct{}{}
		if _, ok := a.seen[key]; !ok {
			a.seen[key] = struct{}{}
			if a.seeded {
				fresh = append(fresh, entry)
			}
		}
	}
	for key := range a.seen {
		if _, ok := current[key]; !ok {
			delete(a.seen, key)
		}
	}
	a.seeded = true

	for _, entry := range fresh {
		a.notify(entry)
	}
}

func announceKey(entry models.PublicEntry) string {
	if entry.CalledAt == nil {
		return ""
	}
	return entry.EntryID + "|" + entry.CalledAt.UTC().Format(time.RFC3339Nano)
}

func logAnnouncement(entry models.PublicEntry) {
	log.Printf("announce entry=%s number=%s queue=%s", entry.EntryID, entry.EntryNumber, entry.QueueName)
}
