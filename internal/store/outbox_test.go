package store

import (
	"testing"
	"time"
)

func TestNormalizedFreshCursor(t *testing.T) {
	got := OutboxCursor{}.Normalized()
	if got.LastEventID != ZeroEventID {
		t.Errorf("LastEventID = %q, want zero uuid", got.LastEventID)
	}
	if got.LastEventTime.IsZero() {
		t.Error("LastEventTime still zero after Normalized")
	}
	if !got.LastEventTime.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("LastEventTime = %v, want unix epoch", got.LastEventTime)
	}
}

func TestNormalizedKeepsAdvancedCursor(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	cursor := OutboxCursor{
		LastEventTime: at,
		LastEventID:   "3f0e8a4e-6c13-4c43-9a54-df31c21f1c3b",
	}
	got := cursor.Normalized()
	if got != cursor {
		t.Errorf("Normalized() = %+v, want unchanged %+v", got, cursor)
	}
}
