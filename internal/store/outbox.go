package store

import (
	"context"
	"time"
)

// ZeroEventID is the uuid floor for a fresh cursor. The tuple comparison
// types its id parameter as uuid, so an empty string never reaches the server.
const ZeroEventID = "00000000-0000-0000-0000-000000000000"

// OutboxCursor marks how far a consumer has read. The (time, id) pair breaks
// ties between events created in the same microsecond.
type OutboxCursor struct {
	LastEventTime time.Time
	LastEventID   string
}

// Normalized returns the cursor with unset fields replaced by the feed floor,
// ready to use in the (created_at, event_id) comparison.
func (c OutboxCursor) Normalized() OutboxCursor {
	if c.LastEventID == "" {
		c.LastEventID = ZeroEventID
	}
	if c.LastEventTime.IsZero() {
		c.LastEventTime = time.Unix(0, 0).UTC()
	}
	return c
}

// OutboxSource is the feed the realtime fan-out polls. Delivery is
// at-least-once: a consumer that crashes before advancing its cursor sees the
// tail again.
type OutboxSource interface {
	ListOutboxSince(ctx context.Context, cursor OutboxCursor, limit int) ([]OutboxEvent, error)
	GetConsumerOffset(ctx context.Context, consumer string) (OutboxCursor, error)
	UpdateConsumerOffset(ctx context.Context, consumer string, cursor OutboxCursor) error
	CleanupOutbox(ctx context.Context, before time.Time) (int64, error)
}
