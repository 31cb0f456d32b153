package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinicops/internal/store"

	"github.com/jackc/pgx/v5"
)

// ListOutboxSince reads the outbox across all tenants in creation order,
// strictly after the cursor. Ties on created_at fall back to event_id so a
// cursor never skips or repeats within a batch boundary.
func (s *Store) ListOutboxSince(ctx context.Context, cursor store.OutboxCursor, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	cursor = cursor.Normalized()
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, tenant_id, type, payload_json, created_at
		FROM outbox_events
		WHERE (created_at, event_id) > ($1, $2)
		ORDER BY created_at ASC, event_id ASC
		LIMIT $3
	`, cursor.LastEventTime, cursor.LastEventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.TenantID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetConsumerOffset(ctx context.Context, consumer string) (store.OutboxCursor, error) {
	var cursor store.OutboxCursor
	var lastID sql.NullString
	row := s.pool.QueryRow(ctx, `
		SELECT last_event_time, last_event_id
		FROM consumer_offsets
		WHERE consumer = $1
	`, consumer)
	if err := row.Scan(&cursor.LastEventTime, &lastID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.OutboxCursor{}.Normalized(), nil
		}
		return store.OutboxCursor{}, err
	}
	if lastID.Valid {
		cursor.LastEventID = lastID.String
	}
	return cursor.Normalized(), nil
}

func (s *Store) UpdateConsumerOffset(ctx context.Context, consumer string, cursor store.OutboxCursor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO consumer_offsets (consumer, last_event_time, last_event_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer)
		DO UPDATE SET last_event_time = EXCLUDED.last_event_time,
			last_event_id = EXCLUDED.last_event_id
	`, consumer, cursor.LastEventTime, cursor.LastEventID)
	return err
}

// CleanupOutbox drops events older than the horizon. Late consumers past the
// horizon fall back to re-fetching current state.
func (s *Store) CleanupOutbox(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM outbox_events
		WHERE created_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
