package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinicops/internal/models"
	"clinicops/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryNumberPad = 3

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const entryColumns = `entry_id, entry_number, status, joined_at, called_at, completed_at, called_by,
	queue_id, patient_id, triage_session_id, appointment_id, acuity_level, branch_id, tenant_id`

func scanEntry(row pgx.Row) (models.QueueEntry, error) {
	var entry models.QueueEntry
	var calledAt, completedAt sql.NullTime
	var calledBy, sessionID, appointmentID sql.NullString
	var acuity sql.NullInt32
	if err := row.Scan(
		&entry.EntryID, &entry.EntryNumber, &entry.Status, &entry.JoinedAt, &calledAt, &completedAt, &calledBy,
		&entry.QueueID, &entry.PatientID, &sessionID, &appointmentID, &acuity, &entry.BranchID, &entry.TenantID,
	); err != nil {
		return models.QueueEntry{}, err
	}
	entry.CalledAt = nullTimePtr(calledAt)
	entry.CompletedAt = nullTimePtr(completedAt)
	entry.CalledBy = nullStringPtr(calledBy)
	entry.TriageSessionID = nullStringPtr(sessionID)
	entry.AppointmentID = nullStringPtr(appointmentID)
	if acuity.Valid {
		level := int(acuity.Int32)
		entry.AcuityLevel = &level
	}
	return entry, nil
}

func (s *Store) ListQueueDefinitions(ctx context.Context, tenantID, branchID string) ([]models.QueueDefinition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT queue_id, tenant_id, branch_id, code, name, acuity_filter, display_order, active
		FROM queue_definitions
		WHERE tenant_id = $1 AND branch_id = $2 AND active = TRUE
		ORDER BY display_order ASC, name ASC
	`, tenantID, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var definitions []models.QueueDefinition
	for rows.Next() {
		var def models.QueueDefinition
		var filter []int32
		if err := rows.Scan(&def.QueueID, &def.TenantID, &def.BranchID, &def.Code, &def.Name, &filter, &def.DisplayOrder, &def.Active); err != nil {
			return nil, err
		}
		def.AcuityFilter = toIntSlice(filter)
		definitions = append(definitions, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return definitions, nil
}

func (s *Store) CreateEntry(ctx context.Context, input store.CreateEntryInput) (models.QueueEntry, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findEntryByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, false, err
		}
		return existing, false, nil
	}

	queueCode, acuityFilter, err := lookupQueue(ctx, tx, input.TenantID, input.BranchID, input.QueueID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}

	var acuity *int
	if input.TriageSessionID != "" {
		level, err2 := lookupSessionAcuity(ctx, tx, input.TenantID, input.TriageSessionID)
		if err2 != nil {
			err = err2
			return models.QueueEntry{}, false, err
		}
		acuity = &level
	}
	if err = checkAcuityAdmission(acuityFilter, acuity); err != nil {
		return models.QueueEntry{}, false, err
	}

	seq, err := nextEntryNumber(ctx, tx, input.BranchID, input.QueueID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	formattedNumber := fmt.Sprintf("%s-%0*d", queueCode, entryNumberPad, seq)

	joinedAt := input.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO queue_entries (
			entry_id, request_id, entry_number, tenant_id, branch_id, queue_id, patient_id,
			triage_session_id, appointment_id, status, acuity_level, joined_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+entryColumns+`
	`, uuid.NewString(), input.RequestID, formattedNumber, input.TenantID, input.BranchID, input.QueueID,
		input.PatientID, nullIfEmpty(input.TriageSessionID), nullIfEmpty(input.AppointmentID),
		models.StatusWaiting, acuity, joinedAt)

	entry, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	entry.RequestID = input.RequestID

	if err = insertBroadcastEvent(ctx, tx, store.EventQueueUpdate, "entry.joined", entry, ""); err != nil {
		return models.QueueEntry{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

func (s *Store) GetEntry(ctx context.Context, tenantID, branchID, entryID string) (models.QueueEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE entry_id = $1 AND tenant_id = $2 AND branch_id = $3
	`, entryID, tenantID, branchID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, store.ErrEntryNotFound
		}
		return models.QueueEntry{}, err
	}
	return entry, nil
}

// ListEntries returns the active working set of a queue: CALLED entries in
// call order followed by WAITING entries in rank order. Positions are
// recomputed from rank per query, never read from storage.
func (s *Store) ListEntries(ctx context.Context, tenantID, branchID, queueID string) ([]models.QueueEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE tenant_id = $1 AND branch_id = $2 AND queue_id = $3
			AND status IN ('called', 'waiting')
		ORDER BY (status = 'called') DESC, called_at ASC,
			acuity_level ASC NULLS LAST, joined_at ASC
	`, tenantID, branchID, queueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	models.ComputePositions(entries)
	return entries, nil
}

func (s *Store) CallNext(ctx context.Context, input store.CallNextInput) (models.QueueEntry, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call", input.RequestID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, false, err
		}
		if empty {
			return models.QueueEntry{}, false, store.ErrNoEntry
		}
		return existing, false, nil
	}

	// Serialization point for the whole queue: two staff calling "next" at
	// once are ordered here, so the loser claims the following rank instead
	// of double-calling the same entry.
	if err = lockQueue(ctx, tx, input.TenantID, input.BranchID, input.QueueID); err != nil {
		return models.QueueEntry{}, false, err
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		WITH next_entry AS (
			SELECT entry_id
			FROM queue_entries
			WHERE tenant_id = $1 AND branch_id = $2 AND queue_id = $3 AND status = 'waiting'
			ORDER BY acuity_level ASC NULLS LAST, joined_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE queue_entries
		SET status = 'called',
			called_at = $4,
			called_by = $5
		FROM next_entry
		WHERE queue_entries.entry_id = next_entry.entry_id
		RETURNING `+entryColumns+`
	`, input.TenantID, input.BranchID, input.QueueID, calledAt, nullIfEmpty(input.CalledBy))

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err = insertActionRequest(ctx, tx, "call", input.RequestID, input.TenantID, input.BranchID, input.QueueID, ""); err != nil {
				return models.QueueEntry{}, false, err
			}
			if err = tx.Commit(ctx); err != nil {
				return models.QueueEntry{}, false, err
			}
			return models.QueueEntry{}, false, store.ErrNoEntry
		}
		return models.QueueEntry{}, false, err
	}
	entry.RequestID = input.RequestID

	if err = s.finishCall(ctx, tx, input.RequestID, entry, ""); err != nil {
		return models.QueueEntry{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

// CallEntry calls a specific entry. Out-of-order calls are rejected unless an
// override reason is supplied; the reason ends up in the entry ledger and the
// broadcast payload. Skipped entries keep their computed rank.
func (s *Store) CallEntry(ctx context.Context, input store.CallEntryInput) (models.QueueEntry, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, "call", input.RequestID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, false, err
		}
		if empty {
			return models.QueueEntry{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	queueID, err := lookupEntryQueue(ctx, tx, input.TenantID, input.BranchID, input.EntryID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if err = lockQueue(ctx, tx, input.TenantID, input.BranchID, queueID); err != nil {
		return models.QueueEntry{}, false, err
	}

	topID, err := topWaitingEntry(ctx, tx, input.TenantID, input.BranchID, queueID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if topID != input.EntryID && input.OverrideReason == "" {
		err = store.ErrNotNextEntry
		return models.QueueEntry{}, false, err
	}
	overrideReason := ""
	if topID != input.EntryID {
		overrideReason = input.OverrideReason
	}

	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'called',
			called_at = $4,
			called_by = $5,
			override_reason = $6
		WHERE entry_id = $1 AND tenant_id = $2 AND branch_id = $3 AND status = 'waiting'
		RETURNING `+entryColumns+`
	`, input.EntryID, input.TenantID, input.BranchID, calledAt, nullIfEmpty(input.CalledBy), nullIfEmpty(overrideReason))

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status, exists, err2 := loadEntryStatus(ctx, tx, input.EntryID, input.TenantID, input.BranchID)
			if err2 != nil {
				err = err2
				return models.QueueEntry{}, false, err
			}
			if !exists {
				err = store.ErrEntryNotFound
				return models.QueueEntry{}, false, err
			}
			_ = status
			err = store.ErrInvalidState
			return models.QueueEntry{}, false, err
		}
		return models.QueueEntry{}, false, err
	}
	entry.RequestID = input.RequestID

	if err = s.finishCall(ctx, tx, input.RequestID, entry, overrideReason); err != nil {
		return models.QueueEntry{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

// finishCall records the shared tail of both call paths: idempotency marker,
// audit latency, broadcast, ledger.
func (s *Store) finishCall(ctx context.Context, tx pgx.Tx, requestID string, entry models.QueueEntry, overrideReason string) error {
	if err := insertActionRequest(ctx, tx, "call", requestID, entry.TenantID, entry.BranchID, entry.QueueID, entry.EntryID); err != nil {
		return err
	}
	if entry.TriageSessionID != nil && entry.CalledAt != nil {
		if err := markAuditCalled(ctx, tx, *entry.TriageSessionID, entry.JoinedAt, *entry.CalledAt); err != nil {
			return err
		}
	}
	return insertBroadcastEvent(ctx, tx, store.EventPatientCalled, "entry.called", entry, overrideReason)
}

func (s *Store) CompleteEntry(ctx context.Context, input store.EntryActionInput) (models.QueueEntry, bool, error) {
	return s.updateEntryStatus(ctx, input, "complete", models.StatusCalled, models.StatusCompleted, "entry.completed", "completed_at")
}

func (s *Store) CancelEntry(ctx context.Context, input store.EntryActionInput) (models.QueueEntry, bool, error) {
	return s.updateEntryStatus(ctx, input, "cancel", models.StatusWaiting, models.StatusCancelled, "entry.cancelled", "")
}

func (s *Store) updateEntryStatus(ctx context.Context, input store.EntryActionInput, action, fromStatus, toStatus, eventType, timestampColumn string) (models.QueueEntry, bool, error) {
	if !store.ValidTransition(action, fromStatus) {
		return models.QueueEntry{}, false, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.QueueEntry{}, false, err
		}
		if empty {
			return models.QueueEntry{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	updateQuery := `
		UPDATE queue_entries
		SET status = $1
	`
	args := []interface{}{toStatus}
	argPos := 2
	if timestampColumn != "" {
		updateQuery += fmt.Sprintf(", %s = $%d", timestampColumn, argPos)
		args = append(args, occurredAt)
		argPos++
	}
	updateQuery += fmt.Sprintf(`
		WHERE entry_id = $%d AND tenant_id = $%d AND branch_id = $%d AND status = $%d
		RETURNING `+entryColumns, argPos, argPos+1, argPos+2, argPos+3)
	args = append(args, input.EntryID, input.TenantID, input.BranchID, fromStatus)

	row := tx.QueryRow(ctx, updateQuery, args...)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_, exists, err2 := loadEntryStatus(ctx, tx, input.EntryID, input.TenantID, input.BranchID)
			if err2 != nil {
				err = err2
				return models.QueueEntry{}, false, err
			}
			if !exists {
				err = store.ErrEntryNotFound
				return models.QueueEntry{}, false, err
			}
			err = store.ErrInvalidState
			return models.QueueEntry{}, false, err
		}
		return models.QueueEntry{}, false, err
	}
	entry.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, action, input.RequestID, input.TenantID, input.BranchID, entry.QueueID, entry.EntryID); err != nil {
		return models.QueueEntry{}, false, err
	}
	if err = insertBroadcastEvent(ctx, tx, store.EventQueueUpdate, eventType, entry, ""); err != nil {
		return models.QueueEntry{}, false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, false, err
	}
	return entry, true, nil
}

// PublicStatus is the lobby projection: currently-called entries plus the
// waiting line, display codes only.
func (s *Store) PublicStatus(ctx context.Context, tenantID, branchID string) (models.PublicStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.entry_id, e.entry_number, e.queue_id, q.name, e.status, e.joined_at, e.called_at,
			e.acuity_level
		FROM queue_entries e
		JOIN queue_definitions q ON q.queue_id = e.queue_id
		WHERE e.tenant_id = $1 AND e.branch_id = $2
			AND e.status IN ('called', 'waiting')
		ORDER BY (e.status = 'called') DESC, e.called_at DESC,
			e.acuity_level ASC NULLS LAST, e.joined_at ASC
	`, tenantID, branchID)
	if err != nil {
		return models.PublicStatus{}, err
	}
	defer rows.Close()

	status := models.PublicStatus{
		CalledEntries:  []models.PublicEntry{},
		WaitingEntries: []models.PublicEntry{},
	}
	// Positions count waiting entries within their own queue, not across the
	// whole branch.
	positions := make(map[string]int)
	for rows.Next() {
		var entry models.PublicEntry
		var calledAt sql.NullTime
		var acuity sql.NullInt32
		if err := rows.Scan(&entry.EntryID, &entry.EntryNumber, &entry.QueueID, &entry.QueueName, &entry.Status, &entry.JoinedAt, &calledAt, &acuity); err != nil {
			return models.PublicStatus{}, err
		}
		entry.CalledAt = nullTimePtr(calledAt)
		if entry.Status == models.StatusCalled {
			status.CalledEntries = append(status.CalledEntries, entry)
			continue
		}
		positions[entry.QueueID]++
		p := positions[entry.QueueID]
		entry.Position = &p
		status.WaitingEntries = append(status.WaitingEntries, entry)
	}
	if err := rows.Err(); err != nil {
		return models.PublicStatus{}, err
	}
	return status, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, tenantID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, tenant_id, type, payload_json, created_at
		FROM outbox_events
		WHERE tenant_id = $1
	`
	args := []interface{}{tenantID}
	if !after.IsZero() {
		query += " AND created_at > $2 ORDER BY created_at ASC LIMIT $3"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) ListEntryEvents(ctx context.Context, tenantID, entryID string) ([]store.EntryEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT v.entry_id, v.entry_seq, v.type, v.payload, v.created_at, v.prev_hash, v.hash
		FROM entry_events v
		JOIN queue_entries e ON e.entry_id = v.entry_id
		WHERE e.tenant_id = $1 AND v.entry_id = $2
		ORDER BY v.entry_seq ASC
	`, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.EntryEvent
	for rows.Next() {
		var event store.EntryEvent
		if err := rows.Scan(&event.EntryID, &event.EntrySeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func lookupQueue(ctx context.Context, tx pgx.Tx, tenantID, branchID, queueID string) (string, []int, error) {
	var code string
	var active bool
	var filter []int32
	row := tx.QueryRow(ctx, `
		SELECT code, active, acuity_filter
		FROM queue_definitions
		WHERE queue_id = $1 AND tenant_id = $2 AND branch_id = $3
	`, queueID, tenantID, branchID)
	if err := row.Scan(&code, &active, &filter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, store.ErrQueueNotFound
		}
		return "", nil, err
	}
	if !active {
		return "", nil, store.ErrQueueInactive
	}
	return code, toIntSlice(filter), nil
}

// lockQueue takes the per-queue row lock that serializes call decisions.
func lockQueue(ctx context.Context, tx pgx.Tx, tenantID, branchID, queueID string) error {
	var queue string
	row := tx.QueryRow(ctx, `
		SELECT queue_id
		FROM queue_definitions
		WHERE queue_id = $1 AND tenant_id = $2 AND branch_id = $3 AND active = TRUE
		FOR UPDATE
	`, queueID, tenantID, branchID)
	if err := row.Scan(&queue); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrQueueNotFound
		}
		return err
	}
	return nil
}

func lookupEntryQueue(ctx context.Context, tx pgx.Tx, tenantID, branchID, entryID string) (string, error) {
	var queueID string
	row := tx.QueryRow(ctx, `
		SELECT queue_id
		FROM queue_entries
		WHERE entry_id = $1 AND tenant_id = $2 AND branch_id = $3
	`, entryID, tenantID, branchID)
	if err := row.Scan(&queueID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrEntryNotFound
		}
		return "", err
	}
	return queueID, nil
}

func topWaitingEntry(ctx context.Context, tx pgx.Tx, tenantID, branchID, queueID string) (string, error) {
	var entryID string
	row := tx.QueryRow(ctx, `
		SELECT entry_id
		FROM queue_entries
		WHERE tenant_id = $1 AND branch_id = $2 AND queue_id = $3 AND status = 'waiting'
		ORDER BY acuity_level ASC NULLS LAST, joined_at ASC
		LIMIT 1
	`, tenantID, branchID, queueID)
	if err := row.Scan(&entryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return entryID, nil
}

func checkAcuityAdmission(filter []int, acuity *int) error {
	if len(filter) == 0 {
		return nil
	}
	if acuity == nil {
		return store.ErrAcuityNotAllowed
	}
	for _, level := range filter {
		if level == *acuity {
			return nil
		}
	}
	return store.ErrAcuityNotAllowed
}

func nextEntryNumber(ctx context.Context, tx pgx.Tx, branchID, queueID string) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO entry_sequences (branch_id, queue_id, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (branch_id, queue_id)
		DO UPDATE SET next_number = entry_sequences.next_number + 1
		RETURNING next_number
	`, branchID, queueID)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func findEntryByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.QueueEntry, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE request_id = $1
	`, requestID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, false, nil
		}
		return models.QueueEntry{}, false, err
	}
	entry.RequestID = requestID
	return entry, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.QueueEntry, bool, bool, error) {
	var entryID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT entry_id
		FROM entry_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&entryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueEntry{}, false, false, nil
		}
		return models.QueueEntry{}, false, false, err
	}
	if !entryID.Valid {
		return models.QueueEntry{}, true, true, nil
	}

	row = tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE entry_id = $1
	`, entryID.String)
	entry, err := scanEntry(row)
	if err != nil {
		return models.QueueEntry{}, false, false, err
	}
	entry.RequestID = requestID
	return entry, true, false, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, tenantID, branchID, queueID, entryID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO entry_action_requests (request_id, action, tenant_id, branch_id, queue_id, entry_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, tenantID, branchID, nullIfEmpty(queueID), nullIfEmpty(entryID))
	return err
}

func loadEntryStatus(ctx context.Context, tx pgx.Tx, entryID, tenantID, branchID string) (string, bool, error) {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status
		FROM queue_entries
		WHERE entry_id = $1 AND tenant_id = $2 AND branch_id = $3
	`, entryID, tenantID, branchID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return status, true, nil
}

// insertBroadcastEvent writes the outbox envelope consumed by the realtime
// fan-out and appends the matching ledger event in the same transaction.
// Events are advisory: the snapshot rides along, but subscribers re-fetch.
func insertBroadcastEvent(ctx context.Context, tx pgx.Tx, broadcastType, ledgerType string, entry models.QueueEntry, overrideReason string) error {
	payload := map[string]interface{}{
		"queue_id":  entry.QueueID,
		"entry_id":  entry.EntryID,
		"tenant_id": entry.TenantID,
		"branch_id": entry.BranchID,
		"snapshot":  entry,
	}
	if overrideReason != "" {
		payload["override_reason"] = overrideReason
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, tenant_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), entry.TenantID, broadcastType, payloadJSON, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertLedgerEvent(ctx, tx, entry, ledgerType, overrideReason)
}

func insertLedgerEvent(ctx context.Context, tx pgx.Tx, entry models.QueueEntry, eventType, overrideReason string) error {
	ledger := map[string]interface{}{
		"entry_id":          entry.EntryID,
		"entry_number":      entry.EntryNumber,
		"status":            entry.Status,
		"tenant_id":         entry.TenantID,
		"branch_id":         entry.BranchID,
		"queue_id":          entry.QueueID,
		"patient_id":        entry.PatientID,
		"triage_session_id": entry.TriageSessionID,
		"acuity_level":      entry.AcuityLevel,
		"joined_at":         entry.JoinedAt,
		"called_at":         entry.CalledAt,
		"completed_at":      entry.CompletedAt,
		"called_by":         entry.CalledBy,
	}
	if overrideReason != "" {
		ledger["override_reason"] = overrideReason
	}
	payload, err := json.Marshal(ledger)
	if err != nil {
		return err
	}

	// Per-entry advisory lock keeps the chain linear under concurrent writers.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, entry.EntryID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT entry_seq, hash
		FROM entry_events
		WHERE entry_id = $1
		ORDER BY entry_seq DESC
		LIMIT 1
		FOR UPDATE
	`, entry.EntryID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	createdAt := time.Now().UTC()
	hash := store.ComputeEntryEventHash(prev, entry.EntryID, eventType, payload, createdAt, nextSeq)

	_, err = tx.Exec(ctx, `
		INSERT INTO entry_events (entry_id, entry_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.EntryID, nextSeq, eventType, payload, createdAt, prev, hash)
	return err
}

func toIntSlice(values []int32) []int {
	if len(values) == 0 {
		return nil
	}
	result := make([]int, len(values))
	for i, v := range values {
		result[i] = int(v)
	}
	return result
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
