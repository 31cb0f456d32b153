package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"clinicops/internal/models"
)

// EntryEvent is one link in an entry's hash-chained transition ledger. The
// chain makes after-the-fact edits detectable, which matters for out-of-order
// call overrides.
type EntryEvent struct {
	EntryID   string          `json:"entry_id"`
	EntrySeq  int             `json:"entry_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	EntryID         string     `json:"entry_id"`
	EntryNumber     string     `json:"entry_number"`
	Status          string     `json:"status"`
	TenantID        string     `json:"tenant_id"`
	BranchID        string     `json:"branch_id"`
	QueueID         string     `json:"queue_id"`
	PatientID       string     `json:"patient_id"`
	TriageSessionID *string    `json:"triage_session_id"`
	AcuityLevel     *int       `json:"acuity_level"`
	JoinedAt        *time.Time `json:"joined_at"`
	CalledAt        *time.Time `json:"called_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CalledBy        *string    `json:"called_by"`
	OverrideReason  string     `json:"override_reason"`
}

func ComputeEntryEventHash(prevHash, entryID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, entryID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// RehydrateEntry folds a ledger back into the entry's latest state.
func RehydrateEntry(events []EntryEvent) (models.QueueEntry, error) {
	var entry models.QueueEntry
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.QueueEntry{}, err
		}
		if payload.EntryID != "" {
			entry.EntryID = payload.EntryID
		}
		if payload.EntryNumber != "" {
			entry.EntryNumber = payload.EntryNumber
		}
		if payload.TenantID != "" {
			entry.TenantID = payload.TenantID
		}
		if payload.BranchID != "" {
			entry.BranchID = payload.BranchID
		}
		if payload.QueueID != "" {
			entry.QueueID = payload.QueueID
		}
		if payload.PatientID != "" {
			entry.PatientID = payload.PatientID
		}
		if payload.TriageSessionID != nil {
			entry.TriageSessionID = payload.TriageSessionID
		}
		if payload.AcuityLevel != nil {
			entry.AcuityLevel = payload.AcuityLevel
		}
		if payload.Status != "" {
			entry.Status = payload.Status
		}
		if payload.JoinedAt != nil {
			entry.JoinedAt = *payload.JoinedAt
		}
		if payload.CalledAt != nil {
			entry.CalledAt = payload.CalledAt
		}
		if payload.CompletedAt != nil {
			entry.CompletedAt = payload.CompletedAt
		}
		if payload.CalledBy != nil {
			entry.CalledBy = payload.CalledBy
		}
	}
	return entry, nil
}
