package store

import (
	"context"
	"encoding/json"
	"time"

	"clinicops/internal/models"
)

type CreateEntryInput struct {
	RequestID       string
	TenantID        string
	BranchID        string
	QueueID         string
	PatientID       string
	TriageSessionID string
	AppointmentID   string
	JoinedAt        time.Time
}

type CallNextInput struct {
	RequestID string
	TenantID  string
	BranchID  string
	QueueID   string
	CalledBy  string
	CalledAt  time.Time
}

type CallEntryInput struct {
	RequestID      string
	TenantID       string
	BranchID       string
	EntryID        string
	CalledBy       string
	OverrideReason string
	CalledAt       time.Time
}

type EntryActionInput struct {
	RequestID  string
	TenantID   string
	BranchID   string
	EntryID    string
	OccurredAt time.Time
}

type RecordSessionInput struct {
	TenantID          string
	BranchID          string
	PatientID         string
	AcuityLevel       int
	UseAiSuggestion   bool
	AiSuggestedAcuity *int
	AiConfidenceScore *float64
	AiExplanation     string
	OverrideReason    string
	StartedAt         time.Time
	EndedAt           *time.Time
}

// Store is the persistence boundary of the queue subsystem. Mutating calls
// return (entity, applied, error); applied is false when a request token was
// replayed and the prior result is being returned.
type Store interface {
	ListQueueDefinitions(ctx context.Context, tenantID, branchID string) ([]models.QueueDefinition, error)
	CreateEntry(ctx context.Context, input CreateEntryInput) (models.QueueEntry, bool, error)
	GetEntry(ctx context.Context, tenantID, branchID, entryID string) (models.QueueEntry, error)
	ListEntries(ctx context.Context, tenantID, branchID, queueID string) ([]models.QueueEntry, error)
	CallNext(ctx context.Context, input CallNextInput) (models.QueueEntry, bool, error)
	CallEntry(ctx context.Context, input CallEntryInput) (models.QueueEntry, bool, error)
	CompleteEntry(ctx context.Context, input EntryActionInput) (models.QueueEntry, bool, error)
	CancelEntry(ctx context.Context, input EntryActionInput) (models.QueueEntry, bool, error)
	PublicStatus(ctx context.Context, tenantID, branchID string) (models.PublicStatus, error)
	ListOutboxEvents(ctx context.Context, tenantID string, after time.Time, limit int) ([]OutboxEvent, error)
	ListEntryEvents(ctx context.Context, tenantID, entryID string) ([]EntryEvent, error)
	RecordTriageSession(ctx context.Context, input RecordSessionInput) (models.TriageSession, error)
	GetTriageSession(ctx context.Context, tenantID, sessionID string) (models.TriageSession, error)
	Effectiveness(ctx context.Context, tenantID, branchID string, from, to time.Time) (models.Effectiveness, error)
}

// Broadcast event types carried on the outbox. Events are cues to re-fetch,
// never the source of truth.
const (
	EventQueueUpdate   = "QUEUE_UPDATE"
	EventPatientCalled = "PATIENT_CALLED"
)

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	TenantID  string          `json:"tenant_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
