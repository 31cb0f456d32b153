package models

import "time"

// QueueDefinition is a named, branch-scoped waiting line. Definitions are
// created by configuration and never deleted while entries reference them.
type QueueDefinition struct {
	QueueID      string `json:"queue_id"`
	TenantID     string `json:"tenant_id"`
	BranchID     string `json:"branch_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	AcuityFilter []int  `json:"acuity_filter,omitempty"`
	DisplayOrder int    `json:"display_order"`
	Active       bool   `json:"active"`
}

// QueueEntry is one patient's occupancy of a queue. Position is computed per
// query from rank, never stored. AcuityLevel is copied from the triage session
// at check-in and immutable afterwards; nil means the patient has not been
// triaged yet.
type QueueEntry struct {
	EntryID         string     `json:"entry_id"`
	EntryNumber     string     `json:"entry_number"`
	TenantID        string     `json:"tenant_id,omitempty"`
	BranchID        string     `json:"branch_id,omitempty"`
	QueueID         string     `json:"queue_id"`
	PatientID       string     `json:"patient_id,omitempty"`
	TriageSessionID *string    `json:"triage_session_id,omitempty"`
	AppointmentID   *string    `json:"appointment_id,omitempty"`
	Position        *int       `json:"position,omitempty"`
	Status          string     `json:"status"`
	AcuityLevel     *int       `json:"acuity_level,omitempty"`
	JoinedAt        time.Time  `json:"joined_at"`
	CalledAt        *time.Time `json:"called_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CalledBy        *string    `json:"called_by,omitempty"`
	RequestID       string     `json:"request_id,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// PublicEntry is the lobby-safe projection of a queue entry: display code and
// queue only, no patient identifiers and no clinical data.
type PublicEntry struct {
	EntryID     string     `json:"entry_id"`
	EntryNumber string     `json:"entry_number"`
	QueueID     string     `json:"queue_id"`
	QueueName   string     `json:"queue_name"`
	Status      string     `json:"status"`
	Position    *int       `json:"position,omitempty"`
	JoinedAt    time.Time  `json:"joined_at"`
	CalledAt    *time.Time `json:"called_at,omitempty"`
}

type PublicStatus struct {
	CalledEntries  []PublicEntry `json:"called_entries"`
	WaitingEntries []PublicEntry `json:"waiting_entries"`
}
