package models

import "time"

// Acuity levels run 1 (most urgent) to 5 (least urgent).
const (
	AcuityMostUrgent  = 1
	AcuityLeastUrgent = 5
)

const (
	AcuitySourceAI    = "ai"
	AcuitySourceHuman = "human"
)

// TriageSession is one urgency-assessment encounter. Sessions are immutable
// after creation; a correction is a new session, never an edit.
type TriageSession struct {
	SessionID         string     `json:"session_id"`
	TenantID          string     `json:"tenant_id,omitempty"`
	BranchID          string     `json:"branch_id,omitempty"`
	PatientID         string     `json:"patient_id"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	AcuityLevel       int        `json:"acuity_level"`
	AcuitySource      string     `json:"acuity_source"`
	AiSuggestedAcuity *int       `json:"ai_suggested_acuity,omitempty"`
	AiConfidenceScore *float64   `json:"ai_confidence_score,omitempty"`
	AiExplanation     string     `json:"ai_explanation,omitempty"`
	OverrideReason    string     `json:"override_reason,omitempty"`
}

// AiTriageAudit compares an AI suggestion with the clinician's decision for
// one session. Rows are write-once; call latency is filled in when the linked
// entry is actually called.
type AiTriageAudit struct {
	AuditID            string     `json:"audit_id"`
	SessionID          string     `json:"session_id"`
	TenantID           string     `json:"tenant_id,omitempty"`
	BranchID           string     `json:"branch_id,omitempty"`
	SuggestedAcuity    int        `json:"suggested_acuity"`
	ActualAcuity       int        `json:"actual_acuity"`
	Matched            bool       `json:"matched"`
	CallLatencySeconds *float64   `json:"call_latency_seconds,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CalledAt           *time.Time `json:"called_at,omitempty"`
}

// Effectiveness aggregates suggestion quality over a date range. Rates are nil
// (not zero) when no AI suggestion was surfaced in the range.
type Effectiveness struct {
	TotalSessions    int      `json:"total_sessions"`
	AiSessions       int      `json:"ai_sessions"`
	MatchedSessions  int      `json:"matched_sessions"`
	OverrideSessions int      `json:"override_sessions"`
	MatchRate        *float64 `json:"match_rate"`
	OverrideRate     *float64 `json:"override_rate"`
}

// NewEffectiveness derives the rate fields from raw counts.
func NewEffectiveness(total, ai, matched int) Effectiveness {
	result := Effectiveness{
		TotalSessions:    total,
		AiSessions:       ai,
		MatchedSessions:  matched,
		OverrideSessions: ai - matched,
	}
	if ai > 0 {
		match := float64(matched) / float64(ai)
		override := float64(ai-matched) / float64(ai)
		result.MatchRate = &match
		result.OverrideRate = &override
	}
	return result
}
