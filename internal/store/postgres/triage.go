package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinicops/internal/models"
	"clinicops/internal/store"
	"clinicops/internal/triage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `session_id, tenant_id, branch_id, patient_id, started_at, ended_at,
	acuity_level, acuity_source, ai_suggested_acuity, ai_confidence_score, ai_explanation, override_reason`

func scanSession(row pgx.Row) (models.TriageSession, error) {
	var session models.TriageSession
	var endedAt sql.NullTime
	var suggested sql.NullInt32
	var confidence sql.NullFloat64
	var explanation, overrideReason sql.NullString
	if err := row.Scan(
		&session.SessionID, &session.TenantID, &session.BranchID, &session.PatientID,
		&session.StartedAt, &endedAt, &session.AcuityLevel, &session.AcuitySource,
		&suggested, &confidence, &explanation, &overrideReason,
	); err != nil {
		return models.TriageSession{}, err
	}
	session.EndedAt = nullTimePtr(endedAt)
	if suggested.Valid {
		level := int(suggested.Int32)
		session.AiSuggestedAcuity = &level
	}
	if confidence.Valid {
		score := confidence.Float64
		session.AiConfidenceScore = &score
	}
	if explanation.Valid {
		session.AiExplanation = explanation.String
	}
	if overrideReason.Valid {
		session.OverrideReason = overrideReason.String
	}
	return session, nil
}

// RecordTriageSession persists a finished assessment. When an AI suggestion
// was surfaced the audit row is written in the same transaction, with the
// match verdict fixed at record time; call latency stays null until the
// linked entry is called.
func (s *Store) RecordTriageSession(ctx context.Context, input store.RecordSessionInput) (models.TriageSession, error) {
	if err := triage.ValidateSession(input); err != nil {
		return models.TriageSession{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.TriageSession{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	startedAt := input.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	source := triage.ResolveSource(input.UseAiSuggestion, input.AiSuggestedAcuity)

	row := tx.QueryRow(ctx, `
		INSERT INTO triage_sessions (
			session_id, tenant_id, branch_id, patient_id, started_at, ended_at,
			acuity_level, acuity_source, ai_suggested_acuity, ai_confidence_score,
			ai_explanation, override_reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+sessionColumns+`
	`, uuid.NewString(), input.TenantID, input.BranchID, input.PatientID, startedAt, input.EndedAt,
		input.AcuityLevel, source, input.AiSuggestedAcuity, input.AiConfidenceScore,
		nullIfEmpty(input.AiExplanation), nullIfEmpty(input.OverrideReason))

	session, err := scanSession(row)
	if err != nil {
		return models.TriageSession{}, err
	}

	if input.AiSuggestedAcuity != nil {
		matched := triage.Matched(input.AiSuggestedAcuity, input.AcuityLevel)
		_, err = tx.Exec(ctx, `
			INSERT INTO ai_triage_audits (
				audit_id, session_id, tenant_id, branch_id,
				suggested_acuity, actual_acuity, matched, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, uuid.NewString(), session.SessionID, input.TenantID, input.BranchID,
			*input.AiSuggestedAcuity, input.AcuityLevel, matched, time.Now().UTC())
		if err != nil {
			return models.TriageSession{}, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return models.TriageSession{}, err
	}
	return session, nil
}

func (s *Store) GetTriageSession(ctx context.Context, tenantID, sessionID string) (models.TriageSession, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM triage_sessions
		WHERE session_id = $1 AND tenant_id = $2
	`, sessionID, tenantID)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TriageSession{}, store.ErrSessionNotFound
		}
		return models.TriageSession{}, err
	}
	return session, nil
}

// Effectiveness aggregates suggestion quality over [from, to). Rates come out
// nil when no AI suggestion appeared in the window.
func (s *Store) Effectiveness(ctx context.Context, tenantID, branchID string, from, to time.Time) (models.Effectiveness, error) {
	var total, ai, matched int
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE ai_suggested_acuity IS NOT NULL),
			COUNT(*) FILTER (WHERE ai_suggested_acuity IS NOT NULL AND ai_suggested_acuity = acuity_level)
		FROM triage_sessions
		WHERE tenant_id = $1 AND branch_id = $2
			AND started_at >= $3 AND started_at < $4
	`, tenantID, branchID, from, to)
	if err := row.Scan(&total, &ai, &matched); err != nil {
		return models.Effectiveness{}, err
	}
	return models.NewEffectiveness(total, ai, matched), nil
}

func lookupSessionAcuity(ctx context.Context, tx pgx.Tx, tenantID, sessionID string) (int, error) {
	var level int
	row := tx.QueryRow(ctx, `
		SELECT acuity_level
		FROM triage_sessions
		WHERE session_id = $1 AND tenant_id = $2
	`, sessionID, tenantID)
	if err := row.Scan(&level); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrSessionNotFound
		}
		return 0, err
	}
	return level, nil
}

// markAuditCalled stamps the call timestamp and latency onto the audit row,
// first call wins.
func markAuditCalled(ctx context.Context, tx pgx.Tx, sessionID string, joinedAt, calledAt time.Time) error {
	latency := calledAt.Sub(joinedAt).Seconds()
	_, err := tx.Exec(ctx, `
		UPDATE ai_triage_audits
		SET called_at = $2, call_latency_seconds = $3
		WHERE session_id = $1 AND called_at IS NULL
	`, sessionID, calledAt, latency)
	return err
}
