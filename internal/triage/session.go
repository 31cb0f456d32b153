// Package triage holds the rules for recording urgency decisions and the
// client contract for the external acuity-suggestion service.
package triage

import (
	"strings"

	"clinicops/internal/models"
	"clinicops/internal/store"
)

// ValidateSession enforces the recording invariants: acuity bounds, confidence
// bounds, and the override rule — when an AI suggestion was surfaced and the
// clinician confirmed a different level, a non-empty reason is mandatory.
func ValidateSession(input store.RecordSessionInput) error {
	if !ValidAcuity(input.AcuityLevel) {
		return store.ErrInvalidAcuity
	}
	if input.AiSuggestedAcuity != nil && !ValidAcuity(*input.AiSuggestedAcuity) {
		return store.ErrInvalidAcuity
	}
	if input.AiConfidenceScore != nil && (*input.AiConfidenceScore < 0 || *input.AiConfidenceScore > 1) {
		return store.ErrInvalidConfidence
	}
	if input.AiSuggestedAcuity != nil && *input.AiSuggestedAcuity != input.AcuityLevel {
		if strings.TrimSpace(input.OverrideReason) == "" {
			return store.ErrOverrideReasonRequired
		}
	}
	return nil
}

func ValidAcuity(level int) bool {
	return level >= models.AcuityMostUrgent && level <= models.AcuityLeastUrgent
}

// ResolveSource returns the origin of the initial value shown to the
// clinician. A session without a surfaced suggestion is human by definition,
// even when the clinician later overrides nothing.
func ResolveSource(useAI bool, suggested *int) string {
	if useAI && suggested != nil {
		return models.AcuitySourceAI
	}
	return models.AcuitySourceHuman
}

// Matched reports whether the surfaced suggestion equals the confirmed level.
func Matched(suggested *int, actual int) bool {
	return suggested != nil && *suggested == actual
}
