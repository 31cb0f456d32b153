package triage

import (
	"errors"
	"testing"

	"clinicops/internal/models"
	"clinicops/internal/store"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestValidateSessionAcuityBounds(t *testing.T) {
	if err := ValidateSession(store.RecordSessionInput{AcuityLevel: 0}); !errors.Is(err, store.ErrInvalidAcuity) {
		t.Fatalf("expected invalid acuity for level 0, got %v", err)
	}
	if err := ValidateSession(store.RecordSessionInput{AcuityLevel: 6}); !errors.Is(err, store.ErrInvalidAcuity) {
		t.Fatalf("expected invalid acuity for level 6, got %v", err)
	}
	if err := ValidateSession(store.RecordSessionInput{AcuityLevel: 3}); err != nil {
		t.Fatalf("expected level 3 valid, got %v", err)
	}
}

func TestValidateSessionSuggestedAcuityBounds(t *testing.T) {
	input := store.RecordSessionInput{AcuityLevel: 3, AiSuggestedAcuity: intPtr(9)}
	if err := ValidateSession(input); !errors.Is(err, store.ErrInvalidAcuity) {
		t.Fatalf("expected invalid suggested acuity, got %v", err)
	}
}

func TestValidateSessionConfidenceBounds(t *testing.T) {
	input := store.RecordSessionInput{AcuityLevel: 3, AiSuggestedAcuity: intPtr(3), AiConfidenceScore: floatPtr(1.4)}
	if err := ValidateSession(input); !errors.Is(err, store.ErrInvalidConfidence) {
		t.Fatalf("expected invalid confidence, got %v", err)
	}

	input.AiConfidenceScore = floatPtr(-0.1)
	if err := ValidateSession(input); !errors.Is(err, store.ErrInvalidConfidence) {
		t.Fatalf("expected invalid confidence, got %v", err)
	}
}

func TestValidateSessionOverrideReasonRequired(t *testing.T) {
	input := store.RecordSessionInput{
		AcuityLevel:       2,
		AiSuggestedAcuity: intPtr(4),
	}
	if err := ValidateSession(input); !errors.Is(err, store.ErrOverrideReasonRequired) {
		t.Fatalf("expected override reason required, got %v", err)
	}

	input.OverrideReason = "patient deteriorating on arrival"
	if err := ValidateSession(input); err != nil {
		t.Fatalf("expected valid with reason, got %v", err)
	}
}

func TestValidateSessionMatchingSuggestionNeedsNoReason(t *testing.T) {
	input := store.RecordSessionInput{
		AcuityLevel:       3,
		AiSuggestedAcuity: intPtr(3),
	}
	if err := ValidateSession(input); err != nil {
		t.Fatalf("expected valid when suggestion matches, got %v", err)
	}
}

func TestResolveSource(t *testing.T) {
	if got := ResolveSource(true, intPtr(2)); got != models.AcuitySourceAI {
		t.Fatalf("expected ai source, got %s", got)
	}
	if got := ResolveSource(true, nil); got != models.AcuitySourceHuman {
		t.Fatalf("expected human source without suggestion, got %s", got)
	}
	if got := ResolveSource(false, intPtr(2)); got != models.AcuitySourceHuman {
		t.Fatalf("expected human source when not used, got %s", got)
	}
}

func TestMatched(t *testing.T) {
	if !Matched(intPtr(2), 2) {
		t.Fatal("expected match")
	}
	if Matched(intPtr(2), 3) {
		t.Fatal("expected mismatch")
	}
	if Matched(nil, 3) {
		t.Fatal("nil suggestion never matches")
	}
}
