package triage

import "testing"

func TestParseSuggestionPlainJSON(t *testing.T) {
	suggestion, err := parseSuggestion(`{"suggested_acuity":2,"confidence":0.85,"explanation":"tachycardia with chest pain"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if suggestion.SuggestedAcuity != 2 || suggestion.Confidence != 0.85 {
		t.Fatalf("unexpected suggestion: %+v", suggestion)
	}
}

func TestParseSuggestionCodeFence(t *testing.T) {
	raw := "```json\n{\"suggested_acuity\":4,\"confidence\":0.6,\"explanation\":\"minor laceration\"}\n```"
	suggestion, err := parseSuggestion(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if suggestion.SuggestedAcuity != 4 {
		t.Fatalf("unexpected acuity: %d", suggestion.SuggestedAcuity)
	}
}

func TestParseSuggestionAcuityOutOfRange(t *testing.T) {
	if _, err := parseSuggestion(`{"suggested_acuity":7,"confidence":0.5}`); err == nil {
		t.Fatal("expected error for acuity out of range")
	}
}

func TestParseSuggestionConfidenceClamped(t *testing.T) {
	suggestion, err := parseSuggestion(`{"suggested_acuity":3,"confidence":1.7}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if suggestion.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %f", suggestion.Confidence)
	}
}

func TestParseSuggestionGarbage(t *testing.T) {
	if _, err := parseSuggestion("the patient seems fine"); err == nil {
		t.Fatal("expected error for non-JSON reply")
	}
}
