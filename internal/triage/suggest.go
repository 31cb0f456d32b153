package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Vital is one measured sign handed to the suggestion service, e.g.
// {"heart_rate", "112", "bpm"}.
type Vital struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

type SuggestionRequest struct {
	ComplaintText string  `json:"complaint_text"`
	AgeYears      int     `json:"age_years"`
	Vitals        []Vital `json:"vitals,omitempty"`
}

type Suggestion struct {
	SuggestedAcuity int     `json:"suggested_acuity"`
	Confidence      float64 `json:"confidence"`
	Explanation     string  `json:"explanation"`
}

// Suggester is the contract to the external acuity-suggestion collaborator.
// Implementations are pure request/response and keep no local state.
type Suggester interface {
	Suggest(ctx context.Context, req SuggestionRequest) (Suggestion, error)
}

var ErrSuggesterUnavailable = errors.New("triage: suggester not configured")

// parseSuggestion decodes the collaborator's JSON reply, tolerating markdown
// code fences, and clamps values into their documented ranges.
func parseSuggestion(raw string) (Suggestion, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var suggestion Suggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestion); err != nil {
		return Suggestion{}, fmt.Errorf("triage: decode suggestion: %w", err)
	}
	if !ValidAcuity(suggestion.SuggestedAcuity) {
		return Suggestion{}, fmt.Errorf("triage: suggested acuity %d out of range", suggestion.SuggestedAcuity)
	}
	if suggestion.Confidence < 0 {
		suggestion.Confidence = 0
	}
	if suggestion.Confidence > 1 {
		suggestion.Confidence = 1
	}
	return suggestion, nil
}
