package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"clinicops/internal/store"
	"clinicops/internal/triage"
)

type recordSessionRequest struct {
	PatientID         string     `json:"patient_id"`
	AcuityLevel       int        `json:"acuity_level"`
	UseAiSuggestion   bool       `json:"use_ai_suggestion"`
	AiSuggestedAcuity *int       `json:"ai_suggested_acuity"`
	AiConfidenceScore *float64   `json:"ai_confidence_score"`
	AiExplanation     string     `json:"ai_explanation"`
	OverrideReason    string     `json:"override_reason"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at"`
}

type suggestRequest struct {
	ComplaintText string         `json:"complaint_text"`
	AgeYears      int            `json:"age_years"`
	Vitals        []triage.Vital `json:"vitals"`
}

func (h *Handler) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	var req recordSessionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.PatientID = strings.TrimSpace(req.PatientID)
	req.AiExplanation = strings.TrimSpace(req.AiExplanation)
	req.OverrideReason = strings.TrimSpace(req.OverrideReason)

	if req.PatientID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "patient_id is required")
		return
	}
	if !isValidUUID(req.PatientID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "patient_id must be a UUID")
		return
	}

	session, err := h.store.RecordTriageSession(r.Context(), store.RecordSessionInput{
		TenantID:          scope.TenantID,
		BranchID:          scope.BranchID,
		PatientID:         req.PatientID,
		AcuityLevel:       req.AcuityLevel,
		UseAiSuggestion:   req.UseAiSuggestion,
		AiSuggestedAcuity: req.AiSuggestedAcuity,
		AiConfidenceScore: req.AiConfidenceScore,
		AiExplanation:     req.AiExplanation,
		OverrideReason:    req.OverrideReason,
		StartedAt:         req.StartedAt,
		EndedAt:           req.EndedAt,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/triage/sessions/"), "/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !isValidUUID(sessionID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "session_id must be a UUID")
		return
	}

	session, err := h.store.GetTriageSession(r.Context(), scope.TenantID, sessionID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleSuggest asks the acuity suggester for a recommendation. The answer is
// advisory: nothing is persisted here, and a failure never blocks triage.
func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireScope(w, r); !ok {
		return
	}
	if h.suggester == nil {
		writeError(w, "", http.StatusServiceUnavailable, "suggester_unavailable", "acuity suggestion service is not configured")
		return
	}

	var req suggestRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.ComplaintText = strings.TrimSpace(req.ComplaintText)
	if req.ComplaintText == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "complaint_text is required")
		return
	}

	suggestion, err := h.suggester.Suggest(r.Context(), triage.SuggestionRequest{
		ComplaintText: req.ComplaintText,
		AgeYears:      req.AgeYears,
		Vitals:        req.Vitals,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

func (h *Handler) handleEffectiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "from must be RFC3339 timestamp")
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "to must be RFC3339 timestamp")
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "from must be before to")
		return
	}

	result, err := h.store.Effectiveness(r.Context(), scope.TenantID, scope.BranchID, from, to)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
