package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clinicops/internal/models"
	"clinicops/internal/store"
	"clinicops/internal/triage"
)

type Handler struct {
	store     store.Store
	suggester triage.Suggester
}

type createEntryRequest struct {
	RequestID       string `json:"request_id"`
	QueueID         string `json:"queue_id"`
	PatientID       string `json:"patient_id"`
	TriageSessionID string `json:"triage_session_id"`
	AppointmentID   string `json:"appointment_id"`
}

type callNextRequest struct {
	RequestID string `json:"request_id"`
	QueueID   string `json:"queue_id"`
	CalledBy  string `json:"called_by"`
}

type entryActionRequest struct {
	RequestID      string `json:"request_id"`
	CalledBy       string `json:"called_by"`
	OverrideReason string `json:"override_reason"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHandler wires the HTTP surface. The suggester may be nil; the suggest
// endpoint then answers 503 and everything else keeps working.
func NewHandler(store store.Store, suggester triage.Suggester) *Handler {
	return &Handler{
		store:     store,
		suggester: suggester,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/queues", h.handleQueues)
	mux.HandleFunc("/api/queues/", h.handleQueueEntries)
	mux.HandleFunc("/api/entries", h.handleCreateEntry)
	mux.HandleFunc("/api/entries/actions/call-next", h.handleCallNext)
	mux.HandleFunc("/api/entries/", h.handleEntrySubresources)
	mux.HandleFunc("/api/public/status", h.handlePublicStatus)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/triage/sessions", h.handleRecordSession)
	mux.HandleFunc("/api/triage/sessions/", h.handleGetSession)
	mux.HandleFunc("/api/triage/suggest", h.handleSuggest)
	mux.HandleFunc("/api/triage/effectiveness", h.handleEffectiveness)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	queues, err := h.store.ListQueueDefinitions(r.Context(), scope.TenantID, scope.BranchID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if queues == nil {
		queues = []models.QueueDefinition{}
	}
	writeJSON(w, http.StatusOK, queues)
}

func (h *Handler) handleQueueEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/queues/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "entries" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	queueID := parts[0]
	if !isValidUUID(queueID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "queue_id must be a UUID")
		return
	}

	entries, err := h.store.ListEntries(r.Context(), scope.TenantID, scope.BranchID, queueID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if entries == nil {
		entries = []models.QueueEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	var req createEntryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.QueueID = strings.TrimSpace(req.QueueID)
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.TriageSessionID = strings.TrimSpace(req.TriageSessionID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)

	if req.RequestID == "" || req.QueueID == "" || req.PatientID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, queue_id, and patient_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.QueueID) || !isValidUUID(req.PatientID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, queue_id, and patient_id must be UUIDs")
		return
	}
	if req.TriageSessionID != "" && !isValidUUID(req.TriageSessionID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "triage_session_id must be a UUID when provided")
		return
	}
	if req.AppointmentID != "" && !isValidUUID(req.AppointmentID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "appointment_id must be a UUID when provided")
		return
	}

	entry, _, err := h.store.CreateEntry(r.Context(), store.CreateEntryInput{
		RequestID:       req.RequestID,
		TenantID:        scope.TenantID,
		BranchID:        scope.BranchID,
		QueueID:         req.QueueID,
		PatientID:       req.PatientID,
		TriageSessionID: req.TriageSessionID,
		AppointmentID:   req.AppointmentID,
		JoinedAt:        time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleCallNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	var req callNextRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.QueueID = strings.TrimSpace(req.QueueID)
	req.CalledBy = strings.TrimSpace(req.CalledBy)

	if req.RequestID == "" || req.QueueID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and queue_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.QueueID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and queue_id must be UUIDs")
		return
	}
	if req.CalledBy != "" && !isValidUUID(req.CalledBy) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "called_by must be a UUID when provided")
		return
	}

	entry, _, err := h.store.CallNext(r.Context(), store.CallNextInput{
		RequestID: req.RequestID,
		TenantID:  scope.TenantID,
		BranchID:  scope.BranchID,
		QueueID:   req.QueueID,
		CalledBy:  req.CalledBy,
		CalledAt:  time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleEntrySubresources(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/entries/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetEntry(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet:
		h.handleEntryEvents(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions" && r.Method == http.MethodPost:
		h.handleEntryAction(w, r, parts[0], parts[2])
	case len(parts) == 1 || (len(parts) == 2 && parts[1] == "events") || (len(parts) == 3 && parts[1] == "actions"):
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request, entryID string) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	if !isValidUUID(entryID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "entry_id must be a UUID")
		return
	}

	entry, err := h.store.GetEntry(r.Context(), scope.TenantID, scope.BranchID, entryID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleEntryEvents(w http.ResponseWriter, r *http.Request, entryID string) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	if !isValidUUID(entryID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "entry_id must be a UUID")
		return
	}

	events, err := h.store.ListEntryEvents(r.Context(), scope.TenantID, entryID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if events == nil {
		events = []store.EntryEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleEntryAction(w http.ResponseWriter, r *http.Request, entryID, action string) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	if !isValidUUID(entryID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "entry_id must be a UUID")
		return
	}

	var req entryActionRequest
	if !decodeActionRequest(w, r, &req) {
		return
	}

	switch action {
	case "call":
		if req.CalledBy != "" && !isValidUUID(req.CalledBy) {
			writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "called_by must be a UUID when provided")
			return
		}
		entry, _, err := h.store.CallEntry(r.Context(), store.CallEntryInput{
			RequestID:      req.RequestID,
			TenantID:       scope.TenantID,
			BranchID:       scope.BranchID,
			EntryID:        entryID,
			CalledBy:       req.CalledBy,
			OverrideReason: req.OverrideReason,
			CalledAt:       time.Now().UTC(),
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case "complete":
		entry, _, err := h.store.CompleteEntry(r.Context(), store.EntryActionInput{
			RequestID:  req.RequestID,
			TenantID:   scope.TenantID,
			BranchID:   scope.BranchID,
			EntryID:    entryID,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case "cancel":
		entry, _, err := h.store.CancelEntry(r.Context(), store.EntryActionInput{
			RequestID:  req.RequestID,
			TenantID:   scope.TenantID,
			BranchID:   scope.BranchID,
			EntryID:    entryID,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, req.RequestID, status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handlePublicStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	branchID := strings.TrimSpace(r.URL.Query().Get("branch_id"))
	if tenantID == "" || branchID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "tenant_id and branch_id are required")
		return
	}
	if !isValidUUID(tenantID) || !isValidUUID(branchID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "tenant_id and branch_id must be UUIDs")
		return
	}

	status, err := h.store.PublicStatus(r.Context(), tenantID, branchID)
	if err != nil {
		code, errCode, msg := mapError(err)
		writeError(w, "", code, errCode, msg)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), scope.TenantID, after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if events == nil {
		events = []store.OutboxEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func decodeActionRequest(w http.ResponseWriter, r *http.Request, req *entryActionRequest) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.CalledBy = strings.TrimSpace(req.CalledBy)
	req.OverrideReason = strings.TrimSpace(req.OverrideReason)
	if req.RequestID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id is required")
		return false
	}
	if !isValidUUID(req.RequestID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id must be a UUID")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrQueueNotFound):
		return http.StatusNotFound, "queue_not_found", "queue not found"
	case errors.Is(err, store.ErrEntryNotFound):
		return http.StatusNotFound, "entry_not_found", "entry not found"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found", "triage session not found"
	case errors.Is(err, store.ErrQueueInactive):
		return http.StatusConflict, "queue_inactive", "queue is not accepting entries"
	case errors.Is(err, store.ErrNoEntry):
		return http.StatusConflict, "queue_empty", "no waiting entries available"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "entry state does not allow this action"
	case errors.Is(err, store.ErrNotNextEntry):
		return http.StatusConflict, "not_next_entry", "entry is not next in rank; supply override_reason to call out of order"
	case errors.Is(err, store.ErrAcuityNotAllowed):
		return http.StatusBadRequest, "acuity_not_allowed", "entry acuity is outside the queue's acuity filter"
	case errors.Is(err, store.ErrInvalidAcuity):
		return http.StatusBadRequest, "invalid_acuity", "acuity level must be between 1 and 5"
	case errors.Is(err, store.ErrInvalidConfidence):
		return http.StatusBadRequest, "invalid_confidence", "confidence score must be between 0 and 1"
	case errors.Is(err, store.ErrOverrideReasonRequired):
		return http.StatusBadRequest, "override_reason_required", "override_reason is required when rejecting the AI suggestion"
	case errors.Is(err, triage.ErrSuggesterUnavailable):
		return http.StatusServiceUnavailable, "suggester_unavailable", "acuity suggestion service is unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
