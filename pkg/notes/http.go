package notes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/praxia-health/notes-platform/pkg/common/logger"
	"github.com/praxia-health/notes-platform/pkg/common/models"
	"github.com/praxia-health/notes-platform/pkg/validation"
)

type Handler struct {
	service    *Service
	signatures *SignatureService
	versions   *VersioningService
	gateway    *validation.Gateway
}

func NewHandler(service *Service, signatures *SignatureService, versions *VersioningService, gateway *validation.Gateway) *Handler {
	return &Handler{service: service, signatures: signatures, versions: versions, gateway: gateway}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/centers/{centerId}/notes", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes", h.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}", h.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}", h.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/submit", h.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/recall", h.handleRecall).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/sign", h.handleSign).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/versions", h.handleCreateVersion).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/validate", h.handleValidate).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/validate-async", h.handleValidateAsync).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/suggestions/{index}/review", h.handleReviewSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/attachments", h.handleAddAttachment).Methods(http.MethodPost)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/completeness", h.handleCompleteness).Methods(http.MethodGet)
	r.HandleFunc("/centers/{centerId}/notes/{noteId}/audit", h.handleListAudit).Methods(http.MethodGet)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	centerID := mux.Vars(r)["centerId"]
	var req models.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PatientID == "" || req.TherapistID == "" {
		http.Error(w, "patient_id and therapist_id are required", http.StatusBadRequest)
		return
	}
	note, err := h.service.Create(r.Context(), centerID, req, resolveActor(r))
	if err != nil {
		writeErr(w, err, "failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"note": note})
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	centerID := mux.Vars(r)["centerId"]
	q := parseNoteQuery(r)
	items, err := h.service.Query(r.Context(), centerID, q)
	if err != nil {
		writeErr(w, err, "failed to query notes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	note, err := h.service.Get(r.Context(), centerID, noteID)
	if err != nil {
		writeErr(w, err, "failed to get note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"note": note})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	var req models.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	note, err := h.service.UpdateContent(r.Context(), centerID, noteID, req, resolveActor(r))
	if err != nil {
		writeErr(w, err, "failed to update note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"note": note})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), centerID, noteID, resolveActor(r)); err != nil {
		writeErr(w, err, "failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	note, err := h.service.Submit(r.Context(), centerID, noteID, resolveActor(r))
	if err != nil {
		writeErr(w, err, "failed to submit note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"note": note})
}

func (h *Handler) handleRecall(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	note, err := h.service.Recall(r.Context(), centerID, noteID, resolveActor(r))
	if err != nil {
		writeErr(w, err, "failed to recall note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"note": note})
}

func (h *Handler) handleSign(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	var req models.SignNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	// Capture request context for the audit trail when the caller did not.
	if req.IPAddress == "" {
		req.IPAddress = r.RemoteAddr
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	note, err := h.signatures.Sign(r.Context(), centerID, noteID, req)
	if err != nil {
		writeErr(w, err, "failed to sign note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"note": note})
}

func (h *Handler) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	note, err := h.versions.CreateVersion(r.Context(), centerID, noteID, resolveActor(r))
	if err != nil {
		writeErr(w, err, "failed to create note version")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"note": note})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	result, err := h.gateway.Validate(r.Context(), centerID, noteID)
	if err != nil {
		writeErr(w, err, "failed to validate note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"validation": result})
}

func (h *Handler) handleValidateAsync(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	if err := h.service.RequestValidation(r.Context(), centerID, noteID, resolveActor(r)); err != nil {
		writeErr(w, err, "failed to request validation")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleReviewSuggestion(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "invalid suggestion index", http.StatusBadRequest)
		return
	}
	if err := h.gateway.MarkSuggestionReviewed(r.Context(), centerID, noteID, index); err != nil {
		writeErr(w, err, "failed to review suggestion")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	var req models.AddAttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	att, err := h.service.AddAttachment(r.Context(), centerID, noteID, req, resolveActor(r))
	if err != nil {
		writeErr(w, err, "failed to add attachment")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"attachment": att})
}

func (h *Handler) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	err := h.service.CheckCompleteness(r.Context(), centerID, noteID)
	if err != nil && !errors.Is(err, ErrNoteNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"complete": false, "detail": err.Error()})
		return
	}
	if err != nil {
		writeErr(w, err, "failed to check completeness")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"complete": true})
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	centerID, noteID, ok := noteVars(w, r)
	if !ok {
		return
	}
	limit := parseLimit(r, 100)
	logs, err := h.service.ListAuditLogs(r.Context(), centerID, noteID, limit)
	if err != nil {
		writeErr(w, err, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": logs})
}

func noteVars(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	vars := mux.Vars(r)
	noteID, err := uuid.Parse(vars["noteId"])
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	return vars["centerId"], noteID, true
}

func parseNoteQuery(r *http.Request) models.NoteQuery {
	params := r.URL.Query()
	q := models.NoteQuery{
		PatientID:    params.Get("patient_id"),
		TherapistID:  params.Get("therapist_id"),
		Status:       models.NoteStatus(params.Get("status")),
		TemplateType: models.NoteTemplateType(params.Get("template_type")),
		RiskLevel:    models.RiskLevel(params.Get("risk_level")),
		Search:       params.Get("search"),
		Limit:        parseLimit(r, 50),
	}
	if raw := params.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.From = &t
		}
	}
	if raw := params.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			q.To = &t
		}
	}
	if raw := params.Get("signed"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			q.Signed = &v
		}
	}
	return q
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return fallback
}

func resolveActor(r *http.Request) string {
	if r == nil {
		return "system"
	}
	if actor := r.Header.Get("X-Therapist-ID"); actor != "" {
		return actor
	}
	return "system"
}

func writeErr(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrNoteNotFound):
		http.Error(w, "note not found", http.StatusNotFound)
	case errors.Is(err, ErrImmutableNote):
		http.Error(w, "note is locked; create a new version to make changes", http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, "transition not allowed from current status", http.StatusConflict)
	case errors.Is(err, ErrConcurrentModification):
		http.Error(w, "note was modified concurrently; re-read and retry", http.StatusPreconditionFailed)
	case errors.Is(err, ErrIncompleteSignature):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, validation.ErrValidationUnavailable):
		http.Error(w, "validation service unavailable", http.StatusBadGateway)
	default:
		logger.Log.WithError(err).Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
