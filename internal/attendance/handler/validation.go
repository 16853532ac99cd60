package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/actor"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/httputil"
	"github.com/punchflow/punchflow-backend/pkg/logger"
)

// ValidationHandler handles the review workflow endpoints
type ValidationHandler struct {
	service *service.ValidationService
	logger  *logger.Logger
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(svc *service.ValidationService, log *logger.Logger) *ValidationHandler {
	return &ValidationHandler{service: svc, logger: log}
}

// ListPending returns records awaiting review, oldest pending first
// GET /validation/pending
func (h *ValidationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListPending(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, records)
}

// ApproveCorrection confirms a wrong-button auto-correction
// POST /records/{id}/correction/approve
func (h *ValidationHandler) ApproveCorrection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reviewerID, err := requireUser(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.ApproveCorrection(r.Context(), id, reviewerID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// RejectCorrection reverts a wrong-button auto-correction
// POST /records/{id}/correction/reject
func (h *ValidationHandler) RejectCorrection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reviewerID, err := requireUser(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.RejectCorrection(r.Context(), id, reviewerID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Validate resolves a pending-validation record
// POST /records/{id}/validate
func (h *ValidationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reviewerID, err := requireUser(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.ValidateAmbiguous(r.Context(), id, req.Accept, reviewerID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// CorrectType applies a manual type correction
// PATCH /records/{id}/type
func (h *ValidationHandler) CorrectType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, err := requireUser(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req struct {
		Type string `json:"type" validate:"required"`
		Note string `json:"note"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.CorrectRecordType(r.Context(), id, domain.PunchType(req.Type), userID, req.Note)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Delete soft-deletes a manual entry. Terminal-sourced records are immutable.
// DELETE /records/{id}
func (h *ValidationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, err := requireUser(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteManualRecord(r.Context(), id, userID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// requireUser extracts the acting user attached by the actor middleware.
// Review actions need a human identity; the system actor does not qualify.
func requireUser(r *http.Request) (string, error) {
	a := actor.FromContext(r.Context())
	if a.IsSystem() {
		return "", errors.Unauthorized("user not authenticated")
	}
	return a.ID, nil
}
