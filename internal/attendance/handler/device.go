package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/httputil"
	"github.com/punchflow/punchflow-backend/pkg/logger"
)

// DeviceHandler handles terminal enrollment and authentication endpoints
type DeviceHandler struct {
	service *service.DeviceService
	logger  *logger.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(svc *service.DeviceService, log *logger.Logger) *DeviceHandler {
	return &DeviceHandler{service: svc, logger: log}
}

// Enroll registers a new terminal under the current tenant
// POST /devices
func (h *DeviceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req struct {
		Serial string `json:"serial" validate:"required"`
		Label  string `json:"label" validate:"required"`
		Secret string `json:"secret" validate:"required,min=16"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	device, err := h.service.Enroll(r.Context(), req.Serial, req.Label, req.Secret, userID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, device)
}

// IssueToken authenticates a terminal and returns a signed access token
// POST /devices/token
func (h *DeviceHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Serial string `json:"serial" validate:"required"`
		Secret string `json:"secret" validate:"required"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	token, err := h.service.IssueToken(r.Context(), req.Serial, req.Secret)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, token)
}

// Revoke disables a terminal
// POST /devices/{id}/revoke
func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, err := requireUser(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional; a bare revoke carries no reason
	_ = httputil.DecodeJSON(r, &req)

	if err := h.service.Revoke(r.Context(), id, userID, req.Reason); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
