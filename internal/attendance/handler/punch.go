package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/actor"
	"github.com/punchflow/punchflow-backend/pkg/deviceauth"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/httputil"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// PunchHandler handles punch ingestion endpoints
type PunchHandler struct {
	service *service.PunchService
	tokens  *deviceauth.Manager
	logger  *logger.Logger
}

// NewPunchHandler creates a new punch handler
func NewPunchHandler(svc *service.PunchService, tokens *deviceauth.Manager, log *logger.Logger) *PunchHandler {
	return &PunchHandler{
		service: svc,
		tokens:  tokens,
		logger:  log,
	}
}

type terminalPunchRequest struct {
	EmployeeRef       string          `json:"employeeId" validate:"required"`
	Timestamp         time.Time       `json:"timestamp" validate:"required"`
	TerminalStateCode *int            `json:"terminalStateCode" validate:"omitempty,min=0,max=5"`
	RawPayload        json.RawMessage `json:"rawPayload,omitempty"`
}

// IngestTerminal accepts a punch from an authenticated terminal.
// POST /punches/terminal
// The device token carries the tenant; no gateway headers are expected on
// this endpoint. An invalid token rejects the punch before anything is
// persisted.
func (h *PunchHandler) IngestTerminal(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticateDevice(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req terminalPunchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	ctx := tenant.WithTenantContext(r.Context(), claims.TenantID, claims.TenantSlug)
	if tz := r.Header.Get("X-Tenant-Timezone"); tz != "" {
		ctx = tenant.WithTimezone(ctx, tz)
	}

	event := &domain.PunchEvent{
		EmployeeRef:       req.EmployeeRef,
		Instant:           req.Timestamp.UTC(),
		TerminalStateCode: req.TerminalStateCode,
		Source:            domain.SourceTerminal,
		DeviceID:          claims.DeviceID,
		RawPayload:        req.RawPayload,
	}

	result, err := h.service.ProcessPunch(ctx, event)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status != domain.StatusCreated {
		status = http.StatusOK
	}
	httputil.JSON(w, status, result)
}

type manualPunchRequest struct {
	EmployeeRef string          `json:"employeeId" validate:"required"`
	Timestamp   time.Time       `json:"timestamp" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Source      string          `json:"source" validate:"omitempty,oneof=MANUAL MOBILE"`
	RawPayload  json.RawMessage `json:"rawPayload,omitempty"`
}

// IngestManual accepts a back-office or mobile punch entry.
// POST /punches/manual
// Manual entries are validated before acceptance; a bad entry gets 422 and
// nothing is persisted.
func (h *PunchHandler) IngestManual(w http.ResponseWriter, r *http.Request) {
	var req manualPunchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	source := domain.SourceManual
	if req.Source == string(domain.SourceMobile) {
		source = domain.SourceMobile
	}

	var enteredBy string
	if a := actor.FromContext(r.Context()); a != nil {
		enteredBy = a.ID
	}

	declared := domain.PunchType(req.Type)
	event := &domain.PunchEvent{
		EmployeeRef:  req.EmployeeRef,
		Instant:      req.Timestamp.UTC(),
		DeclaredType: &declared,
		Source:       source,
		RawPayload:   req.RawPayload,
		EnteredBy:    enteredBy,
	}

	result, err := h.service.ProcessPunch(r.Context(), event)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status != domain.StatusCreated {
		status = http.StatusOK
	}
	httputil.JSON(w, status, result)
}

func (h *PunchHandler) authenticateDevice(r *http.Request) (*deviceauth.Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errors.Unauthorized("missing device token")
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return nil, errors.Unauthorized("malformed authorization header")
	}

	return h.tokens.ValidateToken(token)
}
