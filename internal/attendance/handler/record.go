package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/httputil"
	"github.com/punchflow/punchflow-backend/pkg/logger"
)

// RecordHandler handles attendance record read endpoints
type RecordHandler struct {
	service *service.RecordService
	logger  *logger.Logger
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(svc *service.RecordService, log *logger.Logger) *RecordHandler {
	return &RecordHandler{service: svc, logger: log}
}

// GetByID returns one attendance record
// GET /records/{id}
func (h *RecordHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// ListForEmployee returns an employee's records for a day or a range.
// GET /employees/{employeeRef}/records?date=YYYY-MM-DD
// GET /employees/{employeeRef}/records?from=YYYY-MM-DD&to=YYYY-MM-DD
// Debounce-blocked entries are included; the audit view shows everything.
func (h *RecordHandler) ListForEmployee(w http.ResponseWriter, r *http.Request) {
	employeeRef := chi.URLParam(r, "employeeRef")

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr != "" || toStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid from date, expected YYYY-MM-DD"))
			return
		}
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			httputil.Error(w, errors.BadRequest("invalid to date, expected YYYY-MM-DD"))
			return
		}

		records, err := h.service.ListForEmployeeRange(r.Context(), employeeRef, from, to.AddDate(0, 0, 1))
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, records)
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().Format("2006-01-02")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		httputil.Error(w, errors.BadRequest("invalid date format, expected YYYY-MM-DD"))
		return
	}

	records, err := h.service.ListForEmployeeDay(r.Context(), employeeRef, date)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, records)
}
