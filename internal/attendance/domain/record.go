package domain

import (
	"encoding/json"
	"time"
)

// RecordStatus distinguishes real records from debounce-blocked noise
type RecordStatus string

const (
	RecordActive          RecordStatus = "ACTIVE"
	RecordDebounceBlocked RecordStatus = "DEBOUNCE_BLOCKED"
)

// AnomalyKind is the closed set of anomaly classifications
type AnomalyKind string

const (
	AnomalyLate             AnomalyKind = "LATE"
	AnomalyEarlyLeave       AnomalyKind = "EARLY_LEAVE"
	AnomalyAbsencePartial   AnomalyKind = "ABSENCE_PARTIAL"
	AnomalyMissingIn        AnomalyKind = "MISSING_IN"
	AnomalyMissingOut       AnomalyKind = "MISSING_OUT"
	AnomalyDoubleIn         AnomalyKind = "DOUBLE_IN"
	AnomalyDoubleOut        AnomalyKind = "DOUBLE_OUT"
	AnomalyWeekendWork      AnomalyKind = "WEEKEND_WORK"
	AnomalyHolidayWorked    AnomalyKind = "HOLIDAY_WORKED"
	AnomalyLeaveConflict    AnomalyKind = "LEAVE_CONFLICT"
	AnomalyUnplannedPunch   AnomalyKind = "UNPLANNED_PUNCH"
	AnomalyInsufficientRest AnomalyKind = "INSUFFICIENT_REST"

	// Informational overlays, not blocking anomalies
	AnomalyPresenceExterne AnomalyKind = "PRESENCE_EXTERNE"
	AnomalyWrongType       AnomalyKind = "AUTO_CORRECTED_WRONG_TYPE"
)

// IsInformational reports whether the kind is an overlay that never blocks
// or requires structural correction on its own.
func (k AnomalyKind) IsInformational() bool {
	return k == AnomalyPresenceExterne
}

// ValidationStatus tracks the human-in-the-loop state of a record
type ValidationStatus string

const (
	ValidationNone     ValidationStatus = "NONE"
	ValidationPending  ValidationStatus = "PENDING_VALIDATION"
	ValidationAccepted ValidationStatus = "VALIDATED"
	ValidationRejected ValidationStatus = "REJECTED"
)

// MaxEscalationLevel is the highest severity tier a pending record can reach
const MaxEscalationLevel = 3

// CorrectionAction is the kind of machine-actionable fix a suggested
// correction proposes.
type CorrectionAction string

const (
	CorrectionDeleteRecord CorrectionAction = "DELETE_RECORD"
	CorrectionInsertOut    CorrectionAction = "INSERT_OUT"
	CorrectionInsertIn     CorrectionAction = "INSERT_IN"
	CorrectionFlipType     CorrectionAction = "FLIP_TYPE"
)

// SuggestedCorrection is a machine-actionable payload attached to a subset
// of anomalies, ranked by confidence for the review UI.
type SuggestedCorrection struct {
	Action          CorrectionAction `json:"action"`
	Confidence      float64          `json:"confidence"`
	TargetRecordIDs []string         `json:"target_record_ids,omitempty"`
	ProposedTime    *time.Time       `json:"proposed_time,omitempty"`
	Note            string           `json:"note,omitempty"`
}

// AttendanceRecord is the persisted unit of truth for a classified punch
type AttendanceRecord struct {
	ID         string       `db:"id" json:"id"`
	TenantID   string       `db:"tenant_id" json:"tenant_id"`
	EmployeeID string       `db:"employee_id" json:"employee_id"`
	PunchedAt  time.Time    `db:"punched_at" json:"punched_at"`
	PunchType  PunchType    `db:"punch_type" json:"punch_type"`
	Status     RecordStatus `db:"status" json:"status"`

	DetectionMethod DetectionMethod `db:"detection_method" json:"detection_method"`
	Confidence      Confidence      `db:"confidence" json:"confidence"`
	Source          PunchSource     `db:"source" json:"source"`
	DeviceID        *string         `db:"device_id" json:"device_id,omitempty"`
	RawPayload      json.RawMessage `db:"raw_payload" json:"-"`
	IsManual        bool            `db:"is_manual" json:"is_manual"`

	HasAnomaly          bool            `db:"has_anomaly" json:"has_anomaly"`
	AnomalyKind         *AnomalyKind    `db:"anomaly_kind" json:"anomaly_kind,omitempty"`
	AnomalyNote         *string         `db:"anomaly_note" json:"anomaly_note,omitempty"`
	SuggestedCorrection json.RawMessage `db:"suggested_correction" json:"suggested_correction,omitempty"`

	WorkedMinutes     *int `db:"worked_minutes" json:"worked_minutes,omitempty"`
	BreakMinutes      *int `db:"break_minutes" json:"break_minutes,omitempty"`
	LateMinutes       *int `db:"late_minutes" json:"late_minutes,omitempty"`
	EarlyLeaveMinutes *int `db:"early_leave_minutes" json:"early_leave_minutes,omitempty"`
	OvertimeMinutes   *int `db:"overtime_minutes" json:"overtime_minutes,omitempty"`

	Corrected      bool       `db:"corrected" json:"corrected"`
	CorrectedBy    *string    `db:"corrected_by" json:"corrected_by,omitempty"`
	CorrectionNote *string    `db:"correction_note" json:"correction_note,omitempty"`
	CorrectedAt    *time.Time `db:"corrected_at" json:"corrected_at,omitempty"`

	// Wrong-button auto-correction bookkeeping. OriginalType and
	// OriginalAnomaly hold the pre-correction values so a rejection can
	// restore them.
	NeedsApproval   bool         `db:"needs_approval" json:"needs_approval"`
	OriginalType    *PunchType   `db:"original_type" json:"original_type,omitempty"`
	OriginalAnomaly *AnomalyKind `db:"original_anomaly" json:"original_anomaly,omitempty"`

	IsAmbiguous      bool             `db:"is_ambiguous" json:"is_ambiguous"`
	ValidationStatus ValidationStatus `db:"validation_status" json:"validation_status"`
	EscalationLevel  int              `db:"escalation_level" json:"escalation_level"`
	PendingSince     *time.Time       `db:"pending_since" json:"pending_since,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// SetAnomaly attaches an anomaly classification to the record. Informational
// kinds trace the situation without flagging the record.
func (r *AttendanceRecord) SetAnomaly(kind AnomalyKind, note string) {
	r.HasAnomaly = !kind.IsInformational()
	r.AnomalyKind = &kind
	r.AnomalyNote = &note
}

// ClearAnomaly removes the anomaly classification
func (r *AttendanceRecord) ClearAnomaly() {
	r.HasAnomaly = false
	r.AnomalyKind = nil
	r.AnomalyNote = nil
	r.SuggestedCorrection = nil
}

// AttachSuggestion serializes and attaches a suggested correction payload
func (r *AttendanceRecord) AttachSuggestion(s *SuggestedCorrection) {
	if s == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	r.SuggestedCorrection = payload
}

// ProcessStatus is the outcome classification of a punch submission
type ProcessStatus string

const (
	StatusCreated         ProcessStatus = "CREATED"
	StatusDuplicate       ProcessStatus = "DUPLICATE"
	StatusDebounceBlocked ProcessStatus = "DEBOUNCE_BLOCKED"
	StatusError           ProcessStatus = "ERROR"
)

// ProcessResult is the envelope returned to the punch submitter
type ProcessResult struct {
	Status      ProcessStatus `json:"status"`
	RecordID    string        `json:"id,omitempty"`
	PunchType   PunchType     `json:"type,omitempty"`
	AnomalyKind *AnomalyKind  `json:"anomaly,omitempty"`
	Error       string        `json:"error,omitempty"`
}
