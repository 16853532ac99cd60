package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Punch lifecycle events
	EventPunchRecorded  = "attendance.punch.recorded"
	EventPunchDuplicate = "attendance.punch.duplicate"
	EventPunchDebounced = "attendance.punch.debounced"
	EventPunchRejected  = "attendance.punch.rejected"

	// Anomaly events
	EventAnomalyDetected = "attendance.anomaly.detected"
	EventAnomalyCleared  = "attendance.anomaly.cleared"

	// Correction and validation events
	EventCorrectionPending  = "attendance.correction.pending"
	EventCorrectionApproved = "attendance.correction.approved"
	EventCorrectionRejected = "attendance.correction.rejected"
	EventRecordCorrected    = "attendance.record.corrected"
	EventValidationEscalated = "attendance.validation.escalated"

	// Device events
	EventDeviceEnrolled = "attendance.device.enrolled"
	EventDeviceRevoked  = "attendance.device.revoked"

	// Events consumed from the staff service
	EventShiftCreated    = "staff.shift.created"
	EventShiftUpdated    = "staff.shift.updated"
	EventShiftDeleted    = "staff.shift.deleted"
	EventAbsenceApproved = "staff.absence.approved"

	// Raw punches delivered by terminal gateways over the broker
	EventTerminalPunch = "terminal.punch.received"
)

// Exchange names
const (
	ExchangeAttendanceEvents = "attendance.events"
	ExchangeStaffEvents      = "staff.events"
	ExchangeTerminalEvents   = "terminal.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Punch Events

// PunchRecordedEvent is published when a punch has been classified and persisted
type PunchRecordedEvent struct {
	RecordID        string    `json:"record_id"`
	TenantID        string    `json:"tenant_id"`
	EmployeeID      string    `json:"employee_id"`
	PunchedAt       time.Time `json:"punched_at"`
	PunchType       string    `json:"punch_type"`
	DetectionMethod string    `json:"detection_method"`
	Confidence      string    `json:"confidence"`
	DeviceID        string    `json:"device_id,omitempty"`
	IsManual        bool      `json:"is_manual"`
}

// PunchDuplicateEvent is published when an exact duplicate is absorbed
type PunchDuplicateEvent struct {
	OriginalRecordID string    `json:"original_record_id"`
	EmployeeID       string    `json:"employee_id"`
	PunchedAt        time.Time `json:"punched_at"`
	DeviceID         string    `json:"device_id,omitempty"`
}

// PunchDebouncedEvent is published when a near-duplicate punch is blocked
type PunchDebouncedEvent struct {
	RecordID         string    `json:"record_id"`
	PriorRecordID    string    `json:"prior_record_id"`
	EmployeeID       string    `json:"employee_id"`
	PunchedAt        time.Time `json:"punched_at"`
	GapSeconds       int       `json:"gap_seconds"`
}

// PunchRejectedEvent is published when a manual entry fails pre-acceptance checks
type PunchRejectedEvent struct {
	EmployeeID string    `json:"employee_id"`
	PunchedAt  time.Time `json:"punched_at"`
	Reason     string    `json:"reason"`
	EnteredBy  string    `json:"entered_by"`
}

// Anomaly Events

// AnomalyDetectedEvent is published when the detector flags a record
type AnomalyDetectedEvent struct {
	RecordID    string `json:"record_id"`
	EmployeeID  string `json:"employee_id"`
	AnomalyKind string `json:"anomaly_kind"`
	Detail      string `json:"detail,omitempty"`
}

// AnomalyClearedEvent is published when a later punch or sweep resolves an anomaly
type AnomalyClearedEvent struct {
	RecordID    string `json:"record_id"`
	EmployeeID  string `json:"employee_id"`
	AnomalyKind string `json:"anomaly_kind"`
	ClearedBy   string `json:"cleared_by"` // "reconciliation" or an actor ID
}

// Correction and Validation Events

// CorrectionPendingEvent is published when an auto-correction awaits review
type CorrectionPendingEvent struct {
	RecordID      string `json:"record_id"`
	EmployeeID    string `json:"employee_id"`
	RecordedType  string `json:"recorded_type"`
	SuggestedType string `json:"suggested_type"`
	Reason        string `json:"reason"`
}

// CorrectionApprovedEvent is published when a reviewer accepts a suggested correction
type CorrectionApprovedEvent struct {
	RecordID     string `json:"record_id"`
	EmployeeID   string `json:"employee_id"`
	AppliedType  string `json:"applied_type"`
	ReviewerID   string `json:"reviewer_id"`
}

// CorrectionRejectedEvent is published when a reviewer rejects a suggested correction
type CorrectionRejectedEvent struct {
	RecordID     string `json:"record_id"`
	EmployeeID   string `json:"employee_id"`
	RestoredType string `json:"restored_type"`
	ReviewerID   string `json:"reviewer_id"`
}

// RecordCorrectedEvent is published when a record's type or instant is edited
type RecordCorrectedEvent struct {
	RecordID   string         `json:"record_id"`
	EmployeeID string         `json:"employee_id"`
	Fields     map[string]any `json:"fields"`
	EditedBy   string         `json:"edited_by"`
}

// ValidationEscalatedEvent is published when a pending validation moves up a level
type ValidationEscalatedEvent struct {
	RecordID       string `json:"record_id"`
	EmployeeID     string `json:"employee_id"`
	FromLevel      int    `json:"from_level"`
	ToLevel        int    `json:"to_level"`
	PendingSince   time.Time `json:"pending_since"`
}

// Device Events

// DeviceEnrolledEvent is published when a terminal device is enrolled
type DeviceEnrolledEvent struct {
	DeviceID   string `json:"device_id"`
	Serial     string `json:"serial"`
	Label      string `json:"label"`
	EnrolledBy string `json:"enrolled_by"`
}

// DeviceRevokedEvent is published when a terminal device is revoked
type DeviceRevokedEvent struct {
	DeviceID  string `json:"device_id"`
	Serial    string `json:"serial"`
	RevokedBy string `json:"revoked_by"`
	Reason    string `json:"reason,omitempty"`
}

// Consumed Events

// TerminalPunchEvent is a raw punch delivered by a terminal gateway
type TerminalPunchEvent struct {
	TenantID    string    `json:"tenant_id"`
	BadgeCode   string    `json:"badge_code"`
	PunchedAt   time.Time `json:"punched_at"`
	ButtonCode  *int      `json:"button_code,omitempty"`
	DeviceSerial string   `json:"device_serial"`
}

// ShiftChangedEvent carries shift create/update/delete notifications from
// the staff service. Only the fields the schedule cache needs are decoded.
type ShiftChangedEvent struct {
	ShiftID    string    `json:"shift_id"`
	EmployeeID string    `json:"employee_id"`
	TenantID   string    `json:"tenant_id"`
	ShiftDate  time.Time `json:"shift_date"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
