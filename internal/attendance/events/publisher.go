package events

import (
	"context"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/messaging"
)

// Publisher is the narrow publishing surface the service layer depends on.
// Satisfied by messaging.Publisher and by testutil.MockPublisher in tests.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// AttendanceEventPublisher publishes attendance lifecycle events.
// Publishing is best-effort: failures are logged and never fail the
// operation that triggered them.
type AttendanceEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewAttendanceEventPublisher creates a publisher on the attendance exchange
func NewAttendanceEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*AttendanceEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeAttendanceEvents, "attendance-service", log)
	if err != nil {
		return nil, err
	}

	return &AttendanceEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// NewAttendanceEventPublisherWith wraps an existing publisher; used by tests
func NewAttendanceEventPublisherWith(p Publisher, log *logger.Logger) *AttendanceEventPublisher {
	return &AttendanceEventPublisher{publisher: p, logger: log}
}

// PublishPunchRecorded announces a classified, persisted punch
func (p *AttendanceEventPublisher) PublishPunchRecorded(ctx context.Context, rec *domain.AttendanceRecord) {
	data := messaging.PunchRecordedEvent{
		RecordID:        rec.ID,
		TenantID:        rec.TenantID,
		EmployeeID:      rec.EmployeeID,
		PunchedAt:       rec.PunchedAt,
		PunchType:       string(rec.PunchType),
		DetectionMethod: string(rec.DetectionMethod),
		Confidence:      string(rec.Confidence),
		IsManual:        rec.IsManual,
	}
	if rec.DeviceID != nil {
		data.DeviceID = *rec.DeviceID
	}

	if err := p.publisher.Publish(ctx, messaging.EventPunchRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish punch recorded event")
	}
}

// PublishPunchDebounced announces a near-duplicate blocked by the gate
func (p *AttendanceEventPublisher) PublishPunchDebounced(ctx context.Context, rec *domain.AttendanceRecord, priorID string, gapSeconds int) {
	data := messaging.PunchDebouncedEvent{
		RecordID:      rec.ID,
		PriorRecordID: priorID,
		EmployeeID:    rec.EmployeeID,
		PunchedAt:     rec.PunchedAt,
		GapSeconds:    gapSeconds,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPunchDebounced, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish punch debounced event")
	}
}

// PublishPunchDuplicate announces an exact duplicate absorbed by the gate
func (p *AttendanceEventPublisher) PublishPunchDuplicate(ctx context.Context, original *domain.AttendanceRecord) {
	data := messaging.PunchDuplicateEvent{
		OriginalRecordID: original.ID,
		EmployeeID:       original.EmployeeID,
		PunchedAt:        original.PunchedAt,
	}
	if original.DeviceID != nil {
		data.DeviceID = *original.DeviceID
	}

	if err := p.publisher.Publish(ctx, messaging.EventPunchDuplicate, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", original.ID).Msg("failed to publish punch duplicate event")
	}
}

// PublishPunchRejected announces a manual entry turned away before persistence
func (p *AttendanceEventPublisher) PublishPunchRejected(ctx context.Context, employeeID string, punchedAt time.Time, reason, enteredBy string) {
	data := messaging.PunchRejectedEvent{
		EmployeeID: employeeID,
		PunchedAt:  punchedAt,
		Reason:     reason,
		EnteredBy:  enteredBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPunchRejected, data); err != nil {
		p.logger.Error().Err(err).Str("employee_id", employeeID).Msg("failed to publish punch rejected event")
	}
}

// PublishAnomalyDetected announces an anomaly flagged on a record
func (p *AttendanceEventPublisher) PublishAnomalyDetected(ctx context.Context, rec *domain.AttendanceRecord) {
	if rec.AnomalyKind == nil {
		return
	}
	data := messaging.AnomalyDetectedEvent{
		RecordID:    rec.ID,
		EmployeeID:  rec.EmployeeID,
		AnomalyKind: string(*rec.AnomalyKind),
	}
	if rec.AnomalyNote != nil {
		data.Detail = *rec.AnomalyNote
	}

	if err := p.publisher.Publish(ctx, messaging.EventAnomalyDetected, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish anomaly detected event")
	}
}

// PublishAnomalyCleared announces reconciliation resolving a stale anomaly
func (p *AttendanceEventPublisher) PublishAnomalyCleared(ctx context.Context, rec *domain.AttendanceRecord, kind domain.AnomalyKind, clearedBy string) {
	data := messaging.AnomalyClearedEvent{
		RecordID:    rec.ID,
		EmployeeID:  rec.EmployeeID,
		AnomalyKind: string(kind),
		ClearedBy:   clearedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventAnomalyCleared, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish anomaly cleared event")
	}
}

// PublishCorrectionPending announces a wrong-button flip awaiting approval
func (p *AttendanceEventPublisher) PublishCorrectionPending(ctx context.Context, rec *domain.AttendanceRecord, reason string) {
	data := messaging.CorrectionPendingEvent{
		RecordID:      rec.ID,
		EmployeeID:    rec.EmployeeID,
		SuggestedType: string(rec.PunchType),
		Reason:        reason,
	}
	if rec.OriginalType != nil {
		data.RecordedType = string(*rec.OriginalType)
	}

	if err := p.publisher.Publish(ctx, messaging.EventCorrectionPending, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish correction pending event")
	}
}

// PublishCorrectionApproved announces an approved auto-correction
func (p *AttendanceEventPublisher) PublishCorrectionApproved(ctx context.Context, rec *domain.AttendanceRecord, reviewerID string) {
	data := messaging.CorrectionApprovedEvent{
		RecordID:    rec.ID,
		EmployeeID:  rec.EmployeeID,
		AppliedType: string(rec.PunchType),
		ReviewerID:  reviewerID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventCorrectionApproved, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish correction approved event")
	}
}

// PublishCorrectionRejected announces a rejected auto-correction and the
// restored type.
func (p *AttendanceEventPublisher) PublishCorrectionRejected(ctx context.Context, rec *domain.AttendanceRecord, reviewerID string) {
	data := messaging.CorrectionRejectedEvent{
		RecordID:     rec.ID,
		EmployeeID:   rec.EmployeeID,
		RestoredType: string(rec.PunchType),
		ReviewerID:   reviewerID,
	}

	if err := p.publisher.Publish(ctx, messaging.EventCorrectionRejected, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish correction rejected event")
	}
}

// PublishRecordCorrected announces a manual edit of a record
func (p *AttendanceEventPublisher) PublishRecordCorrected(ctx context.Context, rec *domain.AttendanceRecord, fields map[string]any, editedBy string) {
	data := messaging.RecordCorrectedEvent{
		RecordID:   rec.ID,
		EmployeeID: rec.EmployeeID,
		Fields:     fields,
		EditedBy:   editedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventRecordCorrected, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish record corrected event")
	}
}

// PublishValidationEscalated announces an escalation level increase
func (p *AttendanceEventPublisher) PublishValidationEscalated(ctx context.Context, rec *domain.AttendanceRecord, fromLevel, toLevel int) {
	data := messaging.ValidationEscalatedEvent{
		RecordID:   rec.ID,
		EmployeeID: rec.EmployeeID,
		FromLevel:  fromLevel,
		ToLevel:    toLevel,
	}
	if rec.PendingSince != nil {
		data.PendingSince = *rec.PendingSince
	}

	if err := p.publisher.Publish(ctx, messaging.EventValidationEscalated, data); err != nil {
		p.logger.Error().Err(err).Str("record_id", rec.ID).Msg("failed to publish validation escalated event")
	}
}

// PublishDeviceEnrolled announces a new terminal enrollment
func (p *AttendanceEventPublisher) PublishDeviceEnrolled(ctx context.Context, device *domain.Device, enrolledBy string) {
	data := messaging.DeviceEnrolledEvent{
		DeviceID:   device.ID,
		Serial:     device.Serial,
		Label:      device.Label,
		EnrolledBy: enrolledBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDeviceEnrolled, data); err != nil {
		p.logger.Error().Err(err).Str("device_id", device.ID).Msg("failed to publish device enrolled event")
	}
}

// PublishDeviceRevoked announces a terminal revocation
func (p *AttendanceEventPublisher) PublishDeviceRevoked(ctx context.Context, device *domain.Device, revokedBy, reason string) {
	data := messaging.DeviceRevokedEvent{
		DeviceID:  device.ID,
		Serial:    device.Serial,
		RevokedBy: revokedBy,
		Reason:    reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDeviceRevoked, data); err != nil {
		p.logger.Error().Err(err).Str("device_id", device.ID).Msg("failed to publish device revoked event")
	}
}
