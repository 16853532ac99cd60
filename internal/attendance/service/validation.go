package service

import (
	"context"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// ValidationService handles the human-in-the-loop workflow: auto-correction
// review, ambiguous punch validation and manual corrections.
type ValidationService struct {
	records   *repository.RecordRepository
	publisher *events.AttendanceEventPublisher
	enqueue   func(job EnrichmentJob)
	logger    *logger.Logger
}

// NewValidationService creates the validation workflow service
func NewValidationService(records *repository.RecordRepository, publisher *events.AttendanceEventPublisher, log *logger.Logger) *ValidationService {
	return &ValidationService{
		records:   records,
		publisher: publisher,
		enqueue:   func(EnrichmentJob) {},
		logger:    log.WithComponent("validation-service"),
	}
}

// SetEnqueue wires the enrichment pool's submit function
func (s *ValidationService) SetEnqueue(fn func(job EnrichmentJob)) {
	s.enqueue = fn
}

// ListPending returns records awaiting review, oldest pending first
func (s *ValidationService) ListPending(ctx context.Context) ([]*domain.AttendanceRecord, error) {
	return s.records.ListPendingValidation(ctx)
}

// ApproveCorrection confirms a wrong-button auto-correction. The corrected
// type stands and the record leaves the review queue.
func (s *ValidationService) ApproveCorrection(ctx context.Context, id, reviewerID string) (*domain.AttendanceRecord, error) {
	if err := s.records.ApproveCorrection(ctx, id, reviewerID); err != nil {
		return nil, err
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// The auto-correction anomaly served its review purpose; the approved
	// record is re-enriched as a normal punch of the corrected type.
	if rec.AnomalyKind != nil && *rec.AnomalyKind == domain.AnomalyWrongType {
		if _, err := s.records.ClearAnomalyIf(ctx, id, domain.AnomalyWrongType); err != nil {
			s.logger.Warn().Err(err).Str("record_id", id).Msg("failed to clear wrong-type anomaly after approval")
		}
	}
	s.requeue(ctx, rec)

	s.publisher.PublishCorrectionApproved(ctx, rec, reviewerID)
	s.logger.Info().
		Str("record_id", id).
		Str("reviewer_id", reviewerID).
		Str("punch_type", string(rec.PunchType)).
		Msg("auto-correction approved")
	return rec, nil
}

// RejectCorrection reverts a wrong-button auto-correction: the original type
// and its pre-correction anomaly come back.
func (s *ValidationService) RejectCorrection(ctx context.Context, id, reviewerID string) (*domain.AttendanceRecord, error) {
	if err := s.records.RejectCorrection(ctx, id, reviewerID); err != nil {
		return nil, err
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.requeue(ctx, rec)

	s.publisher.PublishCorrectionRejected(ctx, rec, reviewerID)
	s.logger.Info().
		Str("record_id", id).
		Str("reviewer_id", reviewerID).
		Str("restored_type", string(rec.PunchType)).
		Msg("auto-correction rejected, original type restored")
	return rec, nil
}

// ValidateAmbiguous resolves a pending-validation record. accept keeps the
// inferred type as-is; a rejection marks the record for manual correction.
func (s *ValidationService) ValidateAmbiguous(ctx context.Context, id string, accept bool, reviewerID string) (*domain.AttendanceRecord, error) {
	status := domain.ValidationAccepted
	if !accept {
		status = domain.ValidationRejected
	}

	if err := s.records.SetValidation(ctx, id, status, reviewerID); err != nil {
		return nil, err
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("record_id", id).
		Str("reviewer_id", reviewerID).
		Str("status", string(status)).
		Msg("ambiguous punch validated")
	return rec, nil
}

// CorrectRecordType applies a manual type correction and re-enriches
func (s *ValidationService) CorrectRecordType(ctx context.Context, id string, newType domain.PunchType, correctedBy, note string) (*domain.AttendanceRecord, error) {
	if !newType.IsValid() {
		return nil, errors.BadRequest("unknown punch type " + string(newType))
	}

	if err := s.records.CorrectType(ctx, id, newType, correctedBy, note); err != nil {
		return nil, err
	}

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.requeue(ctx, rec)

	s.publisher.PublishRecordCorrected(ctx, rec, map[string]any{"punch_type": string(newType)}, correctedBy)
	return rec, nil
}

// DeleteManualRecord soft-deletes a back-office entry. Terminal-sourced
// records are immutable history and cannot be deleted.
func (s *ValidationService) DeleteManualRecord(ctx context.Context, id, deletedBy string) error {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !rec.IsManual {
		return errors.Forbidden("only manual entries can be deleted")
	}

	if err := s.records.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.publisher.PublishRecordCorrected(ctx, rec, map[string]any{"deleted": true}, deletedBy)
	s.logger.Info().
		Str("record_id", id).
		Str("deleted_by", deletedBy).
		Msg("manual record deleted")
	return nil
}

func (s *ValidationService) requeue(ctx context.Context, rec *domain.AttendanceRecord) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return
	}
	s.enqueue(EnrichmentJob{
		RecordID: rec.ID,
		TenantID: tenantID,
		Timezone: tenant.Timezone(ctx),
	})
}
