package service

import (
	"context"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/engine"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
	"github.com/punchflow/punchflow-backend/pkg/actor"
	"github.com/punchflow/punchflow-backend/pkg/logger"
)

// SweepService runs the deferred batch checks for one tenant: escalation of
// stale pending validations and missing-out detection on open sessions.
type SweepService struct {
	records   *repository.RecordRepository
	policies  *repository.PolicyRepository
	resolver  *schedule.Resolver
	publisher *events.AttendanceEventPublisher
	logger    *logger.Logger
}

// NewSweepService creates the batch sweep service
func NewSweepService(
	records *repository.RecordRepository,
	policies *repository.PolicyRepository,
	resolver *schedule.Resolver,
	publisher *events.AttendanceEventPublisher,
	log *logger.Logger,
) *SweepService {
	return &SweepService{
		records:   records,
		policies:  policies,
		resolver:  resolver,
		publisher: publisher,
		logger:    log.WithComponent("sweep-service"),
	}
}

// RunEscalationSweep raises the escalation level of records pending
// validation past the configured thresholds. Levels only ever move up; the
// guarded update makes concurrent sweeps safe.
func (s *SweepService) RunEscalationSweep(ctx context.Context) error {
	cfg, err := s.policies.Load(ctx)
	if err != nil {
		return err
	}

	pending, err := s.records.ListPendingValidation(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	escalated := 0
	for _, rec := range pending {
		if rec.ValidationStatus != domain.ValidationPending || rec.PendingSince == nil {
			continue
		}

		target := cfg.EscalationLevelFor(now.Sub(*rec.PendingSince))
		if target <= rec.EscalationLevel {
			continue
		}

		ok, err := s.records.EscalateTo(ctx, rec.ID, target)
		if err != nil {
			s.logger.Error().Err(err).Str("record_id", rec.ID).Msg("escalation update failed")
			continue
		}
		if ok {
			s.publisher.PublishValidationEscalated(ctx, rec, rec.EscalationLevel, target)
			escalated++
		}
	}

	if escalated > 0 {
		s.logger.Info().Int("escalated", escalated).Msg("escalation sweep completed")
	}
	return nil
}

// RunMissingOutSweep flags open sessions whose OUT never came. This check
// only runs here, deferred; a synchronous version would flag every shift
// still in progress.
func (s *SweepService) RunMissingOutSweep(ctx context.Context) error {
	cfg, err := s.policies.Load(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(cfg.AmbiguousPunchWindowHours) * time.Hour)

	open, err := s.records.ListOpenSessions(ctx, cutoff)
	if err != nil {
		return err
	}

	flagged := 0
	for _, rec := range open {
		assignment, err := s.resolver.Resolve(ctx, rec.EmployeeID, rec.PunchedAt, cfg)
		if err != nil {
			s.logger.Error().Err(err).Str("record_id", rec.ID).Msg("shift resolution failed during sweep")
			continue
		}

		finding := engine.DetectMissingOut(rec, assignment, cfg, now)
		if finding == nil {
			continue
		}

		rec.SetAnomaly(finding.Kind, finding.Note)
		rec.AttachSuggestion(finding.Suggestion)
		if err := s.records.UpdateEnrichment(ctx, rec); err != nil {
			s.logger.Error().Err(err).Str("record_id", rec.ID).Msg("missing-out write failed")
			continue
		}

		s.publisher.PublishAnomalyDetected(ctx, rec)
		flagged++
	}

	if flagged > 0 {
		s.logger.Info().
			Int("flagged", flagged).
			Str("actor", actor.FromContext(ctx).String()).
			Msg("missing-out sweep completed")
	}
	return nil
}
