package service

import (
	"context"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/engine"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
	"github.com/punchflow/punchflow-backend/pkg/logger"
)

// EnrichmentService performs the deferred per-record work the synchronous
// pipeline skips: anomaly detection, session metrics and reconciliation.
// Failures are logged and never roll back the accepted punch.
type EnrichmentService struct {
	records   *repository.RecordRepository
	schedules *repository.ScheduleRepository
	leaves    *repository.LeaveRepository
	policies  *repository.PolicyRepository
	resolver  *schedule.Resolver
	publisher *events.AttendanceEventPublisher
	logger    *logger.Logger
}

// NewEnrichmentService creates the enrichment service
func NewEnrichmentService(
	records *repository.RecordRepository,
	schedules *repository.ScheduleRepository,
	leaves *repository.LeaveRepository,
	policies *repository.PolicyRepository,
	resolver *schedule.Resolver,
	publisher *events.AttendanceEventPublisher,
	log *logger.Logger,
) *EnrichmentService {
	return &EnrichmentService{
		records:   records,
		schedules: schedules,
		leaves:    leaves,
		policies:  policies,
		resolver:  resolver,
		publisher: publisher,
		logger:    log.WithComponent("enrichment"),
	}
}

// EnrichRecord loads a freshly persisted record and writes its anomaly and
// metric fields. Idempotent: re-running it recomputes the same enrichment.
func (s *EnrichmentService) EnrichRecord(ctx context.Context, recordID string) error {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.Status == domain.RecordDebounceBlocked {
		return nil // blocked noise carries no enrichment
	}

	cfg, err := s.policies.Load(ctx)
	if err != nil {
		return err
	}

	employee, err := s.schedules.GetEmployeeByRef(ctx, rec.EmployeeID)
	if err != nil {
		return err
	}

	recent, err := s.records.RecentForEmployee(ctx, rec.EmployeeID, rec.PunchedAt.Add(-snapshotLookback))
	if err != nil {
		return err
	}
	prior := priorSnapshot(recent, rec)

	assignment, err := s.resolver.Resolve(ctx, rec.EmployeeID, rec.PunchedAt, cfg)
	if err != nil {
		return err
	}

	local := rec.PunchedAt.In(cfg.Location())
	leaves, err := s.leaves.ApprovedLeavesAround(ctx, rec.EmployeeID, local)
	if err != nil {
		return err
	}
	holiday, err := s.leaves.HolidayOn(ctx, dayOf(local))
	if err != nil {
		return err
	}

	if rec.PunchType == domain.PunchOut {
		s.reconcileMissingOut(ctx, rec)

		if m := engine.ComputeOutMetrics(engine.OutMetricsInput{
			OutInstant:      rec.PunchedAt,
			Snap:            prior,
			Assignment:      assignment,
			Employee:        employee,
			HolidayOnOutDay: holiday != nil,
			Cfg:             cfg,
		}); m != nil {
			rec.WorkedMinutes = &m.WorkedMinutes
			rec.BreakMinutes = &m.BreakMinutes
			rec.OvertimeMinutes = &m.OvertimeMinutes
		}
	}

	// Wrong-button records keep their auto-correction anomaly until a
	// reviewer decides; only the metrics above are refreshed.
	if !rec.NeedsApproval {
		event := &domain.PunchEvent{
			EmployeeRef: rec.EmployeeID,
			TenantID:    rec.TenantID,
			Instant:     rec.PunchedAt,
			Source:      rec.Source,
		}
		finding := engine.DetectAnomaly(engine.DetectorInput{
			Event:      event,
			Type:       rec.PunchType,
			Snap:       prior,
			Assignment: assignment,
			Leaves:     leaves,
			Holiday:    holiday,
			Employee:   employee,
			Cfg:        cfg,
		})
		s.applyFinding(ctx, rec, finding)
	}

	if err := s.records.UpdateEnrichment(ctx, rec); err != nil {
		return err
	}

	s.logger.Debug().
		Str("record_id", rec.ID).
		Bool("has_anomaly", rec.HasAnomaly).
		Msg("record enriched")
	return nil
}

// applyFinding writes a detector finding onto the record. Informational
// findings trace the situation without flagging the record.
func (s *EnrichmentService) applyFinding(ctx context.Context, rec *domain.AttendanceRecord, finding *engine.Finding) {
	if finding == nil {
		return
	}

	rec.SetAnomaly(finding.Kind, finding.Note)
	rec.AttachSuggestion(finding.Suggestion)
	if finding.LateMinutes != nil {
		rec.LateMinutes = finding.LateMinutes
	}
	if finding.EarlyMinutes != nil {
		rec.EarlyLeaveMinutes = finding.EarlyMinutes
	}

	if rec.HasAnomaly {
		s.publisher.PublishAnomalyDetected(ctx, rec)
	}
}

// reconcileMissingOut clears a stale MISSING_OUT on the dangling IN this OUT
// finally closes. The conditional clear makes retries and concurrent human
// corrections no-ops.
func (s *EnrichmentService) reconcileMissingOut(ctx context.Context, out *domain.AttendanceRecord) {
	dangling, err := s.records.DanglingInBefore(ctx, out.EmployeeID, out.PunchedAt)
	if err != nil {
		s.logger.Warn().Err(err).Str("record_id", out.ID).Msg("dangling IN lookup failed")
		return
	}
	if dangling == nil {
		return
	}

	cleared, err := s.records.ClearAnomalyIf(ctx, dangling.ID, domain.AnomalyMissingOut)
	if err != nil {
		s.logger.Warn().Err(err).Str("record_id", dangling.ID).Msg("missing-out reconciliation failed")
		return
	}
	if cleared {
		s.publisher.PublishAnomalyCleared(ctx, dangling, domain.AnomalyMissingOut, "reconciliation")
		s.logger.Info().
			Str("record_id", dangling.ID).
			Str("closing_record_id", out.ID).
			Msg("stale missing-out cleared by late OUT")
	}
}

// priorSnapshot builds the history view the detectors expect: everything
// strictly before the record, the record itself excluded.
func priorSnapshot(recent []*domain.AttendanceRecord, rec *domain.AttendanceRecord) *engine.Snapshot {
	prior := make([]*domain.AttendanceRecord, 0, len(recent))
	for _, r := range recent {
		if r.ID == rec.ID || !r.PunchedAt.Before(rec.PunchedAt) {
			continue
		}
		prior = append(prior, r)
	}
	return engine.NewSnapshot(prior, time.Now().UTC())
}
