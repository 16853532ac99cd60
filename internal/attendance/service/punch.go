package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/engine"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// snapshotLookback bounds how much history the pipeline loads per punch.
// It must cover the alternation window, the pairing lookback and the
// ambiguity window with room to spare.
const snapshotLookback = 72 * time.Hour

// Manual entries may not be timestamped in the future beyond clock skew
const manualFutureSkew = 5 * time.Minute

// PunchService runs the ingest pipeline: resolve, classify, gate, persist,
// then enqueue deferred enrichment.
type PunchService struct {
	records   *repository.RecordRepository
	schedules *repository.ScheduleRepository
	leaves    *repository.LeaveRepository
	policies  *repository.PolicyRepository
	resolver  *schedule.Resolver
	publisher *events.AttendanceEventPublisher
	enqueue   func(job EnrichmentJob)
	logger    *logger.Logger

	// Per-(tenant, employee) serialization. Concurrent punches for the same
	// employee would otherwise race the snapshot.
	locks sync.Map
}

// NewPunchService creates the punch ingest service
func NewPunchService(
	records *repository.RecordRepository,
	schedules *repository.ScheduleRepository,
	leaves *repository.LeaveRepository,
	policies *repository.PolicyRepository,
	resolver *schedule.Resolver,
	publisher *events.AttendanceEventPublisher,
	log *logger.Logger,
) *PunchService {
	return &PunchService{
		records:   records,
		schedules: schedules,
		leaves:    leaves,
		policies:  policies,
		resolver:  resolver,
		publisher: publisher,
		enqueue:   func(EnrichmentJob) {},
		logger:    log.WithComponent("punch-service"),
	}
}

// SetEnqueue wires the enrichment pool's submit function. Called once at
// startup after the pool exists; until then enrichment jobs are dropped.
func (s *PunchService) SetEnqueue(fn func(job EnrichmentJob)) {
	s.enqueue = fn
}

// ProcessPunch runs one punch through the full pipeline and returns the
// outcome envelope. Terminal punches are never rejected for policy reasons;
// manual entries are validated before anything is persisted.
func (s *PunchService) ProcessPunch(ctx context.Context, event *domain.PunchEvent) (*domain.ProcessResult, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	event.TenantID = tenantID

	employee, err := s.schedules.GetEmployeeByRef(ctx, event.EmployeeRef)
	if err != nil {
		return nil, err
	}

	cfg, err := s.policies.Load(ctx)
	if err != nil {
		return nil, err
	}

	if event.IsManual() {
		if err := s.precheckManual(ctx, event); err != nil {
			return nil, err
		}
	}

	unlock := s.lockEmployee(tenantID, employee.ID)
	defer unlock()

	now := time.Now().UTC()
	recent, err := s.records.RecentForEmployee(ctx, employee.ID, now.Add(-snapshotLookback))
	if err != nil {
		return nil, err
	}
	snap := engine.NewSnapshot(recent, now)

	assignment, err := s.resolver.Resolve(ctx, employee.ID, event.Instant, cfg)
	if err != nil {
		return nil, err
	}

	classification, err := engine.Classify(event, snap, assignment, cfg)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	effectiveType := classification.Type
	wb := engine.CheckWrongButton(event, effectiveType, snap, assignment, cfg)
	if wb.Applied {
		effectiveType = wb.CorrectedType
	}

	gate := engine.CheckDedup(snap, event.Instant, effectiveType, cfg)
	switch gate.Outcome {
	case engine.GateDuplicate:
		if event.IsManual() {
			reason := "a punch already exists at this instant"
			s.publisher.PublishPunchRejected(ctx, employee.ID, event.Instant, reason, event.EnteredBy)
			return nil, errors.Rejected(reason)
		}
		s.publisher.PublishPunchDuplicate(ctx, gate.Prior)
		return &domain.ProcessResult{
			Status:    domain.StatusDuplicate,
			RecordID:  gate.Prior.ID,
			PunchType: gate.Prior.PunchType,
		}, nil

	case engine.GateDebounced:
		rec := s.buildRecord(event, employee.ID, effectiveType, classification, now)
		rec.Status = domain.RecordDebounceBlocked
		if err := s.records.Create(ctx, rec); err != nil {
			return nil, err
		}
		s.publisher.PublishPunchDebounced(ctx, rec, gate.Prior.ID, gate.GapSeconds)
		s.logger.Info().
			Str("record_id", rec.ID).
			Str("prior_id", gate.Prior.ID).
			Int("gap_seconds", gate.GapSeconds).
			Msg("punch debounce-blocked")
		return &domain.ProcessResult{
			Status:    domain.StatusDebounceBlocked,
			RecordID:  rec.ID,
			PunchType: rec.PunchType,
		}, nil
	}

	rec := s.buildRecord(event, employee.ID, effectiveType, classification, now)
	if wb.Applied {
		s.applyWrongButton(ctx, rec, event, wb, snap, assignment, employee, cfg)
	}

	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.enqueue(EnrichmentJob{
		RecordID: rec.ID,
		TenantID: tenantID,
		Timezone: tenant.Timezone(ctx),
	})

	s.publisher.PublishPunchRecorded(ctx, rec)
	if rec.NeedsApproval {
		s.publisher.PublishCorrectionPending(ctx, rec, wb.Note)
	}

	s.logger.Info().
		Str("record_id", rec.ID).
		Str("employee_id", employee.ID).
		Str("punch_type", string(rec.PunchType)).
		Str("detection_method", string(rec.DetectionMethod)).
		Str("confidence", string(rec.Confidence)).
		Bool("needs_approval", rec.NeedsApproval).
		Msg("punch recorded")

	return &domain.ProcessResult{
		Status:    domain.StatusCreated,
		RecordID:  rec.ID,
		PunchType: rec.PunchType,
	}, nil
}

// precheckManual enforces the validate-then-accept rule for back-office
// entries: a bad manual punch is turned away with 422 and nothing persists.
func (s *PunchService) precheckManual(ctx context.Context, event *domain.PunchEvent) error {
	if event.DeclaredType == nil || !event.DeclaredType.IsValid() {
		reason := "manual entries must declare a valid punch type"
		s.publisher.PublishPunchRejected(ctx, event.EmployeeRef, event.Instant, reason, event.EnteredBy)
		return errors.Rejected(reason)
	}
	if event.Instant.After(time.Now().UTC().Add(manualFutureSkew)) {
		reason := "manual entries may not be timestamped in the future"
		s.publisher.PublishPunchRejected(ctx, event.EmployeeRef, event.Instant, reason, event.EnteredBy)
		return errors.Rejected(reason)
	}
	return nil
}

func (s *PunchService) buildRecord(event *domain.PunchEvent, employeeID string, effectiveType domain.PunchType, c engine.Classification, now time.Time) *domain.AttendanceRecord {
	rec := &domain.AttendanceRecord{
		EmployeeID:       employeeID,
		PunchedAt:        event.Instant,
		PunchType:        effectiveType,
		Status:           domain.RecordActive,
		DetectionMethod:  c.Method,
		Confidence:       c.Confidence,
		Source:           event.Source,
		RawPayload:       event.RawPayload,
		IsManual:         event.IsManual(),
		IsAmbiguous:      c.Ambiguous,
		ValidationStatus: domain.ValidationNone,
	}
	if event.DeviceID != "" {
		rec.DeviceID = &event.DeviceID
	}
	if c.PendingValidation {
		rec.ValidationStatus = domain.ValidationPending
		pending := now
		rec.PendingSince = &pending
	}
	if c.Ambiguous && c.Note != "" {
		note := c.Note
		rec.AnomalyNote = &note
	}
	return rec
}

// applyWrongButton marks the record as an auto-corrected wrong-button press.
// The pre-correction anomaly is computed against the original type so a
// rejection can restore both the type and what the detector would have said.
func (s *PunchService) applyWrongButton(ctx context.Context, rec *domain.AttendanceRecord, event *domain.PunchEvent, wb engine.WrongButtonResult, snap *engine.Snapshot, assignment *domain.ScheduleAssignment, employee *domain.Employee, cfg *policy.Config) {
	rec.NeedsApproval = true
	original := wb.OriginalType
	rec.OriginalType = &original
	rec.SetAnomaly(domain.AnomalyWrongType, wb.Note)

	local := event.Instant.In(cfg.Location())
	leaves, err := s.leaves.ApprovedLeavesAround(ctx, employee.ID, local)
	if err != nil {
		s.logger.Warn().Err(err).Msg("leave lookup failed during wrong-button check")
	}
	holiday, err := s.leaves.HolidayOn(ctx, dayOf(local))
	if err != nil {
		s.logger.Warn().Err(err).Msg("holiday lookup failed during wrong-button check")
	}

	if finding := engine.DetectAnomaly(engine.DetectorInput{
		Event:      event,
		Type:       wb.OriginalType,
		Snap:       snap,
		Assignment: assignment,
		Leaves:     leaves,
		Holiday:    holiday,
		Employee:   employee,
		Cfg:        cfg,
	}); finding != nil && !finding.Informational {
		kind := finding.Kind
		rec.OriginalAnomaly = &kind
	}
}

// lockEmployee serializes pipeline runs for one employee within one tenant
func (s *PunchService) lockEmployee(tenantID, employeeID string) func() {
	key := fmt.Sprintf("%s|%s", tenantID, employeeID)
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
