package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/messaging"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
	"github.com/punchflow/punchflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type punchEnv struct {
	svc    *service.PunchService
	mockDB *testutil.MockDB
	pub    *testutil.MockPublisher
	ctx    context.Context
	jobs   []service.EnrichmentJob
}

func newPunchEnv(t *testing.T) *punchEnv {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { _ = mockDB.Close() })

	log := logger.New("attendance-service", "test")
	db := database.NewWithDB(mockDB.DB, testSearchPath, log)
	pub := testutil.NewMockPublisher()

	scheduleRepo := repository.NewScheduleRepository(db)
	env := &punchEnv{
		svc: service.NewPunchService(
			repository.NewRecordRepository(db),
			scheduleRepo,
			repository.NewLeaveRepository(db),
			repository.NewPolicyRepository(db),
			schedule.NewResolver(scheduleRepo, log),
			events.NewAttendanceEventPublisherWith(pub, log),
			log,
		),
		mockDB: mockDB,
		pub:    pub,
		ctx:    tenant.WithTenantID(context.Background(), testTenantID),
	}
	env.svc.SetEnqueue(func(job service.EnrichmentJob) { env.jobs = append(env.jobs, job) })
	return env
}

// The pipeline's read phase in call order: employee lookup, policy load,
// recent history, then the day's published assignments.
func (e *punchEnv) expectReads(history *sqlmock.Rows) {
	e.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	e.mockDB.ExpectQuery("FROM employees").
		WithArgs("emp-1").
		WillReturnRows(testutil.MockRows("id", "badge_code", "first_name", "last_name").
			AddRow("emp-1", "B-100", "Nora", "Lindqvist"))
	e.mockDB.ExpectCommit()

	e.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	e.mockDB.ExpectQuery("FROM policy_options").
		WillReturnRows(testutil.MockRows("option_key", "option_value"))
	e.mockDB.ExpectCommit()

	e.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	e.mockDB.ExpectQuery("status <> 'DEBOUNCE_BLOCKED'").
		WithArgs("emp-1", testutil.AnyTime{}).
		WillReturnRows(history)
	e.mockDB.ExpectCommit()

	e.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	e.mockDB.ExpectQuery("FROM schedule_assignments").
		WithArgs("emp-1", testutil.AnyTime{}).
		WillReturnRows(testutil.MockRows(
			"id", "employee_id", "schedule_date", "shift_id", "published",
			"shift_name", "start_time", "end_time", "break_minutes").
			AddRow("assign-1", "emp-1", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "shift-day", true,
				"Day", "08:00", "16:00", 60))
	e.mockDB.ExpectCommit()
}

func (e *punchEnv) expectInsert() {
	e.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	e.mockDB.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").
			AddRow(time.Now(), time.Now()))
	e.mockDB.ExpectCommit()
}

func terminalPunch(instant time.Time, code int) *domain.PunchEvent {
	return &domain.PunchEvent{
		EmployeeRef:       "emp-1",
		Instant:           instant,
		TerminalStateCode: &code,
		Source:            domain.SourceTerminal,
		DeviceID:          "terminal-01",
	}
}

func TestPunchService_ProcessPunch_Duplicate(t *testing.T) {
	env := newPunchEnv(t)
	instant := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	env.expectReads(testutil.MockRows("id", "employee_id", "punched_at", "punch_type", "status").
		AddRow("orig-1", "emp-1", instant, "OUT", "ACTIVE"))

	result, err := env.svc.ProcessPunch(env.ctx, terminalPunch(instant, 1))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDuplicate, result.Status)
	assert.Equal(t, "orig-1", result.RecordID, "the original record is returned")
	assert.Equal(t, domain.PunchOut, result.PunchType)
	env.pub.AssertEventPublished(t, messaging.EventPunchDuplicate)
	data := env.pub.PublishedEvents[0].Payload.(messaging.PunchDuplicateEvent)
	assert.Equal(t, "orig-1", data.OriginalRecordID)
	assert.Empty(t, env.jobs, "duplicates are not enriched")
	env.mockDB.ExpectationsWereMet(t)
}

func TestPunchService_ProcessPunch_Debounced(t *testing.T) {
	env := newPunchEnv(t)
	prior := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	env.expectReads(testutil.MockRows("id", "employee_id", "punched_at", "punch_type", "status").
		AddRow("prior-1", "emp-1", prior, "OUT", "ACTIVE"))
	env.expectInsert()

	// Same type 90 seconds later, inside the 2-minute tolerance
	result, err := env.svc.ProcessPunch(env.ctx, terminalPunch(prior.Add(90*time.Second), 1))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDebounceBlocked, result.Status)
	assert.NotEqual(t, "prior-1", result.RecordID, "the bounce persists as its own blocked record")
	env.pub.AssertEventPublished(t, messaging.EventPunchDebounced)
	data := env.pub.PublishedEvents[0].Payload.(messaging.PunchDebouncedEvent)
	assert.Equal(t, "prior-1", data.PriorRecordID)
	assert.Equal(t, 90, data.GapSeconds)
	assert.Empty(t, env.jobs, "blocked records are not enriched")
	env.mockDB.ExpectationsWereMet(t)
}

func TestPunchService_ProcessPunch_CreatedWithWrongButtonCorrection(t *testing.T) {
	env := newPunchEnv(t)
	// OUT pressed at 08:02 against an 08:00-16:00 shift with no session to
	// close: flipped to IN pending approval.
	instant := time.Date(2026, 3, 10, 8, 2, 0, 0, time.UTC)

	env.expectReads(testutil.MockRows("id"))

	env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	env.mockDB.ExpectQuery("FROM leaves").
		WillReturnRows(testutil.MockRows("id"))
	env.mockDB.ExpectCommit()

	env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	env.mockDB.ExpectQuery("FROM holidays").
		WillReturnRows(testutil.MockRows("id"))
	env.mockDB.Mock.ExpectRollback()

	env.expectInsert()

	result, err := env.svc.ProcessPunch(env.ctx, terminalPunch(instant, 1))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusCreated, result.Status)
	assert.Equal(t, domain.PunchIn, result.PunchType, "the effective type is the corrected one")

	require.Len(t, env.jobs, 1, "created records go to enrichment")
	assert.Equal(t, result.RecordID, env.jobs[0].RecordID)
	assert.Equal(t, testTenantID, env.jobs[0].TenantID)

	env.pub.AssertEventPublished(t, messaging.EventPunchRecorded)
	recorded := env.pub.PublishedEvents[0].Payload.(messaging.PunchRecordedEvent)
	assert.Equal(t, "IN", recorded.PunchType)
	assert.Equal(t, "TERMINAL_STATE", recorded.DetectionMethod)

	env.pub.AssertEventPublished(t, messaging.EventCorrectionPending)
	pending := env.pub.PublishedEvents[1].Payload.(messaging.CorrectionPendingEvent)
	assert.Equal(t, "OUT", pending.RecordedType)
	assert.Equal(t, "IN", pending.SuggestedType)
	env.mockDB.ExpectationsWereMet(t)
}
