package service_test

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/internal/attendance/service"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/messaging"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
	"github.com/punchflow/punchflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSearchPath = "attendance, public"
	testTenantID   = "b3e1c9a2-5f74-4d2e-9c31-8a6f0e4d7b15"
)

type validationEnv struct {
	svc    *service.ValidationService
	mockDB *testutil.MockDB
	pub    *testutil.MockPublisher
	ctx    context.Context
	jobs   []service.EnrichmentJob
}

func newValidationEnv(t *testing.T) *validationEnv {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { _ = mockDB.Close() })

	log := logger.New("attendance-service", "test")
	db := database.NewWithDB(mockDB.DB, testSearchPath, log)
	pub := testutil.NewMockPublisher()

	env := &validationEnv{
		svc:    service.NewValidationService(repository.NewRecordRepository(db), events.NewAttendanceEventPublisherWith(pub, log), log),
		mockDB: mockDB,
		pub:    pub,
		ctx:    tenant.WithTenantID(context.Background(), testTenantID),
	}
	env.svc.SetEnqueue(func(job service.EnrichmentJob) { env.jobs = append(env.jobs, job) })
	return env
}

func (e *validationEnv) expectGetByID(cols []string, vals ...driver.Value) {
	e.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	e.mockDB.ExpectQuery("FROM attendance_records").
		WillReturnRows(testutil.MockRows(cols...).AddRow(vals...))
	e.mockDB.ExpectCommit()
}

func TestValidationService_ApproveCorrection(t *testing.T) {
	env := newValidationEnv(t)

	env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	env.mockDB.ExpectExec("needs_approval = FALSE, original_type = NULL").
		WithArgs("rec-1", "mgr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mockDB.ExpectCommit()

	env.expectGetByID(
		[]string{"id", "tenant_id", "employee_id", "punched_at", "punch_type", "status", "anomaly_kind"},
		"rec-1", testTenantID, "emp-1", time.Date(2026, 3, 10, 8, 2, 0, 0, time.UTC), "IN", "ACTIVE", "AUTO_CORRECTED_WRONG_TYPE")

	env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	env.mockDB.ExpectExec("anomaly_kind").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mockDB.ExpectCommit()

	rec, err := env.svc.ApproveCorrection(env.ctx, "rec-1", "mgr-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PunchIn, rec.PunchType)
	env.pub.AssertEventPublished(t, messaging.EventCorrectionApproved)
	data := env.pub.PublishedEvents[0].Payload.(messaging.CorrectionApprovedEvent)
	assert.Equal(t, "IN", data.AppliedType)
	assert.Equal(t, "mgr-1", data.ReviewerID)
	require.Len(t, env.jobs, 1, "approved record is re-enriched")
	assert.Equal(t, "rec-1", env.jobs[0].RecordID)
	env.mockDB.ExpectationsWereMet(t)
}

func TestValidationService_RejectCorrection(t *testing.T) {
	env := newValidationEnv(t)

	env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	env.mockDB.ExpectExec("punch_type = original_type").
		WithArgs("rec-1", "mgr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mockDB.ExpectCommit()

	env.expectGetByID(
		[]string{"id", "tenant_id", "employee_id", "punched_at", "punch_type", "status"},
		"rec-1", testTenantID, "emp-1", time.Date(2026, 3, 10, 8, 2, 0, 0, time.UTC), "OUT", "ACTIVE")

	rec, err := env.svc.RejectCorrection(env.ctx, "rec-1", "mgr-1")

	require.NoError(t, err)
	assert.Equal(t, domain.PunchOut, rec.PunchType, "the recorded type is restored")
	env.pub.AssertEventPublished(t, messaging.EventCorrectionRejected)
	data := env.pub.PublishedEvents[0].Payload.(messaging.CorrectionRejectedEvent)
	assert.Equal(t, "OUT", data.RestoredType)
	require.Len(t, env.jobs, 1)
	env.mockDB.ExpectationsWereMet(t)
}

func TestValidationService_ValidateAmbiguous(t *testing.T) {
	env := newValidationEnv(t)

	env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
	env.mockDB.ExpectExec("validation_status = $2, is_ambiguous = FALSE").
		WithArgs("rec-1", domain.ValidationAccepted, "mgr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mockDB.ExpectCommit()

	env.expectGetByID(
		[]string{"id", "tenant_id", "employee_id", "punched_at", "punch_type", "status", "validation_status"},
		"rec-1", testTenantID, "emp-1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), "IN", "ACTIVE", "VALIDATED")

	rec, err := env.svc.ValidateAmbiguous(env.ctx, "rec-1", true, "mgr-1")

	require.NoError(t, err)
	assert.Equal(t, domain.ValidationAccepted, rec.ValidationStatus)
	env.pub.AssertNoEventsPublished(t)
	env.mockDB.ExpectationsWereMet(t)
}

func TestValidationService_CorrectRecordType(t *testing.T) {
	t.Run("rejects an unknown type before touching storage", func(t *testing.T) {
		env := newValidationEnv(t)

		_, err := env.svc.CorrectRecordType(env.ctx, "rec-1", domain.PunchType("SIDEWAYS"), "mgr-1", "")

		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "BAD_REQUEST", appErr.Code)
		env.pub.AssertNoEventsPublished(t)
		env.mockDB.ExpectationsWereMet(t)
	})

	t.Run("applies the correction and republishes", func(t *testing.T) {
		env := newValidationEnv(t)

		env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
		env.mockDB.ExpectExec("corrected = TRUE, corrected_by").
			WithArgs("rec-1", domain.PunchOut, "mgr-1", "badge misread").
			WillReturnResult(sqlmock.NewResult(0, 1))
		env.mockDB.ExpectCommit()

		env.expectGetByID(
			[]string{"id", "tenant_id", "employee_id", "punched_at", "punch_type", "status"},
			"rec-1", testTenantID, "emp-1", time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC), "OUT", "ACTIVE")

		rec, err := env.svc.CorrectRecordType(env.ctx, "rec-1", domain.PunchOut, "mgr-1", "badge misread")

		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, rec.PunchType)
		env.pub.AssertEventPublished(t, messaging.EventRecordCorrected)
		data := env.pub.PublishedEvents[0].Payload.(messaging.RecordCorrectedEvent)
		assert.Equal(t, "OUT", data.Fields["punch_type"])
		require.Len(t, env.jobs, 1)
		env.mockDB.ExpectationsWereMet(t)
	})
}

func TestValidationService_DeleteManualRecord(t *testing.T) {
	t.Run("terminal records are immutable", func(t *testing.T) {
		env := newValidationEnv(t)

		env.expectGetByID(
			[]string{"id", "tenant_id", "employee_id", "punched_at", "punch_type", "status", "is_manual"},
			"rec-1", testTenantID, "emp-1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), "IN", "ACTIVE", false)

		err := env.svc.DeleteManualRecord(env.ctx, "rec-1", "mgr-1")

		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "FORBIDDEN", appErr.Code)
		env.pub.AssertNoEventsPublished(t)
		env.mockDB.ExpectationsWereMet(t)
	})

	t.Run("manual records soft-delete", func(t *testing.T) {
		env := newValidationEnv(t)

		env.expectGetByID(
			[]string{"id", "tenant_id", "employee_id", "punched_at", "punch_type", "status", "is_manual"},
			"rec-1", testTenantID, "emp-1", time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), "IN", "ACTIVE", true)

		env.mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
		env.mockDB.ExpectExec("is_manual = TRUE").
			WillReturnResult(sqlmock.NewResult(0, 1))
		env.mockDB.ExpectCommit()

		err := env.svc.DeleteManualRecord(env.ctx, "rec-1", "mgr-1")

		require.NoError(t, err)
		env.pub.AssertEventPublished(t, messaging.EventRecordCorrected)
		data := env.pub.PublishedEvents[0].Payload.(messaging.RecordCorrectedEvent)
		assert.Equal(t, true, data.Fields["deleted"])
		env.mockDB.ExpectationsWereMet(t)
	})
}
