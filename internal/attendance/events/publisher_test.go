package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/messaging"
	"github.com/punchflow/punchflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPublisher() (*events.AttendanceEventPublisher, *testutil.MockPublisher) {
	mock := testutil.NewMockPublisher()
	return events.NewAttendanceEventPublisherWith(mock, logger.New("attendance-service", "test")), mock
}

func sampleRecord() *domain.AttendanceRecord {
	deviceID := "terminal-01"
	return &domain.AttendanceRecord{
		ID:              "rec-1",
		TenantID:        "tenant-1",
		EmployeeID:      "emp-1",
		PunchedAt:       time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		PunchType:       domain.PunchIn,
		Status:          domain.RecordActive,
		DetectionMethod: domain.MethodTerminalState,
		Confidence:      domain.ConfidenceHigh,
		Source:          domain.SourceTerminal,
		DeviceID:        &deviceID,
	}
}

func TestPublishPunchRecorded(t *testing.T) {
	pub, mock := newPublisher()

	pub.PublishPunchRecorded(context.Background(), sampleRecord())

	mock.AssertEventPublished(t, messaging.EventPunchRecorded)
	require.Len(t, mock.PublishedEvents, 1)
	data, ok := mock.PublishedEvents[0].Payload.(messaging.PunchRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, "rec-1", data.RecordID)
	assert.Equal(t, "tenant-1", data.TenantID)
	assert.Equal(t, "IN", data.PunchType)
	assert.Equal(t, "TERMINAL_STATE", data.DetectionMethod)
	assert.Equal(t, "terminal-01", data.DeviceID)
}

func TestPublishAnomalyDetected(t *testing.T) {
	t.Run("includes kind and note", func(t *testing.T) {
		pub, mock := newPublisher()
		rec := sampleRecord()
		rec.SetAnomaly(domain.AnomalyLate, "arrived 15min late")

		pub.PublishAnomalyDetected(context.Background(), rec)

		mock.AssertEventPublished(t, messaging.EventAnomalyDetected)
		data := mock.PublishedEvents[0].Payload.(messaging.AnomalyDetectedEvent)
		assert.Equal(t, "LATE", data.AnomalyKind)
		assert.Equal(t, "arrived 15min late", data.Detail)
	})

	t.Run("nothing published without an anomaly", func(t *testing.T) {
		pub, mock := newPublisher()

		pub.PublishAnomalyDetected(context.Background(), sampleRecord())

		mock.AssertNoEventsPublished(t)
	})
}

func TestPublishCorrectionPending(t *testing.T) {
	pub, mock := newPublisher()
	rec := sampleRecord()
	original := domain.PunchOut
	rec.NeedsApproval = true
	rec.OriginalType = &original

	pub.PublishCorrectionPending(context.Background(), rec, "OUT near shift start with no session to close")

	mock.AssertEventPublished(t, messaging.EventCorrectionPending)
	data := mock.PublishedEvents[0].Payload.(messaging.CorrectionPendingEvent)
	assert.Equal(t, "OUT", data.RecordedType)
	assert.Equal(t, "IN", data.SuggestedType)
	assert.NotEmpty(t, data.Reason)
}

func TestPublishAnomalyCleared(t *testing.T) {
	pub, mock := newPublisher()

	pub.PublishAnomalyCleared(context.Background(), sampleRecord(), domain.AnomalyMissingOut, "reconciliation")

	mock.AssertEventPublished(t, messaging.EventAnomalyCleared)
	data := mock.PublishedEvents[0].Payload.(messaging.AnomalyClearedEvent)
	assert.Equal(t, "MISSING_OUT", data.AnomalyKind)
	assert.Equal(t, "reconciliation", data.ClearedBy)
}

func TestPublishDeviceLifecycle(t *testing.T) {
	pub, mock := newPublisher()
	device := &domain.Device{ID: "dev-1", Serial: "TRM-0042", Label: "Main entrance"}

	pub.PublishDeviceEnrolled(context.Background(), device, "admin-1")
	pub.PublishDeviceRevoked(context.Background(), device, "admin-1", "terminal replaced")

	mock.AssertEventPublished(t, messaging.EventDeviceEnrolled)
	mock.AssertEventPublished(t, messaging.EventDeviceRevoked)
	require.Len(t, mock.PublishedEvents, 2)
	revoked := mock.PublishedEvents[1].Payload.(messaging.DeviceRevokedEvent)
	assert.Equal(t, "terminal replaced", revoked.Reason)
}
