package domain_test

import (
	"testing"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAnomaly(t *testing.T) {
	t.Run("a real anomaly flags the record", func(t *testing.T) {
		rec := &domain.AttendanceRecord{}
		rec.SetAnomaly(domain.AnomalyMissingOut, "no OUT within the window")

		assert.True(t, rec.HasAnomaly)
		require.NotNil(t, rec.AnomalyKind)
		assert.Equal(t, domain.AnomalyMissingOut, *rec.AnomalyKind)
	})

	t.Run("an informational kind traces without flagging", func(t *testing.T) {
		rec := &domain.AttendanceRecord{}
		rec.SetAnomaly(domain.AnomalyPresenceExterne, "OUT during approved leave")

		assert.False(t, rec.HasAnomaly)
		require.NotNil(t, rec.AnomalyKind)
		assert.Equal(t, domain.AnomalyPresenceExterne, *rec.AnomalyKind)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		rec := &domain.AttendanceRecord{}
		rec.SetAnomaly(domain.AnomalyLate, "arrived 20min late")
		rec.ClearAnomaly()

		assert.False(t, rec.HasAnomaly)
		assert.Nil(t, rec.AnomalyKind)
		assert.Nil(t, rec.AnomalyNote)
	})
}
