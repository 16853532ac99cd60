package engine_test

import (
	"testing"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/engine"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outMetrics(out time.Time, snap *engine.Snapshot, assignment *domain.ScheduleAssignment, opts ...func(*engine.OutMetricsInput)) *engine.SessionMetrics {
	in := engine.OutMetricsInput{
		OutInstant: out,
		Snap:       snap,
		Assignment: assignment,
		Cfg:        policy.Default(),
	}
	for _, opt := range opts {
		opt(&in)
	}
	return engine.ComputeOutMetrics(in)
}

func TestComputeOutMetrics_SimpleSession(t *testing.T) {
	snap := snapOf(at(16, 0), rec("in-1", domain.PunchIn, at(8, 0)))

	m := outMetrics(at(16, 0), snap, assigned(dayShift()))

	require.NotNil(t, m)
	assert.Equal(t, "in-1", m.PairedInID)
	assert.Equal(t, 420, m.WorkedMinutes) // 8h minus the 60min fixed break
	assert.Equal(t, 60, m.BreakMinutes)
	assert.Equal(t, 0, m.OvertimeMinutes)
}

func TestComputeOutMetrics_NoPairBeyondLookback(t *testing.T) {
	out := at(16, 0)
	snap := snapOf(out, rec("in-1", domain.PunchIn, out.Add(-30*time.Hour)))

	m := outMetrics(out, snap, assigned(dayShift()))

	assert.Nil(t, m)
}

func TestComputeOutMetrics_PairsWithOwnSessionBoundary(t *testing.T) {
	// Two sessions on one day; the evening OUT pairs with the afternoon IN,
	// not the morning one.
	snap := snapOf(at(18, 0),
		rec("in-1", domain.PunchIn, at(8, 0)),
		rec("out-1", domain.PunchOut, at(12, 0)),
		rec("in-2", domain.PunchIn, at(13, 0)))

	m := outMetrics(at(18, 0), snap, nil)

	require.NotNil(t, m)
	assert.Equal(t, "in-2", m.PairedInID)
	assert.Equal(t, 300, m.WorkedMinutes) // no shift, no fixed break
	assert.Equal(t, 0, m.BreakMinutes)
}

func TestComputeOutMetrics_PunchedBreaks(t *testing.T) {
	snap := snapOf(at(16, 0),
		rec("in-1", domain.PunchIn, at(8, 0)),
		rec("bs-1", domain.PunchBreakStart, at(12, 0)),
		rec("be-1", domain.PunchBreakEnd, at(12, 45)))

	m := outMetrics(at(16, 0), snap, assigned(dayShift()), func(in *engine.OutMetricsInput) {
		in.Cfg.RequireBreakPunch = true
	})

	require.NotNil(t, m)
	assert.Equal(t, "in-1", m.PairedInID, "break punches never close the session")
	assert.Equal(t, 45, m.BreakMinutes)
	assert.Equal(t, 435, m.WorkedMinutes)
}

func TestComputeOutMetrics_Overtime(t *testing.T) {
	assignment := assigned(dayShift()) // planned 420min net

	t.Run("extra equal to the threshold stays zero", func(t *testing.T) {
		snap := snapOf(at(16, 30), rec("in-1", domain.PunchIn, at(8, 0)))
		m := outMetrics(at(16, 30), snap, assignment)
		require.NotNil(t, m)
		assert.Equal(t, 450, m.WorkedMinutes)
		assert.Equal(t, 0, m.OvertimeMinutes)
	})

	t.Run("past the threshold overtime rounds to the granularity", func(t *testing.T) {
		snap := snapOf(at(17, 31), rec("in-1", domain.PunchIn, at(8, 0)))
		m := outMetrics(at(17, 31), snap, assignment)
		require.NotNil(t, m)
		assert.Equal(t, 511, m.WorkedMinutes)
		assert.Equal(t, 90, m.OvertimeMinutes) // 91 raw, 15min granularity
	})

	t.Run("ineligible employees never accrue overtime", func(t *testing.T) {
		snap := snapOf(at(19, 0), rec("in-1", domain.PunchIn, at(8, 0)))
		m := outMetrics(at(19, 0), snap, assignment, func(in *engine.OutMetricsInput) {
			in.Employee = &domain.Employee{ID: "emp-1", OvertimeEligible: false}
		})
		require.NotNil(t, m)
		assert.Equal(t, 0, m.OvertimeMinutes)
	})

	t.Run("no shift means no overtime baseline", func(t *testing.T) {
		snap := snapOf(at(19, 0), rec("in-1", domain.PunchIn, at(8, 0)))
		m := outMetrics(at(19, 0), snap, nil)
		require.NotNil(t, m)
		assert.Equal(t, 0, m.OvertimeMinutes)
	})
}

func TestComputeOutMetrics_HolidayMidnightSplit(t *testing.T) {
	// Night session runs 22:00 into 07:40 the next day, which is a holiday.
	// Planned is 450min net, worked 550, overtime 100 and all of it falls
	// after midnight.
	nightIn := at(22, 0)
	out := time.Date(2026, 3, 11, 7, 40, 0, 0, time.UTC)
	snap := snapOf(out, rec("in-1", domain.PunchIn, nightIn))
	assignment := assigned(nightShift())

	t.Run("majorized at the holiday rate", func(t *testing.T) {
		m := outMetrics(out, snap, assignment, func(in *engine.OutMetricsInput) {
			in.HolidayOnOutDay = true
		})
		require.NotNil(t, m)
		assert.Equal(t, 550, m.WorkedMinutes)
		assert.Equal(t, 150, m.OvertimeMinutes) // 100min at 1.5x
	})

	t.Run("counted as normal hours when configured", func(t *testing.T) {
		m := outMetrics(out, snap, assignment, func(in *engine.OutMetricsInput) {
			in.HolidayOnOutDay = true
			in.Cfg.HolidayOvertimeAsNormalHours = true
		})
		require.NotNil(t, m)
		assert.Equal(t, 105, m.OvertimeMinutes) // 100min rounded to 15
	})

	t.Run("ordinary day gets no majoration", func(t *testing.T) {
		m := outMetrics(out, snap, assignment)
		require.NotNil(t, m)
		assert.Equal(t, 105, m.OvertimeMinutes)
	})
}

func TestComputeLateMinutes(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift())

	assert.Equal(t, 15, engine.ComputeLateMinutes(at(8, 20), assignment, cfg))
	assert.Equal(t, 0, engine.ComputeLateMinutes(at(8, 3), assignment, cfg))
	assert.Equal(t, 0, engine.ComputeLateMinutes(at(7, 0), assignment, cfg))
	assert.Equal(t, 0, engine.ComputeLateMinutes(at(8, 20), nil, cfg))
}
