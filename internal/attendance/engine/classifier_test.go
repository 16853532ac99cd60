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

func TestClassify_TerminalStateIsAuthoritative(t *testing.T) {
	cfg := policy.Default()
	snap := snapOf(at(9, 0))

	t.Run("OUT code wins even right at shift start", func(t *testing.T) {
		c, err := engine.Classify(terminalEvent(at(8, 5), 1), snap, assigned(dayShift()), cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
		assert.Equal(t, domain.MethodTerminalState, c.Method)
		assert.Equal(t, domain.ConfidenceHigh, c.Confidence)
		assert.False(t, c.Ambiguous)
	})

	t.Run("break end code", func(t *testing.T) {
		c, err := engine.Classify(terminalEvent(at(12, 45), 3), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchBreakEnd, c.Type)
	})

	t.Run("overtime buttons carry only the direction", func(t *testing.T) {
		c, err := engine.Classify(terminalEvent(at(18, 0), 4), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchIn, c.Type)

		c, err = engine.Classify(terminalEvent(at(19, 0), 5), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
	})

	t.Run("unknown code is an error", func(t *testing.T) {
		_, err := engine.Classify(terminalEvent(at(9, 0), 9), snap, nil, cfg)
		assert.Error(t, err)
	})
}

func TestClassify_DeclaredType(t *testing.T) {
	cfg := policy.Default()

	t.Run("manual entry", func(t *testing.T) {
		c, err := engine.Classify(manualEvent(at(3, 0), domain.PunchIn), snapOf(at(3, 0)), nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchIn, c.Type)
		assert.Equal(t, domain.MethodDeclared, c.Method)
		assert.Equal(t, domain.ConfidenceHigh, c.Confidence)
	})

	t.Run("device payload without a state code", func(t *testing.T) {
		// The declared OUT wins over shift proximity; the wrong-button check
		// downstream decides whether it was the wrong press.
		c, err := engine.Classify(declaredEvent(at(8, 5), domain.PunchOut), snapOf(at(8, 5)), assigned(dayShift()), cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
		assert.Equal(t, domain.MethodDeclared, c.Method)
	})
}

func TestClassify_ShiftProximity(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift()) // 08:00-16:00, margin 150

	tests := []struct {
		name       string
		punch      time.Time
		wantType   domain.PunchType
		wantConf   domain.Confidence
	}{
		{"a few minutes after start", at(8, 5), domain.PunchIn, domain.ConfidenceHigh},
		{"an hour before end", at(15, 0), domain.PunchOut, domain.ConfidenceHigh},
		{"margin boundary still counts as start", at(10, 30), domain.PunchIn, domain.ConfidenceMedium},
		{"early arrival inside margin", at(5, 40), domain.PunchIn, domain.ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := engine.Classify(inferredEvent(tt.punch), snapOf(tt.punch), assignment, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, domain.MethodShiftBased, c.Method)
			assert.Equal(t, tt.wantConf, c.Confidence)
		})
	}
}

func TestClassify_Alternation(t *testing.T) {
	cfg := policy.Default()

	t.Run("opposite of last session punch", func(t *testing.T) {
		snap := snapOf(at(9, 0), rec("in-1", domain.PunchIn, at(7, 0)))
		c, err := engine.Classify(inferredEvent(at(9, 0)), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
		assert.Equal(t, domain.MethodAlternation, c.Method)
		assert.Equal(t, domain.ConfidenceMedium, c.Confidence)
		assert.False(t, c.Ambiguous)
	})

	t.Run("after an OUT the next punch is IN", func(t *testing.T) {
		snap := snapOf(at(9, 0), rec("out-1", domain.PunchOut, at(7, 0)))
		c, err := engine.Classify(inferredEvent(at(9, 0)), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchIn, c.Type)
	})

	t.Run("long-open session degrades to ambiguous", func(t *testing.T) {
		// 17h open exceeds the 16h window
		open := at(9, 0).Add(-17 * time.Hour)
		snap := snapOf(at(9, 0), rec("in-1", domain.PunchIn, open))
		c, err := engine.Classify(inferredEvent(at(9, 0)), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
		assert.True(t, c.Ambiguous)
		assert.False(t, c.PendingValidation)
		assert.Equal(t, domain.ConfidenceLow, c.Confidence)
	})

	t.Run("past a day the punch goes to validation", func(t *testing.T) {
		open := at(12, 0).Add(-25 * time.Hour)
		snap := snapOf(at(12, 0), rec("in-1", domain.PunchIn, open))
		c, err := engine.Classify(inferredEvent(at(12, 0)), snap, nil, cfg)
		require.NoError(t, err)
		assert.True(t, c.Ambiguous)
		assert.True(t, c.PendingValidation)
	})

	t.Run("night shift corroborates a long-open session", func(t *testing.T) {
		// 03:00 punch, session open 17h, but the employee works nights
		punch := at(3, 0)
		snap := snapOf(punch, rec("in-1", domain.PunchIn, punch.Add(-17*time.Hour)))
		c, err := engine.Classify(inferredEvent(punch), snap, assigned(nightShift()), cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
		assert.False(t, c.Ambiguous)
		assert.Equal(t, domain.ConfidenceMedium, c.Confidence)
	})

	t.Run("stale history falls through", func(t *testing.T) {
		snap := snapOf(at(9, 0), rec("out-1", domain.PunchOut, at(9, 0).Add(-50*time.Hour)))
		c, err := engine.Classify(inferredEvent(at(9, 0)), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.MethodTimeBased, c.Method)
	})
}

func TestClassify_TimeOfDay(t *testing.T) {
	cfg := policy.Default()

	t.Run("noon splits IN from OUT without a shift", func(t *testing.T) {
		c, err := engine.Classify(inferredEvent(at(9, 0)), snapOf(at(9, 0)), nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchIn, c.Type)
		assert.Equal(t, domain.MethodTimeBased, c.Method)
		assert.Equal(t, domain.ConfidenceLow, c.Confidence)

		c, err = engine.Classify(inferredEvent(at(15, 0)), snapOf(at(15, 0)), nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
	})

	t.Run("shift midpoint splits when outside the boundary margin", func(t *testing.T) {
		assignment := assigned(dayShift())
		c, err := engine.Classify(inferredEvent(at(11, 0)), snapOf(at(11, 0)), assignment, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchIn, c.Type)
		assert.Equal(t, domain.MethodTimeBased, c.Method)

		c, err = engine.Classify(inferredEvent(at(12, 30)), snapOf(at(12, 30)), assignment, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
	})

	t.Run("night shift start window leans IN", func(t *testing.T) {
		c, err := engine.Classify(inferredEvent(at(19, 0)), snapOf(at(19, 0)), assigned(nightShift()), cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchIn, c.Type)
		assert.Equal(t, domain.ConfidenceMedium, c.Confidence)
	})

	t.Run("night shift with a stale open session leans OUT", func(t *testing.T) {
		punch := at(12, 0)
		snap := snapOf(punch, rec("in-1", domain.PunchIn, punch.Add(-50*time.Hour)))
		c, err := engine.Classify(inferredEvent(punch), snap, assigned(nightShift()), cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
		assert.Equal(t, domain.ConfidenceLow, c.Confidence)
	})

	t.Run("night shift with nothing to go on asks a human", func(t *testing.T) {
		c, err := engine.Classify(inferredEvent(at(12, 0)), snapOf(at(12, 0)), assigned(nightShift()), cfg)
		require.NoError(t, err)
		assert.True(t, c.Ambiguous)
		assert.True(t, c.PendingValidation)
	})

	t.Run("unclosed session from a previous day forces OUT", func(t *testing.T) {
		punch := at(9, 0)
		snap := snapOf(punch, rec("in-1", domain.PunchIn, punch.Add(-49*time.Hour)))
		c, err := engine.Classify(inferredEvent(punch), snap, nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, domain.PunchOut, c.Type)
	})
}
