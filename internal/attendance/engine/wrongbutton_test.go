package engine_test

import (
	"testing"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/engine"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/stretchr/testify/assert"
)

func TestCheckWrongButton_OutAtShiftStartFlips(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift())

	result := engine.CheckWrongButton(terminalEvent(at(8, 2), 1), domain.PunchOut, snapOf(at(8, 2)), assignment, cfg)

	assert.True(t, result.Applied)
	assert.Equal(t, domain.PunchIn, result.CorrectedType)
	assert.Equal(t, domain.PunchOut, result.OriginalType)
	assert.NotEmpty(t, result.Note)
}

func TestCheckWrongButton_OutAfterDoublePressFlips(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift())
	// IN seconds ago, then OUT: the second press flips to IN and the
	// debounce gate absorbs it downstream.
	snap := snapOf(at(8, 2), rec("in-1", domain.PunchIn, at(8, 1)))

	result := engine.CheckWrongButton(terminalEvent(at(8, 2), 1), domain.PunchOut, snap, assignment, cfg)

	assert.True(t, result.Applied)
	assert.Equal(t, domain.PunchIn, result.CorrectedType)
}

func TestCheckWrongButton_OutClosingRealSessionStands(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift())
	snap := snapOf(at(8, 30), rec("in-1", domain.PunchIn, at(7, 0)))

	result := engine.CheckWrongButton(terminalEvent(at(8, 30), 1), domain.PunchOut, snap, assignment, cfg)

	assert.False(t, result.Applied)
}

func TestCheckWrongButton_OutFarFromStartStands(t *testing.T) {
	cfg := policy.Default()
	result := engine.CheckWrongButton(terminalEvent(at(12, 0), 1), domain.PunchOut, snapOf(at(12, 0)), assigned(dayShift()), cfg)
	assert.False(t, result.Applied)
}

func TestCheckWrongButton_InAtShiftEndWithOpenSessionFlips(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift())
	snap := snapOf(at(16, 5), rec("in-1", domain.PunchIn, at(8, 0)))

	result := engine.CheckWrongButton(terminalEvent(at(16, 5), 0), domain.PunchIn, snap, assignment, cfg)

	assert.True(t, result.Applied)
	assert.Equal(t, domain.PunchOut, result.CorrectedType)
	assert.Equal(t, domain.PunchIn, result.OriginalType)
}

func TestCheckWrongButton_InAtShiftEndWithoutSessionStands(t *testing.T) {
	cfg := policy.Default()
	result := engine.CheckWrongButton(terminalEvent(at(16, 5), 0), domain.PunchIn, snapOf(at(16, 5)), assigned(dayShift()), cfg)
	assert.False(t, result.Applied)
}

func TestCheckWrongButton_DeclaredOutAtShiftStartFlips(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift())
	// A device payload declaring OUT is a pressed button too: right at shift
	// start with no session to close it flips to IN, pending approval.
	result := engine.CheckWrongButton(declaredEvent(at(8, 5), domain.PunchOut), domain.PunchOut, snapOf(at(8, 5)), assignment, cfg)

	assert.True(t, result.Applied)
	assert.Equal(t, domain.PunchIn, result.CorrectedType)
	assert.Equal(t, domain.PunchOut, result.OriginalType)
}

func TestCheckWrongButton_OnlyRunsForReceivedTypes(t *testing.T) {
	cfg := policy.Default()
	assignment := assigned(dayShift())

	t.Run("inferred type", func(t *testing.T) {
		result := engine.CheckWrongButton(inferredEvent(at(8, 2)), domain.PunchOut, snapOf(at(8, 2)), assignment, cfg)
		assert.False(t, result.Applied)
	})

	t.Run("manual entries state the operator's intent", func(t *testing.T) {
		result := engine.CheckWrongButton(manualEvent(at(8, 2), domain.PunchOut), domain.PunchOut, snapOf(at(8, 2)), assignment, cfg)
		assert.False(t, result.Applied)
	})

	t.Run("no resolved shift", func(t *testing.T) {
		result := engine.CheckWrongButton(terminalEvent(at(8, 2), 1), domain.PunchOut, snapOf(at(8, 2)), nil, cfg)
		assert.False(t, result.Applied)
	})

	t.Run("break punches are never corrected", func(t *testing.T) {
		result := engine.CheckWrongButton(terminalEvent(at(8, 2), 2), domain.PunchBreakStart, snapOf(at(8, 2)), assignment, cfg)
		assert.False(t, result.Applied)
	})
}
