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

func TestCheckDedup_ExactDuplicate(t *testing.T) {
	cfg := policy.Default()
	instant := at(8, 0)
	snap := snapOf(at(8, 5), rec("orig", domain.PunchIn, instant))

	result := engine.CheckDedup(snap, instant, domain.PunchIn, cfg)

	assert.Equal(t, engine.GateDuplicate, result.Outcome)
	require.NotNil(t, result.Prior)
	assert.Equal(t, "orig", result.Prior.ID)
}

func TestCheckDedup_SameTypeBounce(t *testing.T) {
	cfg := policy.Default() // 2min same-type tolerance
	snap := snapOf(at(8, 2), rec("in-1", domain.PunchIn, at(8, 0)))

	result := engine.CheckDedup(snap, at(8, 0).Add(90*time.Second), domain.PunchIn, cfg)

	assert.Equal(t, engine.GateDebounced, result.Outcome)
	require.NotNil(t, result.Prior)
	assert.Equal(t, "in-1", result.Prior.ID)
	assert.Equal(t, 90, result.GapSeconds)
}

func TestCheckDedup_CrossTypeTolerance(t *testing.T) {
	cfg := policy.Default()
	cfg.CrossTypeToleranceMinutes = 1
	snap := snapOf(at(8, 2), rec("in-1", domain.PunchIn, at(8, 0)))

	t.Run("inside the cross-type window", func(t *testing.T) {
		result := engine.CheckDedup(snap, at(8, 0).Add(30*time.Second), domain.PunchOut, cfg)
		assert.Equal(t, engine.GateDebounced, result.Outcome)
	})

	t.Run("outside the narrower cross-type window", func(t *testing.T) {
		// 90s is noise for a repeated IN but a real event for an OUT
		result := engine.CheckDedup(snap, at(8, 0).Add(90*time.Second), domain.PunchOut, cfg)
		assert.Equal(t, engine.GatePass, result.Outcome)
	})
}

func TestCheckDedup_ToleranceBoundaryPasses(t *testing.T) {
	cfg := policy.Default()
	snap := snapOf(at(8, 2), rec("in-1", domain.PunchIn, at(8, 0)))

	result := engine.CheckDedup(snap, at(8, 2), domain.PunchIn, cfg)

	assert.Equal(t, engine.GatePass, result.Outcome)
}

func TestCheckDedup_OutOfOrderDeliveryPasses(t *testing.T) {
	cfg := policy.Default()
	snap := snapOf(at(8, 6), rec("in-1", domain.PunchIn, at(8, 5)))

	// Arrives late but predates the last record; it cannot be its bounce
	result := engine.CheckDedup(snap, at(8, 3), domain.PunchIn, cfg)

	assert.Equal(t, engine.GatePass, result.Outcome)
}

func TestCheckDedup_EmptyHistoryPasses(t *testing.T) {
	result := engine.CheckDedup(snapOf(at(8, 0)), at(8, 0), domain.PunchIn, policy.Default())
	assert.Equal(t, engine.GatePass, result.Outcome)
}
