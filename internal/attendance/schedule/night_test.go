package schedule_test

import (
	"testing"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
	"github.com/stretchr/testify/assert"
)

func shiftDef(start, end string) *domain.ShiftDefinition {
	return &domain.ShiftDefinition{ID: "shift-1", StartTime: start, EndTime: end}
}

func TestIsNightShift(t *testing.T) {
	cfg := policy.Default() // night window 22:00-06:00

	tests := []struct {
		name  string
		start string
		end   string
		want  bool
	}{
		{"wraps midnight", "22:00", "06:00", true},
		{"starts at 20:00", "20:00", "23:30", true},
		{"late evening", "21:00", "23:00", true},
		{"mostly inside the night window", "00:00", "06:00", true},
		{"day shift", "08:00", "16:00", false},
		{"early morning", "06:00", "14:00", false},
		{"evening shift ending before the window", "14:00", "21:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schedule.IsNightShift(shiftDef(tt.start, tt.end), cfg))
		})
	}
}

func TestWraparoundDistance(t *testing.T) {
	assert.Equal(t, 0, schedule.WraparoundDistance(480, 480))
	assert.Equal(t, 100, schedule.WraparoundDistance(100, 200))
	assert.Equal(t, 100, schedule.WraparoundDistance(200, 100))
	// 00:10 vs 23:50 folds across midnight
	assert.Equal(t, 20, schedule.WraparoundDistance(10, 1430))
	// Half a day is the maximum
	assert.Equal(t, 720, schedule.WraparoundDistance(0, 720))
}

func TestInNightWindow(t *testing.T) {
	cfg := policy.Default()

	assert.True(t, schedule.InNightWindow(23*60+30, cfg))
	assert.True(t, schedule.InNightWindow(3*60, cfg))
	assert.True(t, schedule.InNightWindow(22*60, cfg))
	assert.False(t, schedule.InNightWindow(6*60, cfg))
	assert.False(t, schedule.InNightWindow(12*60, cfg))

	// Non-wrapping window
	cfg.NightShiftStart = "00:00"
	cfg.NightShiftEnd = "06:00"
	assert.True(t, schedule.InNightWindow(2*60, cfg))
	assert.False(t, schedule.InNightWindow(7*60, cfg))
}
