package schedule

import (
	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
)

const minutesPerDay = 24 * 60

// IsNightShift classifies a shift as a night shift. A shift is "night" when
// any of the following holds:
//   - its end time is numerically before its start time (wraps midnight)
//   - it starts at or after 20:00
//   - it ends at or before 08:00 and starts at or after 18:00
//   - at least half of its duration falls inside the tenant night window
func IsNightShift(shift *domain.ShiftDefinition, cfg *policy.Config) bool {
	start := shift.StartMinutes()
	end := shift.EndMinutes()

	if end < start {
		return true
	}
	if start >= 20*60 {
		return true
	}
	if end <= 8*60 && start >= 18*60 {
		return true
	}

	dur := shift.DurationMinutes()
	if dur <= 0 {
		return false
	}
	return nightOverlapMinutes(start, dur, cfg)*2 >= dur
}

// nightOverlapMinutes returns how many minutes of the interval
// [start, start+dur) fall inside the tenant night window.
func nightOverlapMinutes(start, dur int, cfg *policy.Config) int {
	nightStart, err := domain.ParseClock(cfg.NightShiftStart)
	if err != nil {
		nightStart = 22 * 60
	}
	nightEnd, err := domain.ParseClock(cfg.NightShiftEnd)
	if err != nil {
		nightEnd = 6 * 60
	}
	if nightEnd <= nightStart {
		nightEnd += minutesPerDay
	}

	shiftEnd := start + dur
	overlap := 0

	// The shift interval may extend past midnight; check the night window
	// on the previous, current and next day.
	for _, offset := range []int{-minutesPerDay, 0, minutesPerDay} {
		ws := nightStart + offset
		we := nightEnd + offset
		lo := max(start, ws)
		hi := min(shiftEnd, we)
		if hi > lo {
			overlap += hi - lo
		}
	}

	return overlap
}

// WraparoundDistance returns the shortest distance in minutes between two
// times of day, folding across midnight. Distances beyond half a day are
// folded to 1440 minus the raw distance.
func WraparoundDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > minutesPerDay/2 {
		d = minutesPerDay - d
	}
	return d
}

// InNightWindow reports whether a minute-of-day falls inside the tenant
// night window.
func InNightWindow(minute int, cfg *policy.Config) bool {
	nightStart, err := domain.ParseClock(cfg.NightShiftStart)
	if err != nil {
		nightStart = 22 * 60
	}
	nightEnd, err := domain.ParseClock(cfg.NightShiftEnd)
	if err != nil {
		nightEnd = 6 * 60
	}

	if nightEnd <= nightStart {
		return minute >= nightStart || minute < nightEnd
	}
	return minute >= nightStart && minute < nightEnd
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
