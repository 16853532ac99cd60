package engine

import (
	"math"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
)

// Pairing looks back at most this far for the session's IN
const pairingLookback = 24 * time.Hour

// SessionMetrics is the derived output for a successfully paired OUT
type SessionMetrics struct {
	PairedInID      string
	WorkedMinutes   int
	BreakMinutes    int
	OvertimeMinutes int
}

// OutMetricsInput bundles what the calculator needs for an OUT punch
type OutMetricsInput struct {
	OutInstant time.Time
	Snap       *Snapshot
	Assignment *domain.ScheduleAssignment
	Employee   *domain.Employee
	// HolidayOnOutDay is true when the OUT's local calendar day is a
	// holiday; used for the midnight overtime split.
	HolidayOnOutDay bool
	Cfg             *policy.Config
}

// ComputeOutMetrics pairs an OUT with its IN and derives worked, break and
// overtime minutes. Returns nil when no IN pairs within the lookback window.
func ComputeOutMetrics(in OutMetricsInput) *SessionMetrics {
	pairedIn := pairIn(in.OutInstant, in.Snap)
	if pairedIn == nil {
		return nil
	}

	breakMinutes := breakMinutesBetween(pairedIn.PunchedAt, in.OutInstant, in.Snap, in.Assignment, in.Cfg)

	worked := int(in.OutInstant.Sub(pairedIn.PunchedAt).Minutes()) - breakMinutes
	if worked < 0 {
		worked = 0
	}

	m := &SessionMetrics{
		PairedInID:    pairedIn.ID,
		WorkedMinutes: worked,
		BreakMinutes:  breakMinutes,
	}
	m.OvertimeMinutes = overtimeMinutes(worked, pairedIn.PunchedAt, in)
	return m
}

// pairIn locates the IN opening the session this OUT closes. The scan walks
// recent records newest-first, keeping an OUT-count balance so multiple
// shifts on the same day pair with their own boundaries. Break and mission
// punches never count as session boundaries.
func pairIn(out time.Time, snap *Snapshot) *domain.AttendanceRecord {
	balance := 0
	for _, r := range snap.Before(out) {
		if out.Sub(r.PunchedAt) > pairingLookback {
			return nil
		}
		if r.PunchType.IsBreak() {
			continue
		}
		switch r.PunchType {
		case domain.PunchOut:
			balance++
		case domain.PunchIn:
			if balance == 0 {
				return r
			}
			balance--
		}
	}
	return nil
}

// breakMinutesBetween sums the session's break time: actual BREAK pairs when
// break punching is required, the shift's fixed break allowance otherwise.
func breakMinutesBetween(in, out time.Time, snap *Snapshot, assignment *domain.ScheduleAssignment, cfg *policy.Config) int {
	if !cfg.RequireBreakPunch {
		if assignment != nil {
			return assignment.Shift.BreakMinutes
		}
		return 0
	}

	// Records are newest first; walk the session interval pairing each
	// BREAK_END with the BREAK_START below it.
	total := 0
	var pendingEnd *time.Time
	for _, r := range snap.Records {
		if !r.PunchedAt.After(in) {
			break
		}
		if r.PunchedAt.After(out) {
			continue
		}
		switch r.PunchType {
		case domain.PunchBreakEnd:
			t := r.PunchedAt
			pendingEnd = &t
		case domain.PunchBreakStart:
			if pendingEnd != nil {
				total += int(pendingEnd.Sub(r.PunchedAt).Minutes())
				pendingEnd = nil
			}
		}
	}
	return total
}

// overtimeMinutes derives the rounded overtime for a closed session.
// Skipped entirely for employees not eligible for overtime.
func overtimeMinutes(worked int, inInstant time.Time, in OutMetricsInput) int {
	if in.Employee != nil && !in.Employee.OvertimeEligible {
		return 0
	}
	if in.Assignment == nil {
		return 0
	}

	planned := in.Assignment.Shift.DurationMinutes() - in.Assignment.Shift.BreakMinutes
	if planned < 0 {
		planned = 0
	}

	extra := worked - planned
	if extra <= in.Cfg.OvertimeMinimumThreshold {
		return 0
	}

	// When the session crosses midnight into a holiday, the post-midnight
	// slice of the overtime interval is majorized (or counted as normal
	// hours, per policy).
	loc := in.Cfg.Location()
	outLocal := in.OutInstant.In(loc)
	inLocal := inInstant.In(loc)

	holidayPortion := 0
	if in.HolidayOnOutDay && !sameLocalDay(inLocal, outLocal) {
		midnight := time.Date(outLocal.Year(), outLocal.Month(), outLocal.Day(), 0, 0, 0, 0, loc)
		overtimeStart := outLocal.Add(-time.Duration(extra) * time.Minute)
		if overtimeStart.Before(midnight) {
			holidayPortion = int(outLocal.Sub(midnight).Minutes())
		} else {
			holidayPortion = extra
		}
		if holidayPortion > extra {
			holidayPortion = extra
		}
	}

	standard := extra - holidayPortion
	total := float64(standard)
	if in.Cfg.HolidayOvertimeEnabled && !in.Cfg.HolidayOvertimeAsNormalHours {
		total += float64(holidayPortion) * in.Cfg.HolidayOvertimeRate
	} else {
		total += float64(holidayPortion)
	}

	return roundToGranularity(int(math.Round(total)), in.Cfg.OvertimeRounding)
}

// roundToGranularity rounds minutes to the nearest configured multiple
func roundToGranularity(minutes, granularity int) int {
	if granularity <= 1 {
		return minutes
	}
	return int(math.Round(float64(minutes)/float64(granularity))) * granularity
}

// ComputeLateMinutes returns how many minutes past the tolerated shift start
// an IN arrived, floored at zero. No shift means no lateness.
func ComputeLateMinutes(instant time.Time, assignment *domain.ScheduleAssignment, cfg *policy.Config) int {
	if assignment == nil {
		return 0
	}
	minute := domain.MinuteOfDay(instant.In(cfg.Location()))
	late := foldedDelta(minute, assignment.Shift.StartMinutes()) - cfg.LateToleranceEntry
	if late < 0 {
		return 0
	}
	return late
}
