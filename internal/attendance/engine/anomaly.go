package engine

import (
	"fmt"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
)

// DetectorInput gathers everything the rule chain reads. All fields are
// request-scoped snapshots; the detector itself performs no I/O.
type DetectorInput struct {
	Event      *domain.PunchEvent
	Type       domain.PunchType
	Snap       *Snapshot
	Assignment *domain.ScheduleAssignment
	Leaves     []*domain.Leave
	Holiday    *domain.Holiday
	Employee   *domain.Employee
	Cfg        *policy.Config
}

// Finding is the detector's verdict: at most one primary anomaly per punch.
// Informational findings trace a situation without flagging the record.
type Finding struct {
	Kind          domain.AnomalyKind
	Note          string
	Informational bool
	Suggestion    *domain.SuggestedCorrection
	LateMinutes   *int
	EarlyMinutes  *int
}

type anomalyRule struct {
	name   string
	detect func(in DetectorInput) *Finding
}

// Ordered by priority; the first rule that finds something wins.
// MISSING_OUT is deliberately absent: it runs only in the deferred batch
// sweep, since a synchronous check would flag every shift still in progress.
var anomalyRules = []anomalyRule{
	{"leave-conflict", detectLeaveConflict},
	{"double-in", detectDoubleIn},
	{"missing-in", detectMissingIn},
	{"timing", detectTiming},
	{"insufficient-rest", detectInsufficientRest},
	{"unplanned-day", detectUnplannedDay},
}

// DetectAnomaly runs the prioritized rule chain and returns the first
// finding, or nil when the punch is clean.
func DetectAnomaly(in DetectorInput) *Finding {
	for _, rule := range anomalyRules {
		if f := rule.detect(in); f != nil {
			return f
		}
	}
	return nil
}

func approvedLeaveCovering(leaves []*domain.Leave, instant time.Time) *domain.Leave {
	for _, l := range leaves {
		if l.Approved && l.Covers(instant) {
			return l
		}
	}
	return nil
}

func detectLeaveConflict(in DetectorInput) *Finding {
	local := in.Event.Instant.In(in.Cfg.Location())
	leave := approvedLeaveCovering(in.Leaves, local)
	if leave == nil {
		return nil
	}
	// An OUT with no session to close during leave is the external-presence
	// pattern; the missing-in rule traces it without flagging the record.
	if in.Type == domain.PunchOut && in.Snap.OpenIn() == nil && !hasSameDayIn(in.Snap, local, in.Cfg.Location()) {
		return nil
	}
	return &Finding{
		Kind: domain.AnomalyLeaveConflict,
		Note: fmt.Sprintf("punch during approved %s leave (%s to %s)",
			leave.LeaveType, leave.StartDate.Format("2006-01-02"), leave.EndDate.Format("2006-01-02")),
	}
}

// detectDoubleIn flags an IN when a session is already open inside the
// detection window. Rapid re-presses never reach this rule; the debounce
// gate absorbs them first.
func detectDoubleIn(in DetectorInput) *Finding {
	if in.Type != domain.PunchIn {
		return nil
	}
	openIn := in.Snap.OpenIn()
	if openIn == nil {
		return nil
	}

	age := in.Event.Instant.Sub(openIn.PunchedAt)
	window := time.Duration(in.Cfg.AmbiguousPunchWindowHours) * time.Hour
	if age < 0 || age > window {
		return nil
	}

	f := &Finding{
		Kind: domain.AnomalyDoubleIn,
		Note: fmt.Sprintf("IN with a session already open since %s", openIn.PunchedAt.In(in.Cfg.Location()).Format("2006-01-02 15:04")),
	}

	// Two plausible fixes: the new IN is a stray press, or the previous
	// session was never closed. A short gap makes the stray press the more
	// likely reading.
	if age < time.Hour {
		f.Suggestion = &domain.SuggestedCorrection{
			Action:          domain.CorrectionDeleteRecord,
			Confidence:      0.8,
			TargetRecordIDs: []string{openIn.ID},
			Note:            "remove the duplicate IN",
		}
	} else {
		proposed := proposedOutFor(openIn, in.Assignment, in.Cfg)
		f.Suggestion = &domain.SuggestedCorrection{
			Action:          domain.CorrectionInsertOut,
			Confidence:      0.6,
			TargetRecordIDs: []string{openIn.ID},
			ProposedTime:    &proposed,
			Note:            "insert the missing OUT for the open session",
		}
	}

	return f
}

// detectMissingIn flags an OUT with no IN to close, unless the punch is
// corroborated by an external presence signal or closes an overnight
// session from the previous day.
func detectMissingIn(in DetectorInput) *Finding {
	if in.Type != domain.PunchOut {
		return nil
	}

	local := in.Event.Instant.In(in.Cfg.Location())

	if openIn := in.Snap.OpenIn(); openIn != nil {
		openLocal := openIn.PunchedAt.In(in.Cfg.Location())
		if sameLocalDay(openLocal, local) {
			return nil
		}
		if isYesterday(openLocal, local) && nightCrossing(local, in.Assignment, in.Cfg) {
			// Closes yesterday's overnight session; not an anomaly.
			return nil
		}
	} else {
		// A bare OUT following another OUT inside the window is a double
		// press of the wrong kind, not a lost IN.
		if last := in.Snap.LastSession(); last != nil && last.PunchType == domain.PunchOut {
			age := in.Event.Instant.Sub(last.PunchedAt)
			window := time.Duration(in.Cfg.AmbiguousPunchWindowHours) * time.Hour
			if age >= 0 && age <= window && sameLocalDay(last.PunchedAt.In(in.Cfg.Location()), local) {
				return &Finding{
					Kind: domain.AnomalyDoubleOut,
					Note: fmt.Sprintf("OUT with a previous OUT at %s and no IN between", last.PunchedAt.In(in.Cfg.Location()).Format("15:04")),
					Suggestion: &domain.SuggestedCorrection{
						Action:          domain.CorrectionDeleteRecord,
						Confidence:      0.7,
						TargetRecordIDs: []string{last.ID},
						Note:            "remove the duplicate OUT",
					},
				}
			}
		}
	}

	if hasSameDayIn(in.Snap, local, in.Cfg.Location()) {
		return nil
	}

	// Legitimate-absence carve-outs: external presence is traced, not
	// flagged.
	if in.Event.Source == domain.SourceMobile {
		return &Finding{
			Kind:          domain.AnomalyPresenceExterne,
			Note:          "mobile-sourced OUT without an IN; treated as external presence",
			Informational: true,
		}
	}
	if leave := approvedLeaveCovering(in.Leaves, local); leave != nil {
		return &Finding{
			Kind:          domain.AnomalyPresenceExterne,
			Note:          fmt.Sprintf("OUT during approved %s leave; treated as external presence", leave.LeaveType),
			Informational: true,
		}
	}

	f := &Finding{
		Kind: domain.AnomalyMissingIn,
		Note: "OUT with no IN found for this day or the overnight window",
	}
	if in.Assignment != nil {
		proposed := shiftBoundaryOn(local, in.Assignment.Shift.StartMinutes(), in.Cfg.Location())
		f.Suggestion = &domain.SuggestedCorrection{
			Action:       domain.CorrectionInsertIn,
			Confidence:   0.7,
			ProposedTime: &proposed,
			Note:         "insert the missing IN at the scheduled shift start",
		}
	}
	return f
}

// detectTiming covers LATE on IN and EARLY_LEAVE on OUT against the resolved
// shift boundary, in the tenant's timezone. Lateness past the partial-absence
// threshold reclassifies.
func detectTiming(in DetectorInput) *Finding {
	if in.Assignment == nil {
		return nil
	}

	local := in.Event.Instant.In(in.Cfg.Location())
	minute := domain.MinuteOfDay(local)

	switch in.Type {
	case domain.PunchIn:
		late := ComputeLateMinutes(in.Event.Instant, in.Assignment, in.Cfg)
		if late == 0 {
			return nil
		}
		if late > in.Cfg.AbsencePartialHours*60 {
			return &Finding{
				Kind:        domain.AnomalyAbsencePartial,
				Note:        fmt.Sprintf("arrived %dmin after shift start; beyond the %dh lateness ceiling", late, in.Cfg.AbsencePartialHours),
				LateMinutes: &late,
			}
		}
		return &Finding{
			Kind:        domain.AnomalyLate,
			Note:        fmt.Sprintf("arrived %dmin late (shift start %s, tolerance %dmin)", late, in.Assignment.Shift.StartTime, in.Cfg.LateToleranceEntry),
			LateMinutes: &late,
		}

	case domain.PunchOut:
		diff := foldedDelta(in.Assignment.Shift.EndMinutes(), minute)
		early := diff - in.Cfg.EarlyToleranceExit
		if early <= 0 {
			return nil
		}
		if insideImplicitBreak(minute, &in.Assignment.Shift, in.Cfg) {
			return nil
		}
		return &Finding{
			Kind:         domain.AnomalyEarlyLeave,
			Note:         fmt.Sprintf("left %dmin early (shift end %s, tolerance %dmin)", early, in.Assignment.Shift.EndTime, in.Cfg.EarlyToleranceExit),
			EarlyMinutes: &early,
		}
	}

	return nil
}

// insideImplicitBreak reports whether an early OUT lands inside the shift's
// un-punched break window. Only applies when break punching is not required.
func insideImplicitBreak(minute int, shift *domain.ShiftDefinition, cfg *policy.Config) bool {
	if cfg.RequireBreakPunch || !cfg.AllowImplicitBreaks {
		return false
	}

	center := shift.BreakStartMinutes()
	if center < 0 {
		center = shift.StartMinutes() + shift.DurationMinutes()/2
		if center >= minutesPerDay {
			center -= minutesPerDay
		}
	}

	halfWindow := shift.BreakMinutes + cfg.EarlyToleranceExit
	return schedule.WraparoundDistance(minute, center) <= halfWindow
}

func detectInsufficientRest(in DetectorInput) *Finding {
	if in.Type != domain.PunchIn {
		return nil
	}

	var lastOut *domain.AttendanceRecord
	for _, r := range in.Snap.Records {
		if r.PunchType == domain.PunchOut {
			lastOut = r
			break
		}
	}
	if lastOut == nil {
		return nil
	}

	required := in.Cfg.MinimumRestHours
	if in.Assignment != nil && schedule.InNightWindow(in.Assignment.Shift.StartMinutes(), in.Cfg) {
		required = in.Cfg.MinimumRestHoursNightShift
	}

	rest := in.Event.Instant.Sub(lastOut.PunchedAt)
	if rest >= 0 && rest < time.Duration(required)*time.Hour {
		return &Finding{
			Kind: domain.AnomalyInsufficientRest,
			Note: fmt.Sprintf("only %.1fh of rest since last OUT; %dh required", rest.Hours(), required),
		}
	}
	return nil
}

// detectUnplannedDay flags work on days with no plan: holidays, non-working
// days, or working days with neither schedule nor default shift nor leave.
// Only the IN side of a session is flagged; the matching OUT inherits the
// day's situation implicitly.
func detectUnplannedDay(in DetectorInput) *Finding {
	if in.Type != domain.PunchIn {
		return nil
	}

	local := in.Event.Instant.In(in.Cfg.Location())
	explicitSchedule := in.Assignment != nil && !in.Assignment.IsVirtual

	if in.Holiday != nil && !explicitSchedule {
		return &Finding{
			Kind: domain.AnomalyHolidayWorked,
			Note: fmt.Sprintf("punch on holiday %q without a published schedule", in.Holiday.Name),
		}
	}

	if !in.Cfg.IsWorkingDay(local) && !explicitSchedule {
		return &Finding{
			Kind: domain.AnomalyWeekendWork,
			Note: fmt.Sprintf("punch on non-working day %s without a published schedule", local.Weekday()),
		}
	}

	if in.Cfg.IsWorkingDay(local) && in.Assignment == nil && approvedLeaveCovering(in.Leaves, local) == nil {
		return &Finding{
			Kind: domain.AnomalyUnplannedPunch,
			Note: "punch with no schedule, no default shift and no approved leave",
		}
	}

	return nil
}

// DetectMissingOut is the deferred batch check for an IN that never got its
// OUT. It runs from the sweep, never synchronously, so shifts still in
// progress are not flagged. now is injected for testability.
func DetectMissingOut(openIn *domain.AttendanceRecord, assignment *domain.ScheduleAssignment, cfg *policy.Config, now time.Time) *Finding {
	age := now.Sub(openIn.PunchedAt)
	if age < time.Duration(cfg.AmbiguousPunchWindowHours)*time.Hour {
		return nil
	}

	// With a resolved shift, also require the expected end plus a buffer to
	// have passed.
	if assignment != nil {
		local := openIn.PunchedAt.In(cfg.Location())
		end := shiftBoundaryOn(local, assignment.Shift.EndMinutes(), cfg.Location())
		if assignment.Shift.EndMinutes() <= assignment.Shift.StartMinutes() {
			end = end.AddDate(0, 0, 1) // overnight shift ends the next day
		}
		buffer := time.Duration(cfg.WrongTypeShiftMarginMinutes) * time.Minute
		if now.Before(end.Add(buffer)) {
			return nil
		}
	}

	proposed := proposedOutFor(openIn, assignment, cfg)
	return &Finding{
		Kind: domain.AnomalyMissingOut,
		Note: fmt.Sprintf("session opened %s never closed", openIn.PunchedAt.In(cfg.Location()).Format("2006-01-02 15:04")),
		Suggestion: &domain.SuggestedCorrection{
			Action:          domain.CorrectionInsertOut,
			Confidence:      0.6,
			TargetRecordIDs: []string{openIn.ID},
			ProposedTime:    &proposed,
			Note:            "insert the missing OUT at the expected shift end",
		},
	}
}

// proposedOutFor estimates when the missing OUT should have happened
func proposedOutFor(openIn *domain.AttendanceRecord, assignment *domain.ScheduleAssignment, cfg *policy.Config) time.Time {
	local := openIn.PunchedAt.In(cfg.Location())
	if assignment != nil {
		end := shiftBoundaryOn(local, assignment.Shift.EndMinutes(), cfg.Location())
		if assignment.Shift.EndMinutes() <= assignment.Shift.StartMinutes() {
			end = end.AddDate(0, 0, 1)
		}
		return end
	}
	return openIn.PunchedAt.Add(8 * time.Hour)
}

// shiftBoundaryOn places a minutes-since-midnight boundary on the given
// local day.
func shiftBoundaryOn(localDay time.Time, minuteOfDay int, loc *time.Location) time.Time {
	return time.Date(localDay.Year(), localDay.Month(), localDay.Day(), minuteOfDay/60, minuteOfDay%60, 0, 0, loc)
}

// foldedDelta returns a−b in minutes, folded into (−720, 720] so boundary
// comparisons work across midnight.
func foldedDelta(a, b int) int {
	d := a - b
	if d > minutesPerDay/2 {
		d -= minutesPerDay
	}
	if d <= -minutesPerDay/2 {
		d += minutesPerDay
	}
	return d
}

// hasSameDayIn reports whether any IN exists on the given local day
func hasSameDayIn(snap *Snapshot, local time.Time, loc *time.Location) bool {
	for _, r := range snap.RecordsOn(local, loc) {
		if r.PunchType == domain.PunchIn {
			return true
		}
	}
	return false
}

// nightCrossing reports whether an early-hours punch plausibly closes the
// previous day's overnight shift.
func nightCrossing(local time.Time, assignment *domain.ScheduleAssignment, cfg *policy.Config) bool {
	if local.Hour() >= 14 {
		return false
	}
	if assignment != nil && schedule.IsNightShift(&assignment.Shift, cfg) {
		return true
	}
	// No shift signal; trust the early hour alone.
	return local.Hour() < 10
}

func isYesterday(a, b time.Time) bool {
	return sameLocalDay(a.AddDate(0, 0, 1), b)
}
