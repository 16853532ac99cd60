package engine

import (
	"fmt"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
)

// WrongButtonResult describes a wrong-button auto-correction
type WrongButtonResult struct {
	Applied       bool
	CorrectedType domain.PunchType
	OriginalType  domain.PunchType
	Note          string
}

// CheckWrongButton flips a received IN/OUT when the punch's position relative
// to the shift boundaries strongly implies the opposite button was meant. A
// type is "received" when a terminal state code or a device-declared type
// carried it; inferred types already weigh shift proximity, and manual entries
// state the operator's intent, so neither is second-guessed here. Corrected
// records need manager approval and revert on rejection.
func CheckWrongButton(event *domain.PunchEvent, received domain.PunchType, snap *Snapshot, assignment *domain.ScheduleAssignment, cfg *policy.Config) WrongButtonResult {
	buttonPressed := event.TerminalStateCode != nil ||
		(!event.IsManual() && event.DeclaredType != nil)
	if !buttonPressed || assignment == nil {
		return WrongButtonResult{}
	}
	if received != domain.PunchIn && received != domain.PunchOut {
		return WrongButtonResult{}
	}

	local := event.Instant.In(cfg.Location())
	minute := domain.MinuteOfDay(local)
	margin := cfg.WrongTypeShiftMarginMinutes
	openIn := snap.OpenIn()

	switch received {
	case domain.PunchOut:
		// An OUT right at shift start with nothing to close is almost
		// certainly a missed IN button. A double-press (IN seconds ago,
		// then OUT) gets the same treatment; the flipped IN then falls to
		// the debounce gate.
		if schedule.WraparoundDistance(minute, assignment.Shift.StartMinutes()) > margin {
			return WrongButtonResult{}
		}
		doublePress := openIn != nil &&
			event.Instant.Sub(openIn.PunchedAt) >= 0 &&
			event.Instant.Sub(openIn.PunchedAt) < time.Duration(cfg.DoublePunchToleranceMinutes)*time.Minute
		if openIn == nil || doublePress {
			return WrongButtonResult{
				Applied:       true,
				CorrectedType: domain.PunchIn,
				OriginalType:  domain.PunchOut,
				Note:          fmt.Sprintf("OUT received %s near shift start %s with no session to close", local.Format("15:04"), assignment.Shift.StartTime),
			}
		}

	case domain.PunchIn:
		// An IN right at shift end while a session is already open means
		// the OUT button was missed.
		if schedule.WraparoundDistance(minute, assignment.Shift.EndMinutes()) > margin {
			return WrongButtonResult{}
		}
		if openIn != nil {
			return WrongButtonResult{
				Applied:       true,
				CorrectedType: domain.PunchOut,
				OriginalType:  domain.PunchIn,
				Note:          fmt.Sprintf("IN received %s near shift end %s with a session already open", local.Format("15:04"), assignment.Shift.EndTime),
			}
		}
	}

	return WrongButtonResult{}
}
