package engine

import (
	"fmt"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/internal/attendance/schedule"
)

// For night shifts without better signals, punches inside this window around
// the shift start classify as IN.
const nightStartWindowMinutes = 4 * 60

// Alternation only looks back this far for the previous session punch
const alternationWindow = 48 * time.Hour

// Beyond this open-session age an uncorroborated punch goes to human
// validation rather than silently closing the session.
const hardAmbiguityHours = 24

// Classification is the classifier's decision for one punch
type Classification struct {
	Type              domain.PunchType
	Method            domain.DetectionMethod
	Confidence        domain.Confidence
	Ambiguous         bool
	PendingValidation bool
	Note              string
}

// Classify determines the effective type of a punch. A terminal state code is
// authoritative; otherwise the tiers run in order (shift proximity, last-punch
// alternation, time of day) until one yields a decision.
func Classify(event *domain.PunchEvent, snap *Snapshot, assignment *domain.ScheduleAssignment, cfg *policy.Config) (Classification, error) {
	if event.TerminalStateCode != nil {
		t, err := domain.TypeForTerminalState(*event.TerminalStateCode)
		if err != nil {
			return Classification{}, err
		}
		return Classification{
			Type:       t,
			Method:     domain.MethodTerminalState,
			Confidence: domain.ConfidenceHigh,
		}, nil
	}

	if event.DeclaredType != nil && event.DeclaredType.IsValid() {
		return Classification{
			Type:       *event.DeclaredType,
			Method:     domain.MethodDeclared,
			Confidence: domain.ConfidenceHigh,
		}, nil
	}

	local := event.Instant.In(cfg.Location())
	minute := domain.MinuteOfDay(local)

	if c, ok := classifyByShift(minute, assignment, cfg); ok {
		return c, nil
	}
	if c, ok := classifyByAlternation(event.Instant, snap, assignment, cfg); ok {
		return c, nil
	}
	return classifyByTimeOfDay(local, minute, snap, assignment, cfg), nil
}

// classifyByShift decides IN/OUT from proximity to the resolved shift's
// boundaries. Distances fold across midnight so overnight shifts compare
// correctly.
func classifyByShift(minute int, assignment *domain.ScheduleAssignment, cfg *policy.Config) (Classification, bool) {
	if assignment == nil {
		return Classification{}, false
	}

	margin := cfg.WrongTypeShiftMarginMinutes
	distStart := schedule.WraparoundDistance(minute, assignment.Shift.StartMinutes())
	distEnd := schedule.WraparoundDistance(minute, assignment.Shift.EndMinutes())

	if distStart <= margin && distStart <= distEnd {
		return Classification{
			Type:       domain.PunchIn,
			Method:     domain.MethodShiftBased,
			Confidence: confidenceForDistance(distStart),
		}, true
	}
	if distEnd <= margin && distEnd < distStart {
		return Classification{
			Type:       domain.PunchOut,
			Method:     domain.MethodShiftBased,
			Confidence: confidenceForDistance(distEnd),
		}, true
	}

	return Classification{}, false
}

// classifyByAlternation infers the opposite of the most recent session punch
// within the lookback window. Long-open sessions degrade to ambiguous and,
// past a day without night-shift corroboration, to pending validation.
func classifyByAlternation(instant time.Time, snap *Snapshot, assignment *domain.ScheduleAssignment, cfg *policy.Config) (Classification, bool) {
	last := snap.LastSession()
	if last == nil {
		return Classification{}, false
	}

	age := instant.Sub(last.PunchedAt)
	if age < 0 || age > alternationWindow {
		return Classification{}, false
	}

	c := Classification{
		Type:       last.PunchType.Opposite(),
		Method:     domain.MethodAlternation,
		Confidence: domain.ConfidenceMedium,
	}

	if last.PunchType == domain.PunchIn && cfg.AmbiguousDetectionEnabled {
		corroborated := assignment != nil && schedule.IsNightShift(&assignment.Shift, cfg)
		openHours := age.Hours()

		if openHours > float64(cfg.AmbiguousPunchWindowHours) && !corroborated {
			c.Ambiguous = true
			c.Confidence = domain.ConfidenceLow
			c.Note = fmt.Sprintf("session open for %.0fh before this punch", openHours)
		}
		if openHours > hardAmbiguityHours && !corroborated {
			c.PendingValidation = true
		}
	}

	return c, true
}

// classifyByTimeOfDay is the last inference tier: position relative to the
// shift (night window or midpoint), or noon when no shift applies.
func classifyByTimeOfDay(local time.Time, minute int, snap *Snapshot, assignment *domain.ScheduleAssignment, cfg *policy.Config) Classification {
	openIn := snap.OpenIn()

	if assignment != nil {
		if schedule.IsNightShift(&assignment.Shift, cfg) {
			dist := schedule.WraparoundDistance(minute, assignment.Shift.StartMinutes())
			if dist <= nightStartWindowMinutes {
				return Classification{
					Type:       domain.PunchIn,
					Method:     domain.MethodTimeBased,
					Confidence: domain.ConfidenceMedium,
				}
			}
			if openIn != nil {
				return Classification{
					Type:       domain.PunchOut,
					Method:     domain.MethodTimeBased,
					Confidence: domain.ConfidenceLow,
				}
			}
			if cfg.AmbiguousDetectionEnabled {
				return Classification{
					Type:              domain.PunchIn,
					Method:            domain.MethodTimeBased,
					Confidence:        domain.ConfidenceLow,
					Ambiguous:         true,
					PendingValidation: true,
					Note:              "night-shift punch outside the start window with no open session",
				}
			}
			return Classification{
				Type:       domain.PunchIn,
				Method:     domain.MethodTimeBased,
				Confidence: domain.ConfidenceLow,
			}
		}

		midpoint := assignment.Shift.StartMinutes() + assignment.Shift.DurationMinutes()/2
		t := domain.PunchIn
		if minute >= midpoint {
			t = domain.PunchOut
		}
		return Classification{
			Type:       t,
			Method:     domain.MethodTimeBased,
			Confidence: domain.ConfidenceLow,
		}
	}

	// No shift, no usable history: noon splits IN from OUT, except an
	// unclosed session from the previous day forces OUT.
	if openIn != nil && !sameLocalDay(openIn.PunchedAt.In(cfg.Location()), local) {
		return Classification{
			Type:       domain.PunchOut,
			Method:     domain.MethodTimeBased,
			Confidence: domain.ConfidenceLow,
		}
	}

	t := domain.PunchIn
	if local.Hour() >= 12 {
		t = domain.PunchOut
	}
	return Classification{
		Type:       t,
		Method:     domain.MethodTimeBased,
		Confidence: domain.ConfidenceLow,
	}
}

func confidenceForDistance(minutes int) domain.Confidence {
	switch {
	case minutes <= 120:
		return domain.ConfidenceHigh
	case minutes <= 300:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
