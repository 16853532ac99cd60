package engine

import (
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
)

// GateOutcome classifies what the dedup gate decided for a punch
type GateOutcome int

const (
	// GatePass lets the punch through as a real record
	GatePass GateOutcome = iota
	// GateDuplicate means an identical-instant record already exists;
	// nothing new is persisted.
	GateDuplicate
	// GateDebounced means the punch is noise inside the tolerance window;
	// it is persisted as DEBOUNCE_BLOCKED and excluded from all later
	// computation.
	GateDebounced
)

// GateResult is the dedup gate's decision for one punch
type GateResult struct {
	Outcome GateOutcome
	// Prior is the record the punch collided with (the original for
	// duplicates, the most recent record for debounces).
	Prior      *domain.AttendanceRecord
	GapSeconds int
}

// CheckDedup decides whether a punch is an exact duplicate, debounce noise,
// or a real event. effectiveType is the already-classified type of the new
// punch; the tolerance is wider for same-type repeats than for cross-type
// ones.
func CheckDedup(snap *Snapshot, instant time.Time, effectiveType domain.PunchType, cfg *policy.Config) GateResult {
	if prior := snap.ExactAt(instant); prior != nil {
		return GateResult{Outcome: GateDuplicate, Prior: prior}
	}

	last := snap.Last()
	if last == nil {
		return GateResult{Outcome: GatePass}
	}

	delta := instant.Sub(last.PunchedAt)
	if delta < 0 {
		// Out-of-order delivery; the punch predates the last record and
		// cannot be its bounce.
		return GateResult{Outcome: GatePass}
	}

	tolerance := time.Duration(cfg.CrossTypeToleranceMinutes) * time.Minute
	if last.PunchType == effectiveType {
		tolerance = time.Duration(cfg.DoublePunchToleranceMinutes) * time.Minute
	}

	if delta < tolerance {
		return GateResult{
			Outcome:    GateDebounced,
			Prior:      last,
			GapSeconds: int(delta.Seconds()),
		}
	}

	return GateResult{Outcome: GatePass}
}
