package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// Punches with a local hour before this cutoff may belong to the previous
// day's night shift.
const previousDayNightCutoffHour = 14

const cacheTTL = 5 * time.Minute

// Store is the persistence surface the resolver reads from
type Store interface {
	// AssignmentsForDate returns the published schedule assignments for an
	// employee on a calendar date, shift definitions included.
	AssignmentsForDate(ctx context.Context, employeeID string, date time.Time) ([]*domain.ScheduleAssignment, error)

	// EmployeeDefaultShift returns the employee's default shift, or nil when
	// the employee has none.
	EmployeeDefaultShift(ctx context.Context, employeeID string) (*domain.ShiftDefinition, error)
}

// Resolver finds the effective shift for a (tenant, employee, instant).
// Resolution is a pure read; absence of a shift is a valid outcome, never
// an error.
type Resolver struct {
	store  Store
	logger *logger.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	assignments []*domain.ScheduleAssignment
	expires     time.Time
}

// NewResolver creates a schedule resolver with a per-(tenant, employee, date)
// assignment cache.
func NewResolver(store Store, log *logger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: log.WithComponent("schedule-resolver"),
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve returns the effective shift assignment for the instant, trying in
// order: the published schedule for the instant's date, the previous day's
// night shift for early-hours punches, and the employee's default shift as
// a virtual assignment. Returns nil when no shift applies.
func (r *Resolver) Resolve(ctx context.Context, employeeID string, instant time.Time, cfg *policy.Config) (*domain.ScheduleAssignment, error) {
	local := instant.In(cfg.Location())
	date := dayOf(local)

	// (a) explicit published schedule for the instant's date
	assignments, err := r.assignmentsForDate(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	if len(assignments) > 0 {
		return closestByStart(assignments, domain.MinuteOfDay(local)), nil
	}

	// (b) early-hours punch may close yesterday's overnight session
	if local.Hour() < previousDayNightCutoffHour {
		previous, err := r.assignmentsForDate(ctx, employeeID, date.AddDate(0, 0, -1))
		if err != nil {
			return nil, err
		}
		night := make([]*domain.ScheduleAssignment, 0, len(previous))
		for _, a := range previous {
			if IsNightShift(&a.Shift, cfg) {
				night = append(night, a)
			}
		}
		if len(night) > 0 {
			return closestByStart(night, domain.MinuteOfDay(local)), nil
		}
	}

	// (c) default shift, materialized as a virtual assignment
	defaultShift, err := r.store.EmployeeDefaultShift(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if defaultShift != nil {
		return &domain.ScheduleAssignment{
			EmployeeID: employeeID,
			Date:       date,
			ShiftID:    defaultShift.ID,
			Published:  true,
			Shift:      *defaultShift,
			IsVirtual:  true,
		}, nil
	}

	// (d) no shift
	return nil, nil
}

// Invalidate drops the cached assignments for an employee's date. Called by
// the shift-change consumer when the staff service publishes an update.
func (r *Resolver) Invalidate(tenantID, employeeID string, date time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, cacheKey(tenantID, employeeID, dayOf(date)))
}

func (r *Resolver) assignmentsForDate(ctx context.Context, employeeID string, date time.Time) ([]*domain.ScheduleAssignment, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	key := cacheKey(tenantID, employeeID, date)

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.assignments, nil
	}

	assignments, err := r.store.AssignmentsForDate(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[key] = cacheEntry{assignments: assignments, expires: time.Now().Add(cacheTTL)}
	r.mu.Unlock()

	return assignments, nil
}

// closestByStart picks the assignment whose shift start is closest to the
// punch time-of-day, folding distances across midnight. Ties go to the
// earliest start.
func closestByStart(assignments []*domain.ScheduleAssignment, minuteOfDay int) *domain.ScheduleAssignment {
	best := assignments[0]
	bestDist := WraparoundDistance(minuteOfDay, best.Shift.StartMinutes())

	for _, a := range assignments[1:] {
		dist := WraparoundDistance(minuteOfDay, a.Shift.StartMinutes())
		if dist < bestDist || (dist == bestDist && a.Shift.StartMinutes() < best.Shift.StartMinutes()) {
			best = a
			bestDist = dist
		}
	}
	return best
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func cacheKey(tenantID, employeeID string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, employeeID, date.Format("2006-01-02"))
}
