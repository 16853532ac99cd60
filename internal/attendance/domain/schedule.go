package domain

import (
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// ParseClock parses a local wall-clock "HH:MM" string into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// MinuteOfDay returns the minutes since local midnight for an instant
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ShiftDefinition describes a working window in local wall-clock time.
// End before start means the shift wraps midnight.
type ShiftDefinition struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	StartTime    string  `db:"start_time" json:"start_time"` // HH:MM
	EndTime      string  `db:"end_time" json:"end_time"`     // HH:MM
	BreakMinutes int     `db:"break_minutes" json:"break_minutes"`
	BreakStart   *string `db:"break_start" json:"break_start,omitempty"` // HH:MM, optional
}

// StartMinutes returns the shift start as minutes since midnight.
// A malformed time yields 0; shift rows are validated on write.
func (s *ShiftDefinition) StartMinutes() int {
	m, _ := ParseClock(s.StartTime)
	return m
}

// EndMinutes returns the shift end as minutes since midnight
func (s *ShiftDefinition) EndMinutes() int {
	m, _ := ParseClock(s.EndTime)
	return m
}

// DurationMinutes returns the shift length, accounting for midnight wrap
func (s *ShiftDefinition) DurationMinutes() int {
	start, end := s.StartMinutes(), s.EndMinutes()
	if end <= start {
		return minutesPerDay - start + end
	}
	return end - start
}

// BreakStartMinutes returns the explicit break start in minutes since
// midnight, or -1 when unspecified.
func (s *ShiftDefinition) BreakStartMinutes() int {
	if s.BreakStart == nil {
		return -1
	}
	m, err := ParseClock(*s.BreakStart)
	if err != nil {
		return -1
	}
	return m
}

// ScheduleAssignment binds an employee to a shift on a calendar date.
// Virtual assignments are materialized by the resolver from the employee's
// default shift and never exist in storage.
type ScheduleAssignment struct {
	ID         string          `db:"id" json:"id"`
	EmployeeID string          `db:"employee_id" json:"employee_id"`
	Date       time.Time       `db:"schedule_date" json:"date"`
	ShiftID    string          `db:"shift_id" json:"shift_id"`
	Published  bool            `db:"published" json:"published"`
	Shift      ShiftDefinition `db:"-" json:"shift"`
	IsVirtual  bool            `db:"-" json:"is_virtual"`
}

// Employee carries the attendance-relevant subset of the employee row
type Employee struct {
	ID               string     `db:"id" json:"id"`
	BadgeCode        *string    `db:"badge_code" json:"badge_code,omitempty"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	DefaultShiftID   *string    `db:"default_shift_id" json:"default_shift_id,omitempty"`
	OvertimeEligible bool       `db:"overtime_eligible" json:"overtime_eligible"`
	DeletedAt        *time.Time `db:"deleted_at" json:"-"`
}

// Leave is an approved or pending absence interval
type Leave struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	LeaveType  string    `db:"leave_type" json:"leave_type"`
	StartDate  time.Time `db:"start_date" json:"start_date"`
	EndDate    time.Time `db:"end_date" json:"end_date"`
	Approved   bool      `db:"approved" json:"approved"`
}

// Covers reports whether the leave interval includes the given instant's date
func (l *Leave) Covers(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return !day.Before(l.StartDate) && !day.After(l.EndDate)
}

// Holiday is a tenant-level public holiday
type Holiday struct {
	ID   string    `db:"id" json:"id"`
	Date time.Time `db:"holiday_date" json:"date"`
	Name string    `db:"name" json:"name"`
}

// Device is an enrolled punch terminal
type Device struct {
	ID         string     `db:"id" json:"id"`
	Serial     string     `db:"serial" json:"serial"`
	Label      string     `db:"label" json:"label"`
	SecretHash string     `db:"secret_hash" json:"-"`
	Revoked    bool       `db:"revoked" json:"revoked"`
	EnrolledAt time.Time  `db:"enrolled_at" json:"enrolled_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}
