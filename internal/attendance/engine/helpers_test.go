package engine_test

import (
	"sort"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/engine"
)

// All fixtures live on Tuesday 2026-03-10 in UTC unless a test says otherwise.
func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func dayShift() domain.ShiftDefinition {
	return domain.ShiftDefinition{
		ID:           "shift-day",
		Name:         "Day",
		StartTime:    "08:00",
		EndTime:      "16:00",
		BreakMinutes: 60,
	}
}

func nightShift() domain.ShiftDefinition {
	return domain.ShiftDefinition{
		ID:           "shift-night",
		Name:         "Night",
		StartTime:    "22:00",
		EndTime:      "06:00",
		BreakMinutes: 30,
	}
}

func assigned(shift domain.ShiftDefinition) *domain.ScheduleAssignment {
	return &domain.ScheduleAssignment{
		ID:         "assignment-1",
		EmployeeID: "emp-1",
		Date:       at(0, 0),
		ShiftID:    shift.ID,
		Published:  true,
		Shift:      shift,
	}
}

func virtualAssigned(shift domain.ShiftDefinition) *domain.ScheduleAssignment {
	a := assigned(shift)
	a.ID = ""
	a.IsVirtual = true
	return a
}

func rec(id string, punchType domain.PunchType, punchedAt time.Time) *domain.AttendanceRecord {
	return &domain.AttendanceRecord{
		ID:         id,
		EmployeeID: "emp-1",
		PunchType:  punchType,
		PunchedAt:  punchedAt,
		Status:     domain.RecordActive,
	}
}

// snapOf builds a snapshot from records in any order
func snapOf(takenAt time.Time, records ...*domain.AttendanceRecord) *engine.Snapshot {
	sort.Slice(records, func(i, j int) bool {
		return records[i].PunchedAt.After(records[j].PunchedAt)
	})
	return engine.NewSnapshot(records, takenAt)
}

func terminalEvent(instant time.Time, code int) *domain.PunchEvent {
	return &domain.PunchEvent{
		EmployeeRef:       "emp-1",
		Instant:           instant,
		TerminalStateCode: &code,
		Source:            domain.SourceTerminal,
		DeviceID:          "terminal-01",
	}
}

// inferredEvent is a terminal punch without a state code; the classifier
// has to work the type out itself.
func inferredEvent(instant time.Time) *domain.PunchEvent {
	return &domain.PunchEvent{
		EmployeeRef: "emp-1",
		Instant:     instant,
		Source:      domain.SourceTerminal,
		DeviceID:    "terminal-01",
	}
}

// declaredEvent is a device punch that carries an explicit type in its
// payload instead of a terminal state code.
func declaredEvent(instant time.Time, declared domain.PunchType) *domain.PunchEvent {
	return &domain.PunchEvent{
		EmployeeRef:  "emp-1",
		Instant:      instant,
		DeclaredType: &declared,
		Source:       domain.SourceMobile,
		DeviceID:     "mobile-app",
	}
}

func manualEvent(instant time.Time, declared domain.PunchType) *domain.PunchEvent {
	return &domain.PunchEvent{
		EmployeeRef:  "emp-1",
		Instant:      instant,
		DeclaredType: &declared,
		Source:       domain.SourceManual,
	}
}
