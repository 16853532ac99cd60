package engine

import (
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
)

const minutesPerDay = 24 * 60

// Snapshot is an immutable view of an employee's recent punch history, taken
// once at the start of a request. The dedup gate, the classifier and the
// anomaly detector all read the same snapshot so they cannot observe each
// other's writes mid-request. Debounce-blocked records are excluded before
// the snapshot is built.
type Snapshot struct {
	// Records holds active, non-debounced records, newest first
	Records []*domain.AttendanceRecord
	TakenAt time.Time
}

// NewSnapshot builds a snapshot from records already sorted newest first
func NewSnapshot(records []*domain.AttendanceRecord, takenAt time.Time) *Snapshot {
	return &Snapshot{Records: records, TakenAt: takenAt}
}

// Last returns the most recent record, or nil
func (s *Snapshot) Last() *domain.AttendanceRecord {
	if len(s.Records) == 0 {
		return nil
	}
	return s.Records[0]
}

// LastSession returns the most recent IN or OUT record, skipping break and
// mission boundaries.
func (s *Snapshot) LastSession() *domain.AttendanceRecord {
	for _, r := range s.Records {
		if r.PunchType == domain.PunchIn || r.PunchType == domain.PunchOut {
			return r
		}
	}
	return nil
}

// OpenIn returns the most recent IN that has no later OUT, or nil when no
// session is open.
func (s *Snapshot) OpenIn() *domain.AttendanceRecord {
	for _, r := range s.Records {
		switch r.PunchType {
		case domain.PunchOut:
			return nil
		case domain.PunchIn:
			return r
		}
	}
	return nil
}

// ExactAt returns a record with the identical instant, or nil
func (s *Snapshot) ExactAt(instant time.Time) *domain.AttendanceRecord {
	for _, r := range s.Records {
		if r.PunchedAt.Equal(instant) {
			return r
		}
	}
	return nil
}

// RecordsOn returns the records whose punch instant falls on the given local
// calendar day, newest first.
func (s *Snapshot) RecordsOn(day time.Time, loc *time.Location) []*domain.AttendanceRecord {
	var out []*domain.AttendanceRecord
	y, m, d := day.In(loc).Date()
	for _, r := range s.Records {
		ry, rm, rd := r.PunchedAt.In(loc).Date()
		if ry == y && rm == m && rd == d {
			out = append(out, r)
		}
	}
	return out
}

// Before returns the records strictly older than the instant, newest first
func (s *Snapshot) Before(instant time.Time) []*domain.AttendanceRecord {
	for i, r := range s.Records {
		if r.PunchedAt.Before(instant) {
			return s.Records[i:]
		}
	}
	return nil
}
