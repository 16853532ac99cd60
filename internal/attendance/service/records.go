package service

import (
	"context"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
)

// RecordService serves read access to attendance records
type RecordService struct {
	records   *repository.RecordRepository
	schedules *repository.ScheduleRepository
	policies  *repository.PolicyRepository
}

// NewRecordService creates the record query service
func NewRecordService(records *repository.RecordRepository, schedules *repository.ScheduleRepository, policies *repository.PolicyRepository) *RecordService {
	return &RecordService{records: records, schedules: schedules, policies: policies}
}

// GetByID fetches one record
func (s *RecordService) GetByID(ctx context.Context, id string) (*domain.AttendanceRecord, error) {
	return s.records.GetByID(ctx, id)
}

// ListForEmployeeDay returns an employee's records for one local calendar
// day, debounce-blocked entries included for the audit view.
func (s *RecordService) ListForEmployeeDay(ctx context.Context, employeeRef string, day time.Time) ([]*domain.AttendanceRecord, error) {
	employee, err := s.schedules.GetEmployeeByRef(ctx, employeeRef)
	if err != nil {
		return nil, err
	}

	cfg, err := s.policies.Load(ctx)
	if err != nil {
		return nil, err
	}

	from := dayOf(day.In(cfg.Location()))
	return s.records.ListForEmployeeRange(ctx, employee.ID, from, from.AddDate(0, 0, 1))
}

// ListForEmployeeRange returns an employee's records in [from, to)
func (s *RecordService) ListForEmployeeRange(ctx context.Context, employeeRef string, from, to time.Time) ([]*domain.AttendanceRecord, error) {
	employee, err := s.schedules.GetEmployeeByRef(ctx, employeeRef)
	if err != nil {
		return nil, err
	}
	return s.records.ListForEmployeeRange(ctx, employee.ID, from, to)
}
