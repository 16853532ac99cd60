package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// ScheduleRepository reads published schedules, shifts and employees
type ScheduleRepository struct {
	db *database.DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *database.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

type assignmentRow struct {
	ID           string    `db:"id"`
	EmployeeID   string    `db:"employee_id"`
	Date         time.Time `db:"schedule_date"`
	ShiftID      string    `db:"shift_id"`
	Published    bool      `db:"published"`
	ShiftName    string    `db:"shift_name"`
	StartTime    string    `db:"start_time"`
	EndTime      string    `db:"end_time"`
	BreakMinutes int       `db:"break_minutes"`
	BreakStart   *string   `db:"break_start"`
}

// AssignmentsForDate returns the published assignments for an employee on a
// calendar date, shift definitions included.
func (r *ScheduleRepository) AssignmentsForDate(ctx context.Context, employeeID string, date time.Time) ([]*domain.ScheduleAssignment, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var rows []assignmentRow
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT sa.id, sa.employee_id, sa.schedule_date, sa.shift_id, sa.published,
			       s.name AS shift_name, s.start_time, s.end_time, s.break_minutes, s.break_start
			FROM schedule_assignments sa
			JOIN shifts s ON sa.shift_id = s.id
			WHERE sa.employee_id = $1
			  AND sa.schedule_date = $2
			  AND sa.published = TRUE
			  AND sa.deleted_at IS NULL
			ORDER BY s.start_time
		`
		return r.db.SelectContext(ctx, &rows, query, employeeID, date)
	})
	if err != nil {
		return nil, err
	}

	assignments := make([]*domain.ScheduleAssignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, &domain.ScheduleAssignment{
			ID:         row.ID,
			EmployeeID: row.EmployeeID,
			Date:       row.Date,
			ShiftID:    row.ShiftID,
			Published:  row.Published,
			Shift: domain.ShiftDefinition{
				ID:           row.ShiftID,
				Name:         row.ShiftName,
				StartTime:    row.StartTime,
				EndTime:      row.EndTime,
				BreakMinutes: row.BreakMinutes,
				BreakStart:   row.BreakStart,
			},
		})
	}
	return assignments, nil
}

// EmployeeDefaultShift returns the employee's default shift, or nil when the
// employee has none.
func (r *ScheduleRepository) EmployeeDefaultShift(ctx context.Context, employeeID string) (*domain.ShiftDefinition, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var shift domain.ShiftDefinition
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT s.id, s.name, s.start_time, s.end_time, s.break_minutes, s.break_start
			FROM employees e
			JOIN shifts s ON e.default_shift_id = s.id
			WHERE e.id = $1 AND e.deleted_at IS NULL
		`
		return r.db.GetContext(ctx, &shift, query, employeeID)
	})

	if err == sql.ErrNoRows {
		return nil, nil // no default shift is not an error
	}
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

// GetEmployeeByRef resolves an employee by internal ID or badge code
func (r *ScheduleRepository) GetEmployeeByRef(ctx context.Context, ref string) (*domain.Employee, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var emp domain.Employee
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, badge_code, first_name, last_name, default_shift_id, overtime_eligible
			FROM employees
			WHERE (id::text = $1 OR badge_code = $1) AND deleted_at IS NULL
		`
		return r.db.GetContext(ctx, &emp, query, ref)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("employee")
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}
