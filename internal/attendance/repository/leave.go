package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// LeaveRepository reads leave intervals and tenant holidays
type LeaveRepository struct {
	db *database.DB
}

// NewLeaveRepository creates a new leave repository
func NewLeaveRepository(db *database.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// ApprovedLeavesAround returns the employee's approved leaves overlapping
// the day before through the day after the given date. The window covers
// overnight sessions that straddle a leave boundary.
func (r *LeaveRepository) ApprovedLeavesAround(ctx context.Context, employeeID string, date time.Time) ([]*domain.Leave, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	from := date.AddDate(0, 0, -1)
	to := date.AddDate(0, 0, 1)

	var leaves []*domain.Leave
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, employee_id, leave_type, start_date, end_date, approved
			FROM leaves
			WHERE employee_id = $1
			  AND approved = TRUE
			  AND start_date <= $3
			  AND end_date >= $2
			  AND deleted_at IS NULL
			ORDER BY start_date
		`
		return r.db.SelectContext(ctx, &leaves, query, employeeID, from, to)
	})
	if err != nil {
		return nil, err
	}
	return leaves, nil
}

// HolidayOn returns the tenant holiday on the given date, or nil
func (r *LeaveRepository) HolidayOn(ctx context.Context, date time.Time) (*domain.Holiday, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var holiday domain.Holiday
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, holiday_date, name
			FROM holidays
			WHERE holiday_date = $1
		`
		return r.db.GetContext(ctx, &holiday, query, date)
	})

	if err == sql.ErrNoRows {
		return nil, nil // no holiday is not an error
	}
	if err != nil {
		return nil, err
	}
	return &holiday, nil
}
