package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/punchflow/punchflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "punch_type_valid"):
		return errors.Validation(map[string]string{
			"type": "must be one of: IN, OUT, BREAK_START, BREAK_END, MISSION_START, MISSION_END",
		})

	case strings.Contains(constraint, "validation_status_valid"):
		return errors.Validation(map[string]string{
			"validation_status": "must be one of: NONE, PENDING_VALIDATION, VALIDATED, REJECTED",
		})

	case strings.Contains(constraint, "escalation_level_range"):
		return errors.Validation(map[string]string{
			"escalation_level": "must be between 0 and 3",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "employee_instant"):
		return "a punch already exists for this employee at this instant"
	case strings.Contains(constraint, "badge_code"):
		return "an employee with this badge code already exists"
	case strings.Contains(constraint, "device_serial"):
		return "a device with this serial already exists"
	default:
		return "a record with these values already exists"
	}
}
