package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// recordColumns is the shared select list for attendance records
const recordColumns = `
	id, tenant_id, employee_id, punched_at, punch_type, status,
	detection_method, confidence, source, device_id, raw_payload, is_manual,
	has_anomaly, anomaly_kind, anomaly_note, suggested_correction,
	worked_minutes, break_minutes, late_minutes, early_leave_minutes, overtime_minutes,
	corrected, corrected_by, correction_note, corrected_at,
	needs_approval, original_type, original_anomaly,
	is_ambiguous, validation_status, escalation_level, pending_since,
	created_at, updated_at`

// RecordRepository handles attendance record persistence
type RecordRepository struct {
	db *database.DB
}

// NewRecordRepository creates a new attendance record repository
func NewRecordRepository(db *database.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a new attendance record.
// TENANT-ISOLATED: RLS scopes the insert to the current tenant.
func (r *RecordRepository) Create(ctx context.Context, rec *domain.AttendanceRecord) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.TenantID = tenantID

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO attendance_records (
				id, tenant_id, employee_id, punched_at, punch_type, status,
				detection_method, confidence, source, device_id, raw_payload, is_manual,
				has_anomaly, anomaly_kind, anomaly_note, suggested_correction,
				worked_minutes, break_minutes, late_minutes, early_leave_minutes, overtime_minutes,
				needs_approval, original_type, original_anomaly,
				is_ambiguous, validation_status, escalation_level, pending_since
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
				$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
			)
			RETURNING created_at, updated_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			rec.ID, rec.TenantID, rec.EmployeeID, rec.PunchedAt, rec.PunchType, rec.Status,
			rec.DetectionMethod, rec.Confidence, rec.Source, rec.DeviceID, rec.RawPayload, rec.IsManual,
			rec.HasAnomaly, rec.AnomalyKind, rec.AnomalyNote, rec.SuggestedCorrection,
			rec.WorkedMinutes, rec.BreakMinutes, rec.LateMinutes, rec.EarlyLeaveMinutes, rec.OvertimeMinutes,
			rec.NeedsApproval, rec.OriginalType, rec.OriginalAnomaly,
			rec.IsAmbiguous, rec.ValidationStatus, rec.EscalationLevel, rec.PendingSince,
		).Scan(&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID fetches a record by ID.
// TENANT-ISOLATED: RLS scopes the query to the current tenant.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.AttendanceRecord, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var rec domain.AttendanceRecord
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + recordColumns + `
			FROM attendance_records
			WHERE id = $1 AND deleted_at IS NULL`
		return r.db.GetContext(ctx, &rec, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("attendance_record")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentForEmployee returns the employee's recent real records, newest first.
// Debounce-blocked records are excluded; every downstream lookup (last punch,
// session pairing, anomaly history) sees only real events.
func (r *RecordRepository) RecentForEmployee(ctx context.Context, employeeID string, since time.Time) ([]*domain.AttendanceRecord, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var records []*domain.AttendanceRecord
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + recordColumns + `
			FROM attendance_records
			WHERE employee_id = $1
			  AND punched_at >= $2
			  AND status <> 'DEBOUNCE_BLOCKED'
			  AND deleted_at IS NULL
			ORDER BY punched_at DESC`
		return r.db.SelectContext(ctx, &records, query, employeeID, since)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListForEmployeeRange returns an employee's records in a time range,
// oldest first. Debounced records are included so the audit view is
// complete; callers filter if they need real events only.
func (r *RecordRepository) ListForEmployeeRange(ctx context.Context, employeeID string, from, to time.Time) ([]*domain.AttendanceRecord, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var records []*domain.AttendanceRecord
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + recordColumns + `
			FROM attendance_records
			WHERE employee_id = $1
			  AND punched_at >= $2 AND punched_at < $3
			  AND deleted_at IS NULL
			ORDER BY punched_at`
		return r.db.SelectContext(ctx, &records, query, employeeID, from, to)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListPendingValidation returns records awaiting human validation, oldest
// pending first.
func (r *RecordRepository) ListPendingValidation(ctx context.Context) ([]*domain.AttendanceRecord, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var records []*domain.AttendanceRecord
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + recordColumns + `
			FROM attendance_records
			WHERE (validation_status = 'PENDING_VALIDATION' OR needs_approval = TRUE)
			  AND deleted_at IS NULL
			ORDER BY pending_since NULLS LAST, punched_at`
		return r.db.SelectContext(ctx, &records, query)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateEnrichment writes the deferred anomaly and metric fields computed by
// the background worker.
func (r *RecordRepository) UpdateEnrichment(ctx context.Context, rec *domain.AttendanceRecord) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET
				has_anomaly = $2, anomaly_kind = $3, anomaly_note = $4, suggested_correction = $5,
				worked_minutes = $6, break_minutes = $7, late_minutes = $8,
				early_leave_minutes = $9, overtime_minutes = $10,
				is_ambiguous = $11, validation_status = $12, pending_since = $13,
				updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query,
			rec.ID, rec.HasAnomaly, rec.AnomalyKind, rec.AnomalyNote, rec.SuggestedCorrection,
			rec.WorkedMinutes, rec.BreakMinutes, rec.LateMinutes,
			rec.EarlyLeaveMinutes, rec.OvertimeMinutes,
			rec.IsAmbiguous, rec.ValidationStatus, rec.PendingSince,
		)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("attendance_record")
		}
		return nil
	})
}

// CorrectType applies a manual type correction with audit metadata
func (r *RecordRepository) CorrectType(ctx context.Context, id string, newType domain.PunchType, correctedBy, note string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET
				punch_type = $2, corrected = TRUE, corrected_by = $3,
				correction_note = $4, corrected_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id, newType, correctedBy, note)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("attendance_record")
		}
		return nil
	})
}

// ApproveCorrection confirms a wrong-button auto-correction: the corrected
// type stands and the approval flag clears.
func (r *RecordRepository) ApproveCorrection(ctx context.Context, id, reviewerID string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET
				needs_approval = FALSE, original_type = NULL, original_anomaly = NULL,
				corrected = TRUE, corrected_by = $2, corrected_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND needs_approval = TRUE AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id, reviewerID)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("attendance_record")
		}
		return nil
	})
}

// RejectCorrection reverts a wrong-button auto-correction: the original type
// comes back, the prior anomaly kind is reinstated and the approval flag
// clears.
func (r *RecordRepository) RejectCorrection(ctx context.Context, id, reviewerID string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET
				punch_type = original_type,
				anomaly_kind = original_anomaly,
				has_anomaly = (original_anomaly IS NOT NULL),
				needs_approval = FALSE, original_type = NULL, original_anomaly = NULL,
				corrected_by = $2, corrected_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND needs_approval = TRUE AND original_type IS NOT NULL AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id, reviewerID)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("attendance_record")
		}
		return nil
	})
}

// SetValidation resolves a pending-validation record
func (r *RecordRepository) SetValidation(ctx context.Context, id string, status domain.ValidationStatus, reviewerID string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET
				validation_status = $2, is_ambiguous = FALSE,
				corrected_by = $3, updated_at = NOW()
			WHERE id = $1 AND validation_status = 'PENDING_VALIDATION' AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id, status, reviewerID)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("attendance_record")
		}
		return nil
	})
}

// ClearAnomalyIf clears an anomaly only when its kind still matches the
// expected stale value. This is the idempotent reconciliation write; a
// retry or a concurrent human correction makes it a no-op.
func (r *RecordRepository) ClearAnomalyIf(ctx context.Context, id string, expected domain.AnomalyKind) (bool, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return false, err
	}

	var cleared bool
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET
				has_anomaly = FALSE, anomaly_kind = NULL, anomaly_note = NULL,
				suggested_correction = NULL, updated_at = NOW()
			WHERE id = $1 AND anomaly_kind = $2 AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id, expected)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		cleared = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return cleared, nil
}

// EscalateTo raises a pending record's escalation level. The guard keeps the
// level monotonically non-decreasing under concurrent sweeps.
func (r *RecordRepository) EscalateTo(ctx context.Context, id string, level int) (bool, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return false, err
	}

	if level > domain.MaxEscalationLevel {
		level = domain.MaxEscalationLevel
	}

	var escalated bool
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET
				escalation_level = $2, updated_at = NOW()
			WHERE id = $1
			  AND validation_status = 'PENDING_VALIDATION'
			  AND escalation_level < $2
			  AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id, level)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		escalated = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return escalated, nil
}

// ListOpenSessions returns IN records opened before the cutoff that have no
// later session punch and no anomaly yet. Feeds the deferred missing-out
// sweep.
func (r *RecordRepository) ListOpenSessions(ctx context.Context, cutoff time.Time) ([]*domain.AttendanceRecord, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var records []*domain.AttendanceRecord
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + recordColumns + `
			FROM attendance_records a
			WHERE a.punch_type = 'IN'
			  AND a.punched_at < $1
			  AND a.status <> 'DEBOUNCE_BLOCKED'
			  AND a.anomaly_kind IS NULL
			  AND a.deleted_at IS NULL
			  AND NOT EXISTS (
				SELECT 1 FROM attendance_records b
				WHERE b.employee_id = a.employee_id
				  AND b.punch_type IN ('IN', 'OUT')
				  AND b.punched_at > a.punched_at
				  AND b.status <> 'DEBOUNCE_BLOCKED'
				  AND b.deleted_at IS NULL
			  )
			ORDER BY a.punched_at`
		return r.db.SelectContext(ctx, &records, query, cutoff)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DanglingInBefore returns the open MISSING_OUT-flagged IN preceding an OUT,
// if any. Feeds reconciliation when a late OUT finally arrives.
func (r *RecordRepository) DanglingInBefore(ctx context.Context, employeeID string, before time.Time) (*domain.AttendanceRecord, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var rec domain.AttendanceRecord
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `SELECT ` + recordColumns + `
			FROM attendance_records
			WHERE employee_id = $1
			  AND punch_type = 'IN'
			  AND punched_at < $2
			  AND anomaly_kind = 'MISSING_OUT'
			  AND status <> 'DEBOUNCE_BLOCKED'
			  AND deleted_at IS NULL
			ORDER BY punched_at DESC
			LIMIT 1`
		return r.db.GetContext(ctx, &rec, query, employeeID, before)
	})

	if err == sql.ErrNoRows {
		return nil, nil // no dangling IN is not an error
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SoftDelete removes a manual-source record. Terminal-sourced records are
// never deleted.
func (r *RecordRepository) SoftDelete(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE attendance_records SET deleted_at = NOW()
			WHERE id = $1 AND is_manual = TRUE AND deleted_at IS NULL
		`
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("attendance_record")
		}
		return nil
	})
}
