package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// DeviceRepository handles the enrolled terminal registry
type DeviceRepository struct {
	db *database.DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *database.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create enrolls a new device
func (r *DeviceRepository) Create(ctx context.Context, device *domain.Device) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			INSERT INTO devices (id, serial, label, secret_hash)
			VALUES ($1, $2, $3, $4)
			RETURNING enrolled_at
		`
		err := r.db.QueryRowxContext(ctx, query,
			device.ID, device.Serial, device.Label, device.SecretHash,
		).Scan(&device.EnrolledAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetBySerial fetches a device by its hardware serial
func (r *DeviceRepository) GetBySerial(ctx context.Context, serial string) (*domain.Device, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var device domain.Device
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, serial, label, secret_hash, revoked, enrolled_at, revoked_at
			FROM devices
			WHERE serial = $1
		`
		return r.db.GetContext(ctx, &device, query, serial)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("device")
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// GetByID fetches a device by ID
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var device domain.Device
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT id, serial, label, secret_hash, revoked, enrolled_at, revoked_at
			FROM devices
			WHERE id = $1
		`
		return r.db.GetContext(ctx, &device, query, id)
	})

	if err == sql.ErrNoRows {
		return nil, errors.NotFound("device")
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Revoke marks a device as revoked; its tokens stop being honored
func (r *DeviceRepository) Revoke(ctx context.Context, id string) error {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	return r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			UPDATE devices SET revoked = TRUE, revoked_at = NOW()
			WHERE id = $1 AND revoked = FALSE
		`
		result, err := r.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("device")
		}
		return nil
	})
}
