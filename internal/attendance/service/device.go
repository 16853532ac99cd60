package service

import (
	"context"

	"github.com/punchflow/punchflow-backend/internal/attendance/domain"
	"github.com/punchflow/punchflow-backend/internal/attendance/events"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/pkg/deviceauth"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// DeviceService manages terminal enrollment and token issuance
type DeviceService struct {
	devices   *repository.DeviceRepository
	tokens    *deviceauth.Manager
	publisher *events.AttendanceEventPublisher
	logger    *logger.Logger
}

// NewDeviceService creates the device service
func NewDeviceService(devices *repository.DeviceRepository, tokens *deviceauth.Manager, publisher *events.AttendanceEventPublisher, log *logger.Logger) *DeviceService {
	return &DeviceService{
		devices:   devices,
		tokens:    tokens,
		publisher: publisher,
		logger:    log.WithComponent("device-service"),
	}
}

// Enroll registers a terminal under the current tenant. The enrollment
// secret is hashed before storage and never persisted in clear.
func (s *DeviceService) Enroll(ctx context.Context, serial, label, secret, enrolledBy string) (*domain.Device, error) {
	hash, err := s.tokens.HashSecret(secret)
	if err != nil {
		return nil, err
	}

	device := &domain.Device{
		Serial:     serial,
		Label:      label,
		SecretHash: hash,
	}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, err
	}

	s.publisher.PublishDeviceEnrolled(ctx, device, enrolledBy)
	s.logger.Info().
		Str("device_id", device.ID).
		Str("serial", serial).
		Msg("device enrolled")
	return device, nil
}

// IssueToken authenticates a terminal by serial and enrollment secret and
// returns a signed access token. Revoked devices cannot authenticate.
func (s *DeviceService) IssueToken(ctx context.Context, serial, secret string) (*deviceauth.Token, error) {
	device, err := s.devices.GetBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}
	if device.Revoked {
		return nil, errors.InvalidCredentials()
	}

	if err := s.tokens.VerifySecret(device.SecretHash, secret); err != nil {
		return nil, err
	}

	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}
	slug, _ := tenant.TenantSlug(ctx)

	return s.tokens.GenerateToken(&deviceauth.DeviceInfo{
		ID:         device.ID,
		Serial:     device.Serial,
		TenantID:   tenantID,
		TenantSlug: slug,
	})
}

// Revoke disables a terminal. Its existing tokens stop being honored at the
// authentication middleware.
func (s *DeviceService) Revoke(ctx context.Context, id, revokedBy, reason string) error {
	if err := s.devices.Revoke(ctx, id); err != nil {
		return err
	}

	device, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return err
	}

	s.publisher.PublishDeviceRevoked(ctx, device, revokedBy, reason)
	s.logger.Info().
		Str("device_id", id).
		Str("revoked_by", revokedBy).
		Msg("device revoked")
	return nil
}

// GetByID fetches an enrolled device
func (s *DeviceService) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	return s.devices.GetByID(ctx, id)
}
