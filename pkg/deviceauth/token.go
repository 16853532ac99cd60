package deviceauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/punchflow/punchflow-backend/pkg/config"
	"github.com/punchflow/punchflow-backend/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Claims represents the device token claims
type Claims struct {
	jwt.RegisteredClaims
	DeviceID string `json:"device_id"`
	Serial   string `json:"serial"`

	// Tenant context - a device belongs to exactly one tenant
	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
}

// Manager handles device token operations
type Manager struct {
	config *config.DeviceAuthConfig
}

// NewManager creates a new device token manager
func NewManager(cfg *config.DeviceAuthConfig) *Manager {
	return &Manager{config: cfg}
}

// DeviceInfo contains device information for token generation
type DeviceInfo struct {
	ID         string
	Serial     string
	TenantID   string
	TenantSlug string
}

// Token contains an issued device token
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// GenerateToken generates a signed token for an enrolled device
func (m *Manager) GenerateToken(device *DeviceInfo) (*Token, error) {
	now := time.Now()
	expiry := now.Add(m.config.TokenExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   device.ID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		DeviceID:   device.ID,
		Serial:     device.Serial,
		TenantID:   device.TenantID,
		TenantSlug: device.TenantSlug,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.config.TokenSecret))
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: tokenString,
		ExpiresAt:   expiry,
		TokenType:   "Bearer",
	}, nil
}

// ValidateToken validates a device token and returns the claims
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.InvalidCredentials()
		}
		return []byte(m.config.TokenSecret), nil
	})

	if err != nil {
		if err.Error() == "token has invalid claims: token is expired" {
			return nil, errors.Unauthorized("device token expired")
		}
		return nil, errors.InvalidCredentials()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.InvalidCredentials()
	}

	return claims, nil
}

// HashSecret hashes a device enrollment secret for storage
func (m *Manager) HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), m.config.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret compares an enrollment secret against its stored hash
func (m *Manager) VerifySecret(hash, secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return errors.InvalidCredentials()
	}
	return nil
}

// GetTokenExpiry returns the device token expiry duration
func (m *Manager) GetTokenExpiry() time.Duration {
	return m.config.TokenExpiry
}
