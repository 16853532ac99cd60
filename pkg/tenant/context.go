package tenant

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	tenantIDKey   contextKey = "tenant_id"
	tenantSlugKey contextKey = "tenant_slug"
	timezoneKey   contextKey = "tenant_timezone"
)

var (
	// ErrNoTenantInContext is returned when tenant context is missing
	ErrNoTenantInContext = errors.New("no tenant in context")
)

// WithTenantContext adds all tenant information to the context.
// This should be called by middleware after extracting tenant headers.
func WithTenantContext(ctx context.Context, id, slug string) context.Context {
	ctx = context.WithValue(ctx, tenantIDKey, id)
	ctx = context.WithValue(ctx, tenantSlugKey, slug)
	return ctx
}

// WithTenantID adds only tenant ID to context
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithTimezone attaches the tenant's IANA timezone name to the context.
// Punch instants arrive in UTC; lateness and shift boundaries are computed
// in the tenant's local wall clock.
func WithTimezone(ctx context.Context, tz string) context.Context {
	return context.WithValue(ctx, timezoneKey, tz)
}

// TenantID extracts tenant ID from context.
// Returns ErrNoTenantInContext if tenant ID is not found.
// This is the most important function - repositories use it to scope RLS.
func TenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoTenantInContext
	}
	return id, nil
}

// TenantSlug extracts tenant slug from context
func TenantSlug(ctx context.Context) (string, error) {
	slug, ok := ctx.Value(tenantSlugKey).(string)
	if !ok || slug == "" {
		return "", ErrNoTenantInContext
	}
	return slug, nil
}

// Timezone extracts the tenant timezone name from context, defaulting to UTC.
func Timezone(ctx context.Context) string {
	if tz, ok := ctx.Value(timezoneKey).(string); ok && tz != "" {
		return tz
	}
	return "UTC"
}

// MustTenantID extracts tenant ID from context and panics if not found.
// Use only in cases where missing tenant is a programming error.
func MustTenantID(ctx context.Context) string {
	id, err := TenantID(ctx)
	if err != nil {
		panic("tenant ID not found in context")
	}
	return id
}
