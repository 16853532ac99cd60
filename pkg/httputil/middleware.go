package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/punchflow/punchflow-backend/pkg/actor"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			log.Info().
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", duration).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ActorMiddleware extracts the acting user from headers (set by the API
// gateway after authentication) and attaches it to the request context.
// Requests without X-User-ID carry no actor; handlers that record audit
// identity reject those themselves.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		a := &actor.Actor{
			ID:       userID,
			Name:     r.Header.Get("X-User-Name"),
			Email:    r.Header.Get("X-User-Email"),
			TenantID: r.Header.Get("X-Tenant-ID"),
			RoleName: r.Header.Get("X-User-Role"),
		}

		next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
	})
}

// TenantMiddleware extracts tenant context from headers (set by the API
// gateway after authentication) and adds it to the request context.
//
// Headers expected:
//   - X-Tenant-ID: Tenant UUID
//   - X-Tenant-Slug: Tenant slug (e.g., "acme-logistics")
//   - X-Tenant-Timezone: IANA timezone name (optional, defaults to UTC)
//
// Security: Missing tenant context returns 403 Forbidden (fail-fast).
// Exception: /health endpoints are allowed without tenant context for monitoring.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip tenant validation for health check endpoints
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		tenantID := r.Header.Get("X-Tenant-ID")
		tenantSlug := r.Header.Get("X-Tenant-Slug")

		// This is CRITICAL for security - prevents cross-tenant data access
		if tenantID == "" {
			http.Error(w, `{"error":"missing tenant context"}`, http.StatusForbidden)
			return
		}

		ctx := tenant.WithTenantContext(r.Context(), tenantID, tenantSlug)
		if tz := r.Header.Get("X-Tenant-Timezone"); tz != "" {
			ctx = tenant.WithTimezone(ctx, tz)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
