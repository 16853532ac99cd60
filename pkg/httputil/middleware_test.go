package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/punchflow/punchflow-backend/pkg/actor"
	"github.com/punchflow/punchflow-backend/pkg/httputil"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActorMiddleware(t *testing.T) {
	t.Run("gateway headers become the request actor", func(t *testing.T) {
		var got *actor.Actor
		h := httputil.ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = actor.FromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodPost, "/records/r-1/validate", nil)
		req.Header.Set("X-User-ID", "user-42")
		req.Header.Set("X-User-Name", "Ada Reviewer")
		req.Header.Set("X-User-Email", "ada@acme.test")
		req.Header.Set("X-Tenant-ID", "tenant-1")
		req.Header.Set("X-User-Role", "manager")
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.Equal(t, "user-42", got.ID)
		assert.Equal(t, "Ada Reviewer", got.Name)
		assert.Equal(t, "ada@acme.test", got.Email)
		assert.Equal(t, "tenant-1", got.TenantID)
		assert.Equal(t, "manager", got.RoleName)
		assert.False(t, got.IsSystem())
	})

	t.Run("no user header means no actor", func(t *testing.T) {
		var got *actor.Actor
		h := httputil.ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = actor.FromContext(r.Context())
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/validation/pending", nil))

		assert.Nil(t, got)
		assert.True(t, got.IsSystem(), "absent actor reads as system")
	})
}

func TestTenantMiddleware(t *testing.T) {
	t.Run("tenant headers reach the context", func(t *testing.T) {
		var gotTenant string
		var gotTZ string
		h := httputil.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotTenant, _ = tenant.TenantID(r.Context())
			gotTZ = tenant.Timezone(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/records/r-1", nil)
		req.Header.Set("X-Tenant-ID", "tenant-1")
		req.Header.Set("X-Tenant-Timezone", "Europe/Paris")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "tenant-1", gotTenant)
		assert.Equal(t, "Europe/Paris", gotTZ)
	})

	t.Run("missing tenant is forbidden", func(t *testing.T) {
		h := httputil.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/records/r-1", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		called := false
		h := httputil.TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.True(t, called)
	})
}
