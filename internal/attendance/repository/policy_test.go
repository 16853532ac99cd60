package repository_test

import (
	"context"
	"testing"

	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/internal/attendance/repository"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/logger"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
	"github.com/punchflow/punchflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPolicyRepo(t *testing.T) (*repository.PolicyRepository, *testutil.MockDB, context.Context) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := database.NewWithDB(mockDB.DB, testSearchPath, logger.New("attendance-service", "test"))
	ctx := tenant.WithTenantID(context.Background(), testTenantID)
	return repository.NewPolicyRepository(db), mockDB, ctx
}

func TestPolicyRepository_Load(t *testing.T) {
	t.Run("overlays stored options on the defaults", func(t *testing.T) {
		repo, mockDB, ctx := newPolicyRepo(t)

		mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
		mockDB.ExpectQuery("FROM policy_options").
			WillReturnRows(testutil.MockRows("option_key", "option_value").
				AddRow(policy.OptDoublePunchTolerance, "5").
				AddRow(policy.OptTimezone, "Europe/Paris").
				AddRow(policy.OptRequireBreakPunch, "true"))
		mockDB.ExpectCommit()

		cfg, err := repo.Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, 5, cfg.DoublePunchToleranceMinutes)
		assert.Equal(t, "Europe/Paris", cfg.Timezone)
		assert.True(t, cfg.RequireBreakPunch)
		assert.Equal(t, 30, cfg.OvertimeMinimumThreshold, "untouched options keep defaults")
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("no rows means the defaults", func(t *testing.T) {
		repo, mockDB, ctx := newPolicyRepo(t)

		mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
		mockDB.ExpectQuery("FROM policy_options").
			WillReturnRows(testutil.MockRows("option_key", "option_value"))
		mockDB.ExpectCommit()

		cfg, err := repo.Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, policy.Default(), cfg)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("tenant timezone header wins over the stored option", func(t *testing.T) {
		repo, mockDB, _ := newPolicyRepo(t)
		ctx := tenant.WithTimezone(tenant.WithTenantID(context.Background(), testTenantID), "America/Montreal")

		mockDB.ExpectTenantBegin(testSearchPath, testTenantID)
		mockDB.ExpectQuery("FROM policy_options").
			WillReturnRows(testutil.MockRows("option_key", "option_value").
				AddRow(policy.OptTimezone, "Europe/Paris"))
		mockDB.ExpectCommit()

		cfg, err := repo.Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, "America/Montreal", cfg.Timezone)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("requires tenant context", func(t *testing.T) {
		repo, _, _ := newPolicyRepo(t)

		_, err := repo.Load(context.Background())
		assert.Error(t, err)
	})
}
