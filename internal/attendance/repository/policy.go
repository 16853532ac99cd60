package repository

import (
	"context"

	"github.com/punchflow/punchflow-backend/internal/attendance/policy"
	"github.com/punchflow/punchflow-backend/pkg/database"
	"github.com/punchflow/punchflow-backend/pkg/tenant"
)

// PolicyRepository loads the tenant's policy option rows
type PolicyRepository struct {
	db *database.DB
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *database.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

type optionRow struct {
	Key   string `db:"option_key"`
	Value string `db:"option_value"`
}

// Load resolves the tenant's policy config: defaults overlaid with the
// tenant's option rows. A tenant with no rows gets the defaults.
func (r *PolicyRepository) Load(ctx context.Context) (*policy.Config, error) {
	tenantID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var rows []optionRow
	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
		query := `
			SELECT option_key, option_value
			FROM policy_options
		`
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, err
	}

	options := make(map[string]string, len(rows))
	for _, row := range rows {
		options[row.Key] = row.Value
	}

	cfg := policy.FromOptions(options)

	// The request's tenant timezone header wins over the stored option.
	if tz := tenant.Timezone(ctx); tz != "" && tz != "UTC" {
		cfg.Timezone = tz
	}

	return cfg, nil
}
