package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithTenantRLS executes a function with RLS-based tenant isolation.
// This is the isolation mechanism for pooled multi-tenancy.
//
// Usage in repositories:
//
//	tenantID, err := tenant.TenantID(ctx)
//	if err != nil { return err }
//	err = r.db.WithTenantRLS(ctx, tenantID, func(ctx context.Context) error {
//	    return r.db.GetContext(ctx, &rec, "SELECT * FROM attendance_records WHERE id = $1", id)
//	})
//
// How it works:
//  1. Starts a transaction
//  2. Sets "SET LOCAL search_path TO <service_schema>, public"
//  3. Sets "SET LOCAL app.current_tenant = '<tenant-uuid>'"
//  4. RLS policies filter rows: USING (tenant_id = current_setting('app.current_tenant')::uuid)
//  5. Commits transaction (auto-cleanup of session variables)
//
// SET LOCAL is scoped to the transaction, so even with connection pooling
// (PgBouncer) the next request gets clean state, and WITH CHECK prevents
// inserting rows for the wrong tenant.
func (db *DB) WithTenantRLS(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		searchPath := db.searchPath
		if searchPath == "" {
			searchPath = "public"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", searchPath)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", searchPath, err)
		}

		// NOTE: SET LOCAL doesn't support parameterized queries ($1), must use fmt.Sprintf.
		// This is safe because tenantID is a UUID validated upstream (not user input).
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL app.current_tenant = '%s'", tenantID)); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		// Store transaction in context so DB methods route through it
		txCtx := context.WithValue(ctx, txKey{}, tx)

		return fn(txCtx)
	})
}

// getTx extracts transaction from context if present
func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
