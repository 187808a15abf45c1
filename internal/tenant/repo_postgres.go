package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tenant-auth/pkg/utils"
)

// Table DDL lives in internal/schema.

type PostgresRepo struct {
	db utils.DBTX
}

// NewPostgresRepo accepts a *sql.DB or a *sql.Tx.
func NewPostgresRepo(db utils.DBTX) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (Tenant, error) {
	const q = `
SELECT id, slug, plan, is_active, max_users, settings, created_at, updated_at
FROM tenants
WHERE id = $1
`
	var (
		t        Tenant
		plan     string
		maxUsers sql.NullInt64
		settings []byte
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID,
		&t.Slug,
		&plan,
		&t.IsActive,
		&maxUsers,
		&settings,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("tenant lookup: %w", err)
	}

	t.Plan = Plan(plan)
	t.MaxUsers = int(maxUsers.Int64)
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return Tenant{}, fmt.Errorf("tenant %s settings: %w", id, err)
		}
	}
	return t, nil
}
