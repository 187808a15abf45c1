package user

import (
	"context"
	"database/sql"
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

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (User, error) {
	const q = `
SELECT id, email, role, tenant_id, is_active, created_at
FROM users
WHERE id = $1
`
	var (
		u        User
		tenantID sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID,
		&u.Email,
		&u.Role,
		&tenantID,
		&u.IsActive,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("user lookup: %w", err)
	}
	u.TenantID = tenantID.String
	return u, nil
}
