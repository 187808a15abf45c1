package audit

import (
	"context"
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

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, method, path, status, duration_ms, kind, actor_user_id, actor_role, subject_user_id, tenant_id, ip_address, request_id, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.Method,
		e.Path,
		e.Status,
		e.DurationMS,
		e.Kind,
		e.ActorUserID,
		e.ActorRole,
		e.SubjectUserID,
		e.TenantID,
		e.IPAddress,
		e.RequestID,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
