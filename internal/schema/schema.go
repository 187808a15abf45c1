// Package schema creates the tables the API reads from and appends to.
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"tenant-auth/pkg/utils"
)

// Statements are idempotent and applied in order inside one transaction.
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
  id         TEXT PRIMARY KEY,
  slug       TEXT NOT NULL UNIQUE,
  plan       TEXT NOT NULL DEFAULT 'free',
  is_active  BOOLEAN NOT NULL DEFAULT TRUE,
  max_users  INTEGER,
  settings   JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS users (
  id         TEXT PRIMARY KEY,
  email      TEXT NOT NULL UNIQUE,
  role       TEXT NOT NULL,
  tenant_id  TEXT REFERENCES tenants(id),
  is_active  BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS users_tenant_id_idx ON users (tenant_id)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
  id            UUID PRIMARY KEY,
  type          TEXT NOT NULL,
  method        TEXT NOT NULL DEFAULT '',
  path          TEXT NOT NULL DEFAULT '',
  status        INTEGER NOT NULL DEFAULT 0,
  duration_ms   DOUBLE PRECISION NOT NULL DEFAULT 0,
  kind          TEXT NOT NULL DEFAULT '',
  actor_user_id TEXT NOT NULL DEFAULT '',
  actor_role    TEXT NOT NULL DEFAULT '',
  subject_user_id TEXT NOT NULL DEFAULT '',
  tenant_id     TEXT NOT NULL DEFAULT '',
  ip_address    TEXT NOT NULL DEFAULT '',
  request_id    TEXT NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS audit_events_created_at_idx ON audit_events (created_at)`,
	`CREATE INDEX IF NOT EXISTS audit_events_tenant_id_idx ON audit_events (tenant_id, created_at)`,
}

// Apply runs Statements in a single transaction.
func Apply(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		return nil
	})
}
