package user

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("user: not found")

// User is the persisted account record the auth core reads when re-issuing access tokens.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	TenantID  string    `json:"tenantId,omitempty" db:"tenant_id"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Repository interface {
	FindByID(ctx context.Context, id string) (User, error)
}
