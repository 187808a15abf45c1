package tenant

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("tenant: not found")

// Repository is the read contract the auth core needs from tenant persistence.
// Implementations must honor ctx cancellation and deadlines.
type Repository interface {
	FindByID(ctx context.Context, id string) (Tenant, error)
}
