package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInactive = errors.New("tenant: inactive")
	ErrMismatch = errors.New("tenant: principal belongs to a different tenant")
)

// Resolver re-derives the authoritative tenant context for a verified tenant reference.
// The token claim only identifies the tenant; plan, features, limits and status come from the live record,
// so upgrades, downgrades and suspensions apply without waiting for token expiry.
type Resolver struct {
	repo    Repository
	timeout time.Duration
}

func NewResolver(repo Repository, lookupTimeout time.Duration) *Resolver {
	return &Resolver{repo: repo, timeout: lookupTimeout}
}

// Resolve returns ErrNotFound, ErrInactive or ErrMismatch for the expected rejections.
// Any other error (repository unreachable, deadline exceeded) is returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, principalTenantID, tenantID string) (Context, error) {
	if r.repo == nil {
		return Context{}, errors.New("tenant: repository not configured")
	}

	lookupCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	t, err := r.repo.FindByID(lookupCtx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Context{}, ErrNotFound
		}
		return Context{}, fmt.Errorf("resolve tenant %s: %w", tenantID, err)
	}
	if !t.IsActive {
		return Context{}, ErrInactive
	}
	if principalTenantID != "" && principalTenantID != t.ID {
		return Context{}, ErrMismatch
	}
	return t.Context(), nil
}
