package authz

import (
	"context"
	"errors"

	"tenant-auth/internal/auth"
	"tenant-auth/internal/tenant"
	"tenant-auth/pkg/logger"
)

// TokenVerifier is the subset of auth.Validator the chain needs.
type TokenVerifier interface {
	VerifyAccessToken(token string) (auth.AccessClaims, error)
}

// TenantResolver is the subset of tenant.Resolver the chain needs.
type TenantResolver interface {
	Resolve(ctx context.Context, principalTenantID, tenantID string) (tenant.Context, error)
}

// Authenticator runs the bearer pipeline: extract, verify, then resolve the tenant when the token
// carries a tenant claim and isolation is enabled.
type Authenticator struct {
	verifier  TokenVerifier
	resolver  TenantResolver
	isolation bool
}

func NewAuthenticator(verifier TokenVerifier, resolver TenantResolver, isolation bool) *Authenticator {
	return &Authenticator{verifier: verifier, resolver: resolver, isolation: isolation}
}

// Authenticate requires a valid bearer token.
func (a *Authenticator) Authenticate() Authorizer {
	return &bearerAuthorizer{a: a}
}

// OptionalAuth runs the same pipeline but never rejects: on any failure the request continues unauthenticated.
func (a *Authenticator) OptionalAuth() Authorizer {
	return &bearerAuthorizer{a: a, optional: true}
}

type bearerAuthorizer struct {
	a        *Authenticator
	optional bool
}

func (b *bearerAuthorizer) Authorize(ctx context.Context, _ auth.State, req Request) (auth.State, error) {
	st, err := b.a.authenticate(ctx, req)
	if err != nil {
		if b.optional {
			logger.From(ctx).Debug("optional auth ignored credential", "kind", auth.KindOf(err))
			return auth.State{}, nil
		}
		return auth.State{}, err
	}
	return st, nil
}

func (a *Authenticator) authenticate(ctx context.Context, req Request) (auth.State, error) {
	token, err := auth.ExtractBearerToken(req.Authorization)
	if err != nil {
		return auth.State{}, err
	}

	claims, err := a.verifier.VerifyAccessToken(token)
	if err != nil {
		return auth.State{}, err
	}
	p := claims.Principal()

	if claims.Tenant == nil || !a.isolation {
		return auth.NewState(p, nil), nil
	}
	if a.resolver == nil {
		return auth.State{}, auth.NewError(auth.KindTenantResolutionFailed, "tenant resolution unavailable", nil)
	}

	tc, err := a.resolver.Resolve(ctx, p.TenantID, claims.Tenant.ID)
	if err != nil {
		return auth.State{}, TenantError(ctx, claims.Tenant.ID, err)
	}
	return auth.NewState(p, &tc), nil
}

// TenantError maps a tenant.Resolver failure onto the error taxonomy. Unexpected failures are logged.
func TenantError(ctx context.Context, tenantID string, err error) error {
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return auth.NewError(auth.KindTenantNotFound, "tenant not found", err)
	case errors.Is(err, tenant.ErrInactive):
		return auth.NewError(auth.KindTenantInactive, "tenant is not active", err)
	case errors.Is(err, tenant.ErrMismatch):
		return auth.NewError(auth.KindTenantMismatch, "principal does not belong to this tenant", err)
	default:
		logger.From(ctx).Error("tenant resolution failed", "tenant_id", tenantID, "err", err)
		return auth.NewError(auth.KindTenantResolutionFailed, "tenant context could not be loaded", err)
	}
}
