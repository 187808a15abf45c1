package authz

import (
	"context"

	"tenant-auth/internal/apikey"
	"tenant-auth/internal/auth"
	"tenant-auth/internal/rbac"
	"tenant-auth/pkg/logger"
)

const tenantIDField = "tenantId"

func requirePrincipal(st auth.State) (auth.Principal, error) {
	p, ok := st.Principal()
	if !ok {
		return auth.Principal{}, auth.NewError(auth.KindMissingCredential, "authentication required", nil)
	}
	return p, nil
}

// RequireRole passes when the principal holds one of roles. It must follow Authenticate.
func RequireRole(roles ...string) Authorizer {
	allowed := rbac.NewSet(roles...)
	return AuthorizerFunc(func(_ context.Context, st auth.State, _ Request) (auth.State, error) {
		p, err := requirePrincipal(st)
		if err != nil {
			return auth.State{}, err
		}
		if !allowed.Has(p.Role) {
			return auth.State{}, auth.NewError(auth.KindInsufficientRole, "insufficient role", nil)
		}
		return st, nil
	})
}

func RequireAdmin() Authorizer {
	return RequireRole(rbac.RoleAdmin)
}

// RequireOwnership passes when the path parameter param names the principal, or the principal is an admin.
func RequireOwnership(param string) Authorizer {
	return AuthorizerFunc(func(_ context.Context, st auth.State, req Request) (auth.State, error) {
		p, err := requirePrincipal(st)
		if err != nil {
			return auth.State{}, err
		}
		owner := req.Param(param)
		if owner == "" {
			return auth.State{}, auth.NewError(auth.KindMissingPathParam, param+" is required", nil)
		}
		if p.ID != owner && !rbac.IsAdmin(p.Role) {
			return auth.State{}, auth.NewError(auth.KindOwnershipViolation, "resource belongs to another user", nil)
		}
		return st, nil
	})
}

// EnsureTenantIsolation rejects requests naming a tenant other than the principal's,
// whether in the path, the JSON body or the query string.
func EnsureTenantIsolation() Authorizer {
	return AuthorizerFunc(func(_ context.Context, st auth.State, req Request) (auth.State, error) {
		p, err := requirePrincipal(st)
		if err != nil {
			return auth.State{}, err
		}
		for _, id := range req.tenantIDs() {
			if id != p.TenantID {
				return auth.State{}, auth.NewError(auth.KindTenantMismatch, "cross-tenant access denied", nil)
			}
		}
		return st, nil
	})
}

// ValidateAPIKey authenticates integration callers by X-API-Key. It is a separate credential path
// and cannot share a chain with Authenticate or OptionalAuth.
func ValidateAPIKey(list apikey.AllowList) Authorizer {
	return &apiKeyAuthorizer{list: list}
}

type apiKeyAuthorizer struct {
	list apikey.AllowList
}

func (a *apiKeyAuthorizer) Authorize(ctx context.Context, st auth.State, req Request) (auth.State, error) {
	if req.APIKey == "" {
		return auth.State{}, auth.NewError(auth.KindMissingCredential, "API key required", nil)
	}
	ok, err := a.list.Contains(ctx, req.APIKey)
	if err != nil {
		logger.From(ctx).Error("api key lookup failed", "err", err)
		return auth.State{}, auth.NewError(auth.KindInternal, "API key could not be checked", err)
	}
	if !ok {
		return auth.State{}, auth.NewError(auth.KindInvalidAPIKey, "invalid API key", nil)
	}
	return st, nil
}
