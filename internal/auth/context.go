package auth

import (
	"context"
	"errors"

	"tenant-auth/internal/tenant"
)

// Phase is the position of a request in the authentication state machine.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseAuthenticated
	PhaseTenantScoped
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseTenantScoped:
		return "tenant_scoped"
	default:
		return "unauthenticated"
	}
}

// State is the request-scoped authentication result threaded through the authorization chain.
// The zero value is an unauthenticated request. State is immutable: accessors return copies.
type State struct {
	principal *Principal
	tenant    *tenant.Context
}

// NewState returns an authenticated state for p, tenant scoped when tc is non-nil.
func NewState(p Principal, tc *tenant.Context) State {
	st := State{principal: &p}
	if tc != nil {
		cp := copyContext(*tc)
		st.tenant = &cp
	}
	return st
}

func (s State) Principal() (Principal, bool) {
	if s.principal == nil {
		return Principal{}, false
	}
	return *s.principal, true
}

func (s State) Tenant() (tenant.Context, bool) {
	if s.tenant == nil {
		return tenant.Context{}, false
	}
	return copyContext(*s.tenant), true
}

func (s State) Phase() Phase {
	switch {
	case s.principal == nil:
		return PhaseUnauthenticated
	case s.tenant == nil:
		return PhaseAuthenticated
	default:
		return PhaseTenantScoped
	}
}

func copyContext(tc tenant.Context) tenant.Context {
	out := tc
	out.Features = append([]string(nil), tc.Features...)
	return out
}

type ctxKey int

const ctxState ctxKey = iota

// WithState stores st in ctx.
func WithState(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, ctxState, st)
}

// StateFrom returns the auth state stored in ctx, or the unauthenticated zero value.
func StateFrom(ctx context.Context) State {
	if st, ok := ctx.Value(ctxState).(State); ok {
		return st
	}
	return State{}
}

func UserID(ctx context.Context) (string, error) {
	if p, ok := StateFrom(ctx).Principal(); ok && p.ID != "" {
		return p.ID, nil
	}
	return "", errors.New("user id not in context")
}

func TenantID(ctx context.Context) (string, error) {
	if p, ok := StateFrom(ctx).Principal(); ok && p.TenantID != "" {
		return p.TenantID, nil
	}
	return "", errors.New("tenant id not in context")
}

func Role(ctx context.Context) (string, error) {
	if p, ok := StateFrom(ctx).Principal(); ok && p.Role != "" {
		return p.Role, nil
	}
	return "", errors.New("role not in context")
}
