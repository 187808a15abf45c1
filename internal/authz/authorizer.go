package authz

import (
	"context"
	"errors"
	"net/url"

	"tenant-auth/internal/auth"
)

// Request is the transport-independent metadata a predicate may inspect.
type Request struct {
	Method        string
	Path          string
	Authorization string
	APIKey        string
	Params        map[string]string
	Query         url.Values
	BodyTenantID  string
}

func (r Request) Param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[name]
}

// tenantIDs returns every non-empty tenant identifier the request names, path first, then body, then query.
func (r Request) tenantIDs() []string {
	var out []string
	for _, v := range []string{r.Param(tenantIDField), r.BodyTenantID, r.Query.Get(tenantIDField)} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Authorizer is a single step of the authorization chain.
// It returns the state to hand to the next step, or an *auth.Error rejecting the request.
// Authorizers must not retain or mutate anything across calls.
type Authorizer interface {
	Authorize(ctx context.Context, st auth.State, req Request) (auth.State, error)
}

type AuthorizerFunc func(ctx context.Context, st auth.State, req Request) (auth.State, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, st auth.State, req Request) (auth.State, error) {
	return f(ctx, st, req)
}

// Chain applies authorizers in order and stops at the first rejection.
type Chain []Authorizer

var ErrMixedCredentials = errors.New("authz: api key and bearer authorizers cannot share a chain")

// NewChain validates the composition of authorizers.
func NewChain(authorizers ...Authorizer) (Chain, error) {
	var bearer, apiKey bool
	for _, a := range authorizers {
		switch a.(type) {
		case *bearerAuthorizer:
			bearer = true
		case *apiKeyAuthorizer:
			apiKey = true
		}
	}
	if bearer && apiKey {
		return nil, ErrMixedCredentials
	}
	return Chain(authorizers), nil
}

// Run returns the final state, or the zero state and the rejecting error.
// A rejected request never carries partially built state.
func (ch Chain) Run(ctx context.Context, st auth.State, req Request) (auth.State, error) {
	final, _, err := ch.run(ctx, st, req)
	return final, err
}

// run additionally reports the last state reached before a rejection, for audit only.
func (ch Chain) run(ctx context.Context, st auth.State, req Request) (auth.State, auth.State, error) {
	for _, a := range ch {
		next, err := a.Authorize(ctx, st, req)
		if err != nil {
			return auth.State{}, st, err
		}
		st = next
	}
	return st, st, nil
}
