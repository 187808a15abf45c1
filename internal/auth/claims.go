package auth

import (
	"tenant-auth/internal/tenant"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TenantClaim is the tenant block embedded in access tokens when isolation is enabled.
// Only ID and Status are trusted at verification; everything else is re-read from the repository.
type TenantClaim struct {
	ID       string        `json:"id"`
	Slug     string        `json:"slug"`
	Plan     tenant.Plan   `json:"plan"`
	Features []string      `json:"features"`
	Limits   tenant.Limits `json:"limits"`
	Status   tenant.Status `json:"status"`
}

func newTenantClaim(tc tenant.Context) *TenantClaim {
	status := tc.Status
	if status == "" {
		status = tenant.StatusActive
	}
	features := make([]string, len(tc.Features))
	copy(features, tc.Features)
	return &TenantClaim{
		ID:       tc.ID,
		Slug:     tc.Slug,
		Plan:     tc.Plan,
		Features: features,
		Limits:   tc.Limits.WithDefaults(),
		Status:   status,
	}
}

// AccessClaims is the payload of an access token.
// Tenant is omitted entirely (not null) when no tenant context applies.
type AccessClaims struct {
	jwt.RegisteredClaims

	UserID   string       `json:"userId"`
	Email    string       `json:"email"`
	Role     string       `json:"role"`
	TenantID string       `json:"tenantId,omitempty"`
	Type     TokenType    `json:"type"`
	Tenant   *TenantClaim `json:"tenant,omitempty"`
}

func (c AccessClaims) Principal() Principal {
	return Principal{
		ID:       c.UserID,
		Email:    c.Email,
		Role:     c.Role,
		TenantID: c.TenantID,
	}
}

// RefreshClaims is the payload of a refresh token. It never carries tenant data.
type RefreshClaims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	Type      TokenType `json:"type"`
}

// Principal is the verified identity attached to a request.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId,omitempty"`
}
