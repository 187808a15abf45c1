package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UnverifiedClaims is a best-effort view of a token payload whose signature has NOT been checked.
// Never use it for an authorization decision; it exists for expiry display and cheap pre-checks.
type UnverifiedClaims struct {
	jwt.RegisteredClaims

	Type      TokenType    `json:"type"`
	UserID    string       `json:"userId"`
	Email     string       `json:"email,omitempty"`
	Role      string       `json:"role,omitempty"`
	TenantID  string       `json:"tenantId,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Tenant    *TenantClaim `json:"tenant,omitempty"`
}

// DecodeUnverified parses token without verifying its signature. It returns nil for any malformed input.
func DecodeUnverified(token string) (claims *UnverifiedClaims) {
	defer func() {
		if recover() != nil {
			claims = nil
		}
	}()

	var c UnverifiedClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil
	}
	return &c
}

// GetExpiration reports the unverified exp claim of token.
func GetExpiration(token string) (time.Time, bool) {
	c := DecodeUnverified(token)
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

// IsExpired reports whether token is past its unverified exp. Tokens without a readable exp count as expired.
func IsExpired(token string) bool {
	exp, ok := GetExpiration(token)
	if !ok {
		return true
	}
	return !time.Now().Before(exp)
}
