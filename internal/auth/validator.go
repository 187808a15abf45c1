package auth

import (
	"errors"
	"strings"
	"time"

	"tenant-auth/internal/config"
	"tenant-auth/internal/tenant"

	"github.com/golang-jwt/jwt/v5"
)

const bearerScheme = "Bearer"

// Validator verifies presented tokens. It is stateless and safe for concurrent use.
type Validator struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	now           func() time.Time
}

func NewValidator(cfg config.AuthConfig) (*Validator, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token issuer and audience are required")
	}

	return &Validator{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the validator that evaluates exp and iat against now.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	cp := *v
	cp.now = now
	return &cp
}

/* ===================== VERIFY TOKENS ===================== */

// VerifyAccessToken checks signature, iss, aud, exp and type, then rejects tokens whose
// embedded tenant is not active. Failures are *Error values.
func (v *Validator) VerifyAccessToken(token string) (AccessClaims, error) {
	if strings.TrimSpace(token) == "" {
		return AccessClaims{}, NewError(KindMissingCredential, "access token required", nil)
	}

	var claims AccessClaims
	if _, err := v.parser().ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.accessSecret, nil
	}); err != nil {
		return AccessClaims{}, classify(err)
	}

	if claims.Type != TokenTypeAccess {
		return AccessClaims{}, NewError(KindWrongTokenType, "access token required", nil)
	}
	if claims.Tenant != nil && claims.Tenant.Status != tenant.StatusActive {
		return AccessClaims{}, NewError(KindTenantInactive, "tenant is not active", nil)
	}
	if claims.UserID == "" || claims.Role == "" {
		return AccessClaims{}, NewError(KindInvalidSignatureOrClaims, "token is missing identity claims", nil)
	}
	if claims.Tenant != nil {
		if claims.Tenant.ID == "" {
			return AccessClaims{}, NewError(KindInvalidSignatureOrClaims, "tenant claim is missing id", nil)
		}
		if claims.TenantID != "" && claims.TenantID != claims.Tenant.ID {
			return AccessClaims{}, NewError(KindInvalidSignatureOrClaims, "tenant claims disagree", nil)
		}
	}

	return claims, nil
}

// VerifyRefreshToken checks a refresh token against the refresh secret.
func (v *Validator) VerifyRefreshToken(token string) (RefreshClaims, error) {
	if strings.TrimSpace(token) == "" {
		return RefreshClaims{}, NewError(KindMissingCredential, "refresh token required", nil)
	}

	var claims RefreshClaims
	if _, err := v.parser().ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.refreshSecret, nil
	}); err != nil {
		return RefreshClaims{}, classify(err)
	}

	if claims.Type != TokenTypeRefresh {
		return RefreshClaims{}, NewError(KindWrongTokenType, "refresh token required", nil)
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return RefreshClaims{}, NewError(KindInvalidSignatureOrClaims, "token is missing session claims", nil)
	}
	return claims, nil
}

// ExtractBearerToken returns the token from an "Authorization: Bearer <token>" header value.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", NewError(KindMalformedCredential, "authorization header required", nil)
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return "", NewError(KindMalformedCredential, "authorization header must be 'Bearer <token>'", nil)
	}
	if parts[0] != bearerScheme {
		return "", NewError(KindMalformedCredential, "authorization scheme must be Bearer", nil)
	}
	if parts[1] == "" {
		return "", NewError(KindMalformedCredential, "bearer token is empty", nil)
	}
	return parts[1], nil
}

func (v *Validator) parser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
}

// classify maps jwt parse failures onto the error taxonomy. Signature is checked before claims,
// so an expired token signed with the wrong secret reports an invalid signature.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return NewError(KindMalformedCredential, "token is malformed", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return NewError(KindExpired, "token has expired", err)
	default:
		return NewError(KindInvalidSignatureOrClaims, "token signature or claims are invalid", err)
	}
}
