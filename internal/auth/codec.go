package auth

import (
	"errors"
	"fmt"
	"time"

	"tenant-auth/internal/config"
	"tenant-auth/internal/tenant"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Codec builds and signs access and refresh tokens.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	isolation     bool
	now           func() time.Time
}

func NewCodec(cfg config.AuthConfig, tenancy config.TenancyConfig) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token issuer and audience are required")
	}

	return &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		isolation:     tenancy.IsolationEnabled(),
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the codec that stamps tokens using now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

/* ===================== ISSUE TOKENS ===================== */

// GenerateAccessToken signs an access token for p.
// The tenant block is embedded only when isolation is enabled and tc is non-nil.
func (c *Codec) GenerateAccessToken(p Principal, tc *tenant.Context) (string, error) {
	if p.ID == "" || p.Role == "" {
		return "", errors.New("principal id and role are required")
	}

	now := c.now()
	claims := AccessClaims{
		RegisteredClaims: c.registered(now, c.accessTTL),
		UserID:           p.ID,
		Email:            p.Email,
		Role:             p.Role,
		TenantID:         p.TenantID,
		Type:             TokenTypeAccess,
	}

	if c.isolation && tc != nil {
		if p.TenantID != "" && p.TenantID != tc.ID {
			return "", fmt.Errorf("principal tenant %q does not match tenant context %q", p.TenantID, tc.ID)
		}
		claims.Tenant = newTenantClaim(*tc)
		claims.TenantID = tc.ID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// GenerateRefreshToken signs a refresh token with the refresh secret and TTL.
func (c *Codec) GenerateRefreshToken(userID, sessionID string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("user id and session id are required")
	}

	claims := RefreshClaims{
		RegisteredClaims: c.registered(c.now(), c.refreshTTL),
		UserID:           userID,
		SessionID:        sessionID,
		Type:             TokenTypeRefresh,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("signing refresh token: %w", err)
	}
	return signed, nil
}

// IssuePair issues an access token and a refresh token bound to a new session id.
func (c *Codec) IssuePair(p Principal, tc *tenant.Context) (TokenPair, error) {
	access, err := c.GenerateAccessToken(p, tc)
	if err != nil {
		return TokenPair{}, err
	}

	sessionID := uuid.NewString()
	refresh, err := c.GenerateRefreshToken(p.ID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
	}, nil
}

func (c *Codec) registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings{c.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}
