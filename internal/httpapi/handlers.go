package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tenant-auth/internal/apikey"
	"tenant-auth/internal/audit"
	"tenant-auth/internal/auth"
	"tenant-auth/internal/authz"
	"tenant-auth/internal/tenant"
	"tenant-auth/internal/user"
	"tenant-auth/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RefreshVerifier is the subset of auth.Validator used by the refresh endpoint.
type RefreshVerifier interface {
	VerifyRefreshToken(token string) (auth.RefreshClaims, error)
}

// KeyStore issues and revokes integration API keys. Satisfied by apikey.RedisList.
type KeyStore interface {
	Add(ctx context.Context, key string) error
	Revoke(ctx context.Context, key string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Codec     *auth.Codec
	Refresh   RefreshVerifier
	Users     user.Repository
	Tenants   authz.TenantResolver
	Audit     *audit.Service
	Keys      KeyStore
	Isolation bool
}

// --- Auth ---

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type accessTokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// RefreshAccessToken exchanges a refresh token for a new access token.
// The user and tenant are reloaded so role and tenant changes apply at refresh time.
func (h Handlers) RefreshAccessToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		authz.Abort(c, auth.NewError(auth.KindMissingCredential, "refreshToken required", err))
		return
	}

	claims, err := h.Refresh.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		authz.Abort(c, err)
		return
	}

	u, tc, err := h.loadSubject(c.Request.Context(), claims.UserID)
	if err != nil {
		authz.Abort(c, err)
		return
	}

	p := auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role, TenantID: u.TenantID}
	access, err := h.Codec.GenerateAccessToken(p, tc)
	if err != nil {
		authz.Abort(c, auth.NewError(auth.KindInternal, "token issuance failed", err))
		return
	}

	exp, _ := auth.GetExpiration(access)
	c.JSON(http.StatusOK, accessTokenResponse{AccessToken: access, ExpiresAt: exp})
}

type tokenInfoRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenInfo reports expiry details for display. The token is NOT verified and the
// response must never be used to make an authorization decision.
func (h Handlers) TokenInfo(c *gin.Context) {
	var req tokenInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, authz.Rejection{
			Status: http.StatusBadRequest, Kind: auth.KindMalformedCredential, Message: "token required",
		}.Body(time.Now()))
		return
	}

	claims := auth.DecodeUnverified(req.Token)
	if claims == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, authz.Rejection{
			Status: http.StatusBadRequest, Kind: auth.KindMalformedCredential, Message: "token is malformed",
		}.Body(time.Now()))
		return
	}

	resp := gin.H{
		"verified": false,
		"type":     claims.Type,
		"expired":  auth.IsExpired(req.Token),
	}
	if exp, ok := auth.GetExpiration(req.Token); ok {
		resp["expiresAt"] = exp
	}
	c.JSON(http.StatusOK, resp)
}

// --- Identity ---

type meResponse struct {
	Principal auth.Principal  `json:"principal"`
	Tenant    *tenant.Context `json:"tenant,omitempty"`
}

func (h Handlers) Me(c *gin.Context) {
	st := auth.StateFrom(c.Request.Context())
	p, ok := st.Principal()
	if !ok {
		authz.Abort(c, auth.NewError(auth.KindMissingCredential, "authentication required", nil))
		return
	}
	resp := meResponse{Principal: p}
	if tc, ok := st.Tenant(); ok {
		resp.Tenant = &tc
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) GetUser(c *gin.Context) {
	u, err := h.Users.FindByID(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.FromGin(c).Error("user lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// GetTenant returns the live tenant context. Routes must apply EnsureTenantIsolation first.
func (h Handlers) GetTenant(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenantId")
	principalTenant, _ := auth.TenantID(ctx)

	tc, err := h.Tenants.Resolve(ctx, principalTenant, tenantID)
	if err != nil {
		authz.Abort(c, authz.TenantError(ctx, tenantID, err))
		return
	}
	c.JSON(http.StatusOK, tc)
}

// --- Admin ---

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

// IssueUserTokens issues a token pair for an existing user. RBAC: admin.
func (h Handlers) IssueUserTokens(c *gin.Context) {
	ctx := c.Request.Context()
	u, tc, err := h.loadSubject(ctx, c.Param("userId"))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		authz.Abort(c, err)
		return
	}

	pair, err := h.Codec.IssuePair(auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role, TenantID: u.TenantID}, tc)
	if err != nil {
		authz.Abort(c, auth.NewError(auth.KindInternal, "token issuance failed", err))
		return
	}

	if h.Audit != nil {
		adminID, _ := auth.UserID(ctx)
		adminRole, _ := auth.Role(ctx)
		if err := h.Audit.LogTokenIssued(ctx, adminID, adminRole, u.ID, u.TenantID, c.ClientIP()); err != nil {
			logger.FromGin(c).Warn("audit token issuance failed", "err", err)
		}
	}

	c.JSON(http.StatusCreated, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		SessionID:    pair.SessionID,
	})
}

type apiKeyResponse struct {
	APIKey string `json:"apiKey"`
	Digest string `json:"digest"`
}

// CreateAPIKey issues a new integration key. The raw key is returned once and never stored. RBAC: admin.
func (h Handlers) CreateAPIKey(c *gin.Context) {
	if h.Keys == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "api key store not configured"})
		return
	}
	key := apikey.Generate()
	if err := h.Keys.Add(c.Request.Context(), key); err != nil {
		logger.FromGin(c).Error("api key add failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "api key could not be stored"})
		return
	}
	h.auditKeyChange(c, audit.EventTypeAPIKeyIssued)
	c.JSON(http.StatusCreated, apiKeyResponse{APIKey: key, Digest: apikey.Digest(key)})
}

type revokeAPIKeyRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

// RevokeAPIKey removes an integration key from the store. RBAC: admin.
func (h Handlers) RevokeAPIKey(c *gin.Context) {
	if h.Keys == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "api key store not configured"})
		return
	}
	var req revokeAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "apiKey required"})
		return
	}
	if err := h.Keys.Revoke(c.Request.Context(), req.APIKey); err != nil {
		if errors.Is(err, apikey.ErrUnknownKey) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "api key not found"})
			return
		}
		logger.FromGin(c).Error("api key revoke failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "api key could not be revoked"})
		return
	}
	h.auditKeyChange(c, audit.EventTypeAPIKeyRevoked)
	c.Status(http.StatusNoContent)
}

func (h Handlers) auditKeyChange(c *gin.Context, t audit.EventType) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	actorID, _ := auth.UserID(ctx)
	actorRole, _ := auth.Role(ctx)
	tenantID, _ := auth.TenantID(ctx)
	if err := h.Audit.LogAPIKeyChange(ctx, t, actorID, actorRole, tenantID, c.ClientIP()); err != nil {
		logger.FromGin(c).Warn("audit api key change failed", "err", err, "type", t)
	}
}

// --- Public / integrations ---

// Greeting personalizes its response when an optional bearer token verified.
func (h Handlers) Greeting(c *gin.Context) {
	if p, ok := auth.StateFrom(c.Request.Context()).Principal(); ok {
		c.JSON(http.StatusOK, gin.H{"message": "hello, " + p.Email, "authenticated": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "hello, guest", "authenticated": false})
}

func (h Handlers) IntegrationPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// loadSubject reads the user and, when isolation applies, the live tenant context for token issuance.
func (h Handlers) loadSubject(ctx context.Context, userID string) (user.User, *tenant.Context, error) {
	u, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, nil, auth.NewError(auth.KindInvalidSignatureOrClaims, "user no longer exists", err)
		}
		return user.User{}, nil, auth.NewError(auth.KindInternal, "user lookup failed", err)
	}
	if !u.IsActive {
		return user.User{}, nil, auth.NewError(auth.KindInvalidSignatureOrClaims, "user is not active", nil)
	}

	if !h.Isolation || u.TenantID == "" {
		return u, nil, nil
	}
	tc, err := h.Tenants.Resolve(ctx, u.TenantID, u.TenantID)
	if err != nil {
		return user.User{}, nil, authz.TenantError(ctx, u.TenantID, err)
	}
	return u, &tc, nil
}
