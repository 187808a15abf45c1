package httpapi

import (
	"context"
	"net/http"
	"time"

	"tenant-auth/internal/apikey"
	"tenant-auth/internal/audit"
	"tenant-auth/internal/authz"

	"github.com/gin-gonic/gin"
)

// Deps are the process-lifetime collaborators the routes need. Built once in main and passed in.
type Deps struct {
	Handlers      Handlers
	Authenticator *authz.Authenticator
	APIKeys       apikey.AllowList
	Audit         *audit.Service

	// Checks back /healthz, keyed by dependency name.
	Checks map[string]func(context.Context) error
}

// Register wires HTTP routes to handlers.
// Keep this free of business logic; each route declares its authorization chain explicitly.
func Register(r *gin.Engine, d Deps) {
	r.GET("/healthz", health(d.Checks))

	h := d.Handlers
	authn := d.Authenticator.Authenticate()

	v1 := r.Group("/v1")
	if d.Audit != nil {
		v1.Use(audit.Recorder(d.Audit, time.Second))
	}

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/refresh", h.RefreshAccessToken)
		authGroup.POST("/token-info", h.TokenInfo)
	}

	v1.GET("/me", authz.Guard(authn), h.Me)
	v1.GET("/users/:userId", authz.Guard(authn, authz.RequireOwnership("userId")), h.GetUser)
	v1.GET("/tenants/:tenantId", authz.Guard(authn, authz.EnsureTenantIsolation()), h.GetTenant)

	admin := v1.Group("/admin")
	admin.Use(authz.Guard(authn, authz.RequireAdmin()))
	{
		admin.POST("/users/:userId/tokens", h.IssueUserTokens)
		admin.POST("/api-keys", h.CreateAPIKey)
		admin.DELETE("/api-keys", h.RevokeAPIKey)
	}

	v1.GET("/public/greeting", authz.Guard(d.Authenticator.OptionalAuth()), h.Greeting)
	v1.GET("/integrations/ping", authz.Guard(authz.ValidateAPIKey(d.APIKeys)), h.IntegrationPing)
}

func health(checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = "down"
				continue
			}
			results[name] = "ok"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
