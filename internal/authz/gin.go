package authz

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tenant-auth/internal/audit"
	"tenant-auth/internal/auth"
	"tenant-auth/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const (
	headerAuthorization = "Authorization"
	headerAPIKey        = "X-API-Key"
)

// MaxInspectedBody caps how much of a request body guarded routes read while looking for tenantId.
const MaxInspectedBody = 1 << 20

// Guard adapts a chain to a Gin middleware. On success the resulting state is stored in the request context
// (read it with auth.StateFrom); on rejection the request is aborted with the JSON rejection body.
// It panics when the composition is invalid, like Gin does for conflicting routes.
func Guard(authorizers ...Authorizer) gin.HandlerFunc {
	chain, err := NewChain(authorizers...)
	if err != nil {
		panic(err)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		req, err := RequestFromGin(c)
		if err != nil {
			reject(c, auth.StateFrom(ctx), err)
			return
		}

		st, reached, err := chain.run(ctx, auth.StateFrom(ctx), req)
		if err != nil {
			reject(c, reached, err)
			return
		}

		c.Request = c.Request.WithContext(auth.WithState(ctx, st))
		c.Next()
	}
}

// Abort writes the rejection for err using the state already attached to the request.
// Handlers use it so every failure shares the same wire format and audit trail.
func Abort(c *gin.Context, err error) {
	reject(c, auth.StateFrom(c.Request.Context()), err)
}

func reject(c *gin.Context, reached auth.State, err error) {
	rej := RejectionFrom(err)
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}

	a := audit.Annotation{Kind: string(rej.Kind)}
	if p, ok := reached.Principal(); ok {
		a.ActorUserID = p.ID
		a.ActorRole = p.Role
		a.TenantID = p.TenantID
	}
	audit.Annotate(c, a)

	logger.FromGin(c).Warn("request rejected",
		"kind", rej.Kind,
		"status", rej.Status,
		"method", c.Request.Method,
		"path", path,
		"err", err,
	)
	c.AbortWithStatusJSON(rej.Status, rej.Body(time.Now()))
}

// RequestFromGin collects the metadata predicates inspect. A non-empty body is read for a top-level
// tenantId whatever its Content-Type, since handlers bind JSON regardless of the header. The body is
// then restored so handlers can bind it again.
func RequestFromGin(c *gin.Context) (Request, error) {
	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}

	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}

	bodyTenant, err := bodyTenantID(c)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Method:        c.Request.Method,
		Path:          path,
		Authorization: c.GetHeader(headerAuthorization),
		APIKey:        c.GetHeader(headerAPIKey),
		Params:        params,
		Query:         c.Request.URL.Query(),
		BodyTenantID:  bodyTenant,
	}, nil
}

func bodyTenantID(c *gin.Context) (string, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return "", nil
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxInspectedBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", auth.NewError(auth.KindBodyTooLarge, fmt.Sprintf("request body exceeds %d bytes", MaxInspectedBody), err)
		}
		return "", auth.NewError(auth.KindInternal, "request body could not be read", err)
	}
	c.Set(gin.BodyBytesKey, raw)
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var body struct {
		TenantID any `json:"tenantId"`
	}
	if len(raw) == 0 || binding.JSON.BindBody(raw, &body) != nil {
		return "", nil
	}

	// Non-string ids still count, so {"tenantId": 7} cannot slip past the isolation check.
	switch v := body.TenantID.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}
