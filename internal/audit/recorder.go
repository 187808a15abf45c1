package audit

import (
	"context"
	"net/http"
	"time"

	"tenant-auth/pkg/logger"

	"github.com/gin-gonic/gin"
)

const annotationKey = "audit.annotation"

// Annotation is what the authorization layer tells the recorder about a rejected request.
// It is kept on a private gin key so handlers never read it as auth state.
type Annotation struct {
	Kind        string
	ActorUserID string
	ActorRole   string
	TenantID    string
}

func Annotate(c *gin.Context, a Annotation) {
	c.Set(annotationKey, a)
}

func annotationFrom(c *gin.Context) (Annotation, bool) {
	v, ok := c.Get(annotationKey)
	if !ok {
		return Annotation{}, false
	}
	a, ok := v.(Annotation)
	return a, ok
}

// Recorder returns a Gin middleware that appends an audit event for every request finishing with status >= 400.
func Recorder(svc *Service, timeout time.Duration) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = time.Second
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		e := Event{
			Type:       EventTypeRequestFailed,
			Method:     c.Request.Method,
			Path:       path,
			Status:     status,
			DurationMS: float64(time.Since(start).Microseconds()) / 1000,
			IPAddress:  c.ClientIP(),
			RequestID:  c.Writer.Header().Get(logger.HeaderRequestID),
		}
		if a, ok := annotationFrom(c); ok {
			e.Type = EventTypeAuthRejected
			e.Kind = a.Kind
			e.ActorUserID = a.ActorUserID
			e.ActorRole = a.ActorRole
			e.TenantID = a.TenantID
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), timeout)
		defer cancel()
		if err := svc.Append(ctx, e); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err, "status", status)
		}
	}
}
