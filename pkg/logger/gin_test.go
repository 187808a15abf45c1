package logger

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddleware_AssignsRequestIDAndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Middleware(l, func(c *gin.Context) []any { return []any{"tenant_id", "t1"} }))
	r.GET("/x", func(c *gin.Context) {
		if FromGin(c) == slog.Default() {
			t.Errorf("expected request logger on gin context")
		}
		if From(c.Request.Context()) == slog.Default() {
			t.Errorf("expected request logger on request context")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("expected request id header")
	}
	out := buf.String()
	for _, want := range []string{`"status":204`, `"path":"/x"`, `"tenant_id":"t1"`, `"level":"INFO"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output: %s", want, out)
		}
	}
}

func TestMiddleware_LevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewJSONHandler(&buf, nil))))
	r.GET("/denied", func(c *gin.Context) { c.Status(http.StatusForbidden) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/denied", nil))
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("expected warn level for 403: %s", buf.String())
	}
}

func TestMiddleware_RequestIDHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	const incoming = "6f1c2f4e-3b7a-4d8e-9c0a-1b2c3d4e5f60"
	for _, tc := range []struct {
		name string
		in   string
		keep bool
	}{
		{"uuid kept", incoming, true},
		{"non-uuid replaced", "rid-1\ninjected", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(HeaderRequestID, tc.in)
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if tc.keep && got != tc.in {
				t.Fatalf("expected %q kept, got %q", tc.in, got)
			}
			if !tc.keep && (got == tc.in || got == "") {
				t.Fatalf("expected generated id, got %q", got)
			}
		})
	}
}

func TestNew_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "production", "")
	l.Info("issued", "refresh_token", "eyJhbGciOi", "user_id", "u1")

	out := buf.String()
	if strings.Contains(out, "eyJhbGciOi") || !strings.Contains(out, redacted) {
		t.Fatalf("expected token redacted: %s", out)
	}
	if !strings.Contains(out, `"user_id":"u1"`) || !strings.Contains(out, `"service":"tenant-auth"`) {
		t.Fatalf("expected regular attrs kept: %s", out)
	}
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		env, level string
		want       slog.Level
	}{
		{"local", "", slog.LevelDebug},
		{"production", "", slog.LevelInfo},
		{"production", "debug", slog.LevelDebug},
		{"dev", "warn", slog.LevelWarn},
		{"dev", "loud", slog.LevelDebug},
	}
	for _, tc := range cases {
		if got := levelFor(tc.env, tc.level); got != tc.want {
			t.Fatalf("levelFor(%q, %q) = %v, want %v", tc.env, tc.level, got, tc.want)
		}
	}
}
