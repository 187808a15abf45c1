package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tenant-auth/internal/apikey"
	"tenant-auth/internal/auth"
	"tenant-auth/internal/config"
	"tenant-auth/internal/tenant"

	"github.com/gin-gonic/gin"
)

type fixture struct {
	codec *auth.Codec
	repo  *tenant.MemoryRepo
	authn *Authenticator
}

func testConfigs() (config.AuthConfig, config.TenancyConfig) {
	return config.AuthConfig{
			AccessSecret:    "access-secret",
			RefreshSecret:   "refresh-secret",
			Issuer:          "tenant-auth",
			Audience:        "tenant-auth-api",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		}, config.TenancyConfig{
			TenantIsolationEnabled: true,
		}
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg, tenancy := testConfigs()
	codec, err := auth.NewCodec(cfg, tenancy)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	validator, err := auth.NewValidator(cfg)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	repo := tenant.NewMemoryRepo(
		tenant.Tenant{ID: "t1", Slug: "acme", Plan: tenant.PlanEnterprise, IsActive: true, MaxUsers: 100},
		tenant.Tenant{ID: "t2", Slug: "globex", Plan: tenant.PlanFree, IsActive: true},
	)
	return fixture{
		codec: codec,
		repo:  repo,
		authn: NewAuthenticator(validator, tenant.NewResolver(repo, time.Second), tenancy.IsolationEnabled()),
	}
}

func (f fixture) token(t *testing.T, p auth.Principal, tc *tenant.Context) string {
	t.Helper()
	tok, err := f.codec.GenerateAccessToken(p, tc)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return tok
}

type meResponse struct {
	Phase     string          `json:"phase"`
	Principal *auth.Principal `json:"principal"`
	Tenant    *tenant.Context `json:"tenant"`
}

func echoState(c *gin.Context) {
	st := auth.StateFrom(c.Request.Context())
	resp := meResponse{Phase: st.Phase().String()}
	if p, ok := st.Principal(); ok {
		resp.Principal = &p
	}
	if tc, ok := st.Tenant(); ok {
		resp.Tenant = &tc
	}
	c.JSON(http.StatusOK, resp)
}

func do(r http.Handler, method, path, bearer string, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeRejection(t *testing.T, w *httptest.ResponseRecorder) Body {
	t.Helper()
	var b Body
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode rejection: %v (%s)", err, w.Body.String())
	}
	if b.Error == "" || b.Message == "" {
		t.Fatalf("incomplete rejection body: %+v", b)
	}
	if _, err := time.Parse(time.RFC3339, b.Timestamp); err != nil {
		t.Fatalf("timestamp not ISO-8601: %q", b.Timestamp)
	}
	return b
}

func TestGuard_AuthenticateResolvesLiveTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.GET("/me", Guard(f.authn.Authenticate()), echoState)

	// The token claims the starter plan; the repository says enterprise and wins.
	tok := f.token(t, auth.Principal{ID: "u1", Email: "u1@acme.test", Role: "user", TenantID: "t1"},
		&tenant.Context{ID: "t1", Slug: "acme", Plan: tenant.PlanStarter})

	w := do(r, http.MethodGet, "/me", tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp meResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Phase != "tenant_scoped" || resp.Principal == nil || resp.Principal.ID != "u1" {
		t.Fatalf("unexpected state: %+v", resp)
	}
	if resp.Tenant == nil || resp.Tenant.Plan != tenant.PlanEnterprise || resp.Tenant.Limits.MaxUsers != 100 {
		t.Fatalf("expected live tenant context, got %+v", resp.Tenant)
	}
}

func TestGuard_AuthenticateWithoutTenantClaim(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.GET("/me", Guard(f.authn.Authenticate()), echoState)

	w := do(r, http.MethodGet, "/me", f.token(t, auth.Principal{ID: "u1", Role: "user"}, nil), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"phase":"authenticated"`) {
		t.Fatalf("expected authenticated without tenant, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGuard_AuthenticateRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	reached := false
	r.GET("/me", Guard(f.authn.Authenticate()), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	expired, err := f.codec.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).
		GenerateAccessToken(auth.Principal{ID: "u1", Role: "user"}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	suspended := f.token(t, auth.Principal{ID: "u1", Role: "user"}, &tenant.Context{ID: "t1", Status: tenant.StatusSuspended})
	unknownTenant := f.token(t, auth.Principal{ID: "u1", Role: "user"}, &tenant.Context{ID: "t404"})

	f.repo.Put(tenant.Tenant{ID: "t3", Slug: "initech", IsActive: false})
	deactivated := f.token(t, auth.Principal{ID: "u1", Role: "user"}, &tenant.Context{ID: "t3"})

	cases := []struct {
		name   string
		header string
		want   auth.Kind
	}{
		{"missing", "", auth.KindMalformedCredential},
		{"empty bearer", "Bearer ", auth.KindMalformedCredential},
		{"basic scheme", "Basic dXNlcjpwYXNz", auth.KindMalformedCredential},
		{"garbage", "Bearer nope", auth.KindMalformedCredential},
		{"expired", "Bearer " + expired, auth.KindExpired},
		{"suspended claim", "Bearer " + suspended, auth.KindTenantInactive},
		{"unknown tenant", "Bearer " + unknownTenant, auth.KindTenantNotFound},
		{"deactivated tenant", "Bearer " + deactivated, auth.KindTenantInactive},
	}
	for _, tc := range cases {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.name, w.Code)
		}
		if b := decodeRejection(t, w); b.Error != string(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, b.Error)
		}
		if reached {
			t.Fatalf("%s: handler must not run after rejection", tc.name)
		}
	}
}

type stubResolver struct{ err error }

func (s stubResolver) Resolve(context.Context, string, string) (tenant.Context, error) {
	return tenant.Context{}, s.err
}

func TestGuard_ResolverFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	cfg, _ := testConfigs()
	validator, err := auth.NewValidator(cfg)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	tok := f.token(t, auth.Principal{ID: "u1", Role: "user"}, &tenant.Context{ID: "t1"})

	cases := []struct {
		err    error
		status int
		kind   auth.Kind
	}{
		{tenant.ErrMismatch, http.StatusForbidden, auth.KindTenantMismatch},
		{errors.New("connection refused"), http.StatusInternalServerError, auth.KindTenantResolutionFailed},
		{fmt.Errorf("resolve: %w", context.DeadlineExceeded), http.StatusInternalServerError, auth.KindTenantResolutionFailed},
	}
	for _, tc := range cases {
		authn := NewAuthenticator(validator, stubResolver{err: tc.err}, true)
		r := gin.New()
		r.GET("/me", Guard(authn.Authenticate()), echoState)

		w := do(r, http.MethodGet, "/me", tok, "")
		if w.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		if b := decodeRejection(t, w); b.Error != string(tc.kind) {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.kind, b.Error)
		}
		if strings.Contains(w.Body.String(), "connection refused") {
			t.Fatalf("internal error details leaked: %s", w.Body.String())
		}
	}
}

func TestGuard_IsolationDisabledSkipsResolver(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	cfg, _ := testConfigs()
	validator, err := auth.NewValidator(cfg)
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	authn := NewAuthenticator(validator, stubResolver{err: errors.New("must not be called")}, false)

	r := gin.New()
	r.GET("/me", Guard(authn.Authenticate()), echoState)

	w := do(r, http.MethodGet, "/me", f.token(t, auth.Principal{ID: "u1", Role: "user"}, &tenant.Context{ID: "t1"}), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"phase":"authenticated"`) {
		t.Fatalf("expected authenticated without resolution, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGuard_OptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.GET("/greeting", Guard(f.authn.OptionalAuth()), echoState)

	expired, err := f.codec.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).
		GenerateAccessToken(auth.Principal{ID: "u1", Role: "user"}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	for name, bearer := range map[string]string{"expired": expired, "garbage": "x.y.z", "none": ""} {
		w := do(r, http.MethodGet, "/greeting", bearer, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected handler reached, got %d", name, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"phase":"unauthenticated"`) || !strings.Contains(w.Body.String(), `"principal":null`) {
			t.Fatalf("%s: expected no principal, got %s", name, w.Body.String())
		}
	}

	w := do(r, http.MethodGet, "/greeting", f.token(t, auth.Principal{ID: "u1", Role: "user"}, nil), "")
	if !strings.Contains(w.Body.String(), `"id":"u1"`) {
		t.Fatalf("expected principal for valid token, got %s", w.Body.String())
	}
}

func TestGuard_OwnershipAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.GET("/users/:userId", Guard(f.authn.Authenticate(), RequireOwnership("userId")), echoState)
	r.GET("/admin", Guard(f.authn.Authenticate(), RequireAdmin()), echoState)

	u1 := f.token(t, auth.Principal{ID: "u1", Role: "user"}, nil)
	u2 := f.token(t, auth.Principal{ID: "u2", Role: "user"}, nil)
	admin := f.token(t, auth.Principal{ID: "a1", Role: "admin"}, nil)

	checks := []struct {
		path, tok string
		want      int
	}{
		{"/users/u1", u1, http.StatusOK},
		{"/users/u1", u2, http.StatusForbidden},
		{"/users/u1", admin, http.StatusOK},
		{"/users/u1", "", http.StatusUnauthorized},
		{"/admin", u1, http.StatusForbidden},
		{"/admin", admin, http.StatusOK},
	}
	for _, c := range checks {
		if w := do(r, http.MethodGet, c.path, c.tok, ""); w.Code != c.want {
			t.Fatalf("%s: expected %d, got %d", c.path, c.want, w.Code)
		}
	}
}

func TestGuard_TenantIsolationReadsBodyAndRestoresIt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.POST("/tenants/:tenantId/projects", Guard(f.authn.Authenticate(), EnsureTenantIsolation()), func(c *gin.Context) {
		var body struct {
			TenantID string `json:"tenantId"`
			Name     string `json:"name"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusCreated, body)
	})

	tok := f.token(t, auth.Principal{ID: "u1", Role: "user", TenantID: "t1"}, &tenant.Context{ID: "t1"})

	w := do(r, http.MethodPost, "/tenants/t1/projects", tok, `{"tenantId":"t1","name":"p"}`)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"name":"p"`) {
		t.Fatalf("expected handler to re-read body, got %d: %s", w.Code, w.Body.String())
	}

	cases := map[string]string{
		"/tenants/t2/projects":             `{"name":"p"}`,
		"/tenants/t1/projects":             `{"tenantId":"t2"}`,
		"/tenants/t1/projects?tenantId=t2": `{"name":"p"}`,
		"/tenants/t1/projects?tenantId=t1": `{"tenantId":7}`,
	}
	for path, body := range cases {
		w := do(r, http.MethodPost, path, tok, body)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", path, body, w.Code)
		}
		if b := decodeRejection(t, w); b.Error != string(auth.KindTenantMismatch) {
			t.Fatalf("expected TenantMismatch, got %s", b.Error)
		}
	}
}

func TestGuard_TenantIsolationIgnoresContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	var bound string
	r := gin.New()
	r.POST("/projects", Guard(f.authn.Authenticate(), EnsureTenantIsolation()), func(c *gin.Context) {
		var body struct {
			TenantID string `json:"tenantId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		bound = body.TenantID
		c.Status(http.StatusCreated)
	})

	tok := f.token(t, auth.Principal{ID: "u1", Role: "user", TenantID: "t1"}, &tenant.Context{ID: "t1"})
	send := func(contentType, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/projects", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for _, ct := range []string{"application/json", "text/plain", "application/x-www-form-urlencoded", ""} {
		w := send(ct, `{"tenantId":"t2"}`)
		if w.Code != http.StatusForbidden {
			t.Fatalf("content-type %q: expected 403, got %d (handler saw %q)", ct, w.Code, bound)
		}
		if b := decodeRejection(t, w); b.Error != string(auth.KindTenantMismatch) {
			t.Fatalf("content-type %q: expected TenantMismatch, got %s", ct, b.Error)
		}
	}

	if w := send("text/plain", `{"tenantId":"t1"}`); w.Code != http.StatusCreated || bound != "t1" {
		t.Fatalf("expected same-tenant body to reach handler, got %d bound=%q", w.Code, bound)
	}
	if w := send("text/plain", "not json"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected non-json body to pass the guard and fail binding, got %d", w.Code)
	}
}

func TestGuard_RejectsOversizedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.POST("/projects", Guard(f.authn.Authenticate(), EnsureTenantIsolation()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	tok := f.token(t, auth.Principal{ID: "u1", Role: "user", TenantID: "t1"}, &tenant.Context{ID: "t1"})
	body := `{"name":"` + strings.Repeat("a", MaxInspectedBody) + `","tenantId":"t2"}`

	w := do(r, http.MethodPost, "/projects", tok, body)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if b := decodeRejection(t, w); b.Error != string(auth.KindBodyTooLarge) {
		t.Fatalf("expected BodyTooLarge, got %s", b.Error)
	}
}

func TestGuard_APIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/integrations/ping", Guard(ValidateAPIKey(apikey.NewStaticList("k1"))), echoState)

	for key, want := range map[string]int{"k1": http.StatusOK, "k2": http.StatusUnauthorized, "": http.StatusUnauthorized} {
		req := httptest.NewRequest(http.MethodGet, "/integrations/ping", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("key %q: expected %d, got %d", key, want, w.Code)
		}
	}
}

func TestGuard_PanicsOnMixedCredentials(t *testing.T) {
	f := newFixture(t)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Guard(f.authn.Authenticate(), ValidateAPIKey(apikey.NewStaticList("k")))
}

func TestGuard_ConcurrentRequestsStayIndependent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	r := gin.New()
	r.GET("/me", Guard(f.authn.Authenticate()), echoState)

	tokens := map[string]string{
		"u1": f.token(t, auth.Principal{ID: "u1", Role: "user", TenantID: "t1"}, &tenant.Context{ID: "t1"}),
		"u2": f.token(t, auth.Principal{ID: "u2", Role: "admin", TenantID: "t2"}, &tenant.Context{ID: "t2"}),
	}

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 50; i++ {
		for id, tok := range tokens {
			wg.Add(1)
			go func(id, tok string) {
				defer wg.Done()
				w := do(r, http.MethodGet, "/me", tok, "")
				var resp meResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					errs <- err
					return
				}
				if resp.Principal == nil || resp.Principal.ID != id || resp.Tenant == nil || resp.Tenant.ID != resp.Principal.TenantID {
					errs <- fmt.Errorf("cross-contaminated state for %s: %+v", id, resp)
				}
			}(id, tok)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
