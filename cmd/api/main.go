package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenant-auth/internal/apikey"
	"tenant-auth/internal/audit"
	"tenant-auth/internal/auth"
	"tenant-auth/internal/authz"
	"tenant-auth/internal/config"
	"tenant-auth/internal/httpapi"
	"tenant-auth/internal/schema"
	"tenant-auth/internal/tenant"
	"tenant-auth/internal/user"
	"tenant-auth/pkg/logger"
	"tenant-auth/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	codec, err := auth.NewCodec(cfg.Auth, cfg.Tenancy)
	if err != nil {
		log.Error("token codec init failed", "err", err)
		os.Exit(1)
	}
	validator, err := auth.NewValidator(cfg.Auth)
	if err != nil {
		log.Error("token validator init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := schema.Apply(rootCtx, db); err != nil {
		log.Error("schema apply failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	resolver := tenant.NewResolver(tenant.NewPostgresRepo(db), cfg.Tenancy.LookupTimeout)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	keys := apikey.Any{apikey.NewStaticList(cfg.APIKeys.Keys...)}
	var keyStore httpapi.KeyStore
	if cfg.APIKeys.RedisSet != "" {
		redisKeys := apikey.NewRedisList(rdb, cfg.APIKeys.RedisSet)
		keys = append(keys, redisKeys)
		keyStore = redisKeys
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, principalAttrs))

	httpapi.Register(r, httpapi.Deps{
		Handlers: httpapi.Handlers{
			Codec:     codec,
			Refresh:   validator,
			Users:     user.NewPostgresRepo(db),
			Tenants:   resolver,
			Audit:     auditSvc,
			Keys:      keyStore,
			Isolation: cfg.Tenancy.IsolationEnabled(),
		},
		Authenticator: authz.NewAuthenticator(validator, resolver, cfg.Tenancy.IsolationEnabled()),
		APIKeys:       keys,
		Audit:         auditSvc,
		Checks: map[string]func(context.Context) error{
			"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
			"redis":    func(ctx context.Context) error { return utils.PingRedis(ctx, rdb, time.Second) },
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "tenant_isolation", cfg.Tenancy.IsolationEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// principalAttrs adds the verified caller to the access log line.
func principalAttrs(c *gin.Context) []any {
	st := auth.StateFrom(c.Request.Context())
	p, ok := st.Principal()
	if !ok {
		return nil
	}
	attrs := []any{"user_id", p.ID, "role", p.Role}
	if tc, ok := st.Tenant(); ok {
		attrs = append(attrs, "tenant_id", tc.ID, "auth_phase", st.Phase().String())
	}
	return attrs
}
