package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kylevidrine/portal/handlers"
	"github.com/kylevidrine/portal/internal/audit"
	"github.com/kylevidrine/portal/internal/bootstrap"
	"github.com/kylevidrine/portal/internal/config"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/flow"
	"github.com/kylevidrine/portal/internal/oidc"
	"github.com/kylevidrine/portal/internal/providers"
	"github.com/kylevidrine/portal/internal/sessions"
	"github.com/kylevidrine/portal/internal/storage"
	"github.com/kylevidrine/portal/internal/tokens"
	"github.com/kylevidrine/portal/internal/validator"
	"github.com/kylevidrine/portal/pkg/logger"
	"github.com/kylevidrine/portal/pkg/metrics"
	"github.com/kylevidrine/portal/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: store=%s redis=%v minio=%v api_keys=%d", cfg.Store.Driver, cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", len(cfg.API.Keys))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenCustomerStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("customer store: %v", err)
	}
	defer func() { _ = store.Close() }()
	customerSvc := customers.NewService(store.Repo)

	// Redis holds sessions and the optional distributed rate limiter
	var redisClient *redis.Client
	var sessionRepo sessions.Repository = sessions.NewMemoryRepository()
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
		}
		defer func() { _ = redisClient.Close() }()
		sessionRepo = sessions.NewRedisRepository(redisClient, "")
		logger.Infof("Using Redis for session storage: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
	} else {
		logger.Warnf("REDIS_HOST not set; sessions are kept in process memory")
	}
	sessionSvc := sessions.NewService(sessionRepo, cfg.Session.TTL)
	binder := sessions.NewBinder(sessionSvc, cfg.Session.CookieName, []byte(cfg.Session.CookieSecret), cfg.Session.TTL, cfg.Session.SecureCookie)

	stateSecret := cfg.Session.StateSecret
	if stateSecret == "" {
		stateSecret = tokens.NewNonce() + tokens.NewNonce()
		logger.Warnf("STATE_SECRET not configured; using a random per-process secret")
	}
	states := tokens.NewStateSigner(stateSecret, tokens.DefaultStateTTL)

	var verifier oidc.TokenVerifier
	if cfg.Workspace.AllowInsecureIDToken {
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	} else {
		ver, err := oidc.NewVerifier(ctx, cfg.Workspace.Issuer, cfg.Workspace.ClientID)
		if err != nil {
			logger.Fatalf("failed to initialize OIDC verifier: %v", err)
		}
		verifier = ver
	}
	workspace := providers.NewWorkspace(cfg.Workspace, verifier)
	accounting := providers.NewAccounting(cfg.Accounting)
	logger.Infof("accounting environment: %s (%s)", accounting.Environment(), accounting.APIBaseURL())

	controller := flow.NewController(customerSvc, sessionSvc, states, workspace, accounting)

	var auditSink audit.Sink = audit.LogSink{}
	var archive *storage.Archive
	if cfg.MinIO.Endpoint != "" {
		archive, err = storage.NewArchive(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("audit archive disabled: %v", err)
		} else {
			auditSink = audit.Multi{audit.LogSink{}, audit.NewArchiveSink(archive, "audit")}
			logger.Infof("audit archive: minio bucket %s", cfg.MinIO.Bucket)
		}
	}

	r := gin.New()

	// Lightweight CORS middleware: set common headers and respond to OPTIONS.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	guard := []gin.HandlerFunc{middleware.APIKeyMiddleware(cfg.API.Keys)}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			guard = append(guard, middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			guard = append(guard, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	if len(cfg.API.Keys) == 0 {
		logger.Warnf("API_KEYS not set; /api and /admin are unauthenticated")
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint: 200 only when critical dependencies answer
	r.GET("/ready", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}

		deps["store"] = store.Ping(pctx) == nil
		ready = ready && deps["store"]
		if redisClient != nil {
			deps["redis"] = redisClient.Ping(pctx).Err() == nil
			ready = ready && deps["redis"]
		}
		if archive != nil {
			// the archive is optional: report it without gating readiness
			deps["archive"] = archive.Ping(pctx) == nil
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.NewAuthHandler(cfg, controller, binder).Register(r.Group("/"))
	wsValidator := validator.NewWorkspaceValidator(cfg.Workspace.TokenInfoURL, cfg.Workspace.ValidationTimeout, nil)
	handlers.NewAPIHandler(customerSvc, wsValidator, validator.NewAccountingValidator(), accounting, cfg.ReauthURL()).Register(r.Group("/api", guard...))
	handlers.NewAdminHandler(customerSvc, auditSink).Register(r.Group("/admin", guard...))
	handlers.RegisterSwagger(r)

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting portal on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown: %v", err)
	}
}
