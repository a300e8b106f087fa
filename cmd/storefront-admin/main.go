// storefront-admin serves the storefront back-office authentication and
// admin directory API. Configuration comes from STOREFRONT_* environment
// variables and an optional YAML file; see pkg/config.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/storefront/pkg/api"
	"github.com/platinummonkey/storefront/pkg/async"
	"github.com/platinummonkey/storefront/pkg/audit"
	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/config"
	"github.com/platinummonkey/storefront/pkg/directory"
	"github.com/platinummonkey/storefront/pkg/middleware"
	"github.com/platinummonkey/storefront/pkg/observability"
	"github.com/platinummonkey/storefront/pkg/storage"
	"github.com/platinummonkey/storefront/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront-admin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", "storefront-admin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return fmt.Errorf("init opentelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	// Shutdown funcs run after the HTTP servers stop
	var closers []observability.ShutdownFunc
	closers = append(closers, func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	store, auditSink, conns, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var db *sql.DB
	if conns != nil {
		db = conns.Primary()
	}
	// queued audit writes still need the database, so drain them first
	closers = append(closers, func(context.Context) error {
		err := auditSink.Close()
		if conns != nil {
			err = errors.Join(err, conns.Close())
		}
		return err
	})

	var rdb *redis.Client
	if cfg.Storage.RedisURL != "" {
		rdb, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			return err
		}
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		logger.Info("Login throttling shared through Redis")
	}
	limiter := newLoginLimiter(ctx, cfg, rdb)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.TokenIssuer,
	})
	if err != nil {
		return err
	}

	dir := directory.New(store, auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		directory.WithAuditLogger(auditSink),
		directory.WithLogger(logger),
		directory.WithMetrics(metrics),
	)

	apiServer := api.NewServer(api.ServerConfig{
		Directory:       dir,
		Tokens:          tokens,
		LoginLimiter:    limiter,
		AuditLogger:     auditSink,
		Logger:          logger,
		Metrics:         metrics,
		TrustProxy:      cfg.Server.TrustProxy,
		CORSOrigins:     cfg.Server.CORSOrigins,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		AuditAllTraffic: cfg.Server.AuditAllTraffic,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(apiServer, "storefront-admin"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checker := observability.NewHealthChecker(db, rdb).
		WithMetrics(metrics).
		WithVersion(version)
	if conns != nil {
		checker.WithDependency("replicas", false, conns.HealthCheck)
	}
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	for _, fn := range closers {
		shutdown.RegisterShutdownFunc(fn)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("Starting admin API server")
		return serve(httpServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return serve(healthServer)
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

// serve runs srv until it is shut down
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", srv.Addr, err)
	}
	return nil
}

const (
	auditWorkers   = 2
	auditQueueSize = 1024
)

// openStorage builds the directory store and audit sink for the configured
// backend. The connection manager is nil for in-memory storage.
func openStorage(ctx context.Context, cfg *config.Config, logger *observability.Logger) (directory.Store, audit.Logger, *postgres.ConnectionManager, error) {
	logSink, err := audit.NewLogrusLogger(logger.Entry())
	if err != nil {
		return nil, nil, nil, err
	}

	switch cfg.Storage.Type {
	case storage.TypeMemory:
		logger.Warn("Using in-memory storage; accounts are lost on restart")
		return directory.NewMemoryStore(), logSink, nil, nil

	default:
		cm, err := postgres.NewConnectionManager(postgres.ConnectionConfigFrom(cfg.Storage), logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := directory.RunMigrations(ctx, cm.Primary(), logger); err != nil {
			cm.Close()
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		cm.StartHealthCheckRoutine(ctx, 30*time.Second)

		dbSink, err := audit.NewDBLogger(cm.Primary())
		if err != nil {
			cm.Close()
			return nil, nil, nil, err
		}
		pool := async.NewPool("audit-db", auditWorkers, auditQueueSize, 5*time.Second, logger)
		queued, err := audit.NewAsyncLogger(dbSink, pool, cfg.Server.ShutdownTimeout)
		if err != nil {
			cm.Close()
			return nil, nil, nil, err
		}

		store := directory.NewPostgresStore(cm.Primary()).WithReplicas(cm)
		return store, audit.NewMultiLogger(logSink, queued), cm, nil
	}
}

// newLoginLimiter shares throttling state through Redis when available
func newLoginLimiter(ctx context.Context, cfg *config.Config, rdb *redis.Client) middleware.Limiter {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.LoginAttempts,
		WindowDuration:    cfg.RateLimit.LoginWindow,
	}
	if rdb != nil {
		return middleware.NewDistributedRateLimiter(rdb, limits, "")
	}

	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}
