package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/migratehq/flowgate/internal/config"
	"github.com/migratehq/flowgate/internal/handler"
	"github.com/migratehq/flowgate/internal/health"
	"github.com/migratehq/flowgate/internal/metrics"
	"github.com/migratehq/flowgate/internal/orchestrator"
	"github.com/migratehq/flowgate/internal/service"
	"github.com/migratehq/flowgate/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting Flowgate tenant isolation service")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("instance_id", cfg.Server.InstanceID),
		zap.String("isolation_level", cfg.Isolation.Level),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("redis_host", cfg.Redis.Host))

	prom := metrics.NewMetrics()
	logger.Info("Metrics initialized")

	pool, err := store.NewPool(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
	)
	if err != nil {
		logger.Fatal("Failed to initialize database pool", zap.Error(err))
	}
	defer pool.Close()

	pgStore := store.NewPostgresFlowStore(pool, logger)
	quotaStore := store.NewPostgresQuotaStore(pool, logger)
	logger.Info("Flow and quota stores initialized")

	// The delegate and the flow store must share ground truth: counters
	// and ownership are reconciled from the store that the delegate's
	// created flows actually land in. In local mode one instance serves
	// both roles; in remote mode the engine persists to PostgreSQL and
	// pgStore is that ground truth. Tenant and admin lookups stay on
	// PostgreSQL in both modes.
	var delegate orchestrator.Orchestrator
	var flowStore store.FlowStore = pgStore
	switch cfg.Orchestrator.Mode {
	case config.OrchestratorLocal:
		local := orchestrator.NewLocal(logger)
		delegate = local
		flowStore = local
	default:
		delegate = orchestrator.NewRemote(cfg.Orchestrator.BaseURL, logger)
	}
	logger.Info("Orchestrator initialized", zap.String("mode", cfg.Orchestrator.Mode))

	ownership, err := store.NewRedisOwnershipCache(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to initialize ownership cache", zap.Error(err))
	}
	defer ownership.Close()
	logger.Info("Ownership cache initialized")

	tenantCache := store.NewTenantCache(cfg.Cache.MaxTenants, cfg.Cache.MetricsTTL, cfg.Cache.QuotaTTL)

	clk := clock.New()
	tracker := service.NewMetricsTracker(flowStore, ownership, tenantCache, clk, prom, logger)
	reservations := service.NewReservationTable(prom)
	enforcer := service.NewQuotaEnforcer(quotaStore, tenantCache, tracker, reservations, cfg.DefaultQuota, prom, logger)
	validator := service.NewAccessValidator(flowStore, pgStore, ownership, cfg.IsolationLevel(), prom, logger)

	flowService := service.NewFlowService(validator, enforcer, tracker, delegate, clk, prom, logger)
	adminService := service.NewAdminService(validator, enforcer, tracker, quotaStore, clk, logger)
	logger.Info("Services initialized")

	healthChecker := health.NewHealthChecker(flowStore, ownership, logger)

	mux := http.NewServeMux()
	handler.NewHandlers(flowService, adminService, logger).Register(mux)
	mux.HandleFunc("/healthz", healthChecker.LivenessHandler)
	mux.HandleFunc("/readyz", healthChecker.ReadinessHandler)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
