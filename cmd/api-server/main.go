package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bedimand/atendimento-acessivel/internal/api"
	"github.com/bedimand/atendimento-acessivel/internal/app"
	"github.com/bedimand/atendimento-acessivel/internal/appointment"
	"github.com/bedimand/atendimento-acessivel/internal/catalog"
	"github.com/bedimand/atendimento-acessivel/internal/config"
	"github.com/bedimand/atendimento-acessivel/internal/db"
	"github.com/bedimand/atendimento-acessivel/internal/metrics"
	"github.com/bedimand/atendimento-acessivel/internal/optimizer"
	redisclient "github.com/bedimand/atendimento-acessivel/internal/redis"
	"github.com/bedimand/atendimento-acessivel/internal/scheduling"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger := app.NewLogger(cfg.Env, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Fatal("api-server stopped with error", zap.Error(err))
	}
	logger.Info("api-server shut down")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{})
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	if cfg.MigrateOnStart {
		migrator, err := app.NewMigrator(pgPool, db.Migrations, db.MigrationsDir, logger)
		if err != nil {
			return err
		}
		err = migrator.Up(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	loc, err := time.LoadLocation(cfg.SearchTimeZone)
	if err != nil {
		return err
	}

	repo := appointment.NewPgRepository(pgPool)
	cat, err := app.LoadCatalog(ctx, repo, catalog.Default(), logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	cache := redisclient.NewResultCache(rdb, cfg.CacheTTL)

	svc := appointment.NewService(appointment.ServiceDeps{
		Repo:     repo,
		Catalog:  cat,
		Locker:   redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL),
		Observer: cache,
		Metrics:  m,
		Logger:   logger.Named("booking"),
	})

	engine := scheduling.NewEngine(scheduling.Deps{
		Service: svc,
		Cache:   cache,
		Metrics: m,
		Logger:  logger.Named("engine"),
		Options: scheduling.Options{
			DaysAhead: cfg.SearchDaysAhead,
			Optimizer: optimizer.Options{
				MaxIterations: cfg.Optimizer.MaxIterations,
				Restarts:      cfg.Optimizer.Restarts,
				Seed:          cfg.Optimizer.Seed,
			},
			Location: loc,
		},
	})

	router := api.NewRouter(api.RouterConfig{
		Engine:   engine,
		Postgres: pgPool,
		Redis:    api.RedisPinger(rdb),
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:   logger.Named("http"),
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
