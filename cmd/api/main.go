package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/baharkarakas/iou-backend/internal/api"
	"github.com/baharkarakas/iou-backend/internal/auth"
	"github.com/baharkarakas/iou-backend/internal/config"
	"github.com/baharkarakas/iou-backend/internal/db"
	"github.com/baharkarakas/iou-backend/internal/directory"
	"github.com/baharkarakas/iou-backend/internal/events"
	"github.com/baharkarakas/iou-backend/internal/lock"
	"github.com/baharkarakas/iou-backend/internal/logger"
	"github.com/baharkarakas/iou-backend/internal/metrics"
	"github.com/baharkarakas/iou-backend/internal/repository"
	"github.com/baharkarakas/iou-backend/internal/repository/memory"
	"github.com/baharkarakas/iou-backend/internal/repository/postgres"
	"github.com/baharkarakas/iou-backend/internal/repository/sqlite"
	"github.com/baharkarakas/iou-backend/internal/services"
	"github.com/baharkarakas/iou-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = db.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	var locker lock.Locker = lock.NewLocal(cfg.LockTimeout)
	if cfg.Locker == "redis" {
		locker = lock.NewRedis(rdb, cfg.LockTimeout, 10*cfg.LockTimeout)
	}
	var pub events.Publisher = events.Nop{}
	if rdb != nil {
		pub = events.NewRedisPublisher(rdb)
	}

	wp := worker.NewPool(cfg.Workers, 1024)
	defer wp.Stop()

	dir := directory.New(store, rdb, cfg.UserCacheTTL, log)
	deps := services.Deps{
		Transactions: store,
		Users:        dir,
		Locker:       locker,
		Events:       pub,
		Pool:         wp,
		Logger:       log,
		StoreTimeout: cfg.StoreTimeout,
	}

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:    cfg,
		Logger: log,
		Tokens: auth.NewTokenManager(cfg.JWTIssuer, cfg.JWTAccessSecret, cfg.JWTRefreshSecret,
			cfg.JWTAccessTTL, cfg.JWTRefreshTTL),
		Directory:  dir,
		TxnSvc:     services.NewTransactionService(deps),
		BalanceSvc: services.NewBalanceService(deps),
		SettleSvc:  services.NewSettlementService(deps),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("env check",
		"APP_ENV", cfg.Env,
		"STORE_DRIVER", cfg.StoreDriver,
		"LOCKER", cfg.Locker,
		"redis", rdb != nil,
	)
	if cfg.OpenAccess() {
		log.Warn("API_TOKEN_HASH not set: every request is accepted unauthenticated (APP_ENV=dev)")
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	}
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		log.Info("using sqlite store", "path", cfg.SQLitePath)
		return sqlite.New(cfg.SQLitePath)
	case "memory":
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.Migrate {
		if err := db.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	return postgres.NewRepositories(pool), nil
}
