package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-rcm/internal/api"
	"github.com/miradorstack/mirador-rcm/internal/cache"
	"github.com/miradorstack/mirador-rcm/internal/config"
	"github.com/miradorstack/mirador-rcm/internal/engine"
	"github.com/miradorstack/mirador-rcm/internal/metrics"
	"github.com/miradorstack/mirador-rcm/internal/policy"
	"github.com/miradorstack/mirador-rcm/internal/repo"
	"github.com/miradorstack/mirador-rcm/internal/services"
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-rcm", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policies, err := policySource(ctx, cfg.Policy, logger)
	if err != nil {
		logger.Error("failed to load policy", slog.String("path", cfg.Policy.Path), slog.Any("error", err))
		os.Exit(1)
	}

	library, err := engine.NewTaskLibrary(cfg.Policy.TaskLibrary, logger)
	if err != nil {
		logger.Error("failed to load task library", slog.String("path", cfg.Policy.TaskLibrary), slog.Any("error", err))
		os.Exit(1)
	}

	memo, cacheCloser := memoFor(cfg.Cache, logger)
	if cacheCloser != nil {
		defer cacheCloser.Close()
	}

	records, storeName, dbCloser, err := recordStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open criticality store", slog.Any("error", err))
		os.Exit(1)
	}
	if dbCloser != nil {
		defer dbCloser.Close()
	}

	service := services.NewReliabilityService(logger, policies, services.Options{
		Library:     library,
		Memo:        memo,
		Records:     records,
		RecordStore: storeName,
	})

	server, err := api.NewServer(cfg.Server, service)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("mirador-rcm stopped")
}

// policySource loads the policy once, or watches it for changes when configured.
func policySource(ctx context.Context, cfg config.PolicyConfig, logger *slog.Logger) (policy.Source, error) {
	if cfg.Watch && cfg.Path != "" {
		watcher, err := policy.NewWatcher(cfg.Path, logger)
		if err == nil {
			go watcher.Run(ctx)
			logger.Info("watching policy", slog.String("path", cfg.Path))
			return watcher, nil
		}
		logger.Warn("policy watch unavailable, loading once", slog.Any("error", err))
	}
	p, err := policy.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	return policy.Static{P: p}, nil
}

// memoFor builds the memoization layer: Redis when an address is configured, in-process otherwise.
func memoFor(cfg config.CacheConfig, logger *slog.Logger) (*cache.Memo, io.Closer) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Addr == "" {
		logger.Info("memoizing in process")
		return cache.NewMemo(cache.NewMemoryProvider(), cfg.MemoTTL, logger), nil
	}

	provider, err := cache.NewRedisProvider(cache.RedisConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		TLS:          cfg.TLS,
		KeyPrefix:    cfg.KeyPrefix,
	})
	if err != nil {
		logger.Warn("redis cache unavailable, memoizing in process", slog.Any("error", err))
		return cache.NewMemo(cache.NewMemoryProvider(), cfg.MemoTTL, logger), nil
	}
	logger.Info("memoizing in redis", slog.String("addr", cfg.Addr))
	return cache.NewMemo(provider, cfg.MemoTTL, logger), provider
}

// recordStore opens Postgres when a DSN is configured and keeps records in memory otherwise.
func recordStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repo.CriticalityRepo, string, io.Closer, error) {
	if cfg.DSN == "" {
		return repo.NewMemoryCriticalityRepo(), "memory", nil, nil
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := repo.OpenPostgres(openCtx, repo.PostgresOptions{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, "", nil, err
	}
	store := repo.NewPostgresCriticalityRepo(db, logger)
	if cfg.AutoMigrate {
		if err := store.EnsureSchema(openCtx); err != nil {
			_ = db.Close()
			return nil, "", nil, err
		}
	}
	return store, "postgres", db, nil
}
