package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/internal/application/workers"
	"github.com/aescanero/dagrun/internal/config"
	memoryevents "github.com/aescanero/dagrun/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/dagrun/pkg/adapters/events/redis"
	"github.com/aescanero/dagrun/pkg/adapters/llm"
	"github.com/aescanero/dagrun/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/dagrun/pkg/adapters/registry"
	memorystorage "github.com/aescanero/dagrun/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/dagrun/pkg/adapters/storage/redis"
	grpcapi "github.com/aescanero/dagrun/pkg/api/grpc"
	httpapi "github.com/aescanero/dagrun/pkg/api/http"
	"github.com/aescanero/dagrun/pkg/api/websocket"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dagrun servers",
	Long: `Start the HTTP API, the run event WebSocket stream and the gRPC health
service. Configuration is read from the environment (DAGRUN_HTTP_PORT,
STORAGE_BACKEND, EVENTS_BACKEND, REDIS_ADDR, LLM_API_KEY, ...).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := initLogger(cfg.LogLevel)
		defer logger.Sync()

		return serve(cfg, logger)
	},
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting dagrun",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// Redis is only dialed when a backend needs it
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			redisClient.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	var eventBus ports.EventBus
	if cfg.Events.Backend == config.BackendRedis {
		eventBus = redisevents.NewStreamsEventBus(redisClient, cfg.Events.StreamMaxLen, logger)
	} else {
		eventBus = memoryevents.NewInMemoryEventBus(logger)
	}

	var store ports.RunStore
	if cfg.Storage.Backend == config.BackendRedis {
		store = redisstorage.NewRunStore(redisClient, cfg.Storage.RunTTL, logger)
	} else {
		store = memorystorage.NewRunStore()
	}

	metrics := prometheus.NewCollector()

	reg, err := buildRegistry(cfg, metrics, logger)
	if err != nil {
		return err
	}
	logger.Info("registry ready", zap.Strings("agents", reg.AgentNames()))

	manager := orchestrator.NewManager(reg, eventBus, metrics, logger, executorOptions(cfg))

	pool := workers.NewPool(workers.Config{
		Size:                cfg.Workers.PoolSize,
		QueueSize:           cfg.Workers.QueueSize,
		HealthCheckInterval: cfg.Workers.HealthCheckInterval,
	}, manager, store, metrics, logger)

	grpcServer, err := grpcapi.NewServer(&grpcapi.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	// gRPC health follows the worker pool
	pool.Health().OnChange(grpcServer.SetServing)
	if err := pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	httpServer := httpapi.NewServer(&httpapi.Config{
		Port:               cfg.HTTPPort,
		Runner:             manager,
		Submitter:          pool,
		Store:              store,
		Health:             pool.Health(),
		DefaultConcurrency: cfg.Executor.DefaultConcurrency,
		Logger:             logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eventBus, store, logger))

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("dagrun started successfully",
		zap.String("http_addr", cfg.GetHTTPAddr()),
		zap.String("grpc_addr", cfg.GetGRPCAddr()),
	)

	// Wait for interrupt signal or a server failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down gracefully")

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(ctx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := pool.Shutdown(ctx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("redis close error", zap.Error(err))
		}
	}

	logger.Info("dagrun stopped")
	return serveErr
}

// buildRegistry registers the built-in agents and tools, plus the llm agent
// when an API key is configured
func buildRegistry(cfg *config.Config, metrics ports.MetricsCollector, logger *zap.Logger) (*registry.Registry, error) {
	var extra []ports.Agent
	if cfg.LLM.APIKey != "" {
		agent, err := llm.NewAgent(&llm.Config{
			Provider:  cfg.LLM.Provider,
			APIKey:    cfg.LLM.APIKey,
			Model:     cfg.LLM.DefaultModel,
			MaxTokens: cfg.LLM.DefaultMaxTokens,
			BaseURL:   cfg.LLM.BaseURL,
			Metrics:   metrics,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM agent: %w", err)
		}
		extra = append(extra, agent)
	}

	httpClient := &http.Client{Timeout: cfg.Executor.FetchTimeout}

	reg, err := registry.NewBuiltin(httpClient, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry: %w", err)
	}
	return reg, nil
}

func executorOptions(cfg *config.Config) orchestrator.Options {
	return orchestrator.Options{
		DefaultTimeout:    cfg.Executor.NodeTimeout,
		DefaultMaxRetries: cfg.Executor.MaxRetries,
		InitialBackoff:    cfg.Executor.BackoffInitial,
		MaxBackoff:        cfg.Executor.BackoffMax,
		BackoffJitter:     cfg.Executor.BackoffJitter,
	}
}
