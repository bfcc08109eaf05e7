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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/lorrc/taskboard-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/taskboard-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/taskboard-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/taskboard-backend/internal/adapters/secondary/bus"
	"github.com/lorrc/taskboard-backend/internal/adapters/secondary/postgres"
	"github.com/lorrc/taskboard-backend/internal/adapters/secondary/zmqbus"
	"github.com/lorrc/taskboard-backend/internal/auth"
	"github.com/lorrc/taskboard-backend/internal/config"
	"github.com/lorrc/taskboard-backend/internal/core/ports"
	"github.com/lorrc/taskboard-backend/internal/core/services"
	"github.com/lorrc/taskboard-backend/internal/infrastructure/logging"
	"github.com/lorrc/taskboard-backend/internal/infrastructure/metrics"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Bus.InstanceID == "" {
				cfg.Bus.InstanceID = uuid.NewString()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg))
		},
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
		InstanceID:  cfg.Bus.InstanceID,
	})
}

func openPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	logger.Info("database connection established")
	return pool, nil
}

// newEventBus builds the configured bus. The returned run function receives
// from the shared broker and is nil for the in-process bus.
func newEventBus(cfg *config.Config, m *metrics.Realtime, logger *slog.Logger) (ports.EventBus, func(context.Context) error, func() error, error) {
	switch cfg.Bus.Driver {
	case config.BusZMQ:
		b, err := zmqbus.New(cfg.Bus.PubAddr, cfg.Bus.SubAddr, m, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return b, b.Run, b.Close, nil
	default:
		return bus.NewLocal(m), nil, func() error { return nil }, nil
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting service", "version", cfg.App.Version, "config", cfg.String())

	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Metrics
	var realtimeMetrics *metrics.Realtime
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		realtimeMetrics, err = metrics.NewRealtime(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsHandler = promhttp.Handler()
	}

	// Event bus and hub
	instanceID := cfg.Bus.InstanceID
	eventBus, runBus, closeBus, err := newEventBus(cfg, realtimeMetrics, logger)
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}

	hub := websocket.NewHub(logger,
		websocket.WithFanout(eventBus, instanceID),
		websocket.WithMetrics(realtimeMetrics),
		websocket.WithQueueSize(cfg.WebSocket.HubQueueSize),
	)
	eventBus.Subscribe(hub.Deliver)

	// Security
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)

	// Rate limiters
	var generalRateLimiter, authRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			TTL:               3 * time.Minute,
		})
		authRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.AuthRPS,
			BurstSize:         cfg.RateLimit.AuthBurst,
			TTL:               5 * time.Minute,
		})
	}

	// Repositories (Secondary Adapters)
	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	epicRepo := postgres.NewEpicRepository(pool)
	membershipRepo := postgres.NewMembershipRepository(pool)

	// Services (Core)
	publisher := services.NewPublisher(eventBus, instanceID, logger)
	membershipService := services.NewMembershipService(membershipRepo, cfg.Membership.CacheSize, cfg.Membership.CacheTTL)
	authService := services.NewAuthService(userRepo)
	taskService := services.NewTaskService(taskRepo, membershipService, publisher)
	epicService := services.NewEpicService(epicRepo, membershipService, publisher)

	// Handlers (Primary Adapters)
	errorHandler := httpAdapter.NewErrorHandler(logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, membershipService, httpAdapter.WebSocketConfig{
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		IsDevelopment:   cfg.IsDevelopment(),
		RequireAuth:     cfg.WebSocket.RequireAuth,
		Client: websocket.ClientConfig{
			SendBuffer:        cfg.WebSocket.SendBuffer,
			WriteWait:         10 * time.Second,
			PongWait:          cfg.WebSocket.PongWait,
			PingInterval:      cfg.WebSocket.PingInterval,
			MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
			MessagesPerSecond: cfg.WebSocket.MessagesPerSecond,
			MessageBurst:      cfg.WebSocket.MessageBurst,
		},
	}, logger)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Logger:         logger,
		Tokens:         tokenManager,
		Auth:           httpAdapter.NewAuthHandler(authService, tokenManager, errorHandler, logger),
		Tasks:          httpAdapter.NewTaskHandler(taskService, errorHandler, logger),
		Epics:          httpAdapter.NewEpicHandler(epicService, errorHandler, logger),
		WebSocket:      wsHandler,
		Health:         httpAdapter.NewHealthHandler(pool, hub, cfg.App.Version),
		Metrics:        metricsHandler,
		GeneralLimiter: generalRateLimiter,
		AuthLimiter:    authRateLimiter,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		IsDevelopment:  cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	if runBus != nil {
		g.Go(func() error {
			return runBus(gctx)
		})
	}

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	if closeErr := closeBus(); closeErr != nil {
		logger.Warn("event bus close failed", "error", closeErr)
	}
	if err != nil {
		logger.Error("service stopped with error", "error", err)
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
