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

	"github.com/asjjun/naejango/internal/api"
	"github.com/asjjun/naejango/internal/chat"
	"github.com/asjjun/naejango/internal/config"
	"github.com/asjjun/naejango/internal/db"
	"github.com/asjjun/naejango/internal/events"
	"github.com/asjjun/naejango/internal/middleware"
	"github.com/asjjun/naejango/internal/observ"
	"github.com/asjjun/naejango/internal/repository"
	"github.com/asjjun/naejango/internal/repository/postgres"
	"github.com/asjjun/naejango/internal/repository/sqlite"
	"github.com/asjjun/naejango/internal/ws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config, logger, tracing
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observ.InitTracing(ctx, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	// ---------------------------------------------------------------
	// 2. Store
	// ---------------------------------------------------------------
	var (
		store  repository.Store
		health func(context.Context) error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer s.Close()
		store = s
		logger.Info("using embedded sqlite store", zap.String("path", cfg.SQLitePath))
	default:
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		store = postgres.NewStore(database.Pool())
		health = database.Health
	}

	// ---------------------------------------------------------------
	// 3. Event sinks and the websocket hub
	//
	// With redis, events go through pub/sub and every instance's hub
	// relays them to its own sockets. Without it the hub is fed directly.
	// ---------------------------------------------------------------
	hub := ws.NewHub(store.Repos().Chats, logger)
	defer hub.Close()

	var (
		sinks     []events.Sink
		rateLimit middleware.AllowFunc
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}

		ps := rdb.PSubscribe(ctx, events.ChannelPattern)
		defer ps.Close()
		go hub.Relay(ctx, ps.Channel())

		sinks = append(sinks, events.Sink{Name: "redis", Publisher: events.NewRedisPublisher(rdb)})
		rateLimit = middleware.NewLimiter(rdb, cfg.MessageRateLimit, cfg.MessageRateWindow).Allow
		logger.Info("redis connected", zap.String("addr", opts.Addr))
	} else {
		sinks = append(sinks, events.Sink{Name: "hub", Publisher: hub})
	}

	if len(cfg.KafkaBrokers) > 0 {
		ks := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := ks.Close(); err != nil {
				logger.Warn("kafka writer close", zap.Error(err))
			}
		}()
		sinks = append(sinks, events.Sink{Name: "kafka", Publisher: ks})
		logger.Info("kafka sink enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	// ---------------------------------------------------------------
	// 4. Service and HTTP server
	// ---------------------------------------------------------------
	svc := chat.NewService(store, events.NewFanout(sinks...), cfg.DefaultChannelLimit, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Store:     store,
		Chat:      svc,
		Hub:       hub,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
		RateLimit: rateLimit,
		Health:    health,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "naejango"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting naejango chat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
