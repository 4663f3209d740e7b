package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/auth"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/codeindex"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/config"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/engine"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/event"
	handler "github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/handler/http"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository/postgres"
	rediscache "github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/repository/redis"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/service"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/usergroup"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/migrations"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/database"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/health"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/httpclient"
	pkgkafka "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/kafka"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/middleware"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/tracing"
)

const serviceVersion = "0.1.0"

// App wires together all dependencies and runs the coupon service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	orderCanceled  *pkgkafka.Consumer
	couponCreated  *pkgkafka.Consumer
	couponRepo     *postgres.CouponRepository
	codeIndex      *codeindex.Index
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, cfg.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	couponRepo := postgres.NewCouponRepository(pool)
	usageRepo := postgres.NewUsageRepository(pool)
	automaticRepo := postgres.NewAutomaticDiscountRepository(pool)
	cache := rediscache.NewCouponCache(redisClient, cfg.CouponCacheTTL)
	index := codeindex.New(cfg.CodeIndexCapacity, codeindex.DefaultFPR, logger)
	eventProducer := event.NewProducer(producer, logger)

	engineOpts := []engine.Option{engine.WithOverlapPolicy(cfg.OverlapPolicy())}
	var groups service.GroupResolver
	if cfg.UserServiceURL != "" {
		groups = newUserGroupClient(cfg, logger)
		engineOpts = append(engineOpts, engine.WithUserGroupPredicate(engine.GroupMembership))
	} else {
		logger.Warn("USER_SERVICE_URL not set, user_group conditions are not enforced")
	}
	eng := engine.New(logger, engineOpts...)

	couponService := service.NewCouponService(couponRepo, cache, index, eventProducer, logger)
	redemptionService := service.NewRedemptionService(couponService, usageRepo, eng, groups, eventProducer, logger)
	automaticService := service.NewAutomaticDiscountService(automaticRepo, usageRepo, eng, groups, logger)

	// Canceled orders give their coupon uses back.
	eventConsumer := event.NewConsumer(redemptionService, logger)
	dedup := pkgkafka.NewRedisIdempotencyStore(redisClient, "coupon:events:", cfg.EventDedupTTL)
	orderCanceledConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:   cfg.KafkaBrokers,
		GroupID:   cfg.KafkaConsumerGroup + "-order-canceled",
		Topic:     event.TopicOrderCanceled,
		MinBytes:  1,
		MaxBytes:  10e6,
		EnableDLQ: true,
	}, pkgkafka.IdempotentHandler(dedup, eventConsumer.HandleOrderCanceled, logger), logger)

	// Every replica reads coupon.created in its own group so codes issued
	// elsewhere reach the local index. History is covered by warmup.
	indexConsumer := event.NewIndexConsumer(index, logger)
	couponCreatedConsumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaConsumerGroup + "-code-index-" + instanceID(),
		Topic:       event.TopicCouponCreated,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}, indexConsumer.HandleCouponCreated, logger)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	routerCfg := handler.RouterConfig{
		ServiceName:    cfg.ServiceName,
		CORS:           cors,
		RequestTimeout: cfg.HTTPRequestTimeout,
		PublicCacheTTL: cfg.PublicCouponsMaxAge,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
	}
	if cfg.JWTSecret != "" {
		routerCfg.AdminAuth = auth.NewVerifier(cfg.JWTSecret).Validate
	} else {
		logger.Warn("JWT_SECRET not set, admin routes are unauthenticated")
	}
	router := handler.NewRouter(couponService, redemptionService, automaticService, healthHandler, routerCfg, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		orderCanceled:  orderCanceledConsumer,
		couponCreated:  couponCreatedConsumer,
		couponRepo:     couponRepo,
		codeIndex:      index,
		tracerShutdown: tracerShutdown,
	}, nil
}

// instanceID names this replica. Pod hostnames are stable across restarts.
func instanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

func newUserGroupClient(cfg *config.Config, logger *slog.Logger) *usergroup.Client {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.UserServiceTimeout
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("user-service"),
		logger,
	)
	return usergroup.NewClient(breaker, cfg.UserServiceURL, logger)
}

// Run starts the HTTP server, the Kafka consumers and the code index
// refresh, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go func() {
		if err := a.orderCanceled.Start(ctx); err != nil {
			errCh <- fmt.Errorf("order canceled consumer: %w", err)
		}
	}()

	go func() {
		if err := a.couponCreated.Start(ctx); err != nil {
			errCh <- fmt.Errorf("coupon created consumer: %w", err)
		}
	}()

	// Until the index is warm every code lookup goes to the cache/database.
	go a.codeIndex.Refresh(ctx, a.couponRepo, a.cfg.CodeIndexRefresh)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		if shutdownErr := a.Shutdown(); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in dependency order: HTTP server, tracer,
// consumers, producer, Redis, then the PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Flush spans only after in-flight requests have drained.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.orderCanceled.Close(); err != nil {
		a.logger.Error("order canceled consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.couponCreated.Close(); err != nil {
		a.logger.Error("coupon created consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

const kafkaPingAttempts = 3

// pingKafkaWithRetry backs off 1s then 2s, each with ±25% jitter.
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < kafkaPingAttempts; attempt++ {
		lastErr = producer.Ping(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == kafkaPingAttempts-1 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		wait := base + time.Duration(float64(base)*0.25*(2*rand.Float64()-1)) // #nosec G404 -- retry jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", kafkaPingAttempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", kafkaPingAttempts, lastErr)
}
