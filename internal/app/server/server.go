package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PayLink/config"
	"github.com/sifan077/PayLink/internal/app/repository"
	"github.com/sifan077/PayLink/internal/app/service"
	inthttp "github.com/sifan077/PayLink/internal/http/handler"
	"github.com/sifan077/PayLink/internal/http/middleware"
	httpUtil "github.com/sifan077/PayLink/internal/http/util"
	"github.com/sifan077/PayLink/internal/infra/qrcode"
	infraRedis "github.com/sifan077/PayLink/internal/infra/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies bundles infrastructure dependencies required by the HTTP server.
// Postgres, Redis and JetStream are optional.
type Dependencies struct {
	Logger    *zap.Logger
	Config    *config.Config
	DB        *gorm.DB
	Postgres  *pgxpool.Pool
	Redis     *redis.Client
	JetStream nats.JetStreamContext
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app      *fiber.App
	deps     Dependencies
	logger   *zap.Logger
	consumer *service.ClickConsumer
}

// New builds repositories, services and routes on top of deps.
func New(ctx context.Context, deps Dependencies) (*Server, error) {
	if deps.Config == nil || deps.DB == nil {
		return nil, errors.New("server: config and database are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
		deps.Logger = logger
	}
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		AppName:      "PayLink",
		ErrorHandler: errorHandler(logger),
	})

	s := &Server{
		app:    app,
		deps:   deps,
		logger: logger,
	}

	users := repository.NewUserRepository(deps.DB)
	payments := repository.NewPaymentRepository(deps.DB)
	urls := repository.NewURLRepository(deps.DB)
	clicks := repository.NewClickEventRepository(deps.DB)

	filter := service.NewCodeFilter(cfg.URL.BloomCapacity)
	seeded, err := filter.Seed(ctx, urls)
	if err != nil {
		return nil, err
	}
	logger.Info("short code filter seeded", zap.Int("codes", seeded))

	var cache service.URLCache
	if deps.Redis != nil {
		cache = infraRedis.NewURLCache(deps.Redis, infraRedis.NewKeyspace(cfg.Redis.KeyPrefix), cfg.URL.CacheTTL)
	}

	tokens := httpUtil.NewTokenSigner([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	authSvc := service.NewAuthService(users, tokens)
	paymentSvc := service.NewPaymentService(payments, qrcode.NewEncoder(cfg.Payment.QRSize), cfg.Payment)
	urlSvc := service.NewURLService(
		urls,
		paymentSvc,
		service.NewShortCodeGenerator(cfg.URL.ShortCodeLength, filter),
		cache,
		logger,
		service.URLOptions{BaseURL: cfg.Server.BaseURL, MaxAttempts: cfg.URL.MaxAttempts},
	)
	analyticsSvc := service.NewAnalyticsService(clicks, urls)

	var recorder service.ClickRecorder = analyticsSvc
	if cfg.Clicks.Async {
		if deps.JetStream == nil {
			return nil, errors.New("server: clicks.async requires a JetStream connection")
		}
		recorder = service.NewClickPublisher(deps.JetStream)
		s.consumer = service.NewClickConsumer(deps.JetStream, logger.Named("click-consumer"), analyticsSvc)
	}

	s.registerMiddleware()
	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:    logger,
		Auth:      authSvc,
		Payments:  paymentSvc,
		URLs:      urlSvc,
		Analytics: analyticsSvc,
	}).Register(s.app)
	// Registered last: /:shortCode would otherwise shadow other routes.
	inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:  logger,
		URLs:    urlSvc,
		Clicks:  recorder,
		BaseURL: cfg.Server.BaseURL,
		Checks:  s.healthChecks(),
	}).Register(s.app)

	return s, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start launches background workers. They stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.consumer == nil {
		return nil
	}
	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("start click consumer: %w", err)
	}
	s.logger.Info("click consumer started")
	return nil
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server and waits for background
// workers whose context has been cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.consumer != nil {
		select {
		case <-s.consumer.Done():
		case <-ctx.Done():
			return errors.Join(err, fmt.Errorf("wait for click consumer: %w", ctx.Err()))
		}
	}
	return err
}

func (s *Server) registerMiddleware() {
	cfg := s.deps.Config

	s.app.Use(middleware.Recovery(s.logger))
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.logger))
	if cfg.Prometheus.Enabled {
		s.app.Use(middleware.Metrics())
	}
	s.app.Use(middleware.CORS())
	if s.deps.Redis != nil {
		s.app.Use(middleware.RateLimit(s.deps.Redis, middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
			KeyPrefix:   infraRedis.NewKeyspace(cfg.Redis.KeyPrefix).Key("ratelimit"),
		}, s.logger))
	}
}

func (s *Server) healthChecks() map[string]inthttp.HealthCheck {
	checks := map[string]inthttp.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := s.deps.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if s.deps.Postgres != nil {
		checks["postgres_pool"] = func(ctx context.Context) error {
			return s.deps.Postgres.Ping(ctx)
		}
	}
	if s.deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return s.deps.Redis.Ping(ctx).Err()
		}
	}
	if s.deps.JetStream != nil {
		checks["nats"] = func(ctx context.Context) error {
			_, err := s.deps.JetStream.AccountInfo(nats.Context(ctx))
			return err
		}
	}
	return checks
}

// errorHandler renders framework errors (unknown routes, bad methods) as JSON.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", zap.Error(err), zap.String("path", c.Path()))
		}
		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}

// ShutdownTimeout returns the configured grace period, defaulting to 10s.
func ShutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
