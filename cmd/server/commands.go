package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PayLink/config"
	appmodel "github.com/sifan077/PayLink/internal/app/model"
	appserver "github.com/sifan077/PayLink/internal/app/server"
	"github.com/sifan077/PayLink/internal/infra/logger"
	infraNATS "github.com/sifan077/PayLink/internal/infra/nats"
	infraPostgres "github.com/sifan077/PayLink/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/PayLink/internal/infra/prometheus"
	infraRedis "github.com/sifan077/PayLink/internal/infra/redis"
	infraSQLite "github.com/sifan077/PayLink/internal/infra/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paylink",
		Short:         "Paywalled URL shortener",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, redirect endpoint and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	})
	return root
}

// bootstrap loads config and initialises the global logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	isDev := os.Getenv("APP_ENV") != "production"
	log, err := logger.Init(logger.Config{
		Development: isDev,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		File:        cfg.Log.File,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openDatabase opens the configured GORM backend, migrates it, and for
// Postgres also opens a pgx pool used by health checks.
func openDatabase(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, *pgxpool.Pool, func(), error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case "sqlite":
		db, err = infraSQLite.NewGorm(cfg.SQLite)
	default:
		db, err = infraPostgres.NewGorm(cfg.Postgres)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("access underlying SQL DB: %w", err)
	}

	if err := infraPostgres.AutoMigrate(ctx, db, appmodel.All()...); err != nil {
		sqlDB.Close()
		return nil, nil, nil, err
	}
	log.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	var pool *pgxpool.Pool
	if cfg.Database.Driver == "postgres" {
		pool, err = infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			sqlDB.Close()
			return nil, nil, nil, err
		}
		log.Info("Connected to Postgres successfully",
			zap.String("postgres_host", cfg.Postgres.Host),
			zap.Int("postgres_port", cfg.Postgres.Port),
			zap.String("postgres_db", cfg.Postgres.Database),
		)
	}

	cleanup := func() {
		if pool != nil {
			pool.Close()
		}
		_ = sqlDB.Close()
	}
	return db, pool, cleanup, nil
}

func runMigrate(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	_, _, cleanup, err := openDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("Migration failed", zap.Error(err))
		return err
	}
	cleanup()
	log.Info("Migration complete")
	return nil
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("addr", cfg.Server.Addr),
		zap.String("base_url", cfg.Server.BaseURL),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("async_clicks", cfg.Clicks.Async),
	)

	db, pool, closeDB, err := openDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open database", zap.Error(err))
		return err
	}
	defer closeDB()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Error("Failed to connect to Redis", zap.Error(err))
			return err
		}
		defer redisClient.Close()
		log.Info("Connected to Redis successfully")
	}

	var js nats.JetStreamContext
	if cfg.Clicks.Async {
		natsConn, jsCtx, err := infraNATS.Connect(cfg.NATS)
		if err != nil {
			log.Error("Failed to connect to NATS", zap.Error(err))
			return err
		}
		defer natsConn.Drain()
		if err := infraNATS.EnsureClickStream(jsCtx); err != nil {
			log.Error("Failed to prepare click stream", zap.Error(err))
			return err
		}
		js = jsCtx
		log.Info("Connected to NATS successfully", zap.Bool("jetstream_ready", js != nil))
	}

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	server, err := appserver.New(ctx, appserver.Dependencies{
		Logger:    log,
		Config:    cfg,
		DB:        db,
		Postgres:  pool,
		Redis:     redisClient,
		JetStream: js,
	})
	if err != nil {
		log.Error("Failed to build server", zap.Error(err))
		return err
	}
	if err := server.Start(ctx); err != nil {
		log.Error("Failed to start background workers", zap.Error(err))
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		listenErr <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appserver.ShutdownTimeout(cfg))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown incomplete", zap.Error(err))
		return err
	}
	log.Info("Shutdown complete")
	return nil
}
