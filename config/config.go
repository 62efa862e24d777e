package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`

	// Database selects the storage backend ("postgres" or "sqlite").
	Database DatabaseConfig `mapstructure:"database"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// SQLite (local development)
	SQLite SQLiteConfig `mapstructure:"sqlite"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	Auth      AuthConfig      `mapstructure:"auth"`
	URL       URLConfig       `mapstructure:"url"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Clicks    ClicksConfig    `mapstructure:"clicks"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	BaseURL         string        `mapstructure:"base_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeyPrefix namespaces cache and rate limit keys.
	KeyPrefix   string        `mapstructure:"key_prefix"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuthConfig controls bearer token issuance.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// URLConfig controls short-code generation and resolve caching.
type URLConfig struct {
	ShortCodeLength int           `mapstructure:"short_code_length"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	BloomCapacity   uint          `mapstructure:"bloom_capacity"`
}

// PaymentConfig holds the fixed fee and payee identity rendered into QR codes.
type PaymentConfig struct {
	Amount       int    `mapstructure:"amount"`
	Currency     string `mapstructure:"currency"`
	MerchantName string `mapstructure:"merchant_name"`
	UPIID        string `mapstructure:"upi_id"`
	QRSize       int    `mapstructure:"qr_size"`
}

// ClicksConfig switches click recording between inline writes and JetStream.
type ClicksConfig struct {
	Async bool `mapstructure:"async"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
	File     string `mapstructure:"file"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required")
	}
	if c.URL.ShortCodeLength <= 0 {
		return fmt.Errorf("config: url.short_code_length must be positive")
	}
	if c.Payment.Amount <= 0 {
		return fmt.Errorf("config: payment.amount must be positive")
	}
	if c.Payment.UPIID == "" {
		return fmt.Errorf("config: payment.upi_id is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("sqlite.path", "paylink.db")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.key_prefix", "paylink")
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "paylink")

	v.SetDefault("url.short_code_length", 6)
	v.SetDefault("url.max_attempts", 10)
	v.SetDefault("url.cache_ttl", 10*time.Minute)
	v.SetDefault("url.bloom_capacity", 1_000_000)

	v.SetDefault("payment.amount", 100)
	v.SetDefault("payment.currency", "INR")
	v.SetDefault("payment.merchant_name", "PayLink")
	v.SetDefault("payment.qr_size", 300)

	v.SetDefault("clicks.async", false)

	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.key_prefix", "REDIS_KEY_PREFIX")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	v.BindEnv("auth.jwt_secret", "JWT_SECRET", "AUTH_JWT_SECRET")
	v.BindEnv("server.base_url", "BASE_URL", "SERVER_BASE_URL")
	v.BindEnv("payment.upi_id", "UPI_ID", "PAYMENT_UPI_ID")
	v.BindEnv("payment.merchant_name", "MERCHANT_NAME", "PAYMENT_MERCHANT_NAME")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.file", "LOG_FILE")
}
