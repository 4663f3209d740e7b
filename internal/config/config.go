// Package config loads the coupon service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/candykisu/e-commerce-backend-template-canon-sub000/internal/engine"
	pkgconfig "github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/config"
	"github.com/candykisu/e-commerce-backend-template-canon-sub000/pkg/database"
)

const minJWTSecretLen = 32

// Config holds all configuration for the coupon service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"coupon-service"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int           `env:"COUPON_HTTP_PORT" envDefault:"8010"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPRequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PublicCouponsMaxAge time.Duration `env:"PUBLIC_COUPONS_MAX_AGE" envDefault:"60s"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"coupons"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"coupons_secret"`
	PostgresDB   string `env:"COUPON_DB_NAME" envDefault:"coupon_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis
	RedisHost      string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort      int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	CouponCacheTTL time.Duration `env:"COUPON_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"coupon-service"`
	EventDedupTTL      time.Duration `env:"EVENT_DEDUP_TTL" envDefault:"24h"`

	// Discount engine
	BXGYOverlapPolicy string `env:"BXGY_OVERLAP_POLICY" envDefault:"count_both"`
	CodeIndexCapacity uint   `env:"CODE_INDEX_CAPACITY" envDefault:"1000000"`

	// CodeIndexRefresh reloads the code index from the database. 0 disables it.
	CodeIndexRefresh time.Duration `env:"CODE_INDEX_REFRESH_INTERVAL" envDefault:"5m"`

	// User service, for user_group conditions. Empty disables group lookups.
	UserServiceURL     string        `env:"USER_SERVICE_URL"`
	UserServiceTimeout time.Duration `env:"USER_SERVICE_TIMEOUT" envDefault:"2s"`

	// JWT_SECRET guards the admin routes. Empty leaves them open.
	JWTSecret string `env:"JWT_SECRET"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load coupon config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.CouponCacheTTL <= 0 {
		return fmt.Errorf("COUPON_CACHE_TTL must be > 0, got %s", c.CouponCacheTTL)
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}
	if _, err := engine.ParseOverlapPolicy(c.BXGYOverlapPolicy); err != nil {
		return fmt.Errorf("BXGY_OVERLAP_POLICY: %w", err)
	}
	return nil
}

// OverlapPolicy returns the parsed BXGY overlap policy. Load has already
// rejected unknown names.
func (c *Config) OverlapPolicy() engine.OverlapPolicy {
	p, _ := engine.ParseOverlapPolicy(c.BXGYOverlapPolicy)
	return p
}

// Postgres returns the pool settings.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:         c.RedisHost,
		Port:         c.RedisPort,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}
