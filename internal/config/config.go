// Package config loads the marketplace node configuration from the
// environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for one marketplace node.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"marketplace"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8081"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":9090"`

	// Catalog loaded once at startup.
	ProductsCSV string `env:"PRODUCTS_CSV" envDefault:"products.csv"`

	UsersServiceURL   string `env:"USERS_SERVICE_URL" envDefault:"http://localhost:8080"`
	WalletsServiceURL string `env:"WALLETS_SERVICE_URL" envDefault:"http://localhost:8082"`

	AskTimeout          time.Duration `env:"ASK_TIMEOUT" envDefault:"5s"`
	ExternalCallTimeout time.Duration `env:"EXTERNAL_CALL_TIMEOUT" envDefault:"3s"`

	PlacementWorkers    int `env:"PLACEMENT_WORKERS" envDefault:"50"`
	CancellationWorkers int `env:"CANCELLATION_WORKERS" envDefault:"50"`
	EntityShards        int `env:"ENTITY_SHARDS" envDefault:"32"`

	// Empty means an in-process idempotency cache.
	RedisAddr      string        `env:"REDIS_ADDR"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Empty means order events are not published.
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaOrdersTopic string   `env:"KAFKA_ORDERS_TOPIC" envDefault:"marketplace.orders"`

	// Empty means the saga log is kept in memory.
	SagaLogPath string `env:"SAGA_LOG_PATH"`

	// Circuit breaker settings for the users and wallets services
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	UserLookupRetries int `env:"USER_LOOKUP_RETRIES" envDefault:"2"`

	OTELEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	for name, addr := range map[string]string{
		"HTTP_ADDR": c.HTTPAddr,
		"GRPC_ADDR": c.GRPCAddr,
	} {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, addr, err)
		}
	}
	for name, rawURL := range map[string]string{
		"USERS_SERVICE_URL":   c.UsersServiceURL,
		"WALLETS_SERVICE_URL": c.WalletsServiceURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	if c.ProductsCSV == "" {
		return fmt.Errorf("PRODUCTS_CSV is required")
	}
	if c.AskTimeout <= 0 {
		return fmt.Errorf("ASK_TIMEOUT must be positive, got %s", c.AskTimeout)
	}
	if c.ExternalCallTimeout <= 0 {
		return fmt.Errorf("EXTERNAL_CALL_TIMEOUT must be positive, got %s", c.ExternalCallTimeout)
	}
	if c.PlacementWorkers < 1 || c.CancellationWorkers < 1 {
		return fmt.Errorf("worker pools need at least one worker, got placement=%d cancellation=%d",
			c.PlacementWorkers, c.CancellationWorkers)
	}
	if c.EntityShards < 1 {
		return fmt.Errorf("ENTITY_SHARDS must be at least 1, got %d", c.EntityShards)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("IDEMPOTENCY_TTL must be positive, got %s", c.IdempotencyTTL)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaOrdersTopic == "" {
		return fmt.Errorf("KAFKA_ORDERS_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.UserLookupRetries < 0 {
		return fmt.Errorf("USER_LOOKUP_RETRIES must not be negative, got %d", c.UserLookupRetries)
	}
	return nil
}

// CBIntervalDuration returns the breaker counting interval.
func (c *Config) CBIntervalDuration() time.Duration {
	return time.Duration(c.CBInterval) * time.Second
}

// CBTimeoutDuration returns how long a tripped breaker stays open.
func (c *Config) CBTimeoutDuration() time.Duration {
	return time.Duration(c.CBTimeout) * time.Second
}
