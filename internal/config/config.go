package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backend names for storage and events
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the dagrun server
type Config struct {
	// Server configuration
	HTTPPort int    `env:"DAGRUN_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"DAGRUN_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage configuration
	Storage StorageConfig

	// Event bus configuration
	Events EventsConfig

	// Redis configuration
	Redis RedisConfig

	// LLM configuration
	LLM LLMConfig

	// Executor defaults
	Executor ExecutorConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// StorageConfig selects the run store
type StorageConfig struct {
	Backend string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	RunTTL  time.Duration `env:"STORAGE_RUN_TTL" envDefault:"24h"`
}

// EventsConfig selects the event bus
type EventsConfig struct {
	Backend      string `env:"EVENTS_BACKEND" envDefault:"memory"`
	StreamMaxLen int64  `env:"EVENTS_STREAM_MAX_LEN" envDefault:"10000"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// LLMConfig holds LLM provider configuration; the llm agent is registered only with an API key
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`
	BaseURL  string `env:"LLM_BASE_URL"`

	// Default model settings
	DefaultModel     string `env:"LLM_DEFAULT_MODEL" envDefault:"claude-sonnet-4-5"`
	DefaultMaxTokens int64  `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"1024"`
}

// ExecutorConfig holds the defaults applied to every run
type ExecutorConfig struct {
	DefaultConcurrency int           `env:"EXECUTOR_DEFAULT_CONCURRENCY" envDefault:"4"`
	NodeTimeout        time.Duration `env:"EXECUTOR_NODE_TIMEOUT" envDefault:"20s"`
	MaxRetries         int           `env:"EXECUTOR_MAX_RETRIES" envDefault:"2"`
	BackoffInitial     time.Duration `env:"EXECUTOR_BACKOFF_INITIAL" envDefault:"500ms"`
	BackoffMax         time.Duration `env:"EXECUTOR_BACKOFF_MAX" envDefault:"4s"`
	BackoffJitter      float64       `env:"EXECUTOR_BACKOFF_JITTER" envDefault:"0"`
	FetchTimeout       time.Duration `env:"EXECUTOR_FETCH_TIMEOUT" envDefault:"30s"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"4"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"100"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate backends
	if !validBackend(c.Storage.Backend) {
		return fmt.Errorf("invalid storage backend: %s (must be memory or redis)", c.Storage.Backend)
	}
	if !validBackend(c.Events.Backend) {
		return fmt.Errorf("invalid events backend: %s (must be memory or redis)", c.Events.Backend)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}
	if c.Storage.RunTTL < 0 {
		return fmt.Errorf("run TTL must not be negative")
	}

	// Validate LLM config
	if c.LLM.APIKey != "" && c.LLM.Provider != "anthropic" {
		return fmt.Errorf("unsupported LLM provider: %s (only 'anthropic' is supported)", c.LLM.Provider)
	}

	// Validate executor config
	if c.Executor.DefaultConcurrency < 1 {
		return fmt.Errorf("default concurrency must be at least 1")
	}
	if c.Executor.NodeTimeout <= 0 {
		return fmt.Errorf("node timeout must be positive")
	}
	if c.Executor.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Executor.BackoffInitial <= 0 || c.Executor.BackoffMax < c.Executor.BackoffInitial {
		return fmt.Errorf("invalid backoff: initial %s, max %s", c.Executor.BackoffInitial, c.Executor.BackoffMax)
	}
	if c.Executor.BackoffJitter < 0 || c.Executor.BackoffJitter >= 1 {
		return fmt.Errorf("backoff jitter must be in [0, 1)")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("worker queue size must not be negative")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

func validBackend(name string) bool {
	return name == BackendMemory || name == BackendRedis
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == BackendRedis || c.Events.Backend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
