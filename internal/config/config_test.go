package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.Equal(t, ":9090", cfg.GetGRPCAddr())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, BackendMemory, cfg.Events.Backend)
	assert.False(t, cfg.UsesRedis())
	assert.Equal(t, 4, cfg.Executor.DefaultConcurrency)
	assert.Equal(t, 20*time.Second, cfg.Executor.NodeTimeout)
	assert.Equal(t, 2, cfg.Executor.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Executor.BackoffInitial)
	assert.Equal(t, 4*time.Second, cfg.Executor.BackoffMax)
	assert.Equal(t, 24*time.Hour, cfg.Storage.RunTTL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DAGRUN_HTTP_PORT", "8181")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("EXECUTOR_MAX_RETRIES", "0")
	t.Setenv("WORKER_QUEUE_SIZE", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.HTTPPort)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Executor.MaxRetries)
	assert.Equal(t, 7, cfg.Workers.QueueSize)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port out of range", "DAGRUN_GRPC_PORT", "70000"},
		{"unknown storage backend", "STORAGE_BACKEND", "postgres"},
		{"unknown events backend", "EVENTS_BACKEND", "kafka"},
		{"zero concurrency", "EXECUTOR_DEFAULT_CONCURRENCY", "0"},
		{"negative retries", "EXECUTOR_MAX_RETRIES", "-1"},
		{"jitter too large", "EXECUTOR_BACKOFF_JITTER", "1.5"},
		{"backoff max below initial", "EXECUTOR_BACKOFF_MAX", "100ms"},
		{"bad log level", "LOG_LEVEL", "trace"},
		{"unparsable duration", "EXECUTOR_NODE_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_LLMProvider(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.LLM.Provider = "other"
	assert.NoError(t, cfg.Validate(), "provider is ignored without an API key")

	cfg.LLM.APIKey = "key"
	assert.Error(t, cfg.Validate())
}
