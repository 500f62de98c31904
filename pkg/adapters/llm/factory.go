package llm

import (
	"fmt"

	"github.com/aescanero/dagrun/pkg/adapters/llm/anthropic"
	"github.com/aescanero/dagrun/pkg/ports"
	"go.uber.org/zap"
)

// Config holds LLM agent configuration
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int64
	BaseURL   string
	Metrics   ports.MetricsCollector
	Logger    *zap.Logger
}

// NewAgent creates the "llm" agent for the configured provider
func NewAgent(cfg *Config) (ports.Agent, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewAgent(anthropic.Options{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			BaseURL:   cfg.BaseURL,
		}, cfg.Metrics, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
