package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
)

// ErrNoPrompt is returned when the prompt input is missing or empty
var ErrNoPrompt = errors.New("prompt input is required")

// Options configures the Anthropic agent
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// BaseURL overrides the API endpoint
	BaseURL string
}

// Agent sends its "prompt" input to the Anthropic Messages API.
//
// Params (all optional): model, max_tokens, temperature, system.
type Agent struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	metrics   ports.MetricsCollector
	logger    *zap.Logger
}

// NewAgent creates a new Anthropic-backed agent
func NewAgent(opts Options, metrics ports.MetricsCollector, logger *zap.Logger) (*Agent, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	// Retries are owned by the node executor
	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Agent{
		client:    anthropic.NewClient(clientOpts...),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

func (a *Agent) Name() string { return "llm" }

// Execute returns {text, model, stop_reason, usage}
func (a *Agent) Execute(ctx context.Context, inv ports.Invocation) (interface{}, error) {
	prompt, _ := inv.Inputs["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrNoPrompt
	}

	model := a.model
	if m, ok := inv.Params["model"].(string); ok && m != "" {
		model = m
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if n, ok := number(inv.Params["max_tokens"]); ok && n > 0 {
		params.MaxTokens = int64(n)
	}
	if t, ok := number(inv.Params["temperature"]); ok {
		params.Temperature = anthropic.Float(t)
	}
	if system, ok := inv.Params["system"].(string); ok && system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	msg, err := a.client.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("failed to call anthropic: %w", err)
	}

	a.metrics.RecordLLMCall(model, msg.Usage.InputTokens, msg.Usage.OutputTokens, latency)
	a.logger.Debug("llm call completed",
		zap.String("run_id", inv.RunID),
		zap.String("node_id", inv.NodeID),
		zap.String("model", model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Duration("latency", latency))

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return map[string]interface{}{
		"text":        text.String(),
		"model":       string(msg.Model),
		"stop_reason": string(msg.StopReason),
		"usage": map[string]interface{}{
			"input_tokens":  msg.Usage.InputTokens,
			"output_tokens": msg.Usage.OutputTokens,
		},
	}, nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
