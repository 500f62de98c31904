package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/dagrun/pkg/adapters/registry"
	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/stretchr/testify/require"
)

// funcAgent is a simple Agent implementation for testing
type funcAgent struct {
	name string
	fn   func(ctx context.Context, inv ports.Invocation) (interface{}, error)
}

func (a *funcAgent) Name() string { return a.name }
func (a *funcAgent) Execute(ctx context.Context, inv ports.Invocation) (interface{}, error) {
	return a.fn(ctx, inv)
}

func newFuncAgent(name string, fn func(ctx context.Context, inv ports.Invocation) (interface{}, error)) ports.Agent {
	return &funcAgent{name: name, fn: fn}
}

// funcTool is a simple Tool implementation for testing
type funcTool struct {
	name string
	fn   func(ctx context.Context, args, config map[string]interface{}) (interface{}, error)
}

func (t *funcTool) Name() string { return t.name }
func (t *funcTool) Call(ctx context.Context, args, config map[string]interface{}) (interface{}, error) {
	return t.fn(ctx, args, config)
}

func newRegistry(t *testing.T, agents []ports.Agent, tools ...ports.Tool) ports.Registry {
	t.Helper()
	r, err := registry.NewBuilder().WithAgents(agents...).WithTools(tools...).Build()
	require.NoError(t, err)
	return r
}

func node(id, agent string, inputs map[string]domain.InputValue) domain.NodeSpec {
	return domain.NodeSpec{
		ID:     id,
		Agent:  domain.AgentConfig{Name: agent},
		Inputs: inputs,
	}
}

func edge(source, target string) domain.EdgeSpec {
	return domain.EdgeSpec{Source: source, Target: target}
}

func intPtr(v int) *int { return &v }

// fastOptions keeps retry delays short in tests
func fastOptions() Options {
	return Options{
		DefaultTimeout:    2 * time.Second,
		DefaultMaxRetries: 0,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        4 * time.Millisecond,
	}
}
