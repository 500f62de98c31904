package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runSingleLayer(t *testing.T, reg ports.Registry, spec *domain.GraphSpec, limit int) *RunContext {
	t.Helper()
	g, err := BuildGraph(spec)
	require.NoError(t, err)

	exec := NewExecutor(reg, nil, nil, zap.NewNop(), fastOptions())
	rc := NewRunContext()
	for _, layer := range g.Layers() {
		require.NoError(t, exec.RunLayer(context.Background(), "run", g, layer, rc, limit))
	}
	return rc
}

func TestExecutor_ConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	agent := newFuncAgent("slow", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return "ok", nil
	})

	spec := &domain.GraphSpec{}
	for i := 0; i < 12; i++ {
		spec.Nodes = append(spec.Nodes, node(fmt.Sprintf("n%d", i), "slow", nil))
	}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 3)

	assert.LessOrEqual(t, maxInFlight.Load(), int32(3))
	assert.GreaterOrEqual(t, maxInFlight.Load(), int32(1))
	assert.Len(t, rc.Snapshot(), 12)
}

func TestExecutor_RejectsInvalidLimit(t *testing.T) {
	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{node("A", "echo", nil)}}
	g, err := BuildGraph(spec)
	require.NoError(t, err)

	exec := NewExecutor(newRegistry(t, nil), nil, nil, zap.NewNop(), fastOptions())
	err = exec.RunLayer(context.Background(), "run", g, g.Layers()[0], NewRunContext(), 0)
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
}

func TestExecutor_RetryBound(t *testing.T) {
	var calls atomic.Int32
	agent := newFuncAgent("flaky", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		calls.Add(1)
		return nil, errors.New("always fails")
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID:         "A",
		Agent:      domain.AgentConfig{Name: "flaky"},
		MaxRetries: intPtr(2),
	}}}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 1)

	assert.Equal(t, int32(3), calls.Load())
	outcome := rc.Outcome("A")
	assert.Equal(t, domain.NodeStateFailed, outcome.State)
	assert.Equal(t, 3, outcome.Attempts)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, domain.KindAgentFailure, outcome.Error.Kind)
}

func TestExecutor_RetryThenSucceed(t *testing.T) {
	var calls atomic.Int32
	agent := newFuncAgent("flaky", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		if calls.Add(1) < 2 {
			return nil, errors.New("transient")
		}
		return map[string]interface{}{"ok": true}, nil
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID:         "A",
		Agent:      domain.AgentConfig{Name: "flaky"},
		MaxRetries: intPtr(3),
	}}}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 1)

	outcome := rc.Outcome("A")
	assert.Equal(t, domain.NodeStateSucceeded, outcome.State)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, map[string]interface{}{"ok": true}, outcome.Output)
}

func TestExecutor_Timeout(t *testing.T) {
	agent := newFuncAgent("sleepy", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		// Ignores its context on purpose
		time.Sleep(5 * time.Second)
		return "late", nil
	})
	quick := newFuncAgent("quick", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		return "fast", nil
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{
		{
			ID:             "slow",
			Agent:          domain.AgentConfig{Name: "sleepy"},
			TimeoutSeconds: 1,
			MaxRetries:     intPtr(0),
		},
		node("fast", "quick", nil),
	}}

	start := time.Now()
	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent, quick}), spec, 2)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 4*time.Second)
	outcome := rc.Outcome("slow")
	assert.Equal(t, domain.NodeStateFailed, outcome.State)
	require.NotNil(t, outcome.Error)
	assert.Equal(t, domain.KindTimeout, outcome.Error.Kind)
	assert.Equal(t, domain.NodeStateSucceeded, rc.Outcome("fast").State)
}

func TestExecutor_TimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	agent := newFuncAgent("blocking", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID:             "A",
		Agent:          domain.AgentConfig{Name: "blocking"},
		TimeoutSeconds: 0.05,
		MaxRetries:     intPtr(1),
	}}}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 1)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, domain.KindTimeout, rc.Outcome("A").Error.Kind)
}

func TestExecutor_UnknownAgentIsNotRetried(t *testing.T) {
	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID:         "A",
		Agent:      domain.AgentConfig{Name: "missing"},
		MaxRetries: intPtr(5),
	}}}

	rc := runSingleLayer(t, newRegistry(t, nil), spec, 1)

	outcome := rc.Outcome("A")
	assert.Equal(t, 0, outcome.Attempts)
	assert.Equal(t, domain.KindUnknownAgent, outcome.Error.Kind)
}

func TestExecutor_PanicIsAgentFailure(t *testing.T) {
	agent := newFuncAgent("panicky", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		panic("kaboom")
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{node("A", "panicky", nil)}}
	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 1)

	outcome := rc.Outcome("A")
	assert.Equal(t, domain.KindAgentFailure, outcome.Error.Kind)
	assert.Contains(t, outcome.Error.Message, "kaboom")
}

func TestExecutor_UnencodableOutput(t *testing.T) {
	agent := newFuncAgent("chan", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		return make(chan int), nil
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{node("A", "chan", nil)}}
	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 1)

	outcome := rc.Outcome("A")
	assert.Equal(t, domain.NodeStateFailed, outcome.State)
	assert.Equal(t, domain.KindAgentFailure, outcome.Error.Kind)
}

func TestExecutor_AgentReceivesCopyOfInputs(t *testing.T) {
	var calls atomic.Int32
	agent := newFuncAgent("mutating", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		if _, dirty := inv.Inputs["scratch"]; dirty {
			return nil, errors.New("inputs leaked between attempts")
		}
		inv.Inputs["scratch"] = true
		if calls.Add(1) == 1 {
			return nil, errors.New("first attempt fails")
		}
		return inv.Inputs["x"], nil
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID:         "A",
		Agent:      domain.AgentConfig{Name: "mutating"},
		Inputs:     map[string]domain.InputValue{"x": domain.Literal("value")},
		MaxRetries: intPtr(1),
	}}}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 1)
	assert.Equal(t, "value", rc.Outcome("A").Output)
}

func TestExecutor_Tools(t *testing.T) {
	upper := &funcTool{name: "prefix", fn: func(ctx context.Context, args, config map[string]interface{}) (interface{}, error) {
		return fmt.Sprintf("%s%v", config["prefix"], args["text"]), nil
	}}
	counter := &funcTool{name: "count", fn: func(ctx context.Context, args, config map[string]interface{}) (interface{}, error) {
		previous := args["tools"].(map[string]interface{})
		return len(previous["prefix"].(string)), nil
	}}
	lookup := &funcTool{name: "lookup", fn: func(ctx context.Context, args, config map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"found": args["key"]}, nil
	}}

	agent := newFuncAgent("composer", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		found, err := inv.Tools.Call(ctx, "lookup", map[string]interface{}{"key": "k1"})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"before": inv.Inputs["tools"],
			"lookup": found,
		}, nil
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID: "A",
		Agent: domain.AgentConfig{
			Name: "composer",
			Tools: []domain.ToolConfig{
				{Name: "prefix", Stage: domain.ToolStageBefore, Config: map[string]interface{}{"prefix": ">> "}},
				{Name: "count", Stage: domain.ToolStageBefore},
				{Name: "lookup"},
			},
		},
		Inputs: map[string]domain.InputValue{"text": domain.Literal("hello")},
	}}}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}, upper, counter, lookup), spec, 1)

	outcome := rc.Outcome("A")
	require.Equal(t, domain.NodeStateSucceeded, outcome.State, "%+v", outcome.Error)
	assert.Equal(t, map[string]interface{}{
		"before": map[string]interface{}{"prefix": ">> hello", "count": 8},
		"lookup": map[string]interface{}{"found": "k1"},
	}, outcome.Output)
}

func TestExecutor_ToolFailures(t *testing.T) {
	var toolCalls atomic.Int32
	broken := &funcTool{name: "broken", fn: func(ctx context.Context, args, config map[string]interface{}) (interface{}, error) {
		toolCalls.Add(1)
		return nil, errors.New("tool down")
	}}
	agent := newFuncAgent("uses-broken", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		return inv.Tools.Call(ctx, "broken", nil)
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{
		{
			ID:         "retried",
			Agent:      domain.AgentConfig{Name: "uses-broken", Tools: []domain.ToolConfig{{Name: "broken"}}},
			MaxRetries: intPtr(1),
		},
		{
			ID:         "unknown",
			Agent:      domain.AgentConfig{Name: "uses-broken", Tools: []domain.ToolConfig{{Name: "nope"}}},
			MaxRetries: intPtr(3),
		},
	}}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}, broken), spec, 2)

	retried := rc.Outcome("retried")
	assert.Equal(t, domain.KindToolFailure, retried.Error.Kind)
	assert.Equal(t, 2, retried.Attempts)
	assert.Equal(t, int32(2), toolCalls.Load())

	unknown := rc.Outcome("unknown")
	assert.Equal(t, domain.KindUnknownTool, unknown.Error.Kind)
	assert.Equal(t, 0, unknown.Attempts)
}

func TestExecutor_BackoffDoublesUpToMax(t *testing.T) {
	agent := newFuncAgent("flaky", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		return nil, errors.New("always fails")
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID:         "A",
		Agent:      domain.AgentConfig{Name: "flaky"},
		MaxRetries: intPtr(4),
	}}}
	g, err := BuildGraph(spec)
	require.NoError(t, err)

	bus := &recordingBus{}
	opts := fastOptions()
	opts.InitialBackoff = time.Millisecond
	opts.MaxBackoff = 4 * time.Millisecond

	exec := NewExecutor(newRegistry(t, []ports.Agent{agent}), bus, nil, zap.NewNop(), opts)
	rc := NewRunContext()
	require.NoError(t, exec.RunLayer(context.Background(), "run", g, g.Layers()[0], rc, 1))

	var delays []string
	for _, e := range bus.events {
		if e.Type == domain.EventTypeNodeRetrying {
			delays = append(delays, e.Data["backoff"].(string))
		}
	}
	assert.Equal(t, []string{"1ms", "2ms", "4ms", "4ms"}, delays)
	assert.Equal(t, 5, rc.Outcome("A").Attempts)
}

func TestExecutor_HugeTimeoutRunsAgent(t *testing.T) {
	var calls atomic.Int32
	agent := newFuncAgent("quick", func(ctx context.Context, inv ports.Invocation) (interface{}, error) {
		calls.Add(1)
		return "ok", nil
	})

	spec := &domain.GraphSpec{Nodes: []domain.NodeSpec{{
		ID:             "A",
		Agent:          domain.AgentConfig{Name: "quick"},
		TimeoutSeconds: 1e10,
	}}}

	rc := runSingleLayer(t, newRegistry(t, []ports.Agent{agent}), spec, 1)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.NodeStateSucceeded, rc.Outcome("A").State)
}
