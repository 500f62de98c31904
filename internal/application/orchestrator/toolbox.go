package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
)

// boundTool is a tool with the configuration a node declared for it
type boundTool struct {
	tool   ports.Tool
	config map[string]interface{}
	stage  domain.ToolStage
}

// toolbox implements ports.Toolbox for one node
type toolbox struct {
	nodeID  string
	tools   map[string]boundTool
	before  []string
	metrics ports.MetricsCollector
}

// bindTools looks up every tool a node declares
func bindTools(node *domain.NodeSpec, registry ports.Registry, metrics ports.MetricsCollector) (*toolbox, error) {
	tb := &toolbox{
		nodeID:  node.ID,
		tools:   make(map[string]boundTool, len(node.Agent.Tools)),
		metrics: metrics,
	}

	for _, cfg := range node.Agent.Tools {
		tool, ok := registry.Tool(cfg.Name)
		if !ok {
			return nil, &domain.NodeError{
				Kind:    domain.KindUnknownTool,
				NodeID:  node.ID,
				Message: fmt.Sprintf("unknown tool: %s", cfg.Name),
			}
		}
		stage := cfg.Stage
		if stage == "" {
			stage = domain.ToolStageOnDemand
		}
		tb.tools[cfg.Name] = boundTool{tool: tool, config: cfg.Config, stage: stage}
		if stage == domain.ToolStageBefore {
			tb.before = append(tb.before, cfg.Name)
		}
	}

	return tb, nil
}

// Has reports whether the node declared the tool
func (t *toolbox) Has(name string) bool {
	_, ok := t.tools[name]
	return ok
}

// Call invokes a declared tool; failures are reported as ToolFailure
func (t *toolbox) Call(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	bt, ok := t.tools[name]
	if !ok {
		return nil, &domain.NodeError{
			Kind:    domain.KindToolFailure,
			NodeID:  t.nodeID,
			Message: fmt.Sprintf("tool %s is not configured for this node", name),
		}
	}

	start := time.Now()
	output, err := bt.tool.Call(ctx, args, bt.config)
	t.metrics.RecordToolCall(name, err != nil, time.Since(start))
	if err != nil {
		return nil, &domain.NodeError{
			Kind:    domain.KindToolFailure,
			NodeID:  t.nodeID,
			Message: fmt.Sprintf("tool %s failed: %v", name, err),
			Err:     err,
		}
	}

	return output, nil
}

// runBefore invokes the "before" tools in declared order and threads their
// outputs into inputs under the "tools" key; each tool sees the outputs of
// the tools before it
func (t *toolbox) runBefore(ctx context.Context, inputs map[string]interface{}) error {
	if len(t.before) == 0 {
		return nil
	}

	outputs := make(map[string]interface{}, len(t.before))
	for _, name := range t.before {
		args := make(map[string]interface{}, len(inputs))
		for k, v := range inputs {
			args[k] = v
		}
		output, err := t.Call(ctx, name, args)
		if err != nil {
			return err
		}
		outputs[name] = output
		inputs["tools"] = outputs
	}

	return nil
}
