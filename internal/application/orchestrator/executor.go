package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidConcurrency is returned for a concurrency limit below 1
var ErrInvalidConcurrency = errors.New("concurrency limit must be at least 1")

// Options tunes node execution
type Options struct {
	// DefaultTimeout applies to nodes without timeout_seconds
	DefaultTimeout time.Duration
	// DefaultMaxRetries applies to nodes without max_retries
	DefaultMaxRetries int
	// InitialBackoff is the delay before the first retry; it doubles per retry
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries
	MaxBackoff time.Duration
	// BackoffJitter randomizes delays by this factor (0 disables)
	BackoffJitter float64
}

// DefaultOptions returns the execution defaults
func DefaultOptions() Options {
	return Options{
		DefaultTimeout:    domain.DefaultNodeTimeout,
		DefaultMaxRetries: domain.DefaultMaxRetries,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        4 * time.Second,
	}
}

// Executor runs the nodes of one layer concurrently
type Executor struct {
	registry ports.Registry
	metrics  ports.MetricsCollector
	events   publisher
	logger   *zap.Logger
	opts     Options
}

// NewExecutor creates a new layer executor
func NewExecutor(
	registry ports.Registry,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	opts Options,
) *Executor {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	defaults := DefaultOptions()
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaults.DefaultTimeout
	}
	if opts.DefaultMaxRetries < 0 {
		opts.DefaultMaxRetries = defaults.DefaultMaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaults.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	return &Executor{
		registry: registry,
		metrics:  metrics,
		events:   publisher{bus: eventBus, logger: logger},
		logger:   logger,
		opts:     opts,
	}
}

// RunLayer executes the nodes of layer with at most limit in flight and records
// exactly one outcome per node in rc. Nodes whose dependencies did not succeed
// are recorded as skipped without execution. A failed node never cancels its siblings.
func (e *Executor) RunLayer(ctx context.Context, runID string, g *Graph, layer []string, rc *RunContext, limit int) error {
	if limit < 1 {
		return ErrInvalidConcurrency
	}

	var group errgroup.Group
	group.SetLimit(limit)

	for _, nodeID := range layer {
		node, ok := g.Node(nodeID)
		if !ok {
			_ = group.Wait()
			return fmt.Errorf("node %s is not part of the graph", nodeID)
		}

		if failed := failedDependency(g, nodeID, rc); failed != "" {
			e.skip(ctx, runID, node, failed, rc)
			continue
		}

		// Go blocks until a slot is free; the slot is released when the node finishes
		group.Go(func() error {
			e.runNode(ctx, runID, node, rc)
			return nil
		})
	}

	return group.Wait()
}

// failedDependency returns the first dependency without a succeeded outcome
func failedDependency(g *Graph, nodeID string, rc *RunContext) string {
	for _, dep := range g.Dependencies(nodeID) {
		if rc.Outcome(dep).State != domain.NodeStateSucceeded {
			return dep
		}
	}
	return ""
}

func (e *Executor) skip(ctx context.Context, runID string, node *domain.NodeSpec, failedDep string, rc *RunContext) {
	err := &domain.NodeError{
		Kind:    domain.KindSkipped,
		NodeID:  node.ID,
		Message: fmt.Sprintf("dependency %s did not succeed", failedDep),
	}

	e.record(ctx, runID, node, rc, nil, err, 0, 0)
}

// runNode resolves inputs, binds tools and invokes the agent with timeout and retry
func (e *Executor) runNode(ctx context.Context, runID string, node *domain.NodeSpec, rc *RunContext) {
	start := time.Now()

	e.events.publish(ctx, domain.EventTypeNodeStarted, runID, node.ID, map[string]interface{}{
		"agent": node.Agent.Name,
	})

	agent, ok := e.registry.Agent(node.Agent.Name)
	if !ok {
		e.record(ctx, runID, node, rc, nil, &domain.NodeError{
			Kind:    domain.KindUnknownAgent,
			NodeID:  node.ID,
			Message: fmt.Sprintf("unknown agent: %s", node.Agent.Name),
		}, 0, time.Since(start))
		return
	}

	tools, err := bindTools(node, e.registry, e.metrics)
	if err != nil {
		e.record(ctx, runID, node, rc, nil, err, 0, time.Since(start))
		return
	}

	inputs, err := ResolveInputs(node, rc)
	if err != nil {
		e.record(ctx, runID, node, rc, nil, err, 0, time.Since(start))
		return
	}

	timeout := node.Timeout(e.opts.DefaultTimeout)
	retries := node.Retries(e.opts.DefaultMaxRetries)

	attempts := 0
	operation := func() (interface{}, error) {
		attempts++
		e.metrics.RecordAttempt(node.Agent.Name)
		return e.attempt(ctx, runID, node, agent, tools, inputs, timeout)
	}

	notify := func(err error, next time.Duration) {
		e.metrics.RecordRetry(node.Agent.Name)
		e.logger.Warn("node attempt failed, retrying",
			zap.String("run_id", runID),
			zap.String("node_id", node.ID),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", next),
			zap.Error(err))
		e.events.publish(ctx, domain.EventTypeNodeRetrying, runID, node.ID, map[string]interface{}{
			"attempt": attempts,
			"error":   err.Error(),
			"backoff": next.String(),
		})
	}

	output, err := backoff.Retry[interface{}](ctx, operation,
		backoff.WithBackOff(e.newBackOff()),
		backoff.WithMaxTries(uint(retries+1)),
		// Attempts are bounded by max tries only
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil && domain.KindOf(err) == "" {
		// Run context cancelled while waiting between attempts
		err = &domain.NodeError{
			Kind:    domain.KindAgentFailure,
			NodeID:  node.ID,
			Message: fmt.Sprintf("run interrupted: %v", err),
			Err:     err,
		}
	}

	e.record(ctx, runID, node, rc, output, err, attempts, time.Since(start))
}

// newBackOff returns a doubling backoff capped at MaxBackoff
func (e *Executor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.InitialBackoff
	b.MaxInterval = e.opts.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = e.opts.BackoffJitter
	return b
}

type attemptResult struct {
	output interface{}
	err    error
}

// attempt runs tools and agent once with a bounded wait. On timeout the attempt
// is abandoned: its context is cancelled but its goroutine is not awaited.
func (e *Executor) attempt(
	ctx context.Context,
	runID string,
	node *domain.NodeSpec,
	agent ports.Agent,
	tools *toolbox,
	inputs map[string]interface{},
	timeout time.Duration,
) (interface{}, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Agents may mutate their inputs; each attempt gets its own copy
	effective := make(map[string]interface{}, len(inputs)+1)
	for k, v := range inputs {
		effective[k] = v
	}

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()

		if err := tools.runBefore(attemptCtx, effective); err != nil {
			done <- attemptResult{err: err}
			return
		}

		output, err := agent.Execute(attemptCtx, ports.Invocation{
			RunID:  runID,
			NodeID: node.ID,
			Inputs: effective,
			Params: node.Agent.Params,
			Tools:  tools,
		})
		done <- attemptResult{output: output, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, e.classify(ctx, attemptCtx, node, timeout, res.err)
		}
		return res.output, nil

	case <-attemptCtx.Done():
		return nil, e.classify(ctx, attemptCtx, node, timeout, attemptCtx.Err())
	}
}

// classify maps an attempt failure to a retryable node error
func (e *Executor) classify(ctx, attemptCtx context.Context, node *domain.NodeSpec, timeout time.Duration, err error) error {
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		e.metrics.RecordTimeout(node.Agent.Name)
		return &domain.NodeError{
			Kind:    domain.KindTimeout,
			NodeID:  node.ID,
			Message: fmt.Sprintf("attempt exceeded timeout of %s", timeout),
			Err:     err,
		}
	}

	var nodeErr *domain.NodeError
	if errors.As(err, &nodeErr) && nodeErr.Kind.Retryable() {
		return nodeErr
	}

	return &domain.NodeError{
		Kind:    domain.KindAgentFailure,
		NodeID:  node.ID,
		Message: fmt.Sprintf("agent %s failed: %v", node.Agent.Name, err),
		Err:     err,
	}
}

// record writes the node's terminal outcome and reports it
func (e *Executor) record(
	ctx context.Context,
	runID string,
	node *domain.NodeSpec,
	rc *RunContext,
	output interface{},
	err error,
	attempts int,
	duration time.Duration,
) {
	if err == nil {
		if encErr := rc.Succeed(node.ID, output, attempts, duration); encErr != nil {
			if errors.Is(encErr, ErrOutcomeRecorded) {
				e.logger.Error("duplicate node outcome", zap.String("run_id", runID), zap.String("node_id", node.ID))
				return
			}
			err = &domain.NodeError{
				Kind:     domain.KindAgentFailure,
				NodeID:   node.ID,
				Message:  fmt.Sprintf("agent output is not JSON-encodable: %v", encErr),
				Attempts: attempts,
				Err:      encErr,
			}
		} else {
			e.metrics.RecordNodeCompleted(node.Agent.Name, string(domain.NodeStateSucceeded), duration)
			e.logger.Info("node succeeded",
				zap.String("run_id", runID),
				zap.String("node_id", node.ID),
				zap.String("agent", node.Agent.Name),
				zap.Int("attempts", attempts),
				zap.Duration("duration", duration))
			e.events.publish(ctx, domain.EventTypeNodeSucceeded, runID, node.ID, map[string]interface{}{
				"output":   output,
				"attempts": attempts,
			})
			return
		}
	}

	var nodeErr *domain.NodeError
	if errors.As(err, &nodeErr) {
		nodeErr.Attempts = attempts
	}

	if recErr := rc.Fail(node.ID, err, attempts, duration); recErr != nil {
		e.logger.Error("duplicate node outcome", zap.String("run_id", runID), zap.String("node_id", node.ID))
		return
	}

	kind := domain.KindOf(err)
	eventType := domain.EventTypeNodeFailed
	if kind == domain.KindSkipped {
		eventType = domain.EventTypeNodeSkipped
	}

	e.metrics.RecordNodeCompleted(node.Agent.Name, string(kind), duration)
	e.logger.Warn("node failed",
		zap.String("run_id", runID),
		zap.String("node_id", node.ID),
		zap.String("agent", node.Agent.Name),
		zap.String("kind", string(kind)),
		zap.Int("attempts", attempts),
		zap.Error(err))
	e.events.publish(ctx, eventType, runID, node.ID, map[string]interface{}{
		"kind":     string(kind),
		"error":    err.Error(),
		"attempts": attempts,
	})
}
