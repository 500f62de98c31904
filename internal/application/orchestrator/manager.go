package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoRegistry is returned when the manager has no agent registry
var ErrNoRegistry = errors.New("agent registry is not configured")

// Manager coordinates graph execution
type Manager struct {
	registry ports.Registry
	executor *Executor
	events   publisher
	metrics  ports.MetricsCollector
	logger   *zap.Logger

	activeRuns atomic.Int64
}

// NewManager creates a new orchestrator manager
func NewManager(
	registry ports.Registry,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	opts Options,
) *Manager {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &Manager{
		registry: registry,
		executor: NewExecutor(registry, eventBus, metrics, logger, opts),
		events:   publisher{bus: eventBus, logger: logger},
		metrics:  metrics,
		logger:   logger,
	}
}

// Run executes a graph under a newly generated run id
func (m *Manager) Run(ctx context.Context, spec *domain.GraphSpec, concurrency int) (*domain.RunResult, error) {
	return m.RunWithID(ctx, uuid.New().String(), spec, concurrency)
}

// RunWithID validates spec and executes its layers in order with at most
// concurrency nodes in flight. Validation and node failures are reported in the
// result; an error is returned only for invalid configuration.
func (m *Manager) RunWithID(ctx context.Context, runID string, spec *domain.GraphSpec, concurrency int) (*domain.RunResult, error) {
	if m.registry == nil {
		return nil, ErrNoRegistry
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, concurrency)
	}

	startedAt := time.Now()
	m.metrics.SetActiveRuns(int(m.activeRuns.Add(1)))
	defer func() {
		m.metrics.SetActiveRuns(int(m.activeRuns.Add(-1)))
	}()

	m.events.publish(ctx, domain.EventTypeRunStarted, runID, "", map[string]interface{}{
		"concurrency": concurrency,
	})

	graph, err := BuildGraph(spec)
	if err != nil {
		m.logger.Warn("graph validation failed",
			zap.String("run_id", runID),
			zap.Error(err))
		result := &domain.RunResult{
			RunID:       runID,
			Status:      domain.RunStatusFailed,
			Result:      map[string]interface{}{},
			Error:       domain.Summarize("", err),
			StartedAt:   startedAt,
			CompletedAt: time.Now(),
		}
		m.complete(ctx, result)
		return result, nil
	}

	m.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("nodes", graph.Len()),
		zap.Int("layers", len(graph.Layers())),
		zap.Int("concurrency", concurrency))

	rc := NewRunContext()
	for i, layer := range graph.Layers() {
		m.logger.Debug("executing layer",
			zap.String("run_id", runID),
			zap.Int("layer", i),
			zap.Strings("nodes", layer))

		if err := m.executor.RunLayer(ctx, runID, graph, layer, rc, concurrency); err != nil {
			return nil, fmt.Errorf("failed to execute layer %d: %w", i, err)
		}
	}

	result := rc.Result(runID, graph, startedAt)
	m.complete(ctx, result)
	return result, nil
}

func (m *Manager) complete(ctx context.Context, result *domain.RunResult) {
	duration := result.CompletedAt.Sub(result.StartedAt)
	m.metrics.RecordRunCompleted(string(result.Status), duration)

	fields := []zap.Field{
		zap.String("run_id", result.RunID),
		zap.String("status", string(result.Status)),
		zap.Int("succeeded", len(result.Result)),
		zap.Duration("duration", duration),
	}
	if result.Error != nil {
		fields = append(fields, zap.String("error", result.Error.String()))
	}
	m.logger.Info("run completed", fields...)

	data := map[string]interface{}{
		"status": string(result.Status),
	}
	if result.Error != nil {
		data["error"] = result.Error
	}
	m.events.publish(ctx, domain.EventTypeRunCompleted, result.RunID, "", data)
}
