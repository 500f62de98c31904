package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/aescanero/dagrun/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when no more runs can be queued
	ErrQueueFull = errors.New("run queue is full")
	// ErrPoolStopped is returned for submissions after shutdown started
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Runner executes a graph under a given run id
type Runner interface {
	RunWithID(ctx context.Context, runID string, spec *domain.GraphSpec, concurrency int) (*domain.RunResult, error)
}

// Config sizes the pool
type Config struct {
	Size                int
	QueueSize           int
	HealthCheckInterval time.Duration
}

// Pool manages a pool of worker goroutines
type Pool struct {
	size    int
	runner  Runner
	store   ports.RunStore
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	queue   chan job
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool
}

// job is one queued run
type job struct {
	runID       string
	spec        *domain.GraphSpec
	concurrency int
	submittedAt time.Time
}

// worker represents a single worker goroutine
type worker struct {
	id     string
	pool   *Pool
	status WorkerStatus
	mu     sync.RWMutex
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	cfg Config,
	runner Runner,
	store ports.RunStore,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Pool {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    cfg.Size,
		runner:  runner,
		store:   store,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan job, cfg.QueueSize),
		workers: make([]*worker, cfg.Size),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := range pool.workers {
		pool.workers[i] = &worker{
			id:     fmt.Sprintf("worker-%d", i),
			pool:   pool,
			status: WorkerStatusStopped,
		}
	}

	pool.health = NewHealthMonitor(pool, cfg.HealthCheckInterval, logger)

	return pool
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("worker pool already started")
	}
	if p.stopped {
		return ErrPoolStopped
	}
	p.started = true

	p.logger.Info("starting worker pool",
		zap.Int("size", p.size),
		zap.Int("queue_size", cap(p.queue)))

	for _, w := range p.workers {
		w.setStatus(WorkerStatusIdle)

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit records a running run and queues it for execution. It never blocks:
// a full queue is rejected with ErrQueueFull.
func (p *Pool) Submit(ctx context.Context, spec *domain.GraphSpec, concurrency int) (string, error) {
	if concurrency < 1 {
		return "", fmt.Errorf("%w: got %d", orchestrator.ErrInvalidConcurrency, concurrency)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return "", ErrPoolStopped
	}

	j := job{
		runID:       uuid.New().String(),
		spec:        spec,
		concurrency: concurrency,
		submittedAt: time.Now(),
	}

	record := domain.NewRunningRecord(j.runID)
	record.SubmittedAt = j.submittedAt
	if err := p.store.Save(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save run record: %w", err)
	}

	select {
	case p.queue <- j:
	default:
		if err := p.store.Delete(ctx, j.runID); err != nil {
			p.logger.Warn("failed to remove rejected run record",
				zap.String("run_id", j.runID),
				zap.Error(err))
		}
		p.metrics.RecordRunSubmitted("rejected")
		p.logger.Warn("run rejected, queue full", zap.Int("queue_size", cap(p.queue)))
		return "", ErrQueueFull
	}

	p.metrics.RecordRunSubmitted("accepted")
	p.metrics.SetQueueDepth(len(p.queue))
	p.logger.Info("run submitted",
		zap.String("run_id", j.runID),
		zap.Int("nodes", len(spec.Nodes)),
		zap.Int("queue_depth", len(p.queue)))

	return j.runID, nil
}

// QueueDepth returns the number of runs waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// Shutdown stops accepting runs, lets busy workers finish their current run
// and marks runs still queued as aborted
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}

	p.abortQueued(ctx)
	p.logger.Info("worker pool shut down complete")
	return nil
}

// abortQueued records every run left in the queue as failed
func (p *Pool) abortQueued(ctx context.Context) {
	for {
		select {
		case j := <-p.queue:
			p.abort(ctx, j)
		default:
			p.metrics.SetQueueDepth(0)
			return
		}
	}
}

// abort records a run that never started as failed
func (p *Pool) abort(ctx context.Context, j job) {
	now := time.Now()
	record := &domain.RunRecord{
		RunResult: domain.RunResult{
			RunID:  j.runID,
			Status: domain.RunStatusFailed,
			Result: map[string]interface{}{},
			Error: &domain.ErrorSummary{
				Kind:    domain.KindAborted,
				Message: "server shut down before the run started",
			},
			StartedAt:   now,
			CompletedAt: now,
		},
		SubmittedAt: j.submittedAt,
	}
	if err := p.store.Save(ctx, record); err != nil {
		p.logger.Error("failed to save aborted run",
			zap.String("run_id", j.runID),
			zap.Error(err))
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()
	defer w.setStatus(WorkerStatusStopped)

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		// Shutdown wins over queued work
		if ctx.Err() != nil {
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		}

		select {
		case <-ctx.Done():
		case j := <-w.pool.queue:
			w.handle(ctx, j)
		}
	}
}

// handle executes j unless shutdown began while it was being dequeued;
// select picks at random when both cases are ready
func (w *worker) handle(ctx context.Context, j job) {
	if ctx.Err() != nil {
		w.pool.abort(context.Background(), j)
		return
	}
	w.execute(j)
}

// execute runs one job to completion and stores its final record
func (w *worker) execute(j job) {
	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)

	w.pool.metrics.SetQueueDepth(len(w.pool.queue))
	w.pool.metrics.ObserveQueueWait(time.Since(j.submittedAt))

	w.pool.logger.Info("executing run",
		zap.String("worker_id", w.id),
		zap.String("run_id", j.runID))

	// Started runs are not cancelled by shutdown
	ctx := context.Background()

	record := &domain.RunRecord{SubmittedAt: j.submittedAt}
	result, err := w.pool.runner.RunWithID(ctx, j.runID, j.spec, j.concurrency)
	if err != nil {
		now := time.Now()
		record.RunResult = domain.RunResult{
			RunID:       j.runID,
			Status:      domain.RunStatusFailed,
			Result:      map[string]interface{}{},
			Error:       &domain.ErrorSummary{Kind: domain.KindInvalidSpec, Message: err.Error()},
			StartedAt:   now,
			CompletedAt: now,
		}
	} else {
		record.RunResult = *result
	}

	if err := w.pool.store.Save(ctx, record); err != nil {
		w.pool.logger.Error("failed to save run record",
			zap.String("worker_id", w.id),
			zap.String("run_id", j.runID),
			zap.Error(err))
		return
	}

	w.pool.logger.Info("run finished",
		zap.String("worker_id", w.id),
		zap.String("run_id", j.runID),
		zap.String("status", string(record.Status)))
}
