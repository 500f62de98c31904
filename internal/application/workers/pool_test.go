package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/pkg/adapters/storage/memory"
	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingRunner finishes runs when release is closed
type blockingRunner struct {
	release chan struct{}
	err     error

	mu   sync.Mutex
	runs []string
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) RunWithID(ctx context.Context, runID string, spec *domain.GraphSpec, concurrency int) (*domain.RunResult, error) {
	r.mu.Lock()
	r.runs = append(r.runs, runID)
	r.mu.Unlock()

	<-r.release
	if r.err != nil {
		return nil, r.err
	}
	now := time.Now()
	return &domain.RunResult{
		RunID:       runID,
		Status:      domain.RunStatusSucceeded,
		Result:      map[string]interface{}{"A": "ok"},
		StartedAt:   now,
		CompletedAt: now,
	}, nil
}

func testSpec() *domain.GraphSpec {
	return &domain.GraphSpec{Nodes: []domain.NodeSpec{{ID: "A", Agent: domain.AgentConfig{Name: "echo"}}}}
}

func newTestPool(t *testing.T, runner Runner, size, queue int) (*Pool, *memory.RunStore) {
	t.Helper()
	store := memory.NewRunStore()
	pool := NewPool(Config{Size: size, QueueSize: queue, HealthCheckInterval: time.Hour}, runner, store, nil, zap.NewNop())
	require.NoError(t, pool.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return pool, store
}

func waitForStatus(t *testing.T, store *memory.RunStore, runID string, status domain.RunStatus) *domain.RunRecord {
	t.Helper()
	var record *domain.RunRecord
	require.Eventually(t, func() bool {
		r, err := store.Get(context.Background(), runID)
		if err != nil {
			return false
		}
		record = r
		return r.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return record
}

func TestPool_SubmitRecordsRunningThenFinal(t *testing.T) {
	runner := newBlockingRunner()
	pool, store := newTestPool(t, runner, 1, 4)

	runID, err := pool.Submit(context.Background(), testSpec(), 2)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	running, err := store.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, running.Status)
	assert.False(t, running.SubmittedAt.IsZero())

	close(runner.release)
	final := waitForStatus(t, store, runID, domain.RunStatusSucceeded)
	assert.Equal(t, map[string]interface{}{"A": "ok"}, final.Result)
	assert.Equal(t, running.SubmittedAt.UnixNano(), final.SubmittedAt.UnixNano())
}

func TestPool_RunnerErrorIsRecorded(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = errors.New("broken registry")
	close(runner.release)
	pool, store := newTestPool(t, runner, 1, 1)

	runID, err := pool.Submit(context.Background(), testSpec(), 1)
	require.NoError(t, err)

	final := waitForStatus(t, store, runID, domain.RunStatusFailed)
	require.NotNil(t, final.Error)
	assert.Contains(t, final.Error.Message, "broken registry")
}

func TestPool_RejectsInvalidConcurrency(t *testing.T) {
	pool, store := newTestPool(t, newBlockingRunner(), 1, 1)

	_, err := pool.Submit(context.Background(), testSpec(), 0)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidConcurrency)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPool_QueueFull(t *testing.T) {
	runner := newBlockingRunner()
	defer close(runner.release)
	pool, store := newTestPool(t, runner, 1, 1)

	first, err := pool.Submit(context.Background(), testSpec(), 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pool.GetStatus()["worker-0"] == WorkerStatusBusy }, time.Second, 5*time.Millisecond)

	second, err := pool.Submit(context.Background(), testSpec(), 1)
	require.NoError(t, err)

	_, err = pool.Submit(context.Background(), testSpec(), 1)
	assert.ErrorIs(t, err, ErrQueueFull)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, ids)
	assert.Equal(t, 1, pool.QueueDepth())
}

func TestPool_ShutdownAbortsQueuedRuns(t *testing.T) {
	runner := newBlockingRunner()
	store := memory.NewRunStore()
	pool := NewPool(Config{Size: 1, QueueSize: 2, HealthCheckInterval: time.Hour}, runner, store, nil, zap.NewNop())
	require.NoError(t, pool.Start())

	var changes []bool
	var mu sync.Mutex
	pool.Health().OnChange(func(healthy bool) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, healthy)
	})

	busy, err := pool.Submit(context.Background(), testSpec(), 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pool.GetStatus()["worker-0"] == WorkerStatusBusy }, time.Second, 5*time.Millisecond)
	queued, err := pool.Submit(context.Background(), testSpec(), 1)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- pool.Shutdown(ctx)
	}()
	require.Eventually(t, func() bool { return pool.ctx.Err() != nil }, time.Second, time.Millisecond)

	_, err = pool.Submit(context.Background(), testSpec(), 1)
	assert.ErrorIs(t, err, ErrPoolStopped)

	close(runner.release)
	require.NoError(t, <-done)

	waitForStatus(t, store, busy, domain.RunStatusSucceeded)
	aborted := waitForStatus(t, store, queued, domain.RunStatusFailed)
	assert.Equal(t, domain.KindAborted, aborted.Error.Kind)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{false}, changes)
	assert.False(t, pool.Health().IsHealthy())
}

func TestWorker_DequeuedAfterShutdownIsAborted(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	store := memory.NewRunStore()
	pool := NewPool(Config{Size: 1, QueueSize: 1, HealthCheckInterval: time.Hour}, runner, store, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool.workers[0].handle(ctx, job{runID: "late", spec: testSpec(), concurrency: 1, submittedAt: time.Now()})

	runner.mu.Lock()
	assert.Empty(t, runner.runs)
	runner.mu.Unlock()

	record, err := store.Get(context.Background(), "late")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, record.Status)
	assert.Equal(t, domain.KindAborted, record.Error.Kind)

	pool.workers[0].handle(context.Background(), job{runID: "live", spec: testSpec(), concurrency: 1, submittedAt: time.Now()})
	record, err = store.Get(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, record.Status)
}
