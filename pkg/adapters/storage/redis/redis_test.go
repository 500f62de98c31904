package redis

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestStore creates a RunStore backed by miniredis
func newTestStore(t *testing.T, ttl time.Duration) (*RunStore, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRunStore(client, ttl, zap.NewNop()), mini
}

func TestRunStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store, mini := newTestStore(t, time.Hour)

	record := &domain.RunRecord{
		RunResult: domain.RunResult{
			RunID:  "run-1",
			Status: domain.RunStatusPartial,
			Result: map[string]interface{}{"A": map[string]interface{}{"msg": "hi"}},
			Error: &domain.ErrorSummary{
				Kind:    domain.KindTimeout,
				Message: "attempt exceeded timeout of 1s",
				NodeID:  "B",
			},
			Nodes: map[string]domain.NodeOutcome{
				"A": {State: domain.NodeStateSucceeded, Output: map[string]interface{}{"msg": "hi"}, Attempts: 1},
			},
		},
		SubmittedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, record))
	assert.True(t, mini.Exists("dagrun:run:run-1"))
	assert.Equal(t, time.Hour, mini.TTL("dagrun:run:run-1"))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPartial, got.Status)
	assert.Equal(t, record.Result, got.Result)
	assert.Equal(t, *record.Error, *got.Error)
	assert.Equal(t, domain.NodeStateSucceeded, got.Nodes["A"].State)
	assert.True(t, record.SubmittedAt.Equal(got.SubmittedAt))
}

func TestRunStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t, 0)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mini := newTestStore(t, time.Minute)

	require.NoError(t, store.Save(ctx, domain.NewRunningRecord("run-1")))
	mini.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, mini := newTestStore(t, 0)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Save(ctx, domain.NewRunningRecord(id)))
	}
	require.NoError(t, mini.Set("unrelated:key", "x"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	require.NoError(t, store.Delete(ctx, "b"))
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids)
}
