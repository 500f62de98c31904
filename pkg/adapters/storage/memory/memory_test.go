package memory

import (
	"context"
	"testing"

	"github.com/aescanero/dagrun/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStore_SaveGetListDelete(t *testing.T) {
	ctx := context.Background()
	store := NewRunStore()

	running := domain.NewRunningRecord("run-b")
	require.NoError(t, store.Save(ctx, running))
	require.NoError(t, store.Save(ctx, domain.NewRunningRecord("run-a")))

	// Mutating the caller's record does not change the stored copy
	running.Status = domain.RunStatusFailed
	got, err := store.Get(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusRunning, got.Status)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, ids)

	require.NoError(t, store.Delete(ctx, "run-a"))
	_, err = store.Get(ctx, "run-a")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunStore_RejectsRecordWithoutID(t *testing.T) {
	store := NewRunStore()
	assert.Error(t, store.Save(context.Background(), &domain.RunRecord{}))
	assert.Error(t, store.Save(context.Background(), nil))
}
