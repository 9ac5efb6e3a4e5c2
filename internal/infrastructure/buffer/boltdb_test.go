package buffer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, maxSize int) *Store {
	t.Helper()
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "buffer.db"), MaxSize: maxSize})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreDrainOrder(t *testing.T) {
	store := openTestStore(t, 0)
	base := time.Now()

	require.NoError(t, store.Enqueue(Item{ID: "late-activity", Entity: EntityActivity, Priority: PriorityActivity, Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.Enqueue(Item{ID: "early-activity", Entity: EntityActivity, Priority: PriorityActivity, Timestamp: base}))
	require.NoError(t, store.Enqueue(Item{ID: "profile", Entity: EntityProfile, Priority: PriorityProfile, Timestamp: base.Add(time.Hour)}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "profile", items[0].ID)
	assert.Equal(t, "early-activity", items[1].ID)
	assert.Equal(t, "late-activity", items[2].ID)
}

func TestStoreRemoveAndRequeue(t *testing.T) {
	store := openTestStore(t, 0)
	base := time.Now().Add(-time.Hour)
	data, _ := json.Marshal(map[string]string{"page": "home"})
	require.NoError(t, store.Enqueue(Item{Entity: EntityActivity, Data: data, Timestamp: base}))
	require.NoError(t, store.Enqueue(Item{Entity: EntityActivity, Timestamp: base.Add(time.Millisecond)}))

	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"page":"home"}`, string(items[0].Data))

	items[0].Retries++
	require.NoError(t, store.Requeue(items[0]))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	all, err := store.GetBatch(10)
	require.NoError(t, err)
	assert.Equal(t, 1, all[1].Retries, "requeued item moves behind its lane")

	require.NoError(t, store.Remove(all[0]))
	require.NoError(t, store.Remove(Item{ID: all[1].ID}))
	size, err = store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestStoreMaxSize(t *testing.T) {
	store := openTestStore(t, 1)

	require.NoError(t, store.Enqueue(Item{Entity: EntityActivity}))
	assert.ErrorIs(t, store.Enqueue(Item{Entity: EntityActivity}), ErrFull)
}

func TestStoreCleanup(t *testing.T) {
	store := openTestStore(t, 0)
	now := time.Now()
	require.NoError(t, store.Enqueue(Item{ID: "old", Timestamp: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.Enqueue(Item{ID: "new", Timestamp: now}))

	removed, err := store.Cleanup(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].ID)
}
