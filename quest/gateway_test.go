package quest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(store *MockStore) *Gateway {
	g := NewGateway(store, discardLogger())
	g.SetRetry(Retry{Attempts: 3})
	return g
}

func legacyJSON(t *testing.T, snap database.Snapshot) []byte {
	t.Helper()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	return data
}

func TestLoad_MigratesLegacyCache(t *testing.T) {
	store := NewMockStore()
	store.Snapshots["acct"] = database.DefaultSnapshot()
	g := newTestGateway(store)

	legacy := fourTaskSnapshot()
	cache := &MemoryLegacyCache{Data: legacyJSON(t, legacy)}

	res, err := g.Load(context.Background(), "acct", cache)
	require.NoError(t, err)
	assert.Equal(t, SourceLegacy, res.Source)
	assert.Equal(t, legacy, res.Snapshot)
	assert.Equal(t, legacy, store.stored("acct"))
	assert.True(t, cache.Cleared)

	// The cache is gone, so the next load reads the store.
	res, err = g.Load(context.Background(), "acct", cache)
	require.NoError(t, err)
	assert.Equal(t, SourceStore, res.Source)
}

func TestLoad_IgnoresMalformedLegacyCache(t *testing.T) {
	three := database.DefaultSnapshot()[:3]

	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{oops")},
		{"object", []byte(`{"lists": []}`)},
		{"wrong length", legacyJSON(t, three)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMockStore()
			stored := fourTaskSnapshot()
			store.Snapshots["acct"] = stored
			g := newTestGateway(store)
			cache := &MemoryLegacyCache{Data: tt.data}

			res, err := g.Load(context.Background(), "acct", cache)
			require.NoError(t, err)
			assert.Equal(t, SourceStore, res.Source)
			assert.Equal(t, stored, res.Snapshot)
			assert.False(t, cache.Cleared)
			assert.Zero(t, store.saveCount())
		})
	}
}

func TestLoad_PersistsDefaultsForNewAccount(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(store)

	res, err := g.Load(context.Background(), "new", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceDefaults, res.Source)
	assert.Equal(t, database.DefaultSnapshot(), res.Snapshot)
	assert.Equal(t, database.DefaultSnapshot(), store.stored("new"))
}

func TestLoad_RetriesTransientReadErrors(t *testing.T) {
	store := NewMockStore()
	stored := fourTaskSnapshot()
	calls := 0
	store.GetFunc = func(ctx context.Context, accountID string) (database.Snapshot, bool, error) {
		calls++
		if calls < 3 {
			return nil, false, errMockStore
		}
		return stored, true, nil
	}
	g := newTestGateway(store)

	res, err := g.Load(context.Background(), "acct", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, SourceStore, res.Source)
}

func TestLoad_GivesUpAfterRetries(t *testing.T) {
	store := NewMockStore()
	store.GetFunc = func(ctx context.Context, accountID string) (database.Snapshot, bool, error) {
		return nil, false, errMockStore
	}
	g := newTestGateway(store)

	_, err := g.Load(context.Background(), "acct", nil)
	assert.ErrorIs(t, err, errMockStore)
	assert.Equal(t, 3, store.GetCount)
	assert.Zero(t, store.saveCount(), "defaults are not written over an unreadable store")
}

func TestLoad_DoesNotRetryAuthErrors(t *testing.T) {
	store := NewMockStore()
	store.GetFunc = func(ctx context.Context, accountID string) (database.Snapshot, bool, error) {
		return nil, false, &AuthError{Message: "token expired"}
	}
	g := newTestGateway(store)

	_, err := g.Load(context.Background(), "acct", nil)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, store.GetCount)
}

func TestSave_ReplacesWholeSnapshot(t *testing.T) {
	store := NewMockStore()
	store.Snapshots["acct"] = fourTaskSnapshot()
	g := newTestGateway(store)

	next := database.DefaultSnapshot()
	require.NoError(t, g.Save(context.Background(), "acct", next))
	assert.Equal(t, next, store.stored("acct"))
}

func TestSave_ReturnsStoreErrors(t *testing.T) {
	store := NewMockStore()
	store.SaveFunc = func(ctx context.Context, accountID string, snap database.Snapshot) error {
		return errMockStore
	}
	g := newTestGateway(store)

	err := g.Save(context.Background(), "acct", database.DefaultSnapshot())
	assert.ErrorIs(t, err, errMockStore)
}

func TestSaveDebounced_CoalescesBurst(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(store)
	h := newTestHolder(t, nil)

	done := make(chan error, 10)
	for i := 0; i < 5; i++ {
		_, ok := h.AddTask(todo1, "Task")
		require.True(t, ok)
		g.SaveDebounced("acct", h.Snapshot(), 30*time.Millisecond, func(err error) { done <- err })
	}
	assert.True(t, g.Pending("acct"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced save never ran")
	}

	// Give any stray timers a chance to fire.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, store.saveCount())
	assert.Len(t, store.stored("acct")[0].Tasks, 5)
	assert.Equal(t, h.Snapshot(), store.stored("acct"))
	assert.False(t, g.Pending("acct"))
	assert.Empty(t, done, "superseded callbacks never fire")
}

func TestSaveDebounced_SnapshotIsCopied(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(store)

	snap := fourTaskSnapshot()
	g.SaveDebounced("acct", snap, time.Hour, nil)
	snap[0].Tasks[0].Name = "mutated"

	require.NoError(t, g.Flush(context.Background(), "acct"))
	assert.Equal(t, "A", store.stored("acct")[0].Tasks[0].Name)
}

func TestFlushAndCancel(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(store)

	var flushed error = errMockStore
	g.SaveDebounced("acct", fourTaskSnapshot(), time.Hour, func(err error) { flushed = err })
	require.NoError(t, g.Flush(context.Background(), "acct"))
	assert.NoError(t, flushed)
	assert.Equal(t, 1, store.saveCount())

	// Nothing pending: flushing again is a no-op.
	require.NoError(t, g.Flush(context.Background(), "acct"))
	assert.Equal(t, 1, store.saveCount())

	g.SaveDebounced("acct", database.DefaultSnapshot(), time.Hour, nil)
	g.Cancel("acct")
	assert.False(t, g.Pending("acct"))
	require.NoError(t, g.Flush(context.Background(), "acct"))
	assert.Equal(t, 1, store.saveCount())
}

func TestSaveDebounced_ReportsFailure(t *testing.T) {
	store := NewMockStore()
	store.SaveFunc = func(ctx context.Context, accountID string, snap database.Snapshot) error {
		return errMockStore
	}
	g := newTestGateway(store)

	done := make(chan error, 1)
	g.SaveDebounced("acct", database.DefaultSnapshot(), time.Millisecond, func(err error) { done <- err })

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errMockStore)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced save never ran")
	}
}

func TestTwoTabs_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()
	s0 := database.DefaultSnapshot()
	s0[0].Tasks = []database.Task{{ID: "t1", Name: "Review contract", Position: 0}}
	store.Snapshots["acct"] = s0

	tabA, tabB := newTestGateway(store), newTestGateway(store)
	holderA, holderB := NewHolder(sequentialIDs()), NewHolder(sequentialIDs())

	resA, err := tabA.Load(ctx, "acct", nil)
	require.NoError(t, err)
	holderA.Initialize(resA.Snapshot)
	resB, err := tabB.Load(ctx, "acct", nil)
	require.NoError(t, err)
	holderB.Initialize(resB.Snapshot)

	_, ok := holderA.AddTask(todo1, "Pay invoice")
	require.True(t, ok)
	require.NoError(t, tabA.Save(ctx, "acct", holderA.Snapshot()))

	require.True(t, holderB.ToggleTask(todo1, "t1"))
	require.NoError(t, tabB.Save(ctx, "acct", holderB.Snapshot()))

	final := store.stored("acct")
	assert.Equal(t, holderB.Snapshot(), final)
	require.Len(t, final[0].Tasks, 1)
	assert.True(t, final[0].Tasks[0].Completed)
	for _, task := range final[0].Tasks {
		assert.NotEqual(t, "Pay invoice", task.Name, "tab A's addition is overwritten")
	}
}
