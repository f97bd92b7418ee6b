package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/luabridge/domain/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func stores(t *testing.T, clock *fakeClock) map[string]ports.Cache {
	t.Helper()
	sqlStore, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	sqlStore.now = clock.Now
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]ports.Cache{
		"memory": NewMemoryStore(WithClock(clock.Now)),
		"sqlite": sqlStore,
	}
}

func TestStores_GetSet(t *testing.T) {
	for name, store := range stores(t, newClock()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Get(ctx, []byte("missing"))
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, []byte("k"), []byte("v1"), 0))
			require.NoError(t, store.Set(ctx, []byte("k"), []byte("v2"), 0))
			v, ok, err := store.Get(ctx, []byte("k"))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("v2"), v)

			require.NoError(t, store.Set(ctx, []byte("empty"), nil, 0))
			v, ok, err = store.Get(ctx, []byte("empty"))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, v)
		})
	}
}

func TestStores_Expiry(t *testing.T) {
	clock := newClock()
	all := stores(t, clock)
	ctx := context.Background()

	for _, store := range all {
		require.NoError(t, store.Set(ctx, []byte("short"), []byte("x"), 10*time.Second))
		require.NoError(t, store.Set(ctx, []byte("forever"), []byte("y"), 0))
	}

	clock.Advance(9 * time.Second)
	for name, store := range all {
		_, ok, err := store.Get(ctx, []byte("short"))
		require.NoError(t, err)
		assert.True(t, ok, name)
	}

	clock.Advance(time.Second)
	for name, store := range all {
		_, ok, err := store.Get(ctx, []byte("short"))
		require.NoError(t, err)
		assert.False(t, ok, name)

		_, ok, err = store.Get(ctx, []byte("forever"))
		require.NoError(t, err)
		assert.True(t, ok, name)
	}
}

func TestMemoryStore_ExpiryDropsEntry(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, []byte("short"), []byte("x"), 10*time.Second))
	require.NoError(t, store.Set(ctx, []byte("forever"), []byte("y"), 0))

	clock.Advance(10 * time.Second)

	_, ok, err := store.Get(ctx, []byte("short"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	_, ok, err = store.Get(ctx, []byte("forever"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, []byte("k"), value, 0))
	value[0] = 'z'

	got, _, err := store.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, _, _ := store.Get(ctx, []byte("k"))
	assert.Equal(t, "abc", string(again))
}

func TestSQLiteStore_ExpiryAndPurge(t *testing.T) {
	clock := newClock()
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	store.now = clock.Now

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, []byte("a"), []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, []byte("b"), []byte("2"), time.Second))
	require.NoError(t, store.Set(ctx, []byte("c"), []byte("3"), 0))

	clock.Advance(2 * time.Second)

	_, ok, err := store.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	v, ok, err := store.Get(ctx, []byte("c"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), v)
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, []byte("k"), []byte("kept"), 0))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	v, ok, err := second.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kept", string(v))
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []byte{byte('a' + i)}
			for j := 0; j < 100; j++ {
				_ = store.Set(ctx, key, []byte{byte(j)}, time.Minute)
				_, _, _ = store.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, store.Len())
}
