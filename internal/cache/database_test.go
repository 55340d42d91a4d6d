package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lguportal/portal/internal/database/testutil"
)

func newDatabaseStore(t *testing.T) (*DatabaseStore, *time.Time) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store, _ := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "alpha", []byte("one"), time.Minute))
	require.NoError(t, store.Set(ctx, "alpha", []byte("two"), time.Minute))

	value, ok, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), value)

	require.NoError(t, store.Delete(ctx, "alpha", "missing"))
	_, ok, err = store.Get(ctx, "alpha")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreExpiry(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))
	*now = now.Add(time.Hour)

	_, ok, err := store.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDatabaseStoreIncrementFixedWindow(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	*now = now.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)

	*now = now.Add(41 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "b", []byte("1"), time.Hour))
	require.NoError(t, store.Set(ctx, "c", []byte("1"), 0))
	*now = now.Add(time.Minute)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestNilDatabaseStore(t *testing.T) {
	var store *DatabaseStore
	_, _, err := store.Get(context.Background(), "x")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Nil(t, NewDatabaseStore(nil))
}
