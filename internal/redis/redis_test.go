package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSlotLockReleasesAfterCallback(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	called := false
	err := locker.WithSlotLock(context.Background(), "2026-10-14", "09-11", func(ctx context.Context) error {
		called = true
		assert.True(t, mr.Exists(slotLockKey("2026-10-14", "09-11")))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, mr.Exists(slotLockKey("2026-10-14", "09-11")))
}

func TestSlotLockContention(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	err := locker.WithSlotLock(context.Background(), "2026-10-14", "09-11", func(ctx context.Context) error {
		inner := locker.WithSlotLock(ctx, "2026-10-14", "09-11", func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithSlotLock(ctx, "2026-10-14", "11-13", func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)
}

func TestSlotLockPropagatesCallbackError(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	boom := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), "2026-10-14", "07-09", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(slotLockKey("2026-10-14", "07-09")))
}

func TestSlotLockDoesNotReleaseForeignToken(t *testing.T) {
	mr, client := newTestClient(t)
	l := &redisSlotLocker{client: client, ttl: time.Second}

	require.NoError(t, mr.Set("lock:slot:x", "someone-else"))
	require.NoError(t, l.release(context.Background(), "lock:slot:x", "mine"))
	assert.True(t, mr.Exists("lock:slot:x"))
}

func TestResultCacheInvalidatesOnLedgerChange(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewResultCache(client, time.Minute)
	ctx := context.Background()

	_, version, ok, err := cache.Load(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Store(ctx, version, "fp", []byte(`{"cost":1}`)))
	data, _, ok, err := cache.Load(ctx, "fp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"cost":1}`, string(data))

	require.NoError(t, cache.LedgerChanged(ctx))
	_, _, ok, err = cache.Load(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultCacheDropsResultComputedBeforeLedgerChange(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewResultCache(client, time.Minute)
	ctx := context.Background()

	_, seen, ok, err := cache.Load(ctx, "fp")
	require.NoError(t, err)
	require.False(t, ok)

	// a booking commits while the run is still computing
	require.NoError(t, cache.LedgerChanged(ctx))

	require.NoError(t, cache.Store(ctx, seen, "fp", []byte(`{"cost":1}`)))

	_, current, ok, err := cache.Load(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, seen+1, current)
}
