package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_GetSetDel(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	val, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, c.Set(ctx, "leaderboard:points", `[{"rank":1}]`, time.Minute))
	val, err = c.Get(ctx, "leaderboard:points")
	require.NoError(t, err)
	assert.Equal(t, `[{"rank":1}]`, val)
	assert.Equal(t, time.Minute, mr.TTL("leaderboard:points"))

	require.NoError(t, c.Del(ctx, "leaderboard:points"))
	assert.False(t, mr.Exists("leaderboard:points"))

	require.NoError(t, c.Health(ctx))
}

func TestRedisCache_SetNXAndDelIfValue(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "token-a", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "token-b", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	deleted, err := c.DelIfValue(ctx, "lock", "token-b")
	require.NoError(t, err)
	assert.False(t, deleted, "a foreign token must not release the lock")
	assert.True(t, mr.Exists("lock"))

	deleted, err = c.DelIfValue(ctx, "lock", "token-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("lock"))
}

func TestLocker_ExclusiveAndTimeout(t *testing.T) {
	_, c := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(c, 10*time.Second, 100*time.Millisecond)

	lock, err := locker.Acquire(ctx, "checkin:lock:user:1")
	require.NoError(t, err)
	assert.Equal(t, "checkin:lock:user:1", lock.Key())

	_, err = locker.Acquire(ctx, "checkin:lock:user:1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	// Other keys never contend.
	other, err := locker.Acquire(ctx, "checkin:lock:user:2")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	again, err := locker.Acquire(ctx, "checkin:lock:user:1")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLocker_WaitsForRelease(t *testing.T) {
	_, c := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(c, 10*time.Second, 2*time.Second)

	lock, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = lock.Release(ctx)
	}()

	second, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(c, time.Second, 50*time.Millisecond)

	stale, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("k"), "stale holder must not delete the new holder's lock")

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists("k"))
}

func TestLocker_ContextCancelled(t *testing.T) {
	_, c := setupRedis(t)
	locker := NewLocker(c, 10*time.Second, 5*time.Second)

	held, err := locker.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
