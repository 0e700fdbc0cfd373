package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockAndRelease(t *testing.T) {
	mr, client := setupMiniredis(t)
	l := NewRedis(client, 50*time.Millisecond, time.Minute)

	unlock, err := l.Lock(context.Background(), "bob|alice", "alice|bob")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"alice|bob"))
	assert.True(t, mr.Exists(keyPrefix+"bob|alice"))

	_, err = l.Lock(context.Background(), "alice|bob")
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"alice|bob"))

	unlock2, err := l.Lock(context.Background(), "alice|bob")
	require.NoError(t, err)
	unlock2()
}

func TestRedisReleaseKeepsForeignLease(t *testing.T) {
	mr, client := setupMiniredis(t)
	l := NewRedis(client, 50*time.Millisecond, time.Second)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// the lease expires and another holder takes the key
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(keyPrefix+"k", "someone-else"))

	unlock()
	v, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	l := NewRedis(client, time.Second, time.Second)
	mr.Close()

	_, err := l.Lock(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}
