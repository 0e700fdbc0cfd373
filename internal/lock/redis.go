package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "iou:lock:"

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica pointed at the same server.
// Each key is a SET NX PX lease; the lease outlives a crashed holder by at
// most ttl.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
	ttl     time.Duration
	retry   time.Duration
}

func NewRedis(client *redis.Client, timeout, ttl time.Duration) *Redis {
	return &Redis{client: client, timeout: timeout, ttl: ttl, retry: 10 * time.Millisecond}
}

func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	held := make([]string, 0, len(keys))
	for _, k := range keys {
		if err := r.acquire(wctx, keyPrefix+k, token); err != nil {
			r.release(held, token)
			if wctx.Err() != nil {
				return nil, waitErr(ctx)
			}
			return nil, fmt.Errorf("lock: acquire %s: %w", k, err)
		}
		held = append(held, keyPrefix+k)
	}

	var once sync.Once
	return func() { once.Do(func() { r.release(held, token) }) }, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	t := time.NewTicker(r.retry)
	defer t.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (r *Redis) release(keys []string, token string) {
	// the caller's context may already be done; release on a fresh one
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	for _, k := range keys {
		if err := releaseScript.Run(ctx, r.client, []string{k}, token).Err(); err != nil {
			slog.Warn("lock release failed", "key", k, "err", err)
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
