package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("provider lock not acquired")
)

// Locker serializes writes to one provider's calendar when the store cannot
// do an atomic conditional insert on its own.
type Locker interface {
	WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error
}

const lockRetryInterval = 25 * time.Millisecond

type redisProviderLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisProviderLocker returns a Locker backed by one Redis key per
// provider. A busy lock is retried for up to wait before giving up with
// ErrLockNotAcquired; ttl bounds how long a crashed holder can block others.
func NewRedisProviderLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisProviderLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(providerID uuid.UUID) string {
	return "lock:provider:" + providerID.String()
}

func (l *redisProviderLocker) WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(providerID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// release even if ctx was cancelled inside fn
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	fnCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(fnCtx)
}

func (l *redisProviderLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire provider lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(lockRetryInterval).Before(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// unlockScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisProviderLocker) release(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release provider lock: %w", err)
	}
	return nil
}
