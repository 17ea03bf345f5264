package redisclient

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a live Redis. Set REDIS_ADDR to run them.
func testLocker(t *testing.T) Locker {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), Options{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisProviderLocker(rdb, 2*time.Second, 100*time.Millisecond)
}

func TestRedisProviderLocker_Exclusive(t *testing.T) {
	locker := testLocker(t)
	providerID := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := locker.WithProviderLock(context.Background(), providerID, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
		assert.NoError(t, err)
	}()

	<-held
	err := locker.WithProviderLock(context.Background(), providerID, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	err = locker.WithProviderLock(context.Background(), uuid.New(), func(context.Context) error { return nil })
	assert.NoError(t, err, "other providers are not blocked")

	close(release)
	wg.Wait()

	err = locker.WithProviderLock(context.Background(), providerID, func(context.Context) error { return nil })
	assert.NoError(t, err, "lock is released after fn returns")
}

func TestRedisProviderLocker_PropagatesError(t *testing.T) {
	locker := testLocker(t)
	err := locker.WithProviderLock(context.Background(), uuid.New(), func(context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}
