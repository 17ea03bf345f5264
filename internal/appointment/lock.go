package appointment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// KeyedLocker is an in-process per-provider mutex for single-instance
// deployments whose store lacks atomic conditional writes. Waiting for a
// busy provider stops as soon as ctx is done.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[uuid.UUID]*keyedEntry)}
}

func (l *KeyedLocker) WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := l.ref(providerID)
	defer l.unref(providerID, e)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *KeyedLocker) ref(providerID uuid.UUID) *keyedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[providerID]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.locks[providerID] = e
	}
	e.refs++
	return e
}

func (l *KeyedLocker) unref(providerID uuid.UUID, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, providerID)
	}
}
