package cag

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// cacheLocks hands out per-artifact advisory locks. A query holds the lock
// while the artifact is loaded into the engine; the eviction advisor tries
// the same lock before deleting, so it can never pull an artifact out from
// under an in-flight query.
type cacheLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func newCacheLocks() *cacheLocks {
	return &cacheLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (c *cacheLocks) lockFor(cachePath string) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[cachePath]
	if !ok {
		lock = semaphore.NewWeighted(1)
		c.locks[cachePath] = lock
	}
	return lock
}

// Acquire blocks until the artifact lock is held or ctx is done.
func (c *cacheLocks) Acquire(ctx context.Context, cachePath string) error {
	return c.lockFor(cachePath).Acquire(ctx, 1)
}

// TryAcquire takes the lock only if nothing holds it. Used by eviction:
// a busy cache is skipped, never waited on.
func (c *cacheLocks) TryAcquire(cachePath string) bool {
	return c.lockFor(cachePath).TryAcquire(1)
}

func (c *cacheLocks) Release(cachePath string) {
	c.lockFor(cachePath).Release(1)
}
