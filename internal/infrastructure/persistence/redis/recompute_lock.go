package redis

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE LOCK
// Cross-instance debounce for per-event recalculation. The in-process
// singleflight group coalesces duplicates within one process; this lock
// extends the same drop-not-queue semantics across instances with
// SET NX EX. Recomputation is idempotent, so a dropped request loses
// nothing: the in-flight run produces the same result.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeLock is a per-key distributed lock with drop semantics.
type RecomputeLock struct {
	cache *Cache
	ttl   time.Duration
}

// NewRecomputeLock creates a RecomputeLock. The TTL bounds how long a
// crashed holder can block the next run.
func NewRecomputeLock(cache *Cache, ttl time.Duration) *RecomputeLock {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	return &RecomputeLock{cache: cache, ttl: ttl}
}

// TryAcquire attempts to take the lock for a key. Returns false when
// another holder is in flight; the caller drops the request, it never
// queues.
func (l *RecomputeLock) TryAcquire(ctx context.Context, key string) (bool, error) {
	return l.cache.Client().SetNX(ctx, LockKey(key), "1", l.ttl).Result()
}

// Release frees the lock. Safe to call after expiry; releasing a lock
// re-acquired by another holder is prevented only by the TTL being
// generous relative to run time.
func (l *RecomputeLock) Release(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, LockKey(key))
}
