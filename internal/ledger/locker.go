package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arbsim/ledgerd/internal/database"
	"github.com/arbsim/ledgerd/internal/logging"
)

// ErrLocked is returned when an archive or reset is already running for the
// requested ledger scope.
var ErrLocked = errors.New("an archive or reset is already in progress for this ledger")

// lockTTL bounds how long a crashed archiver can hold the distributed lock.
const lockTTL = 30 * time.Second

// Locker serializes archive/reset operations per ledger scope. Read paths
// never take the lock; they tolerate observing a ledger mid-archive.
type Locker interface {
	// Acquire takes the lock for a scope. The returned release function is
	// safe to call exactly once; Acquire fails with ErrLocked when another
	// archive or reset holds the scope.
	Acquire(ctx context.Context, scope string) (release func(), err error)
}

// NewLocker picks the Redis-backed lock when a Redis connection exists,
// otherwise a per-scope in-process mutex. Single-instance deployments do not
// need Redis for correctness.
func NewLocker(redis *database.RedisClient) Locker {
	if redis != nil {
		return &redisLocker{redis: redis}
	}
	return newLocalLocker()
}

type redisLocker struct {
	redis *database.RedisClient
}

func (l *redisLocker) Acquire(ctx context.Context, scope string) (func(), error) {
	key := fmt.Sprintf("lock:ledger:%s", scope)
	token, acquired, err := l.redis.AcquireLock(ctx, key, lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ledger lock: %w", err)
	}
	if !acquired {
		return nil, ErrLocked
	}

	release := func() {
		// Release uses a fresh context so an expired request context cannot
		// leave the lock held until the TTL.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := l.redis.ReleaseLock(releaseCtx, key, token); err != nil {
			logging.WithError(err).Warnf("Failed to release ledger lock %s", key)
		}
	}
	return release, nil
}

type localLocker struct {
	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{scopes: make(map[string]*sync.Mutex)}
}

func (l *localLocker) Acquire(_ context.Context, scope string) (func(), error) {
	l.mu.Lock()
	m, ok := l.scopes[scope]
	if !ok {
		m = &sync.Mutex{}
		l.scopes[scope] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, ErrLocked
	}
	return m.Unlock, nil
}
