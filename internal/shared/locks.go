package shared

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PeriodLockKey builds redis keys for consolidation critical sections.
func PeriodLockKey(tenantID, periodID string) string {
	return fmt.Sprintf("consolidex:tenant:%s:period:%s:lock", tenantID, periodID)
}

// PeriodLocks serialises mutating sequences scoped to a (tenant, period) pair.
// Unrelated pairs proceed in parallel.
type PeriodLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPeriodLocks constructs an empty lock table.
func NewPeriodLocks() *PeriodLocks {
	return &PeriodLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the (tenant, period) lock is held and returns the
// release function. Lock entries are never evicted; the table is bounded by
// the number of distinct periods a process touches.
func (p *PeriodLocks) Acquire(tenantID, periodID string) func() {
	key := tenantID + "|" + periodID
	p.mu.Lock()
	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}
	p.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// ErrLockHeld indicates another worker owns the distributed period lock.
var ErrLockHeld = errors.New("period lock held by another worker")

// DistributedPeriodLock guards period mutations across processes using a
// redis SET NX lease. Intended for background workers; in-process callers
// rely on PeriodLocks.
type DistributedPeriodLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDistributedPeriodLock constructs the redis-backed lock.
func NewDistributedPeriodLock(client *redis.Client, ttl time.Duration) *DistributedPeriodLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DistributedPeriodLock{client: client, ttl: ttl}
}

// Acquire takes the lease or returns ErrLockHeld. The returned release
// function deletes the lease only when the token still matches, so an
// expired lease stolen by another worker is never released by us.
func (d *DistributedPeriodLock) Acquire(ctx context.Context, tenantID, periodID, token string) (func(context.Context) error, error) {
	if d == nil || d.client == nil {
		return nil, errors.New("distributed lock not configured")
	}
	key := PeriodLockKey(tenantID, periodID)
	ok, err := d.client.SetNX(ctx, key, token, d.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire period lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func(ctx context.Context) error {
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		return d.client.Eval(ctx, script, []string{key}, token).Err()
	}
	return release, nil
}
