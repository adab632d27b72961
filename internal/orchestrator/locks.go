package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// JobLocker provides mutual exclusion around reconciliation of a single job.
// Lock blocks until the lock is held or ctx is done and returns the release
// function.
type JobLocker interface {
	Lock(ctx context.Context, jobID string) (func(), error)
}

// KeyedMutex is the in-process JobLocker used when the service runs as a
// single instance.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex constructs an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the per-job lock, respecting context cancellation.
func (k *KeyedMutex) Lock(ctx context.Context, jobID string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[jobID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[jobID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			k.release(jobID, l)
		}, nil
	case <-ctx.Done():
		k.release(jobID, l)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(jobID string, l *keyedLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, jobID)
	}
	k.mu.Unlock()
}

// RedisLocker implements JobLocker on redislock for multi-instance
// deployments, where two replicas can reconcile the same job concurrently.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker wraps a redislock client. ttl bounds how long a crashed
// holder can block others.
func NewRedisLocker(client *redislock.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Lock obtains the distributed lock with linear retry until ctx is done.
func (r *RedisLocker) Lock(ctx context.Context, jobID string) (func(), error) {
	lock, err := r.client.Obtain(ctx, "job-reconcile:"+jobID, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	})
	if err != nil {
		return nil, fmt.Errorf("obtain job lock: %w", err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

var (
	_ JobLocker = (*KeyedMutex)(nil)
	_ JobLocker = (*RedisLocker)(nil)
)
