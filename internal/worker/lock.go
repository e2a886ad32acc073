package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned by a Locker when another holder owns the key.
var ErrNotObtained = errors.New("lock not obtained")

// Locker serializes work per key across workers.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// RedisLocker holds locks in Redis so several worker processes can share a
// queue.
type RedisLocker struct {
	client *redislock.Client
	retry  redislock.RetryStrategy
}

func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		retry:  redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", key, err)
	}
	return lock, nil
}

// LocalLocker is a process-local Locker for single-worker deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, ErrNotObtained
	}
	exp := now.Add(ttl)
	l.held[key] = exp
	return &localLock{owner: l, key: key, exp: exp}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	exp   time.Time
}

func (k *localLock) Release(context.Context) error {
	k.owner.mu.Lock()
	defer k.owner.mu.Unlock()
	// a newer holder took over after expiry
	if cur, ok := k.owner.held[k.key]; !ok || !cur.Equal(k.exp) {
		return nil
	}
	delete(k.owner.held, k.key)
	return nil
}
