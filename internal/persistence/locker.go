package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockNotAcquired is returned when ctx ends before the lock frees up.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker grants exclusive access per key. The returned unlock func is safe to
// call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NewLocker picks the Redis locker when a client is configured.
func NewLocker(r *Redis, ttl time.Duration, logger *zap.Logger) Locker {
	if r.Enabled() {
		return NewRedisLocker(r.Client, ttl, logger)
	}
	return NewLocalLocker()
}

// LocalLocker serializes holders of the same key inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty keyed lock.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, slot)
		return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
	}
}

func (l *LocalLocker) release(key string, slot *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

var releaseScript = redis.NewScript(`
-- KEYS[1] = lock key
-- ARGV[1] = holder token
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

const (
	redisLockPrefix   = "ticket-lock:"
	redisRetryMin     = 10 * time.Millisecond
	redisRetryMax     = 200 * time.Millisecond
	redisUnlockBudget = 2 * time.Second
)

// RedisLocker holds keys across service replicas with SET NX PX. The TTL
// frees keys whose holder died; the row lock taken inside the transaction
// still guards the write if a TTL lapses mid-mutation.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker builds a distributed locker.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()
	backoff := redisRetryMin

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}
		if backoff *= 2; backoff > redisRetryMax {
			backoff = redisRetryMax
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled; release regardless.
			releaseCtx, cancel := context.WithTimeout(context.Background(), redisUnlockBudget)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("release ticket lock", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}, nil
}
