package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionLockKey is the Redis key guarding the single in-flight sync session.
const SessionLockKey = "assignment-sync:session"

// releaseScript deletes the key only when it is still held by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's TTL only when it is still held by the caller.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// MemoryLock is a process-local busy flag.
type MemoryLock struct {
	mu    sync.Mutex
	owner string
}

// NewMemoryLock constructs an unlocked MemoryLock.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{}
}

// Acquire takes the lock for owner if it is free.
func (l *MemoryLock) Acquire(_ context.Context, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner != "" {
		return false, nil
	}
	l.owner = owner
	return true, nil
}

// Release frees the lock if owner holds it.
func (l *MemoryLock) Release(_ context.Context, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == owner {
		l.owner = ""
	}
	return nil
}

// Holder returns the current owner, if any.
func (l *MemoryLock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// RedisLock serializes sync sessions across processes sharing one sheet.
// The process-local lock is taken first so a single process never spends a
// round trip on a session it already runs. While held, the key's TTL is
// extended every third of the TTL until Release.
type RedisLock struct {
	client *redis.Client
	local  *MemoryLock
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	renewal map[string]context.CancelFunc
}

// NewRedisLock constructs a Redis-backed session lock.
func NewRedisLock(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisLock{
		client:  client,
		local:   NewMemoryLock(),
		ttl:     ttl,
		logger:  logger,
		renewal: make(map[string]context.CancelFunc),
	}
}

// Acquire sets the session key with NX and a TTL so a crashed holder cannot
// block later sessions forever.
func (l *RedisLock) Acquire(ctx context.Context, owner string) (bool, error) {
	ok, _ := l.local.Acquire(ctx, owner)
	if !ok {
		return false, nil
	}

	acquired, err := l.client.SetNX(ctx, SessionLockKey, owner, l.ttl).Result()
	if err != nil {
		_ = l.local.Release(ctx, owner)
		return false, fmt.Errorf("redis setnx %s: %w", SessionLockKey, err)
	}
	if !acquired {
		_ = l.local.Release(ctx, owner)
		return false, nil
	}

	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.mu.Lock()
	l.renewal[owner] = cancel
	l.mu.Unlock()
	go keepAlive(renewCtx, l.ttl/3, func(ctx context.Context) (bool, error) {
		return l.extend(ctx, owner)
	}, l.logger.With(zap.String("owner", owner)))
	return true, nil
}

func (l *RedisLock) extend(ctx context.Context, owner string) (bool, error) {
	n, err := renewScript.Run(ctx, l.client, []string{SessionLockKey}, owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis renew %s: %w", SessionLockKey, err)
	}
	return n == 1, nil
}

// keepAlive calls renew every interval until ctx ends or renew reports the
// lock is no longer held. Errors are logged and retried on the next tick.
func keepAlive(ctx context.Context, every time.Duration, renew func(context.Context) (bool, error), logger *zap.Logger) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := renew(ctx)
			if err != nil {
				logger.Warn("failed to extend session lock", zap.Error(err))
				continue
			}
			if !held {
				logger.Warn("session lock lost before release")
				return
			}
		}
	}
}

// Release deletes the session key when still owned by owner.
func (l *RedisLock) Release(ctx context.Context, owner string) error {
	defer func() { _ = l.local.Release(ctx, owner) }()

	l.mu.Lock()
	if stop, ok := l.renewal[owner]; ok {
		stop()
		delete(l.renewal, owner)
	}
	l.mu.Unlock()

	if err := releaseScript.Run(ctx, l.client, []string{SessionLockKey}, owner).Err(); err != nil && err != redis.Nil {
		l.logger.Warn("failed to release redis session lock", zap.String("owner", owner), zap.Error(err))
		return fmt.Errorf("redis release %s: %w", SessionLockKey, err)
	}
	return nil
}
