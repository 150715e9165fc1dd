package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// PublishLockKey guards the pinned summary across service instances.
const PublishLockKey = "sharegate:lock:publish"

// releaseScript deletes the lock only when it is still held by the caller.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// ErrLockNotHeld is returned by Release when the lock expired or changed owner.
var ErrLockNotHeld = errors.New("lock not held")

// Lock is a mutex shared through Redis with a bounded lifetime.
type Lock struct {
	client       rueidis.Client
	key          string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewLock creates a Lock on key that expires after ttl if never released.
func NewLock(client rueidis.Client, key string, ttl time.Duration, logger *zap.Logger) *Lock {
	return &Lock{
		client:       client,
		key:          key,
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
		logger:       logger.Named("redis_lock"),
	}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		acquired, err := l.tryAcquire(ctx, token)
		if err != nil {
			return nil, err
		}

		if acquired {
			return func() {
				// The caller's context may already be done when releasing
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()

				if err := l.release(releaseCtx, token); err != nil {
					l.logger.Warn("Failed to release lock", zap.String("key", l.key), zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// tryAcquire sets the key if it is free.
func (l *Lock) tryAcquire(ctx context.Context, token string) (bool, error) {
	err := l.client.Do(ctx, l.client.B().Set().
		Key(l.key).
		Value(token).
		Nx().
		Px(l.ttl).
		Build()).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}

	return true, nil
}

// release deletes the key if token still owns it.
func (l *Lock) release(ctx context.Context, token string) error {
	deleted, err := l.client.Do(ctx, l.client.B().Eval().
		Script(releaseScript).
		Numkeys(1).
		Key(l.key).
		Arg(token).
		Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}

	if deleted == 0 {
		return ErrLockNotHeld
	}

	return nil
}
