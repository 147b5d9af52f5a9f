// Package redislock serialises admission decisions per user across notifyd
// instances with a Redis lease (SET NX PX) released by a compare-and-delete script.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications"
	rediskeys "github.com/dmitrymomot/schoolnotify/pkg/redis"
)

// ErrLockFailed wraps Redis errors raised while acquiring a lease.
var ErrLockFailed = errors.New("failed to acquire admission lock")

// Client is the part of the go-redis API the locker uses.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements notifications.Locker on Redis.
type Locker struct {
	client         Client
	prefix         string
	ttl            time.Duration
	retryInterval  time.Duration
	releaseTimeout time.Duration
}

// Option configures a Locker.
type Option func(*Locker)

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithTTL sets the lease length. A crashed holder blocks the user for at most this long.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets how long Lock waits between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// New creates a Redis backed locker.
func New(client Client, opts ...Option) *Locker {
	l := &Locker{
		client:         client,
		prefix:         "schoolnotify",
		ttl:            10 * time.Second,
		retryInterval:  25 * time.Millisecond,
		releaseTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ notifications.Locker = (*Locker)(nil)

// Key returns the Redis key guarding userID.
func (l *Locker) Key(userID string) string {
	return rediskeys.Key(l.prefix, "lock", "admission", userID)
}

// Lock polls until the lease is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, userID string) (func(), error) {
	key := l.Key(userID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %w", ErrLockFailed, err)
		}
		if ok {
			return l.unlocker(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.releaseTimeout)
		defer cancel()
		// A failed release expires with the lease.
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
}
