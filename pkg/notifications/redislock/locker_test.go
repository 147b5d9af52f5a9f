package redislock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolnotify/pkg/notifications/redislock"
)

// fakeRedis implements SET NX and the release script over a map.
type fakeRedis struct {
	mu      sync.Mutex
	values  map[string]string
	setErr  error
	setNX   int
	evalSha int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setNX++
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, exists := f.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalSha++
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, "", keys, args...)
}

func (f *fakeRedis) EvalRO(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("not implemented"))
}

func (f *fakeRedis) EvalShaRO(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("not implemented"))
}

func (f *fakeRedis) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(nil, errors.New("not implemented"))
}

func (f *fakeRedis) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", errors.New("not implemented"))
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

func TestLocker_LockUnlock(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	locker := redislock.New(client, redislock.WithKeyPrefix("test"), redislock.WithRetryInterval(time.Millisecond))
	assert.Equal(t, "test:lock:admission:u1", locker.Key("u1"))

	unlock, err := locker.Lock(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, client.has("test:lock:admission:u1"))

	unlock()
	assert.False(t, client.has("test:lock:admission:u1"))
}

func TestLocker_WaitsForHolder(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	locker := redislock.New(client, redislock.WithRetryInterval(time.Millisecond))

	unlock, err := locker.Lock(context.Background(), "u1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(context.Background(), "u1")
		if err == nil {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func TestLocker_ContextCancelled(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	locker := redislock.New(client, redislock.WithRetryInterval(time.Millisecond))

	unlock, err := locker.Lock(context.Background(), "u1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_RedisError(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	client.setErr = errors.New("connection refused")
	locker := redislock.New(client)

	_, err := locker.Lock(context.Background(), "u1")
	require.ErrorIs(t, err, redislock.ErrLockFailed)
}

func TestLocker_UnlockKeepsForeignLease(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	locker := redislock.New(client, redislock.WithTTL(time.Minute))

	unlock, err := locker.Lock(context.Background(), "u1")
	require.NoError(t, err)

	// Simulate lease expiry followed by another holder.
	client.mu.Lock()
	client.values[locker.Key("u1")] = "someone-else"
	client.mu.Unlock()

	unlock()
	assert.True(t, client.has(locker.Key("u1")))
}
