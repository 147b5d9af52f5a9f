package notifications

import (
	"context"
	"sync"
)

// KeyedLocker is an in-process Locker. Lock entries are reference counted and
// removed once no goroutine holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedLocker creates an in-process per-user locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

func (k *KeyedLocker) Lock(ctx context.Context, userID string) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[userID]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		k.locks[userID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(userID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.release(userID, l)
		})
	}, nil
}

func (k *KeyedLocker) release(userID string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, userID)
	}
}

// noopLocker is used when the Service is built without a locker.
type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
