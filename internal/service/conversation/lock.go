package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pairchat/internal/utils/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Locker serializes mutations of one thread. Lock blocks until the key is
// free or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type (
	// KeyedMutex is an in-process Locker with one mutex per key. Entries are
	// dropped once nobody holds or waits for them.
	KeyedMutex struct {
		mu    sync.Mutex
		locks map[string]*keyedLock
	}

	keyedLock struct {
		ch   chan struct{}
		refs int
	}
)

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				m.release(key, l)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) release(key string, l *keyedLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// LockBackend is the subset of the redis service used for distributed locks.
type LockBackend interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// RedisLocker serializes a key across processes with SET NX PX. The ttl
// bounds how long a crashed holder can block others. It must exceed the
// store's operation timeout, or the lock can lapse mid write.
type RedisLocker struct {
	backend LockBackend
	ttl     time.Duration
	poll    time.Duration
}

func NewRedisLocker(backend LockBackend, ttl time.Duration) *RedisLocker {
	return &RedisLocker{backend: backend, ttl: ttl, poll: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("lock: %s", key)
	token := uuid.NewString()

	for {
		ok, err := l.backend.TryLock(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", lockKey, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// release even when the operation's ctx already expired
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := l.backend.Unlock(ctx, lockKey, token); err != nil {
						log.Warn("release thread lock failed", zap.String("key", lockKey), zap.Error(err))
					}
				})
			}, nil
		}

		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
