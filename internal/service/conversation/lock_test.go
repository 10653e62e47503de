package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestKeyedMutexSerializesKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "AACK_62")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("%d holders at once", maxSeen)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after all unlocks", m.Len())
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := m.Lock(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer a()
	b, err := m.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("second key blocked: %v", err)
	}
	b()
}

func TestKeyedMutexContextCancel(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}

	unlock()
	unlock()
	if m.Len() != 0 {
		t.Errorf("Len = %d", m.Len())
	}
}

type fakeBackend struct {
	mu      sync.Mutex
	holders map[string]string
	fail    error
}

func (b *fakeBackend) TryLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return false, b.fail
	}
	if b.holders == nil {
		b.holders = make(map[string]string)
	}
	if _, ok := b.holders[key]; ok {
		return false, nil
	}
	b.holders[key] = token
	return true, nil
}

func (b *fakeBackend) Unlock(_ context.Context, key, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.holders[key] == token {
		delete(b.holders, key)
	}
	return nil
}

func TestRedisLocker(t *testing.T) {
	backend := &fakeBackend{}
	l := NewRedisLocker(backend, time.Second)
	l.poll = time.Millisecond
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "AACK_62")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := backend.holders["lock: AACK_62"]; !ok {
		t.Fatalf("holders = %v", backend.holders)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(ctx, "AACK_62")
		if err != nil {
			t.Error(err)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRedisLockerErrors(t *testing.T) {
	backend := &fakeBackend{fail: errors.New("connection refused")}
	l := NewRedisLocker(backend, time.Second)
	if _, err := l.Lock(context.Background(), "k"); err == nil {
		t.Fatal("expected backend error")
	}

	backend.fail = nil
	backend.holders = map[string]string{"lock: k": "someone"}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestStoreTakesSharedLock(t *testing.T) {
	backend := &fakeBackend{}
	f := newFixture(t, Options{Locker: NewRedisLocker(backend, time.Second)})
	id := f.open(t, 3, 7)
	f.append(t, id, 3, "hi")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.holders) != 0 {
		t.Errorf("shared lock not released: %v", backend.holders)
	}
}
