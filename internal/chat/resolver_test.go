package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
)

func TestResolve_CreatesOnceThenReuses(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	fake := &fakeClient{}
	r := NewResolver(repo, fake, nil)

	first, err := r.Resolve(context.Background(), 9301, ModeGPT)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), 9301, ModeGPT)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first != second {
		t.Fatalf("thread changed between resolves: %q -> %q", first, second)
	}
	if n := fake.countCalls("CreateThread"); n != 1 {
		t.Fatalf("expected 1 remote create, got %d", n)
	}
}

func TestResolve_ConcurrentSingleCreate(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	fake := &fakeClient{}
	r := NewResolver(repo, fake, nil)

	const goroutines = 10
	results := make([]string, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), 9302, ModeGPT)
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("resolve %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("divergent threads: %q vs %q", results[i], results[0])
		}
	}
	if n := fake.countCalls("CreateThread"); n != 1 {
		t.Fatalf("expected 1 remote create, got %d", n)
	}
}

func TestResolve_RemoteFailureRecordsNothing(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	fake := &fakeClient{
		createThreadFn: func(ctx context.Context) (string, error) {
			return "", &assistant.RemoteError{Category: assistant.CategoryTransient, Message: "down"}
		},
	}
	r := NewResolver(repo, fake, nil)

	_, err := r.Resolve(context.Background(), 9303, ModeGPT)
	if _, ok := assistant.AsRemoteError(err); !ok {
		t.Fatalf("expected remote error, got %v", err)
	}
	if _, err := repo.GetThreadID(context.Background(), 9303, ModeGPT); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("failed create left a mapping: %v", err)
	}

	// the next attempt is free to succeed
	fake.createThreadFn = nil
	got, err := r.Resolve(context.Background(), 9303, ModeGPT)
	if err != nil || got == "" {
		t.Fatalf("recovery resolve: id=%q err=%v", got, err)
	}
}

func TestResolve_LostRaceReturnsWinner(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	fake := &fakeClient{}
	// another replica wins the insert while our remote create is in flight
	fake.createThreadFn = func(ctx context.Context) (string, error) {
		if err := repo.CreateThread(ctx, 9304, ModeGPT, "thread_winner_9304"); err != nil {
			t.Fatalf("seed winner: %v", err)
		}
		return "thread_loser_9304", nil
	}
	r := NewResolver(repo, fake, nil)

	got, err := r.Resolve(context.Background(), 9304, ModeGPT)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "thread_winner_9304" {
		t.Fatalf("expected the winner's thread, got %q", got)
	}
}

func TestResolve_InvalidMode(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	r := NewResolver(repo, &fakeClient{}, nil)

	_, err := r.Resolve(context.Background(), 9305, "bogus")
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
}

// fakeLocker counts acquisitions and releases.
type fakeLocker struct {
	mu       sync.Mutex
	acquired int
	released int
	fail     bool
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errors.New("lock backend down")
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestResolve_UsesDistributedLockOnMiss(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	locker := &fakeLocker{}
	r := NewResolver(repo, &fakeClient{}, locker)

	if _, err := r.Resolve(context.Background(), 9306, ModeGPT); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if locker.acquired != 1 || locker.released != 1 {
		t.Fatalf("lock not used correctly: acquired=%d released=%d", locker.acquired, locker.released)
	}

	// hits skip the lock entirely
	if _, err := r.Resolve(context.Background(), 9306, ModeGPT); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if locker.acquired != 1 {
		t.Fatalf("hit acquired the lock: %d", locker.acquired)
	}
}

func TestResolve_LockFailureDegradesToLocal(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	locker := &fakeLocker{fail: true}
	r := NewResolver(repo, &fakeClient{}, locker)

	got, err := r.Resolve(context.Background(), 9307, ModeGPT)
	if err != nil || got == "" {
		t.Fatalf("resolve should survive a dead lock backend: id=%q err=%v", got, err)
	}
}
