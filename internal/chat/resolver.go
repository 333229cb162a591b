package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wspjoy2011/assistant-relay/internal/assistant"
)

// Locker serializes thread creation for a key across processes. The
// store's unique index already guarantees at most one winner; the lock
// only prevents orphaned remote threads when replicas race.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Resolver hands out the remote thread bound to a (user, mode) pair,
// creating it lazily on first use.
type Resolver struct {
	repo   *Repo
	client assistant.Client
	dist   Locker // nil when running single-instance

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewResolver(repo *Repo, client assistant.Client, dist Locker) *Resolver {
	return &Resolver{
		repo:   repo,
		client: client,
		dist:   dist,
		locks:  make(map[string]*sync.Mutex),
	}
}

func resolveKey(userID uint64, mode string) string {
	return fmt.Sprintf("chat:resolve:%d:%s", userID, mode)
}

// keyLock returns the mutex serializing first-time resolution for key.
// Entries are never evicted; the key space is bounded by users x modes.
func (r *Resolver) keyLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	return m
}

// Resolve returns the thread id for (userID, mode). The common path is a
// single store lookup with no remote call. On a miss it creates a remote
// thread and records the mapping, serialized per key. If a concurrent
// writer on another replica still wins the insert, the winner's id is
// returned and the freshly created remote thread is logged as orphaned;
// there is no compensating delete.
func (r *Resolver) Resolve(ctx context.Context, userID uint64, mode string) (string, error) {
	if !ValidMode(mode) {
		return "", fmt.Errorf("mode=%q: %w", mode, ErrInvalidMode)
	}

	threadID, err := r.repo.GetThreadID(ctx, userID, mode)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return "", err
	}

	key := resolveKey(userID, mode)
	lock := r.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if r.dist != nil {
		// Best effort: the unique index remains the arbiter.
		release, lerr := r.dist.AcquireLock(ctx, key, 30*time.Second)
		if lerr != nil {
			log.Printf("chat: resolve lock unavailable key=%s err=%v", key, lerr)
		} else {
			defer release()
		}
	}

	// Re-check under the lock: another goroutine may have resolved while
	// we waited.
	threadID, err = r.repo.GetThreadID(ctx, userID, mode)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return "", err
	}

	created, err := r.client.CreateThread(ctx)
	if err != nil {
		return "", err
	}

	if err := r.repo.CreateThread(ctx, userID, mode, created); err != nil {
		if errors.Is(err, ErrConflict) {
			winner, getErr := r.repo.GetThreadID(ctx, userID, mode)
			if getErr == nil {
				log.Printf("chat: resolve lost create race user=%d mode=%s winner=%s orphan_thread=%s",
					userID, mode, winner, created)
				return winner, nil
			}
			return "", err
		}
		return "", err
	}
	return created, nil
}
