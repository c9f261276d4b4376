package locks

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/models"
)

// LocalLocker is a process-local lock by key. Re-entrancy is tracked by the
// request id carried in context, so a request that already holds a key may
// re-acquire it without deadlocking.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	timeout time.Duration
}

type localEntry struct {
	owner    string
	count    int
	released chan struct{}
}

var _ Locker = (*LocalLocker)(nil)

// NewLocalLocker creates a local locker with the given acquisition timeout.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{
		entries: make(map[string]*localEntry),
		timeout: timeout,
	}
}

// TryLock acquires the key, waiting up to the timeout for the current holder
// to release it.
func (l *LocalLocker) TryLock(ctx context.Context, key string) error {
	owner := appcontext.GetRequestID(ctx)
	deadline := time.Now().Add(l.timeout)

	for {
		l.mu.Lock()
		entry, held := l.entries[key]
		if !held {
			l.entries[key] = &localEntry{owner: owner, count: 1, released: make(chan struct{})}
			l.mu.Unlock()
			return nil
		}
		if owner != "" && entry.owner == owner {
			entry.count++
			l.mu.Unlock()
			return nil
		}
		released := entry.released
		l.mu.Unlock()

		wait := time.Until(deadline)
		if wait <= 0 {
			return models.NewError(models.ErrLockAcquisitionFailed, "timed out acquiring lock %q", key)
		}

		timer := time.NewTimer(wait)
		select {
		case <-released:
			timer.Stop()
		case <-timer.C:
			return models.NewError(models.ErrLockAcquisitionFailed, "timed out acquiring lock %q", key)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Unlock releases one hold on the key. The key is freed when the hold count
// of the owning request reaches zero.
func (l *LocalLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, held := l.entries[key]
	if !held {
		return models.NewError(models.ErrStateInvalid, "unlock of unheld lock %q", key)
	}

	entry.count--
	if entry.count <= 0 {
		delete(l.entries, key)
		close(entry.released)
	}
	return nil
}
