package locks

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/graphstore"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// GraphLocker persists locks as Lock nodes so multiple service instances
// contend on the same store. Each acquisition mints its own owner token, so
// goroutines within one process exclude each other the same way separate
// processes do. A lock is stolen only after its TTL expires; unlock deletes
// only when the caller still owns it, so a late unlock cannot release
// somebody else's re-acquired lock.
type GraphLocker struct {
	store      graphstore.Store
	logger     ectologger.Logger
	ttl        time.Duration
	maxRetries int
	baseDelay  time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

var _ Locker = (*GraphLocker)(nil)

// NewGraphLocker creates a graph-backed locker.
func NewGraphLocker(store graphstore.Store, logger ectologger.Logger, ttl time.Duration, maxRetries int) *GraphLocker {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &GraphLocker{
		store:      store,
		logger:     logger,
		ttl:        ttl,
		maxRetries: maxRetries,
		baseDelay:  50 * time.Millisecond,
		tokens:     make(map[string]string),
	}
}

// TryLock attempts an atomic upsert of the Lock node, retrying with
// exponential backoff. On exhaustion it surfaces LOCK_ACQUISITION_FAILED.
func (l *GraphLocker) TryLock(ctx context.Context, key string) error {
	ctx, span := tracing.StartSpan(ctx, "locks.GraphLocker.TryLock")
	defer span.End()

	token := uuid.New().String()

	for attempt := 0; attempt < l.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * l.baseDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		acquired, err := l.attempt(ctx, key, token)
		if err != nil {
			return err
		}
		if acquired {
			l.mu.Lock()
			l.tokens[key] = token
			l.mu.Unlock()
			return nil
		}
	}

	return models.NewError(models.ErrLockAcquisitionFailed, "could not acquire lock %q after %d attempts", key, l.maxRetries)
}

// attempt performs one upsert-then-verify round. The upsert only rewrites the
// owner when the existing lock has expired.
func (l *GraphLocker) attempt(ctx context.Context, key, token string) (bool, error) {
	now := time.Now().UTC()
	params := map[string]any{
		"key":     key,
		"owner":   token,
		"now":     now.UnixMilli(),
		"expires": now.Add(l.ttl).UnixMilli(),
	}

	upsert := `
		MERGE (l:Lock {key: $key})
		ON CREATE SET l.owner = $owner, l.acquired_at = $now, l.expires_at = $expires
		ON MATCH SET
			l.owner       = CASE WHEN l.expires_at < $now THEN $owner ELSE l.owner END,
			l.acquired_at = CASE WHEN l.expires_at < $now THEN $now ELSE l.acquired_at END,
			l.expires_at  = CASE WHEN l.expires_at < $now THEN $expires ELSE l.expires_at END`
	if err := l.store.Execute(ctx, upsert, params); err != nil {
		return false, err
	}

	rows, err := l.store.Query(ctx, `MATCH (l:Lock {key: $key}) RETURN l.owner AS owner`, map[string]any{"key": key})
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}

	owner, _ := rows[0]["owner"].(string)
	return owner == token, nil
}

// Unlock deletes the lock node if this locker still holds the acquisition.
func (l *GraphLocker) Unlock(ctx context.Context, key string) error {
	ctx, span := tracing.StartSpan(ctx, "locks.GraphLocker.Unlock")
	defer span.End()

	l.mu.Lock()
	token, held := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !held {
		return models.NewError(models.ErrStateInvalid, "lock %q is not held", key)
	}

	err := l.store.Execute(ctx, `MATCH (l:Lock {key: $key}) WHERE l.owner = $owner DELETE l`, map[string]any{
		"key":   key,
		"owner": token,
	})
	if err != nil {
		// The node outlives the failure only until its TTL expires.
		l.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"key": key}).Warn("Failed to release lock")
		return err
	}
	return nil
}
