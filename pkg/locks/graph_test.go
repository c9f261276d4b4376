package locks

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/models"
)

type fakeLockNode struct {
	owner     string
	expiresAt int64
}

// fakeLockStore emulates the Lock node upsert, verify and conditional delete
// over an in-memory map.
type fakeLockStore struct {
	mu    sync.Mutex
	nodes map[string]*fakeLockNode
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{nodes: make(map[string]*fakeLockNode)}
}

func (s *fakeLockStore) Execute(_ context.Context, query string, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, _ := params["key"].(string)
	owner, _ := params["owner"].(string)

	if strings.Contains(query, "MERGE") {
		now, _ := params["now"].(int64)
		expires, _ := params["expires"].(int64)
		node, ok := s.nodes[key]
		if !ok || node.expiresAt < now {
			s.nodes[key] = &fakeLockNode{owner: owner, expiresAt: expires}
		}
		return nil
	}

	if strings.Contains(query, "DELETE") {
		if node, ok := s.nodes[key]; ok && node.owner == owner {
			delete(s.nodes, key)
		}
		return nil
	}
	return nil
}

func (s *fakeLockStore) Query(_ context.Context, _ string, params map[string]any) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, _ := params["key"].(string)
	node, ok := s.nodes[key]
	if !ok {
		return nil, nil
	}
	return []map[string]any{{"owner": node.owner}}, nil
}

func (s *fakeLockStore) IsAlive(context.Context) bool       { return true }
func (s *fakeLockStore) GraphName() string                  { return "test" }
func (s *fakeLockStore) CreateIndexes(context.Context) error { return nil }

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestGraphLocker_AcquireRelease(t *testing.T) {
	l := NewGraphLocker(newFakeLockStore(), testLogger(), time.Minute, 1)
	ctx := context.Background()

	require.NoError(t, l.TryLock(ctx, "k"))
	require.NoError(t, l.Unlock(ctx, "k"))

	// Free again after release.
	require.NoError(t, l.TryLock(ctx, "k"))
	require.NoError(t, l.Unlock(ctx, "k"))
}

func TestGraphLocker_SecondHolderExcluded(t *testing.T) {
	// Two acquisitions through the same locker instance must still exclude
	// each other: every acquisition carries its own token.
	l := NewGraphLocker(newFakeLockStore(), testLogger(), time.Minute, 1)
	ctx := context.Background()

	require.NoError(t, l.TryLock(ctx, "k"))

	err := l.TryLock(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, models.ErrLockAcquisitionFailed, models.KindOf(err))

	require.NoError(t, l.Unlock(ctx, "k"))
	require.NoError(t, l.TryLock(ctx, "k"))
	require.NoError(t, l.Unlock(ctx, "k"))
}

func TestGraphLocker_CrossInstanceExcluded(t *testing.T) {
	store := newFakeLockStore()
	a := NewGraphLocker(store, testLogger(), time.Minute, 1)
	b := NewGraphLocker(store, testLogger(), time.Minute, 1)
	ctx := context.Background()

	require.NoError(t, a.TryLock(ctx, "k"))

	err := b.TryLock(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, models.ErrLockAcquisitionFailed, models.KindOf(err))

	require.NoError(t, a.Unlock(ctx, "k"))
	require.NoError(t, b.TryLock(ctx, "k"))
	require.NoError(t, b.Unlock(ctx, "k"))
}

func TestGraphLocker_UnlockUnheld(t *testing.T) {
	store := newFakeLockStore()
	a := NewGraphLocker(store, testLogger(), time.Minute, 1)
	b := NewGraphLocker(store, testLogger(), time.Minute, 1)
	ctx := context.Background()

	require.NoError(t, a.TryLock(ctx, "k"))

	// b never acquired, so its unlock cannot release a's lock.
	err := b.Unlock(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, models.ErrStateInvalid, models.KindOf(err))

	require.Error(t, b.TryLock(ctx, "k"))
	require.NoError(t, a.Unlock(ctx, "k"))
}

func TestGraphLocker_ExpiredLockIsStolen(t *testing.T) {
	store := newFakeLockStore()
	a := NewGraphLocker(store, testLogger(), time.Millisecond, 1)
	b := NewGraphLocker(store, testLogger(), time.Minute, 1)
	ctx := context.Background()

	require.NoError(t, a.TryLock(ctx, "k"))
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, b.TryLock(ctx, "k"))

	// a's late unlock must not release b's re-acquired lock.
	_ = a.Unlock(ctx, "k")
	err := a.TryLock(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, models.ErrLockAcquisitionFailed, models.KindOf(err))

	require.NoError(t, b.Unlock(ctx, "k"))
}

func TestGraphLocker_ConcurrentAcquireIsSingular(t *testing.T) {
	l := NewGraphLocker(newFakeLockStore(), testLogger(), time.Minute, 1)

	var acquired int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.TryLock(context.Background(), "shared"); err == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
}
