package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/appcontext"
	"github.com/Ramsey-B/bramble/pkg/models"
)

func TestResolutionKey(t *testing.T) {
	assert.Equal(t, "entity-resolution:acme:COMPANY", ResolutionKey("acme", "COMPANY"))
}

func TestMergeKey_Ordered(t *testing.T) {
	// Both directions of a pair contend on the same key.
	assert.Equal(t, MergeKey("a", "b"), MergeKey("b", "a"))
	assert.Equal(t, "entity-resolution:merge:a:b", MergeKey("b", "a"))
}

func TestLocalLocker_AcquireRelease(t *testing.T) {
	l := NewLocalLocker(time.Second)
	ctx := context.Background()

	require.NoError(t, l.TryLock(ctx, "k"))
	require.NoError(t, l.Unlock(ctx, "k"))

	// Free again after release.
	require.NoError(t, l.TryLock(ctx, "k"))
	require.NoError(t, l.Unlock(ctx, "k"))
}

func TestLocalLocker_Timeout(t *testing.T) {
	l := NewLocalLocker(50 * time.Millisecond)

	ctxA := appcontext.SetRequestID(context.Background(), "req-a")
	ctxB := appcontext.SetRequestID(context.Background(), "req-b")

	require.NoError(t, l.TryLock(ctxA, "k"))

	err := l.TryLock(ctxB, "k")
	require.Error(t, err)
	assert.Equal(t, models.ErrLockAcquisitionFailed, models.KindOf(err))

	require.NoError(t, l.Unlock(ctxA, "k"))
}

func TestLocalLocker_ReentrantByRequest(t *testing.T) {
	l := NewLocalLocker(50 * time.Millisecond)
	ctx := appcontext.SetRequestID(context.Background(), "req-a")

	require.NoError(t, l.TryLock(ctx, "k"))
	require.NoError(t, l.TryLock(ctx, "k"))

	// Still held until both holds release.
	other := appcontext.SetRequestID(context.Background(), "req-b")
	require.Error(t, l.TryLock(other, "k"))

	require.NoError(t, l.Unlock(ctx, "k"))
	require.Error(t, l.TryLock(other, "k"))

	require.NoError(t, l.Unlock(ctx, "k"))
	require.NoError(t, l.TryLock(other, "k"))
	require.NoError(t, l.Unlock(other, "k"))
}

func TestLocalLocker_UnlockUnheld(t *testing.T) {
	l := NewLocalLocker(time.Second)

	err := l.Unlock(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, models.ErrStateInvalid, models.KindOf(err))
}

func TestLocalLocker_ConcurrentMutualExclusion(t *testing.T) {
	l := NewLocalLocker(5 * time.Second)

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			assert.NoError(t, l.TryLock(ctx, "shared"))
			counter++
			assert.NoError(t, l.Unlock(ctx, "shared"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, counter)
}

func TestLocalLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	l := NewLocalLocker(2 * time.Second)

	ctxA := appcontext.SetRequestID(context.Background(), "req-a")
	ctxB := appcontext.SetRequestID(context.Background(), "req-b")

	require.NoError(t, l.TryLock(ctxA, "k"))

	acquired := make(chan error, 1)
	go func() {
		acquired <- l.TryLock(ctxB, "k")
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Unlock(ctxA, "k"))

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	require.NoError(t, l.Unlock(ctxB, "k"))
}
