package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/models"
)

func result(entityID string) *models.ResolutionResult {
	return &models.ResolutionResult{
		EntityID:        entityID,
		MatchConfidence: 1.0,
		Outcome:         models.OutcomeNoMatch,
	}
}

func TestCache_PutGet(t *testing.T) {
	c := NewResolutionCache(10, time.Minute)

	c.Put("acme", "COMPANY", result("e1"))

	got, ok := c.Get("acme", "COMPANY")
	require.True(t, ok)
	assert.Equal(t, "e1", got.EntityID)

	_, ok = c.Get("acme", "PERSON")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := NewResolutionCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("acme", "COMPANY", result("e1"))

	now = now.Add(2 * time.Minute)
	_, ok := c.Get("acme", "COMPANY")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewResolutionCache(2, time.Minute)

	c.Put("a", "COMPANY", result("e1"))
	c.Put("b", "COMPANY", result("e2"))

	// Touch "a" so "b" is least recently used.
	_, ok := c.Get("a", "COMPANY")
	require.True(t, ok)

	c.Put("c", "COMPANY", result("e3"))

	_, ok = c.Get("b", "COMPANY")
	assert.False(t, ok)
	_, ok = c.Get("a", "COMPANY")
	assert.True(t, ok)
	_, ok = c.Get("c", "COMPANY")
	assert.True(t, ok)
}

func TestCache_OnMergeInvalidatesBothSides(t *testing.T) {
	c := NewResolutionCache(10, time.Minute)

	// Two names resolving to the source, one to the target, one unrelated.
	c.Put("acme", "COMPANY", result("src"))
	c.Put("acme corp", "COMPANY", result("src"))
	c.Put("acme inc", "COMPANY", result("tgt"))
	c.Put("globex", "COMPANY", result("other"))

	c.OnMerge(context.Background(), events.MergeEvent{SourceID: "src", TargetID: "tgt", At: time.Now()})

	_, ok := c.Get("acme", "COMPANY")
	assert.False(t, ok)
	_, ok = c.Get("acme corp", "COMPANY")
	assert.False(t, ok)
	_, ok = c.Get("acme inc", "COMPANY")
	assert.False(t, ok)

	_, ok = c.Get("globex", "COMPANY")
	assert.True(t, ok)
}

func TestCache_PutReplacesExisting(t *testing.T) {
	c := NewResolutionCache(10, time.Minute)

	c.Put("acme", "COMPANY", result("e1"))
	c.Put("acme", "COMPANY", result("e2"))

	got, ok := c.Get("acme", "COMPANY")
	require.True(t, ok)
	assert.Equal(t, "e2", got.EntityID)
	assert.Equal(t, 1, c.Len())

	// The old entity's index entry is gone too.
	c.InvalidateEntity("e1")
	_, ok = c.Get("acme", "COMPANY")
	assert.True(t, ok)
}
