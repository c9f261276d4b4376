// Package cache holds recent resolution results keyed by normalized name and
// type. It subscribes to merge events so entries pointing at either side of a
// merge are dropped as soon as the merge commits.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/models"
)

type entry struct {
	key       string
	entityID  string
	result    *models.ResolutionResult
	expiresAt time.Time
}

// ResolutionCache is a bounded LRU with TTL. A secondary index from entity id
// to cache keys makes merge invalidation targeted instead of a full flush.
type ResolutionCache struct {
	mu       sync.Mutex
	maxSize  int
	ttl      time.Duration
	order    *list.List
	entries  map[string]*list.Element
	byEntity map[string]map[string]struct{}
	now      func() time.Time
}

var _ events.MergeListener = (*ResolutionCache)(nil)

// NewResolutionCache creates a cache bounded to maxSize entries with the
// given TTL.
func NewResolutionCache(maxSize int, ttl time.Duration) *ResolutionCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &ResolutionCache{
		maxSize:  maxSize,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		byEntity: make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

func cacheKey(normalizedName, entityType string) string {
	return normalizedName + "|" + entityType
}

// Get returns the cached result, or false when absent or expired.
func (c *ResolutionCache) Get(normalizedName, entityType string) (*models.ResolutionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(normalizedName, entityType)
	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	e := element.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeLocked(element)
		return nil, false
	}

	c.order.MoveToFront(element)
	return e.result, true
}

// Put stores a result, evicting the least recently used entry when full.
func (c *ResolutionCache) Put(normalizedName, entityType string, result *models.ResolutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(normalizedName, entityType)
	if element, ok := c.entries[key]; ok {
		c.removeLocked(element)
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}

	e := &entry{
		key:       key,
		entityID:  result.EntityID,
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
	c.entries[key] = c.order.PushFront(e)

	keys, ok := c.byEntity[e.entityID]
	if !ok {
		keys = make(map[string]struct{})
		c.byEntity[e.entityID] = keys
	}
	keys[key] = struct{}{}
}

// InvalidateEntity drops every entry resolving to the given entity.
func (c *ResolutionCache) InvalidateEntity(entityID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateEntityLocked(entityID)
}

// OnMerge drops entries keyed to either side of the merge.
func (c *ResolutionCache) OnMerge(_ context.Context, event events.MergeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateEntityLocked(event.SourceID)
	c.invalidateEntityLocked(event.TargetID)
}

// Len reports the current entry count.
func (c *ResolutionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResolutionCache) invalidateEntityLocked(entityID string) {
	for key := range c.byEntity[entityID] {
		if element, ok := c.entries[key]; ok {
			c.removeLocked(element)
		}
	}
	delete(c.byEntity, entityID)
}

func (c *ResolutionCache) removeLocked(element *list.Element) {
	e := element.Value.(*entry)
	c.order.Remove(element)
	delete(c.entries, e.key)

	if keys, ok := c.byEntity[e.entityID]; ok {
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(c.byEntity, e.entityID)
		}
	}
}
