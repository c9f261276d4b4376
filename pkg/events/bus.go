// Package events carries in-process notifications between the resolution
// core and its subscribers (cache invalidation, metrics, outbound publishing).
package events

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/models"
)

// MergeEvent is fired after a merge commits.
type MergeEvent struct {
	SourceID string
	TargetID string
	At       time.Time
}

// ReviewSubmittedEvent is fired when a match lands in the review queue.
type ReviewSubmittedEvent struct {
	ReviewID    string
	SourceID    string
	CandidateID string
	Score       float64
}

// ReviewDecidedEvent is fired when a reviewer approves or rejects an item.
type ReviewDecidedEvent struct {
	ReviewID   string
	Action     models.ReviewAction
	ReviewerID string
}

// MergeListener receives merge notifications.
type MergeListener interface {
	OnMerge(ctx context.Context, event MergeEvent)
}

// ReviewListener receives review lifecycle notifications.
type ReviewListener interface {
	OnReviewSubmitted(ctx context.Context, event ReviewSubmittedEvent)
	OnReviewDecided(ctx context.Context, event ReviewDecidedEvent)
}

// Bus dispatches events synchronously to subscribers. Listener panics are
// recovered and logged so one subscriber cannot break the publisher.
type Bus struct {
	mu              sync.RWMutex
	mergeListeners  []MergeListener
	reviewListeners []ReviewListener
	logger          ectologger.Logger
}

// NewBus creates an event bus.
func NewBus(logger ectologger.Logger) *Bus {
	return &Bus{logger: logger}
}

// SubscribeMerge registers a merge listener.
func (b *Bus) SubscribeMerge(listener MergeListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mergeListeners = append(b.mergeListeners, listener)
}

// SubscribeReview registers a review listener.
func (b *Bus) SubscribeReview(listener ReviewListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reviewListeners = append(b.reviewListeners, listener)
}

// PublishMerge notifies all merge listeners.
func (b *Bus) PublishMerge(ctx context.Context, event MergeEvent) {
	b.mu.RLock()
	listeners := make([]MergeListener, len(b.mergeListeners))
	copy(listeners, b.mergeListeners)
	b.mu.RUnlock()

	for _, listener := range listeners {
		b.notify(ctx, "merge", func() { listener.OnMerge(ctx, event) })
	}
}

// PublishReviewSubmitted notifies all review listeners.
func (b *Bus) PublishReviewSubmitted(ctx context.Context, event ReviewSubmittedEvent) {
	b.mu.RLock()
	listeners := make([]ReviewListener, len(b.reviewListeners))
	copy(listeners, b.reviewListeners)
	b.mu.RUnlock()

	for _, listener := range listeners {
		b.notify(ctx, "review_submitted", func() { listener.OnReviewSubmitted(ctx, event) })
	}
}

// PublishReviewDecided notifies all review listeners.
func (b *Bus) PublishReviewDecided(ctx context.Context, event ReviewDecidedEvent) {
	b.mu.RLock()
	listeners := make([]ReviewListener, len(b.reviewListeners))
	copy(listeners, b.reviewListeners)
	b.mu.RUnlock()

	for _, listener := range listeners {
		b.notify(ctx, "review_decided", func() { listener.OnReviewDecided(ctx, event) })
	}
}

func (b *Bus) notify(ctx context.Context, eventName string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithContext(ctx).WithFields(map[string]any{
				"event": eventName,
				"panic": r,
			}).Error("Event listener panicked")
		}
	}()
	fn()
}
