package metrics

import (
	"context"

	"github.com/Ramsey-B/bramble/pkg/events"
)

// Listener subscribes to the event bus and mirrors merge and review
// lifecycle events into Prometheus counters.
type Listener struct{}

// NewListener creates a metrics listener.
func NewListener() *Listener {
	return &Listener{}
}

// OnMerge implements events.MergeListener.
func (l *Listener) OnMerge(_ context.Context, _ events.MergeEvent) {
	MergesTotal.Inc()
}

// OnReviewSubmitted implements events.ReviewListener.
func (l *Listener) OnReviewSubmitted(_ context.Context, _ events.ReviewSubmittedEvent) {
	ReviewsSubmittedTotal.Inc()
}

// OnReviewDecided implements events.ReviewListener.
func (l *Listener) OnReviewDecided(_ context.Context, event events.ReviewDecidedEvent) {
	ReviewsDecidedTotal.WithLabelValues(string(event.Action)).Inc()
}
