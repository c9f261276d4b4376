package kafka

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/resolution"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// NewMentionHandler builds the handler for the mention ingestion topic: each
// message resolves through the resolver and the outcome is republished on the
// output topic. Invalid mentions are logged and dropped rather than retried.
func NewMentionHandler(resolver *resolution.Resolver, producer *Producer, logger ectologger.Logger) MessageHandler {
	return func(ctx context.Context, msg *IncomingMessage) error {
		ctx, span := tracing.StartSpan(ctx, "kafka.MentionHandler")
		defer span.End()

		mention := *msg.Mention
		result, err := resolver.Resolve(ctx, mention)
		if err != nil {
			if models.IsKind(err, models.ErrInputInvalid) {
				logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"tenant_id": mention.TenantID,
					"name":      mention.Name,
				}).Warn("Dropping invalid mention")
				return nil
			}
			return err
		}

		if producer != nil {
			if err := producer.PublishResolution(ctx, mention.TenantID, mention.Name, result); err != nil {
				// The resolution itself committed; publishing is best-effort.
				logger.WithContext(ctx).WithError(err).Warn("Failed to publish resolution outcome")
			}
		}
		return nil
	}
}

// MergePublisher forwards in-process merge events to the output topic.
type MergePublisher struct {
	producer *Producer
	logger   ectologger.Logger
}

// NewMergePublisher creates a bus subscriber that republishes merges.
func NewMergePublisher(producer *Producer, logger ectologger.Logger) *MergePublisher {
	return &MergePublisher{producer: producer, logger: logger}
}

// OnMerge implements events.MergeListener.
func (p *MergePublisher) OnMerge(ctx context.Context, event events.MergeEvent) {
	if err := p.producer.PublishMerged(ctx, event.SourceID, event.TargetID, event.At); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_id": event.SourceID,
			"target_id": event.TargetID,
		}).Warn("Failed to publish merge event")
	}
}

// ReviewPublisher forwards review lifecycle events to the output topic.
type ReviewPublisher struct {
	producer *Producer
	logger   ectologger.Logger
}

// NewReviewPublisher creates a bus subscriber that republishes review events.
func NewReviewPublisher(producer *Producer, logger ectologger.Logger) *ReviewPublisher {
	return &ReviewPublisher{producer: producer, logger: logger}
}

// OnReviewSubmitted implements events.ReviewListener.
func (p *ReviewPublisher) OnReviewSubmitted(ctx context.Context, event events.ReviewSubmittedEvent) {
	err := p.producer.PublishReview(ctx, &ReviewEvent{
		EventType:   "review.submitted",
		ReviewID:    event.ReviewID,
		SourceID:    event.SourceID,
		CandidateID: event.CandidateID,
		Score:       event.Score,
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"review_id": event.ReviewID,
		}).Warn("Failed to publish review submitted event")
	}
}

// OnReviewDecided implements events.ReviewListener.
func (p *ReviewPublisher) OnReviewDecided(ctx context.Context, event events.ReviewDecidedEvent) {
	err := p.producer.PublishReview(ctx, &ReviewEvent{
		EventType:  "review.decided",
		ReviewID:   event.ReviewID,
		Action:     string(event.Action),
		ReviewerID: event.ReviewerID,
	})
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"review_id": event.ReviewID,
		}).Warn("Failed to publish review decided event")
	}
}
