// Package kafka handles mention ingestion and outbound resolution events.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/bramble/pkg/metrics"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// ResolutionEvent is emitted after a mention resolves.
type ResolutionEvent struct {
	EventType       string    `json:"event_type"` // entity.resolved, entity.created
	TenantID        string    `json:"tenant_id"`
	EntityID        string    `json:"entity_id"`
	EntityType      string    `json:"entity_type"`
	CanonicalName   string    `json:"canonical_name"`
	Mention         string    `json:"mention"`
	Outcome         string    `json:"outcome"`
	MatchConfidence float64   `json:"match_confidence"`
	Timestamp       time.Time `json:"timestamp"`
}

// MergedEvent is emitted after a merge commits.
type MergedEvent struct {
	EventType string    `json:"event_type"` // entity.merged
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishResolution publishes the outcome of one resolved mention.
func (p *Producer) PublishResolution(ctx context.Context, tenantID, mention string, result *models.ResolutionResult) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishResolution")
	defer span.End()

	eventType := "entity.resolved"
	if result.IsNewEntity {
		eventType = "entity.created"
	}

	event := &ResolutionEvent{
		EventType:       eventType,
		TenantID:        tenantID,
		EntityID:        result.EntityID,
		EntityType:      result.EntityType,
		CanonicalName:   result.CanonicalName,
		Mention:         mention,
		Outcome:         string(result.Outcome),
		MatchConfidence: result.MatchConfidence,
		Timestamp:       time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
			{Key: "entity_type", Value: []byte(event.EntityType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish resolution event")
		metrics.RecordKafkaPublish(p.topic, "failed")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"entity_id":  event.EntityID,
		"outcome":    event.Outcome,
	}).Debug("Published resolution event")

	return nil
}

// ReviewEvent is emitted when a review item is enqueued or decided.
type ReviewEvent struct {
	EventType   string    `json:"event_type"` // review.submitted, review.decided
	ReviewID    string    `json:"review_id"`
	SourceID    string    `json:"source_id,omitempty"`
	CandidateID string    `json:"candidate_id,omitempty"`
	Score       float64   `json:"score,omitempty"`
	Action      string    `json:"action,omitempty"`
	ReviewerID  string    `json:"reviewer_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// PublishMerged publishes an entity.merged event.
func (p *Producer) PublishMerged(ctx context.Context, sourceID, targetID string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishMerged")
	defer span.End()

	event := &MergedEvent{
		EventType: "entity.merged",
		SourceID:  sourceID,
		TargetID:  targetID,
		Timestamp: at,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(targetID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish merged event")
		metrics.RecordKafkaPublish(p.topic, "failed")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success")

	return nil
}

// PublishReview publishes a review lifecycle event.
func (p *Producer) PublishReview(ctx context.Context, event *ReviewEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishReview")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.ReviewID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish review event")
		metrics.RecordKafkaPublish(p.topic, "failed")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success")

	return nil
}
