package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/bramble/pkg/models"
)

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Mention *models.Mention
}

// ParseMention parses the message value as an entity mention
func (m *IncomingMessage) ParseMention() error {
	var mention models.Mention
	if err := json.Unmarshal(m.Value, &mention); err != nil {
		return err
	}
	if mention.TenantID == "" {
		mention.TenantID = m.Headers["tenant_id"]
	}
	m.Mention = &mention
	return nil
}

// GetTenantID returns the tenant ID from the mention or headers
func (m *IncomingMessage) GetTenantID() string {
	if m.Mention != nil && m.Mention.TenantID != "" {
		return m.Mention.TenantID
	}
	return m.Headers["tenant_id"]
}

// GetSourceSystem returns the source system from the mention or headers
func (m *IncomingMessage) GetSourceSystem() string {
	if m.Mention != nil && m.Mention.SourceSystem != "" {
		return m.Mention.SourceSystem
	}
	return m.Headers["source_system"]
}
