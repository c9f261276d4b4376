// Package repositories contains the persistence layer: graph-backed stores
// for entities, synonyms, relationships, decisions and locks, and
// Postgres-backed stores for the review queue, audit log and merge ledger.
package repositories

import (
	"time"

	"github.com/Ramsey-B/bramble/pkg/models"
)

const timeFormat = time.RFC3339Nano

func getString(props map[string]any, key string) string {
	v, _ := props[key].(string)
	return v
}

func getFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func getInt(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func getTime(props map[string]any, key string) time.Time {
	s, ok := props[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func getStrings(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func entityFromProps(props map[string]any) *models.Entity {
	return &models.Entity{
		ID:              getString(props, "id"),
		TenantID:        getString(props, "tenant_id"),
		CanonicalName:   getString(props, "canonical_name"),
		NormalizedName:  getString(props, "normalized_name"),
		EntityType:      getString(props, "entity_type"),
		ConfidenceScore: getFloat(props, "confidence_score"),
		Status:          models.EntityStatus(getString(props, "status")),
		BlockingKeys:    getStrings(props, "blocking_keys"),
		CreatedAt:       getTime(props, "created_at"),
		UpdatedAt:       getTime(props, "updated_at"),
	}
}

func synonymFromProps(props map[string]any) *models.Synonym {
	return &models.Synonym{
		ID:              getString(props, "id"),
		TenantID:        getString(props, "tenant_id"),
		EntityID:        getString(props, "entity_id"),
		Value:           getString(props, "value"),
		NormalizedValue: getString(props, "normalized_value"),
		Source:          models.SynonymSource(getString(props, "source")),
		Confidence:      getFloat(props, "confidence"),
		SupportCount:    getInt(props, "support_count"),
		LastConfirmedAt: getTime(props, "last_confirmed_at"),
		CreatedAt:       getTime(props, "created_at"),
	}
}
