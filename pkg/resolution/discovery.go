package resolution

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/bramble/pkg/blocking"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/scoring"
	"github.com/Ramsey-B/bramble/pkg/synonyms"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// EntityStore is the entity persistence surface the resolver consumes.
type EntityStore interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	GetActiveByNormalizedName(ctx context.Context, tenantID, normalizedName, entityType string) (*models.Entity, error)
	GetByBlockingKeys(ctx context.Context, tenantID string, keys []string, entityType string) ([]*models.Entity, error)
	GetAllActiveByType(ctx context.Context, tenantID, entityType string, limit int) ([]*models.Entity, error)
	CountActiveByType(ctx context.Context, tenantID, entityType string) (int, error)
	ResolveCurrentID(ctx context.Context, id string) (string, error)
}

// SynonymLookup finds the ACTIVE entity behind a synonym value.
type SynonymLookup interface {
	GetActiveEntityForSynonym(ctx context.Context, tenantID, normalizedValue string) (*models.Entity, *models.Synonym, error)
}

// candidate is one scored match produced by discovery.
type candidate struct {
	entity *models.Entity
	score  float64

	levScore     float64
	jwScore      float64
	jaccardScore float64
	exactScore   float64

	// exact marks a stage-1 hit: same normalized name, no scoring needed.
	exact bool
	// viaSynonym is set when the candidate was reached through a synonym;
	// score then carries the synonym's effective confidence.
	viaSynonym *models.Synonym
}

// discovery runs the four-stage candidate search: exact index lookup, synonym
// lookup, blocking-key scan, and a size-gated full scan fallback.
type discovery struct {
	entities EntityStore
	lookup   SynonymLookup
	synonyms *synonyms.Service
	scorer   *scoring.Scorer
	opts     Options
	logger   ectologger.Logger
}

// discover returns the best candidate plus every non-trivial candidate that
// was scored, so the caller can emit one decision record per comparison.
func (d *discovery) discover(ctx context.Context, tenantID, normalizedName, entityType string) (*candidate, []*candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.discovery.discover")
	defer span.End()

	// Stage 1: exact index lookup bypasses scoring entirely.
	exact, err := d.entities.GetActiveByNormalizedName(ctx, tenantID, normalizedName, entityType)
	if err != nil {
		return nil, nil, err
	}
	if exact != nil {
		return &candidate{entity: exact, score: 1.0, exactScore: 1.0, exact: true}, nil, nil
	}

	// Stage 2: synonym lookup. The match score is the synonym's effective
	// confidence, and the observation reinforces it.
	entity, syn, err := d.lookup.GetActiveEntityForSynonym(ctx, tenantID, normalizedName)
	if err != nil {
		return nil, nil, err
	}
	if entity != nil && entity.EntityType == entityType {
		effective := d.synonyms.Decay().EffectiveConfidence(syn)
		if err := d.synonyms.Reinforce(ctx, syn); err != nil {
			d.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"synonym_id": syn.ID,
			}).Warn("Failed to reinforce synonym during discovery")
		}
		c := &candidate{entity: entity, score: effective, viaSynonym: syn}
		return c, []*candidate{c}, nil
	}

	// Stage 3: blocking-key scan.
	keys := blocking.Keys(normalizedName)
	pool, err := d.entities.GetByBlockingKeys(ctx, tenantID, keys, entityType)
	if err != nil {
		return nil, nil, err
	}

	// Stage 4: full scan, only when blocking found nothing and the corpus is
	// small enough to sweep.
	if len(pool) == 0 {
		total, err := d.entities.CountActiveByType(ctx, tenantID, entityType)
		if err != nil {
			return nil, nil, err
		}
		if total > 0 && total <= d.opts.FullScanLimit {
			pool, err = d.entities.GetAllActiveByType(ctx, tenantID, entityType, d.opts.FullScanLimit)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	evaluated := make([]*candidate, 0, len(pool))
	var best *candidate
	for _, entity := range pool {
		c := d.scoreCandidate(normalizedName, entity)
		if c.score < d.opts.ReviewThreshold {
			continue
		}
		evaluated = append(evaluated, c)
		if best == nil || scoring.BetterCandidate(c.score, c.entity, best.score, best.entity) {
			best = c
		}
	}

	return best, evaluated, nil
}

func (d *discovery) scoreCandidate(normalizedName string, entity *models.Entity) *candidate {
	c := &candidate{
		entity:       entity,
		levScore:     d.scorer.Levenshtein(normalizedName, entity.NormalizedName),
		jwScore:      d.scorer.JaroWinkler(normalizedName, entity.NormalizedName),
		jaccardScore: d.scorer.TokenJaccard(normalizedName, entity.NormalizedName),
	}
	c.score = d.scorer.Score(normalizedName, entity.NormalizedName)
	if normalizedName == entity.NormalizedName {
		c.exactScore = 1.0
	}
	return c
}
