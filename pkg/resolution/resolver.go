package resolution

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/blocking"
	"github.com/Ramsey-B/bramble/pkg/cache"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/llm"
	"github.com/Ramsey-B/bramble/pkg/locks"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/normalize"
	"github.com/Ramsey-B/bramble/pkg/reference"
	"github.com/Ramsey-B/bramble/pkg/scoring"
	"github.com/Ramsey-B/bramble/pkg/synonyms"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// ReviewQueue enqueues matches that need human judgement.
type ReviewQueue interface {
	Submit(ctx context.Context, item *models.ReviewItem) (*models.ReviewItem, error)
}

// AuditSink appends audit entries.
type AuditSink interface {
	Append(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error)
}

// Resolver turns raw mentions into canonical entity results. One ACTIVE
// entity exists per (normalizedName, entityType, tenant); the per-key lock
// makes create-if-absent race-free across concurrent callers.
type Resolver struct {
	normalizer *normalize.Normalizer
	discovery  *discovery
	engine     *decisionEngine
	entities   EntityStore
	synonyms   *synonyms.Service
	reviews    ReviewQueue
	audit      AuditSink
	cache      *cache.ResolutionCache
	locker     locks.Locker
	bus        *events.Bus
	opts       Options
	logger     ectologger.Logger
}

// NewResolver wires the resolution pipeline. The cache, review queue, audit
// sink and LLM provider may be nil; the corresponding behavior is skipped.
func NewResolver(
	entities EntityStore,
	lookup SynonymLookup,
	synonymService *synonyms.Service,
	decisions DecisionSink,
	reviews ReviewQueue,
	audit AuditSink,
	resolutionCache *cache.ResolutionCache,
	provider llm.Provider,
	locker locks.Locker,
	bus *events.Bus,
	opts Options,
	logger ectologger.Logger,
) *Resolver {
	scorer := scoring.NewScorer(opts.Weights)
	return &Resolver{
		normalizer: normalize.NewNormalizer(nil),
		discovery: &discovery{
			entities: entities,
			lookup:   lookup,
			synonyms: synonymService,
			scorer:   scorer,
			opts:     opts,
			logger:   logger,
		},
		engine: &decisionEngine{
			opts:      opts,
			provider:  provider,
			decisions: decisions,
			logger:    logger,
		},
		entities: entities,
		synonyms: synonymService,
		reviews:  reviews,
		audit:    audit,
		cache:    resolutionCache,
		locker:   locker,
		bus:      bus,
		opts:     opts,
		logger:   logger,
	}
}

// Options returns the thresholds and limits the resolver runs with.
func (r *Resolver) Options() Options {
	return r.opts
}

// Reference builds a merge-stable handle for an entity id.
func (r *Resolver) Reference(entityID, entityType string) *reference.EntityReference {
	return reference.New(entityID, entityType, r.entities.ResolveCurrentID)
}

// Resolve maps one mention to its canonical entity, creating it when nothing
// matches. The outcome reports how the match was classified.
func (r *Resolver) Resolve(ctx context.Context, mention models.Mention) (*models.ResolutionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.Resolve")
	defer span.End()

	name, err := validateName(mention.Name, mention.EntityType)
	if err != nil {
		return nil, err
	}
	normalized := r.normalizer.Normalize(name, mention.EntityType)

	if r.cacheEnabled() {
		if cached, ok := r.cache.Get(scopedName(mention.TenantID, normalized), mention.EntityType); ok {
			return cached, nil
		}
	}

	lockKey := locks.ResolutionKey(normalized, mention.EntityType)
	if err := r.locker.TryLock(ctx, lockKey); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.locker.Unlock(ctx, lockKey); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Failed to release resolution lock")
		}
	}()

	best, evaluated, err := r.discovery.discover(ctx, mention.TenantID, normalized, mention.EntityType)
	if err != nil {
		return nil, err
	}

	if best != nil && best.exact {
		result := resultFor(best.entity, false, 1.0, models.OutcomeAutoMerge)
		r.cachePut(mention.TenantID, normalized, result)
		return result, nil
	}

	if best == nil {
		return r.createEntity(ctx, mention, name, normalized, 0)
	}

	inputTempID := uuid.New().String()
	for _, cand := range evaluated {
		if cand != best {
			r.engine.recordLoser(ctx, mention.TenantID, inputTempID, mention.EntityType, cand)
		}
	}
	decision := r.engine.decide(ctx, mention.TenantID, name, inputTempID, mention.EntityType, best)

	outcome := decision.Outcome
	if outcome == models.OutcomeAutoMerge && !r.opts.AutoMergeEnabled {
		outcome = models.OutcomeReview
	}

	switch outcome {
	case models.OutcomeAutoMerge, models.OutcomeSynonym:
		if err := r.attachSynonym(ctx, best, name, normalized, decision.FinalScore); err != nil {
			return nil, err
		}
		result := resultFor(best.entity, false, decision.FinalScore, outcome)
		result.DecisionID = decision.ID
		r.cachePut(mention.TenantID, normalized, result)
		return result, nil

	case models.OutcomeReview:
		reviewID, err := r.submitReview(ctx, mention, name, best, decision)
		if err != nil {
			return nil, err
		}
		// No entity is created for a REVIEW-range input; the caller gets a
		// reference to the candidate and the queued item id.
		result := resultFor(best.entity, false, decision.FinalScore, models.OutcomeReview)
		result.DecisionID = decision.ID
		result.ReviewID = reviewID
		return result, nil

	default:
		return r.createEntity(ctx, mention, name, normalized, decision.FinalScore)
	}
}

// attachSynonym records the mention as an alias of the matched entity. A
// synonym-path match was already reinforced during discovery and is skipped.
func (r *Resolver) attachSynonym(ctx context.Context, cand *candidate, name, normalized string, confidence float64) error {
	if cand.viaSynonym != nil || normalized == cand.entity.NormalizedName {
		return nil
	}

	syn, err := r.synonyms.CreateForEntity(ctx, cand.entity, name, normalized, models.SynonymSourceSystem, confidence)
	if err != nil {
		return err
	}

	details, _ := json.Marshal(map[string]any{"synonym_id": syn.ID, "value": name})
	r.auditAppend(ctx, &models.AuditEntry{
		ID:        uuid.New().String(),
		TenantID:  cand.entity.TenantID,
		EntityID:  cand.entity.ID,
		Action:    models.AuditSynonymAttached,
		ActorID:   r.opts.SourceSystem,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (r *Resolver) submitReview(ctx context.Context, mention models.Mention, name string, cand *candidate, decision *models.MatchDecision) (string, error) {
	if r.reviews == nil {
		return "", nil
	}

	item, err := r.reviews.Submit(ctx, &models.ReviewItem{
		ID:                uuid.New().String(),
		TenantID:          mention.TenantID,
		SourceName:        name,
		CandidateEntityID: cand.entity.ID,
		SimilarityScore:   decision.FinalScore,
		EntityType:        mention.EntityType,
		MatchDecisionID:   decision.ID,
	})
	if err != nil {
		return "", err
	}

	if r.bus != nil {
		r.bus.PublishReviewSubmitted(ctx, events.ReviewSubmittedEvent{
			ReviewID:    item.ID,
			SourceID:    item.SourceEntityID,
			CandidateID: item.CandidateEntityID,
			Score:       item.SimilarityScore,
		})
	}
	return item.ID, nil
}

func (r *Resolver) createEntity(ctx context.Context, mention models.Mention, name, normalized string, bestScore float64) (*models.ResolutionResult, error) {
	now := time.Now().UTC()
	entity := &models.Entity{
		ID:              uuid.New().String(),
		TenantID:        mention.TenantID,
		CanonicalName:   name,
		NormalizedName:  normalized,
		EntityType:      mention.EntityType,
		ConfidenceScore: 1.0,
		Status:          models.EntityStatusActive,
		BlockingKeys:    blocking.Keys(normalized),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.entities.Create(ctx, entity); err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]any{"name": name, "source_system": mention.SourceSystem})
	r.auditAppend(ctx, &models.AuditEntry{
		ID:        uuid.New().String(),
		TenantID:  mention.TenantID,
		EntityID:  entity.ID,
		Action:    models.AuditEntityCreated,
		ActorID:   r.opts.SourceSystem,
		Details:   details,
		CreatedAt: now,
	})

	result := resultFor(entity, true, bestScore, models.OutcomeNoMatch)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   entity.ID,
		"entity_type": entity.EntityType,
	}).Debug("Entity created")

	return result, nil
}

// auditAppend is best-effort; the audit trail is not on the critical path.
func (r *Resolver) auditAppend(ctx context.Context, entry *models.AuditEntry) {
	if r.audit == nil {
		return
	}
	if _, err := r.audit.Append(ctx, entry); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"action": string(entry.Action),
		}).Warn("Failed to append audit entry")
	}
}

func (r *Resolver) cacheEnabled() bool {
	return r.opts.CachingEnabled && r.cache != nil
}

// cachePut stores terminal match results. REVIEW results are never cached
// (the queue, not the cache, owns that pending state) and neither are
// new-entity creations: the next resolve of the same name takes the exact
// index path and caches that instead.
func (r *Resolver) cachePut(tenantID, normalized string, result *models.ResolutionResult) {
	if !r.cacheEnabled() {
		return
	}
	r.cache.Put(scopedName(tenantID, normalized), result.EntityType, result)
}

func resultFor(entity *models.Entity, isNew bool, confidence float64, outcome models.MatchOutcome) *models.ResolutionResult {
	return &models.ResolutionResult{
		EntityID:        entity.ID,
		CanonicalName:   entity.CanonicalName,
		NormalizedName:  entity.NormalizedName,
		EntityType:      entity.EntityType,
		IsNewEntity:     isNew,
		MatchConfidence: confidence,
		Outcome:         outcome,
	}
}

// scopedName prefixes the tenant with a NUL separator, which cannot occur in
// either part, so distinct tenant and name splits never collide.
func scopedName(tenantID, normalized string) string {
	if tenantID == "" {
		return normalized
	}
	return tenantID + "\x00" + normalized
}

func validateName(raw, entityType string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", models.NewError(models.ErrInputInvalid, "entity name is blank")
	}
	if len(name) > maxNameLength {
		return "", models.NewError(models.ErrInputInvalid, "entity name exceeds %d characters", maxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", models.NewError(models.ErrInputInvalid, "entity name contains control characters")
		}
	}
	if strings.TrimSpace(entityType) == "" {
		return "", models.NewError(models.ErrInputInvalid, "entity type is required")
	}
	return name, nil
}
