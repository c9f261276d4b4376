// Package merging implements the multi-step entity merge with compensating
// rollback. The store only offers single-statement execution, so atomicity
// is simulated: each committed step pushes an undo action, and any failure
// unwinds the stack before the error is surfaced.
package merging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/locks"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// Step names reported inside MERGE_FAILED errors.
const (
	StepValidate      = "validate"
	StepAttachSynonym = "attach_synonym"
	StepCreateDup     = "create_duplicate"
	StepRehome        = "rehome_relationships"
	StepStatusFlip    = "status_flip"
	StepLedger        = "append_ledger"
)

// EntityStore is the entity persistence surface the engine consumes.
type EntityStore interface {
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	MarkMerged(ctx context.Context, sourceID, targetID string) error
	RevertMerge(ctx context.Context, sourceID, targetID string) error
}

// SynonymStore persists synonyms attached during merges.
type SynonymStore interface {
	GetByEntity(ctx context.Context, entityID string) ([]*models.Synonym, error)
	Create(ctx context.Context, syn *models.Synonym) error
	Delete(ctx context.Context, synonymID string) error
}

// DuplicateStore persists merge provenance nodes.
type DuplicateStore interface {
	Create(ctx context.Context, dup *models.DuplicateEntity) error
	Delete(ctx context.Context, duplicateID string) error
}

// RelationshipStore re-homes edges between entities.
type RelationshipStore interface {
	Rehome(ctx context.Context, sourceID, targetID string) error
	ReverseRehome(ctx context.Context, sourceID, targetID string) error
}

// LedgerStore appends merge records.
type LedgerStore interface {
	Append(ctx context.Context, record *models.MergeRecord) (*models.MergeRecord, error)
}

// AuditStore appends audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) (*models.AuditEntry, error)
}

// Request describes one merge: re-home source into target.
type Request struct {
	SourceID      string
	TargetID      string
	Confidence    float64
	Decision      string
	TriggeredBy   string
	Reasoning     string
	CorrelationID string
	SourceSystem  string
}

// Engine performs merges.
type Engine struct {
	entities      EntityStore
	synonyms      SynonymStore
	duplicates    DuplicateStore
	relationships RelationshipStore
	ledger        LedgerStore
	audit         AuditStore
	locker        locks.Locker
	bus           *events.Bus
	logger        ectologger.Logger
}

// NewEngine creates a merge engine.
func NewEngine(
	entities EntityStore,
	synonyms SynonymStore,
	duplicates DuplicateStore,
	relationships RelationshipStore,
	ledger LedgerStore,
	audit AuditStore,
	locker locks.Locker,
	bus *events.Bus,
	logger ectologger.Logger,
) *Engine {
	return &Engine{
		entities:      entities,
		synonyms:      synonyms,
		duplicates:    duplicates,
		relationships: relationships,
		ledger:        ledger,
		audit:         audit,
		locker:        locker,
		bus:           bus,
		logger:        logger,
	}
}

// Merge re-homes the source entity into the target under a merge-pair lock.
// Any step failure rolls back previously committed steps and surfaces a
// MERGE_FAILED naming the step.
func (e *Engine) Merge(ctx context.Context, req Request) (*models.MergeRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.Merge")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"source_id": req.SourceID,
		"target_id": req.TargetID,
	})

	lockKey := locks.MergeKey(req.SourceID, req.TargetID)
	if err := e.locker.TryLock(ctx, lockKey); err != nil {
		return nil, err
	}
	defer func() {
		if err := e.locker.Unlock(ctx, lockKey); err != nil {
			log.WithError(err).Warn("Failed to release merge lock")
		}
	}()

	// Step 1: validate. Read-only, nothing to compensate.
	source, target, err := e.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	stack := newCompensationStack(e.logger)
	fail := func(step string, cause error) (*models.MergeRecord, error) {
		log.WithError(cause).WithFields(map[string]any{"step": step}).Error("Merge step failed, unwinding")
		if unwindErr := stack.Unwind(ctx); unwindErr != nil {
			log.WithError(unwindErr).Error("Merge compensation incomplete")
		}
		return nil, models.NewMergeError(step, cause)
	}

	// Step 2: attach the source's canonical name to the target as a SYSTEM
	// synonym. Skipped when an equivalent synonym already exists or the two
	// normalized names coincide.
	if err := e.attachSynonym(ctx, source, target, req.Confidence, stack); err != nil {
		return fail(StepAttachSynonym, err)
	}

	// Step 3: record the source's pre-merge identity.
	if err := e.createDuplicate(ctx, source, target, req.SourceSystem, stack); err != nil {
		return fail(StepCreateDup, err)
	}

	// Step 4: re-home relationships. The reverse migration is best-effort;
	// self-loops dropped here are not restorable.
	if err := e.relationships.Rehome(ctx, source.ID, target.ID); err != nil {
		return fail(StepRehome, err)
	}
	stack.Push(StepRehome, func(ctx context.Context) error {
		return e.relationships.ReverseRehome(ctx, source.ID, target.ID)
	})

	// Step 5: flip the source to MERGED and link it to the target.
	if err := e.entities.MarkMerged(ctx, source.ID, target.ID); err != nil {
		return fail(StepStatusFlip, err)
	}
	stack.Push(StepStatusFlip, func(ctx context.Context) error {
		return e.entities.RevertMerge(ctx, source.ID, target.ID)
	})

	// Step 6: append ledger and audit entries. Append-only, no compensation,
	// but a failure still rolls back the preceding steps.
	record, err := e.appendLedger(ctx, source, target, req)
	if err != nil {
		return fail(StepLedger, err)
	}

	// Step 7: success. Drop the stack and notify listeners.
	log.WithFields(map[string]any{"merge_record_id": record.ID}).Info("Entities merged")
	e.bus.PublishMerge(ctx, events.MergeEvent{
		SourceID: source.ID,
		TargetID: target.ID,
		At:       record.MergedAt,
	})

	return record, nil
}

func (e *Engine) validate(ctx context.Context, req Request) (*models.Entity, *models.Entity, error) {
	if req.SourceID == req.TargetID {
		return nil, nil, models.NewError(models.ErrInputInvalid, "cannot merge entity %q into itself", req.SourceID)
	}

	source, err := e.entities.GetByID(ctx, req.SourceID)
	if err != nil {
		return nil, nil, err
	}
	target, err := e.entities.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, nil, err
	}

	if !source.IsActive() {
		return nil, nil, models.NewError(models.ErrStateInvalid, "source entity %q is not ACTIVE", source.ID)
	}
	if !target.IsActive() {
		return nil, nil, models.NewError(models.ErrStateInvalid, "target entity %q is not ACTIVE", target.ID)
	}
	if source.EntityType != target.EntityType {
		return nil, nil, models.NewError(models.ErrStateInvalid, "cannot merge %s into %s", source.EntityType, target.EntityType)
	}

	return source, target, nil
}

func (e *Engine) attachSynonym(ctx context.Context, source, target *models.Entity, confidence float64, stack *compensationStack) error {
	if source.NormalizedName == target.NormalizedName {
		return nil
	}

	existing, err := e.synonyms.GetByEntity(ctx, target.ID)
	if err != nil {
		return err
	}
	for _, syn := range existing {
		if strings.EqualFold(syn.NormalizedValue, source.NormalizedName) {
			return nil
		}
	}

	now := time.Now().UTC()
	syn := &models.Synonym{
		ID:              uuid.New().String(),
		TenantID:        target.TenantID,
		EntityID:        target.ID,
		Value:           source.CanonicalName,
		NormalizedValue: source.NormalizedName,
		Source:          models.SynonymSourceSystem,
		Confidence:      confidence,
		SupportCount:    1,
		LastConfirmedAt: now,
		CreatedAt:       now,
	}
	if err := e.synonyms.Create(ctx, syn); err != nil {
		return err
	}

	stack.Push(StepAttachSynonym, func(ctx context.Context) error {
		return e.synonyms.Delete(ctx, syn.ID)
	})
	return nil
}

func (e *Engine) createDuplicate(ctx context.Context, source, target *models.Entity, sourceSystem string, stack *compensationStack) error {
	dup := &models.DuplicateEntity{
		ID:             uuid.New().String(),
		TenantID:       target.TenantID,
		OriginalName:   source.CanonicalName,
		NormalizedName: source.NormalizedName,
		SourceSystem:   sourceSystem,
		EntityID:       target.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := e.duplicates.Create(ctx, dup); err != nil {
		return err
	}

	stack.Push(StepCreateDup, func(ctx context.Context) error {
		return e.duplicates.Delete(ctx, dup.ID)
	})
	return nil
}

func (e *Engine) appendLedger(ctx context.Context, source, target *models.Entity, req Request) (*models.MergeRecord, error) {
	record := &models.MergeRecord{
		ID:            uuid.New().String(),
		TenantID:      target.TenantID,
		SourceID:      source.ID,
		TargetID:      target.ID,
		SourceName:    source.CanonicalName,
		TargetName:    target.CanonicalName,
		Confidence:    req.Confidence,
		Decision:      req.Decision,
		TriggeredBy:   req.TriggeredBy,
		Reasoning:     req.Reasoning,
		CorrelationID: req.CorrelationID,
		MergedAt:      time.Now().UTC(),
	}
	if _, err := e.ledger.Append(ctx, record); err != nil {
		return nil, err
	}

	details, _ := json.Marshal(map[string]any{
		"source_id":  source.ID,
		"target_id":  target.ID,
		"confidence": req.Confidence,
		"decision":   req.Decision,
	})
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		TenantID:  target.TenantID,
		EntityID:  target.ID,
		Action:    models.AuditEntityMerged,
		ActorID:   req.TriggeredBy,
		Details:   details,
		CreatedAt: record.MergedAt,
	}
	if _, err := e.audit.Append(ctx, entry); err != nil {
		return nil, err
	}

	return record, nil
}
