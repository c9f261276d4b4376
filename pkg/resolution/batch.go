package resolution

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/tracing"
)

// RelationshipCreator persists edges between resolved entities.
type RelationshipCreator interface {
	Create(ctx context.Context, rel *models.LibraryRelationship) error
}

// BatchRef is a temporary handle to a batched mention. Its result becomes
// available after Commit.
type BatchRef struct {
	tempID         string
	tenantID       string
	normalizedName string
	entityType     string
	result         *models.ResolutionResult
	err            error
}

// TempID returns the batch-scoped identifier.
func (r *BatchRef) TempID() string { return r.tempID }

// Result returns the resolution result, or nil before commit or on failure.
func (r *BatchRef) Result() *models.ResolutionResult { return r.result }

// Err returns the per-entry commit error, if any.
func (r *BatchRef) Err() error { return r.err }

type batchEntry struct {
	ref     *BatchRef
	mention models.Mention
}

type batchRelationship struct {
	from      *BatchRef
	to        *BatchRef
	relType   string
	props     json.RawMessage
	createdBy string
}

// ChunkResult reports one commit chunk; chunk boundaries make partial
// failures inspectable.
type ChunkResult struct {
	Index     int `json:"index"`
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchResult summarizes a committed batch.
type BatchResult struct {
	Chunks        []ChunkResult `json:"chunks"`
	Resolved      int           `json:"resolved"`
	Failed        int           `json:"failed"`
	Relationships int           `json:"relationships"`
}

type batchState int

const (
	batchOpen batchState = iota
	batchCommitted
	batchFailed
	batchReleased
)

// Per-entry memory estimate on top of the string payloads.
const batchEntryOverhead = 192

// Batch stages resolve and relationship operations and commits them in
// chunks. Mentions normalizing to the same (name, type) share one entity;
// the first enqueued wins the canonical name. A batch is single-writer:
// concurrent use is undefined.
type Batch struct {
	resolver      *Resolver
	relationships RelationshipCreator
	opts          Options
	logger        ectologger.Logger

	entries       []*batchEntry
	dedup         map[string]*BatchRef
	relOps        []batchRelationship
	memoryBytes   int64
	state         batchState
}

// NewBatch opens a batch over the given resolver. The relationship creator
// may be nil when the batch only resolves.
func NewBatch(resolver *Resolver, relationships RelationshipCreator, opts Options, logger ectologger.Logger) *Batch {
	return &Batch{
		resolver:      resolver,
		relationships: relationships,
		opts:          opts,
		logger:        logger,
		dedup:         make(map[string]*BatchRef),
	}
}

// Resolve stages a mention and returns its temporary handle. Mentions that
// normalize to an already-staged (name, type) return the existing handle.
func (b *Batch) Resolve(mention models.Mention) (*BatchRef, error) {
	if err := b.ensureOpen(); err != nil {
		return nil, err
	}

	name, err := validateName(mention.Name, mention.EntityType)
	if err != nil {
		return nil, err
	}

	if len(b.entries) >= b.opts.MaxBatchSize {
		b.state = batchFailed
		return nil, models.NewError(models.ErrBatchTooLarge, "batch exceeds %d operations", b.opts.MaxBatchSize)
	}

	cost := int64(len(name)+len(mention.EntityType)+len(mention.TenantID)+len(mention.Attributes)) + batchEntryOverhead
	if b.memoryBytes+cost > b.opts.MaxBatchMemoryBytes {
		b.state = batchFailed
		return nil, models.NewError(models.ErrBatchMemoryExceeded, "batch memory ceiling of %d bytes exceeded", b.opts.MaxBatchMemoryBytes)
	}

	normalized := b.resolver.normalizer.Normalize(name, mention.EntityType)
	key := scopedName(mention.TenantID, normalized) + "|" + mention.EntityType
	if existing, ok := b.dedup[key]; ok {
		return existing, nil
	}

	ref := &BatchRef{
		tempID:         uuid.New().String(),
		tenantID:       mention.TenantID,
		normalizedName: normalized,
		entityType:     mention.EntityType,
	}
	b.dedup[key] = ref
	b.entries = append(b.entries, &batchEntry{ref: ref, mention: mention})
	b.memoryBytes += cost
	return ref, nil
}

// CreateRelationship stages an edge between two staged handles. The edge is
// written after both endpoints have committed.
func (b *Batch) CreateRelationship(from, to *BatchRef, relType string, props json.RawMessage, createdBy string) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	if from == nil || to == nil {
		return models.NewError(models.ErrInputInvalid, "relationship endpoints are required")
	}
	if b.relationships == nil {
		return models.NewError(models.ErrStateInvalid, "batch has no relationship store")
	}

	b.relOps = append(b.relOps, batchRelationship{
		from:      from,
		to:        to,
		relType:   relType,
		props:     props,
		createdBy: createdBy,
	})
	return nil
}

// Commit resolves the staged mentions in chunks, then writes the staged
// relationships. Committed chunks are never rolled back; the result reports
// what each chunk achieved. The batch is released on every exit path.
func (b *Batch) Commit(ctx context.Context) (*BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Batch.Commit")
	defer span.End()

	if err := b.ensureOpen(); err != nil {
		return nil, err
	}
	b.state = batchCommitted
	defer b.Release()

	result := &BatchResult{}
	chunkSize := b.opts.BatchCommitChunkSize

	for start := 0; start < len(b.entries); start += chunkSize {
		end := start + chunkSize
		if end > len(b.entries) {
			end = len(b.entries)
		}

		chunk := ChunkResult{Index: len(result.Chunks), Attempted: end - start}
		for _, entry := range b.entries[start:end] {
			res, err := b.resolver.Resolve(ctx, entry.mention)
			if err != nil {
				entry.ref.err = err
				chunk.Failed++
				b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"chunk": chunk.Index,
					"name":  entry.mention.Name,
				}).Warn("Batch entry failed")
				continue
			}
			entry.ref.result = res
			chunk.Succeeded++
		}

		result.Chunks = append(result.Chunks, chunk)
		result.Resolved += chunk.Succeeded
		result.Failed += chunk.Failed
	}

	for _, op := range b.relOps {
		if op.from.result == nil || op.to.result == nil {
			result.Failed++
			continue
		}
		rel := &models.LibraryRelationship{
			ID:           uuid.New().String(),
			TenantID:     op.from.tenantID,
			Type:         op.relType,
			FromEntityID: op.from.result.EntityID,
			ToEntityID:   op.to.result.EntityID,
			Props:        op.props,
			CreatedBy:    op.createdBy,
			CreatedAt:    time.Now().UTC(),
		}
		if err := b.relationships.Create(ctx, rel); err != nil {
			result.Failed++
			b.logger.WithContext(ctx).WithError(err).Warn("Batch relationship failed")
			continue
		}
		result.Relationships++
	}

	return result, nil
}

// Release frees staged buffers. Safe to call more than once; abandoning a
// batch without committing must still call Release.
func (b *Batch) Release() {
	if b.state == batchOpen || b.state == batchCommitted || b.state == batchFailed {
		b.state = batchReleased
	}
	b.entries = nil
	b.dedup = nil
	b.relOps = nil
	b.memoryBytes = 0
}

func (b *Batch) ensureOpen() error {
	switch b.state {
	case batchOpen:
		return nil
	case batchCommitted, batchReleased:
		return models.NewError(models.ErrStateInvalid, "batch already committed or released")
	default:
		return models.NewError(models.ErrStateInvalid, "batch is in a failed state")
	}
}
