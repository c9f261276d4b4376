package review

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/merging"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/synonyms"
)

type memQueue struct {
	mu    sync.Mutex
	items map[string]*models.ReviewItem
}

func newMemQueue() *memQueue {
	return &memQueue{items: make(map[string]*models.ReviewItem)}
}

func (q *memQueue) Create(_ context.Context, item *models.ReviewItem) (*models.ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item.Status = models.ReviewStatusPending
	if item.SubmittedAt.IsZero() {
		item.SubmittedAt = time.Now().UTC()
	}
	copied := *item
	q.items[item.ID] = &copied
	return item, nil
}

func (q *memQueue) Get(_ context.Context, _, id string) (*models.ReviewItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return nil, models.NewError(models.ErrNotFound, "review item %q not found", id)
	}
	copied := *item
	return &copied, nil
}

func (q *memQueue) List(_ context.Context, _ string, filter models.ReviewFilter, page models.PageRequest) (*models.ReviewPage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var items []models.ReviewItem
	for _, item := range q.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		items = append(items, *item)
	}
	return &models.ReviewPage{Items: items, Total: len(items), Offset: page.Offset, Limit: page.Limit}, nil
}

func (q *memQueue) MarkDecided(_ context.Context, _, id string, status models.ReviewStatus, reviewerID string, notes *string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return models.NewError(models.ErrNotFound, "review item %q not found", id)
	}
	if item.Status != models.ReviewStatusPending {
		return models.NewError(models.ErrStateInvalid, "review item %q already decided (%s)", id, item.Status)
	}
	now := time.Now().UTC()
	item.Status = status
	item.ReviewedAt = &now
	item.ReviewerID = &reviewerID
	item.Notes = notes
	return nil
}

type memBackend struct {
	mu        sync.Mutex
	entities  map[string]*models.Entity
	synonyms  map[string]*models.Synonym
	decisions []*models.ReviewDecision
	audits    []*models.AuditEntry
	merges    []merging.Request
	mergeErr  error
}

func newMemBackend() *memBackend {
	return &memBackend{
		entities: make(map[string]*models.Entity),
		synonyms: make(map[string]*models.Synonym),
	}
}

func (b *memBackend) GetByID(_ context.Context, id string) (*models.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entities[id]
	if !ok {
		return nil, models.NewError(models.ErrNotFound, "entity %q not found", id)
	}
	copied := *e
	return &copied, nil
}

func (b *memBackend) CreateReviewDecision(_ context.Context, decision *models.ReviewDecision) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decisions = append(b.decisions, decision)
	return nil
}

func (b *memBackend) Merge(_ context.Context, req merging.Request) (*models.MergeRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mergeErr != nil {
		return nil, b.mergeErr
	}
	b.merges = append(b.merges, req)
	return &models.MergeRecord{ID: "rec-1", SourceID: req.SourceID, TargetID: req.TargetID}, nil
}

func (b *memBackend) Append(_ context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audits = append(b.audits, entry)
	return entry, nil
}

// synonyms.Repository surface.

func (b *memBackend) Create(_ context.Context, syn *models.Synonym) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := *syn
	b.synonyms[syn.ID] = &copied
	return nil
}

func (b *memBackend) GetByNormalizedValue(_ context.Context, tenantID, normalizedValue string) ([]*models.Synonym, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*models.Synonym
	for _, syn := range b.synonyms {
		if syn.NormalizedValue == normalizedValue && (tenantID == "" || syn.TenantID == tenantID) {
			copied := *syn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (b *memBackend) GetByEntity(_ context.Context, entityID string) ([]*models.Synonym, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*models.Synonym
	for _, syn := range b.synonyms {
		if syn.EntityID == entityID {
			copied := *syn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (b *memBackend) Reinforce(_ context.Context, synonymID string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	syn, ok := b.synonyms[synonymID]
	if !ok {
		return models.NewError(models.ErrNotFound, "synonym %q not found", synonymID)
	}
	syn.SupportCount++
	syn.LastConfirmedAt = at
	return nil
}

func (b *memBackend) UpdateConfidence(_ context.Context, synonymID string, confidence float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	syn, ok := b.synonyms[synonymID]
	if !ok {
		return models.NewError(models.ErrNotFound, "synonym %q not found", synonymID)
	}
	syn.Confidence = confidence
	return nil
}

func (b *memBackend) Delete(_ context.Context, synonymID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.synonyms, synonymID)
	return nil
}

type reviewRecorder struct {
	submitted []events.ReviewSubmittedEvent
	decided   []events.ReviewDecidedEvent
}

func (r *reviewRecorder) OnReviewSubmitted(_ context.Context, e events.ReviewSubmittedEvent) {
	r.submitted = append(r.submitted, e)
}

func (r *reviewRecorder) OnReviewDecided(_ context.Context, e events.ReviewDecidedEvent) {
	r.decided = append(r.decided, e)
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestService(queue *memQueue, backend *memBackend) (*Service, *reviewRecorder) {
	logger := testLogger()
	bus := events.NewBus(logger)
	recorder := &reviewRecorder{}
	bus.SubscribeReview(recorder)
	synonymService := synonyms.NewService(backend, synonyms.NewDecayEngine(synonyms.DefaultDecayConfig()), logger)
	return NewService(queue, backend, backend, backend, synonymService, backend, bus, logger), recorder
}

func pendingItem(sourceEntityID, sourceName string) *models.ReviewItem {
	return &models.ReviewItem{
		ID:                "rev-1",
		TenantID:          "t1",
		SourceEntityID:    sourceEntityID,
		SourceName:        sourceName,
		CandidateEntityID: "cand-1",
		SimilarityScore:   0.72,
		EntityType:        "COMPANY",
		MatchDecisionID:   "dec-1",
	}
}

func seedCandidate(backend *memBackend) {
	backend.entities["cand-1"] = &models.Entity{
		ID:             "cand-1",
		TenantID:       "t1",
		CanonicalName:  "Globex",
		NormalizedName: "globex",
		EntityType:     "COMPANY",
		Status:         models.EntityStatusActive,
	}
}

func TestSubmit_ValidatesAndPublishes(t *testing.T) {
	queue := newMemQueue()
	backend := newMemBackend()
	service, recorder := newTestService(queue, backend)
	ctx := context.Background()

	_, err := service.Submit(ctx, &models.ReviewItem{SourceName: "Glowbex"})
	assert.Equal(t, models.ErrInputInvalid, models.KindOf(err))

	item, err := service.Submit(ctx, pendingItem("", "Glowbex"))
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, item.Status)

	require.Len(t, recorder.submitted, 1)
	assert.Equal(t, item.ID, recorder.submitted[0].ReviewID)
	require.Len(t, backend.audits, 1)
	assert.Equal(t, models.AuditReviewSubmitted, backend.audits[0].Action)
}

func TestApprove_EntityReviewTriggersMerge(t *testing.T) {
	queue := newMemQueue()
	backend := newMemBackend()
	seedCandidate(backend)
	service, recorder := newTestService(queue, backend)
	ctx := context.Background()

	_, err := service.Submit(ctx, pendingItem("src-1", ""))
	require.NoError(t, err)

	require.NoError(t, service.Approve(ctx, "t1", "rev-1", "reviewer-9", nil))

	item, err := queue.Get(ctx, "t1", "rev-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, item.Status)

	require.Len(t, backend.merges, 1)
	assert.Equal(t, "src-1", backend.merges[0].SourceID)
	assert.Equal(t, "cand-1", backend.merges[0].TargetID)
	assert.Equal(t, "reviewer-9", backend.merges[0].TriggeredBy)
	assert.Equal(t, string(models.OutcomeAutoMerge), backend.merges[0].Decision)

	require.Len(t, backend.decisions, 1)
	assert.Equal(t, models.ReviewActionApprove, backend.decisions[0].Action)
	assert.Equal(t, "dec-1", backend.decisions[0].MatchDecisionID)

	require.Len(t, recorder.decided, 1)
	assert.Equal(t, models.ReviewActionApprove, recorder.decided[0].Action)
}

func TestApprove_MergeFailureLeavesItemPending(t *testing.T) {
	queue := newMemQueue()
	backend := newMemBackend()
	seedCandidate(backend)
	service, recorder := newTestService(queue, backend)
	ctx := context.Background()

	_, err := service.Submit(ctx, pendingItem("src-1", ""))
	require.NoError(t, err)

	backend.mergeErr = models.NewError(models.ErrStoreUnavailable, "graph unreachable")
	err = service.Approve(ctx, "t1", "rev-1", "reviewer-9", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrStoreUnavailable, models.KindOf(err))

	// The item stays PENDING so the approval can be retried.
	item, err := queue.Get(ctx, "t1", "rev-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, item.Status)
	assert.Empty(t, backend.decisions)
	assert.Empty(t, recorder.decided)

	backend.mergeErr = nil
	require.NoError(t, service.Approve(ctx, "t1", "rev-1", "reviewer-9", nil))

	item, err = queue.Get(ctx, "t1", "rev-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, item.Status)
	require.Len(t, backend.merges, 1)
}

func TestApprove_MentionReviewAttachesHumanSynonym(t *testing.T) {
	queue := newMemQueue()
	backend := newMemBackend()
	seedCandidate(backend)
	service, _ := newTestService(queue, backend)
	ctx := context.Background()

	_, err := service.Submit(ctx, pendingItem("", "Glowbex"))
	require.NoError(t, err)

	require.NoError(t, service.Approve(ctx, "t1", "rev-1", "reviewer-9", nil))

	assert.Empty(t, backend.merges)
	syns, err := backend.GetByEntity(ctx, "cand-1")
	require.NoError(t, err)
	require.Len(t, syns, 1)
	assert.Equal(t, models.SynonymSourceHuman, syns[0].Source)
	assert.Equal(t, "glowbex", syns[0].NormalizedValue)
	assert.InDelta(t, 0.72, syns[0].Confidence, 1e-9)
}

func TestReject_PenalizesParticipatingSynonym(t *testing.T) {
	queue := newMemQueue()
	backend := newMemBackend()
	seedCandidate(backend)
	now := time.Now().UTC()
	backend.synonyms["syn-1"] = &models.Synonym{
		ID:              "syn-1",
		TenantID:        "t1",
		EntityID:        "cand-1",
		Value:           "Glowbex",
		NormalizedValue: "glowbex",
		Source:          models.SynonymSourceSystem,
		Confidence:      0.8,
		SupportCount:    3,
		LastConfirmedAt: now,
		CreatedAt:       now,
	}
	service, recorder := newTestService(queue, backend)
	ctx := context.Background()

	_, err := service.Submit(ctx, pendingItem("", "Glowbex"))
	require.NoError(t, err)

	require.NoError(t, service.Reject(ctx, "t1", "rev-1", "reviewer-9", nil))

	item, err := queue.Get(ctx, "t1", "rev-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, item.Status)

	// 0.8 * (1 - 0.25)
	assert.InDelta(t, 0.6, backend.synonyms["syn-1"].Confidence, 1e-9)

	require.Len(t, backend.decisions, 1)
	assert.Equal(t, models.ReviewActionReject, backend.decisions[0].Action)
	require.Len(t, recorder.decided, 1)
	assert.Equal(t, models.ReviewActionReject, recorder.decided[0].Action)
}

func TestDoubleDecideIsStateInvalid(t *testing.T) {
	queue := newMemQueue()
	backend := newMemBackend()
	seedCandidate(backend)
	service, _ := newTestService(queue, backend)
	ctx := context.Background()

	_, err := service.Submit(ctx, pendingItem("", "Glowbex"))
	require.NoError(t, err)

	require.NoError(t, service.Approve(ctx, "t1", "rev-1", "reviewer-9", nil))
	err = service.Reject(ctx, "t1", "rev-1", "reviewer-9", nil)
	assert.Equal(t, models.ErrStateInvalid, models.KindOf(err))
}

func TestGetPending_DefaultsToPendingStatus(t *testing.T) {
	queue := newMemQueue()
	backend := newMemBackend()
	seedCandidate(backend)
	service, _ := newTestService(queue, backend)
	ctx := context.Background()

	_, err := service.Submit(ctx, pendingItem("", "Glowbex"))
	require.NoError(t, err)
	require.NoError(t, service.Approve(ctx, "t1", "rev-1", "reviewer-9", nil))

	other := pendingItem("", "Glowbex Two")
	other.ID = "rev-2"
	_, err = service.Submit(ctx, other)
	require.NoError(t, err)

	page, err := service.GetPending(ctx, "t1", models.ReviewFilter{}, models.PageRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "rev-2", page.Items[0].ID)
}
