package resolution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/cache"
	"github.com/Ramsey-B/bramble/pkg/events"
	"github.com/Ramsey-B/bramble/pkg/llm"
	"github.com/Ramsey-B/bramble/pkg/locks"
	"github.com/Ramsey-B/bramble/pkg/models"
	"github.com/Ramsey-B/bramble/pkg/synonyms"
)

// memStore is a mutex-guarded in-memory backend covering the entity,
// synonym-lookup, decision, review and audit surfaces.
type memStore struct {
	mu           sync.Mutex
	entities     map[string]*models.Entity
	synonyms     map[string]*models.Synonym
	decisions    []*models.MatchDecision
	reviews      []*models.ReviewItem
	auditEntries []*models.AuditEntry
	exactLookups int
}

func newMemStore() *memStore {
	return &memStore{
		entities: make(map[string]*models.Entity),
		synonyms: make(map[string]*models.Synonym),
	}
}

func (m *memStore) Create(_ context.Context, entity *models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entity
	m.entities[entity.ID] = &copied
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, models.NewError(models.ErrNotFound, "entity %q not found", id)
	}
	copied := *e
	return &copied, nil
}

func (m *memStore) GetActiveByNormalizedName(_ context.Context, tenantID, normalizedName, entityType string) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exactLookups++
	for _, e := range m.entities {
		if e.Status == models.EntityStatusActive && e.NormalizedName == normalizedName &&
			e.EntityType == entityType && (tenantID == "" || e.TenantID == tenantID) {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetByBlockingKeys(_ context.Context, tenantID string, keys []string, entityType string) ([]*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var out []*models.Entity
	for _, e := range m.entities {
		if e.Status != models.EntityStatusActive || e.EntityType != entityType {
			continue
		}
		if tenantID != "" && e.TenantID != tenantID {
			continue
		}
		for _, k := range e.BlockingKeys {
			if _, ok := keySet[k]; ok {
				copied := *e
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) GetAllActiveByType(_ context.Context, tenantID, entityType string, limit int) ([]*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Entity
	for _, e := range m.entities {
		if len(out) >= limit {
			break
		}
		if e.Status == models.EntityStatusActive && e.EntityType == entityType &&
			(tenantID == "" || e.TenantID == tenantID) {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) CountActiveByType(_ context.Context, tenantID, entityType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.entities {
		if e.Status == models.EntityStatusActive && e.EntityType == entityType &&
			(tenantID == "" || e.TenantID == tenantID) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ResolveCurrentID(_ context.Context, id string) (string, error) {
	return id, nil
}

func (m *memStore) GetActiveEntityForSynonym(_ context.Context, tenantID, normalizedValue string) (*models.Entity, *models.Synonym, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bestSyn *models.Synonym
	for _, syn := range m.synonyms {
		if syn.NormalizedValue != normalizedValue {
			continue
		}
		if tenantID != "" && syn.TenantID != tenantID {
			continue
		}
		if bestSyn == nil || syn.Confidence > bestSyn.Confidence {
			bestSyn = syn
		}
	}
	if bestSyn == nil {
		return nil, nil, nil
	}
	entity, ok := m.entities[bestSyn.EntityID]
	if !ok || entity.Status != models.EntityStatusActive {
		return nil, nil, nil
	}
	entityCopy := *entity
	synCopy := *bestSyn
	return &entityCopy, &synCopy, nil
}

// synonyms.Repository surface.

func (m *memStore) CreateSynonym(_ context.Context, syn *models.Synonym) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *syn
	m.synonyms[syn.ID] = &copied
	return nil
}

func (m *memStore) GetByNormalizedValue(_ context.Context, tenantID, normalizedValue string) ([]*models.Synonym, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Synonym
	for _, syn := range m.synonyms {
		if syn.NormalizedValue == normalizedValue && (tenantID == "" || syn.TenantID == tenantID) {
			copied := *syn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) GetByEntity(_ context.Context, entityID string) ([]*models.Synonym, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Synonym
	for _, syn := range m.synonyms {
		if syn.EntityID == entityID {
			copied := *syn
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) Reinforce(_ context.Context, synonymID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	syn, ok := m.synonyms[synonymID]
	if !ok {
		return models.NewError(models.ErrNotFound, "synonym %q not found", synonymID)
	}
	syn.SupportCount++
	syn.LastConfirmedAt = at
	return nil
}

func (m *memStore) UpdateConfidence(_ context.Context, synonymID string, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	syn, ok := m.synonyms[synonymID]
	if !ok {
		return models.NewError(models.ErrNotFound, "synonym %q not found", synonymID)
	}
	syn.Confidence = confidence
	return nil
}

func (m *memStore) DeleteSynonym(_ context.Context, synonymID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.synonyms, synonymID)
	return nil
}

func (m *memStore) CreateDecision(_ context.Context, decision *models.MatchDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, decision)
	return nil
}

func (m *memStore) Submit(_ context.Context, item *models.ReviewItem) (*models.ReviewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.Status = models.ReviewStatusPending
	m.reviews = append(m.reviews, item)
	return item, nil
}

func (m *memStore) Append(_ context.Context, entry *models.AuditEntry) (*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditEntries = append(m.auditEntries, entry)
	return entry, nil
}

func (m *memStore) entityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

func (m *memStore) auditActions() []models.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]models.AuditAction, 0, len(m.auditEntries))
	for _, e := range m.auditEntries {
		actions = append(actions, e.Action)
	}
	return actions
}

// synonymRepoAdapter maps the memStore methods onto synonyms.Repository,
// whose Create/Delete names collide with the entity surface.
type synonymRepoAdapter struct{ store *memStore }

func (a synonymRepoAdapter) Create(ctx context.Context, syn *models.Synonym) error {
	return a.store.CreateSynonym(ctx, syn)
}
func (a synonymRepoAdapter) GetByNormalizedValue(ctx context.Context, tenantID, normalizedValue string) ([]*models.Synonym, error) {
	return a.store.GetByNormalizedValue(ctx, tenantID, normalizedValue)
}
func (a synonymRepoAdapter) GetByEntity(ctx context.Context, entityID string) ([]*models.Synonym, error) {
	return a.store.GetByEntity(ctx, entityID)
}
func (a synonymRepoAdapter) Reinforce(ctx context.Context, synonymID string, at time.Time) error {
	return a.store.Reinforce(ctx, synonymID, at)
}
func (a synonymRepoAdapter) UpdateConfidence(ctx context.Context, synonymID string, confidence float64) error {
	return a.store.UpdateConfidence(ctx, synonymID, confidence)
}
func (a synonymRepoAdapter) Delete(ctx context.Context, synonymID string) error {
	return a.store.DeleteSynonym(ctx, synonymID)
}

type decisionSinkAdapter struct{ store *memStore }

func (a decisionSinkAdapter) Create(ctx context.Context, decision *models.MatchDecision) error {
	return a.store.CreateDecision(ctx, decision)
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestResolver(t *testing.T, store *memStore, opts Options, provider llm.Provider) *Resolver {
	t.Helper()
	logger := testLogger()
	synonymService := synonyms.NewService(synonymRepoAdapter{store}, synonyms.NewDecayEngine(synonyms.DefaultDecayConfig()), logger)
	return NewResolver(
		store,
		store,
		synonymService,
		decisionSinkAdapter{store},
		store,
		store,
		cache.NewResolutionCache(opts.CacheMaxSize, opts.CacheTTL),
		provider,
		locks.NewLocalLocker(opts.LockTimeout),
		events.NewBus(logger),
		opts,
		logger,
	)
}

func mention(name, entityType string) models.Mention {
	return models.Mention{TenantID: "t1", Name: name, EntityType: entityType}
}

func TestResolve_ExactRematch(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, mention("Microsoft Corporation", "COMPANY"))
	require.NoError(t, err)
	assert.True(t, first.IsNewEntity)

	second, err := resolver.Resolve(ctx, mention("Microsoft Corporation", "COMPANY"))
	require.NoError(t, err)
	assert.False(t, second.IsNewEntity)
	assert.Equal(t, 1.0, second.MatchConfidence)
	assert.Equal(t, first.EntityID, second.EntityID)
	assert.Equal(t, 1, store.entityCount())
}

func TestResolve_SuffixNormalization(t *testing.T) {
	store := newMemStore()
	opts := DefaultOptions()
	opts.CachingEnabled = false
	resolver := newTestResolver(t, store, opts, nil)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, mention("Apple Inc.", "COMPANY"))
	require.NoError(t, err)
	assert.Equal(t, "apple", first.NormalizedName)

	second, err := resolver.Resolve(ctx, mention("Apple Incorporated", "COMPANY"))
	require.NoError(t, err)
	assert.Equal(t, first.EntityID, second.EntityID)
	assert.Equal(t, 1, store.entityCount())
}

func TestResolve_AutoMergeRangeAttachesSynonym(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)
	ctx := context.Background()

	seed, err := resolver.Resolve(ctx, mention("Acme Global Widget Manufacturing Holdings International Group", "COMPANY"))
	require.NoError(t, err)

	result, err := resolver.Resolve(ctx, mention("Acme Global Widget Manufacturing Holdings International Groop", "COMPANY"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeAutoMerge, result.Outcome)
	assert.False(t, result.IsNewEntity)
	assert.Equal(t, seed.EntityID, result.EntityID)
	assert.GreaterOrEqual(t, result.MatchConfidence, 0.92)
	assert.Equal(t, 1, store.entityCount())

	syns, err := store.GetByEntity(ctx, seed.EntityID)
	require.NoError(t, err)
	require.Len(t, syns, 1)
	assert.Equal(t, models.SynonymSourceSystem, syns[0].Source)
	assert.Equal(t, 1, syns[0].SupportCount)
}

func TestResolve_ReviewRange(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)
	ctx := context.Background()

	seed, err := resolver.Resolve(ctx, mention("Globex", "COMPANY"))
	require.NoError(t, err)

	result, err := resolver.Resolve(ctx, mention("Glowbex", "COMPANY"))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeReview, result.Outcome)
	assert.False(t, result.IsNewEntity)
	assert.Equal(t, seed.EntityID, result.EntityID)
	assert.NotEmpty(t, result.ReviewID)

	// No entity is created for a REVIEW-range input.
	assert.Equal(t, 1, store.entityCount())
	require.Len(t, store.reviews, 1)
	assert.Equal(t, models.ReviewStatusPending, store.reviews[0].Status)
	assert.Equal(t, "Glowbex", store.reviews[0].SourceName)
	assert.Equal(t, seed.EntityID, store.reviews[0].CandidateEntityID)
}

func TestResolve_NoMatchViaFullScanFallback(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, mention("Globex", "COMPANY"))
	require.NoError(t, err)

	// Shares no blocking key with the seed, so discovery falls through to
	// the gated full scan, finds nothing usable, and creates a new entity.
	result, err := resolver.Resolve(ctx, mention("Zenith Unrelated Systems", "COMPANY"))
	require.NoError(t, err)

	assert.True(t, result.IsNewEntity)
	assert.Equal(t, models.OutcomeNoMatch, result.Outcome)
	assert.Equal(t, 2, store.entityCount())
	assert.Contains(t, store.auditActions(), models.AuditEntityCreated)
}

func TestResolve_SynonymPathReinforces(t *testing.T) {
	store := newMemStore()
	opts := DefaultOptions()
	opts.CachingEnabled = false
	resolver := newTestResolver(t, store, opts, nil)
	ctx := context.Background()

	seed, err := resolver.Resolve(ctx, mention("Acme Corporation", "COMPANY"))
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.CreateSynonym(ctx, &models.Synonym{
		ID:              "syn-1",
		TenantID:        "t1",
		EntityID:        seed.EntityID,
		Value:           "Akme Corp",
		NormalizedValue: "akme",
		Source:          models.SynonymSourceHuman,
		Confidence:      0.85,
		SupportCount:    1,
		LastConfirmedAt: now,
		CreatedAt:       now,
	}))

	result, err := resolver.Resolve(ctx, mention("Akme Corp", "COMPANY"))
	require.NoError(t, err)

	assert.Equal(t, seed.EntityID, result.EntityID)
	assert.False(t, result.IsNewEntity)
	// Fresh base 0.85 plus the support boost lands in the synonym band.
	assert.Equal(t, models.OutcomeSynonym, result.Outcome)
	assert.InDelta(t, 0.87, result.MatchConfidence, 0.02)

	syns, err := store.GetByEntity(ctx, seed.EntityID)
	require.NoError(t, err)
	require.Len(t, syns, 1)
	assert.Equal(t, 2, syns[0].SupportCount)
}

func TestResolve_InputValidation(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)
	ctx := context.Background()

	cases := []models.Mention{
		mention("   ", "COMPANY"),
		mention("name\x00with control", "COMPANY"),
		mention(string(make([]byte, maxNameLength+1)), "COMPANY"),
		mention("Fine Name", ""),
	}
	for _, m := range cases {
		_, err := resolver.Resolve(ctx, m)
		assert.Equal(t, models.ErrInputInvalid, models.KindOf(err))
	}
	assert.Equal(t, 0, store.entityCount())
}

func TestResolve_ConcurrentCreateIsSingular(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := resolver.Resolve(context.Background(), mention("Acme Corp", "COMPANY"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.entityCount())
}

func TestResolve_CacheShortCircuitsLookup(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)
	ctx := context.Background()

	// First resolve creates; second takes the exact index path and caches.
	_, err := resolver.Resolve(ctx, mention("Microsoft Corporation", "COMPANY"))
	require.NoError(t, err)
	_, err = resolver.Resolve(ctx, mention("Microsoft Corporation", "COMPANY"))
	require.NoError(t, err)

	store.mu.Lock()
	lookupsAfterSecond := store.exactLookups
	store.mu.Unlock()

	_, err = resolver.Resolve(ctx, mention("Microsoft Corporation", "COMPANY"))
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, lookupsAfterSecond, store.exactLookups)
}

func TestScopedName_TenantSeparation(t *testing.T) {
	assert.Equal(t, "acme", scopedName("", "acme"))
	assert.NotEqual(t, scopedName("t1", "acme"), scopedName("t2", "acme"))
	// The NUL separator cannot occur in tenant ids or normalized names, so
	// distinct splits never produce the same key.
	assert.Equal(t, "t1\x00acme", scopedName("t1", "acme"))
}

func TestResolve_EmitsDecisionsForEvaluatedCandidates(t *testing.T) {
	store := newMemStore()
	resolver := newTestResolver(t, store, DefaultOptions(), nil)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, mention("Globex", "COMPANY"))
	require.NoError(t, err)
	_, err = resolver.Resolve(ctx, mention("Glowbex", "COMPANY"))
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.decisions, 1)
	d := store.decisions[0]
	assert.Equal(t, models.OutcomeReview, d.Outcome)
	assert.Equal(t, models.EvaluatorSystem, d.Evaluator)
	assert.Equal(t, 0.92, d.Thresholds.AutoMerge)
	assert.GreaterOrEqual(t, d.FinalScore, 0.60)
	assert.Less(t, d.FinalScore, 0.80)
}
