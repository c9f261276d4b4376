package synonyms

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/bramble/pkg/models"
)

type fakeRepo struct {
	synonyms map[string]*models.Synonym
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{synonyms: make(map[string]*models.Synonym)}
}

func (f *fakeRepo) Create(_ context.Context, syn *models.Synonym) error {
	f.synonyms[syn.ID] = syn
	return nil
}

func (f *fakeRepo) GetByNormalizedValue(_ context.Context, tenantID, normalizedValue string) ([]*models.Synonym, error) {
	var out []*models.Synonym
	for _, syn := range f.synonyms {
		if syn.TenantID == tenantID && syn.NormalizedValue == normalizedValue {
			out = append(out, syn)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetByEntity(_ context.Context, entityID string) ([]*models.Synonym, error) {
	var out []*models.Synonym
	for _, syn := range f.synonyms {
		if syn.EntityID == entityID {
			out = append(out, syn)
		}
	}
	return out, nil
}

func (f *fakeRepo) Reinforce(_ context.Context, synonymID string, at time.Time) error {
	syn := f.synonyms[synonymID]
	syn.SupportCount++
	syn.LastConfirmedAt = at
	return nil
}

func (f *fakeRepo) UpdateConfidence(_ context.Context, synonymID string, confidence float64) error {
	f.synonyms[synonymID].Confidence = confidence
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, synonymID string) error {
	delete(f.synonyms, synonymID)
	return nil
}

func newTestService(repo Repository) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(repo, NewDecayEngine(DefaultDecayConfig()), logger)
}

func testEntity() *models.Entity {
	return &models.Entity{
		ID:             "e1",
		TenantID:       "t1",
		CanonicalName:  "Acme Corporation",
		NormalizedName: "acme",
		EntityType:     "COMPANY",
		Status:         models.EntityStatusActive,
	}
}

func TestCreateForEntity(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	syn, err := svc.CreateForEntity(context.Background(), testEntity(), "Akme Corp", "akme", models.SynonymSourceSystem, 0.85)
	require.NoError(t, err)

	assert.Equal(t, "e1", syn.EntityID)
	assert.Equal(t, "t1", syn.TenantID)
	assert.Equal(t, 1, syn.SupportCount)
	assert.Equal(t, models.SynonymSourceSystem, syn.Source)
	assert.InDelta(t, 0.85, syn.Confidence, 1e-9)
}

func TestCreateForEntity_RejectsCanonicalName(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.CreateForEntity(context.Background(), testEntity(), "ACME", "acme", models.SynonymSourceSystem, 0.9)
	require.Error(t, err)
	assert.Equal(t, models.ErrInputInvalid, models.KindOf(err))
}

func TestCreateForEntity_DuplicateReinforces(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	entity := testEntity()

	first, err := svc.CreateForEntity(context.Background(), entity, "Akme Corp", "akme", models.SynonymSourceSystem, 0.85)
	require.NoError(t, err)

	second, err := svc.CreateForEntity(context.Background(), entity, "AKME CORP", "akme", models.SynonymSourceSystem, 0.90)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.SupportCount)
	assert.Len(t, repo.synonyms, 1)
}

func TestReinforce(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	syn, err := svc.CreateForEntity(context.Background(), testEntity(), "Akme", "akme", models.SynonymSourceSystem, 0.85)
	require.NoError(t, err)

	before := syn.LastConfirmedAt
	require.NoError(t, svc.Reinforce(context.Background(), syn))

	assert.Equal(t, 2, syn.SupportCount)
	assert.False(t, syn.LastConfirmedAt.Before(before))
}

func TestPenalize(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	syn, err := svc.CreateForEntity(context.Background(), testEntity(), "Akme", "akme", models.SynonymSourceSystem, 0.80)
	require.NoError(t, err)

	require.NoError(t, svc.Penalize(context.Background(), syn))
	assert.InDelta(t, 0.60, syn.Confidence, 1e-9)
	assert.InDelta(t, 0.60, repo.synonyms[syn.ID].Confidence, 1e-9)
}
