package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/internal/cache"
	"github.com/flowmesh/flowmesh/internal/models"
)

// countingWorkflowRepository tracks how often the backing store is hit
type countingWorkflowRepository struct {
	workflows map[uuid.UUID]*models.Workflow
	gets      int
}

func newCountingWorkflowRepository() *countingWorkflowRepository {
	return &countingWorkflowRepository{workflows: make(map[uuid.UUID]*models.Workflow)}
}

func (r *countingWorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	if workflow.ID == uuid.Nil {
		workflow.ID = uuid.New()
	}
	r.workflows[workflow.ID] = workflow
	return nil
}

func (r *countingWorkflowRepository) Get(_ context.Context, id uuid.UUID) (*models.Workflow, error) {
	r.gets++
	workflow, ok := r.workflows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return workflow, nil
}

func (r *countingWorkflowRepository) Update(_ context.Context, workflow *models.Workflow) error {
	if _, ok := r.workflows[workflow.ID]; !ok {
		return models.ErrNotFound
	}
	r.workflows[workflow.ID] = workflow
	return nil
}

func (r *countingWorkflowRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.workflows[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.workflows, id)
	return nil
}

func (r *countingWorkflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	out := make([]*models.Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	return out, nil
}

func newCachedRepo(t *testing.T) (*CachedWorkflowRepository, *countingWorkflowRepository) {
	t.Helper()
	inner := newCountingWorkflowRepository()
	c, err := cache.NewMemoryCache(16, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewCachedWorkflowRepository(inner, c, time.Minute), inner
}

func TestCachedGetHitsStoreOnce(t *testing.T) {
	repo, inner := newCachedRepo(t)
	ctx := context.Background()

	workflow := sampleWorkflow()
	require.NoError(t, repo.Create(ctx, workflow))

	for i := 0; i < 3; i++ {
		got, err := repo.Get(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, got.Name)
	}
	assert.Equal(t, 1, inner.gets)
}

func TestCachedUpdateInvalidates(t *testing.T) {
	repo, inner := newCachedRepo(t)
	ctx := context.Background()

	workflow := sampleWorkflow()
	require.NoError(t, repo.Create(ctx, workflow))
	_, err := repo.Get(ctx, workflow.ID)
	require.NoError(t, err)

	workflow.Name = "renamed"
	require.NoError(t, repo.Update(ctx, workflow))

	got, err := repo.Get(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 2, inner.gets, "update dropped the cached entry")
}

func TestCachedDeleteInvalidates(t *testing.T) {
	repo, _ := newCachedRepo(t)
	ctx := context.Background()

	workflow := sampleWorkflow()
	require.NoError(t, repo.Create(ctx, workflow))
	_, err := repo.Get(ctx, workflow.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, workflow.ID))

	_, err = repo.Get(ctx, workflow.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCachedGetMissPropagatesNotFound(t *testing.T) {
	repo, _ := newCachedRepo(t)
	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
