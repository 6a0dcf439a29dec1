package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/cache"
	"github.com/flowmesh/flowmesh/internal/models"
)

// CachedWorkflowRepository wraps a WorkflowRepository with a read
// cache for Get. Writes pass through and invalidate.
type CachedWorkflowRepository struct {
	inner WorkflowRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedWorkflowRepository creates the caching decorator
func NewCachedWorkflowRepository(inner WorkflowRepository, c cache.Cache, ttl time.Duration) *CachedWorkflowRepository {
	return &CachedWorkflowRepository{inner: inner, cache: c, ttl: ttl}
}

func workflowCacheKey(id uuid.UUID) string {
	return "workflow:" + id.String()
}

// Create implements WorkflowRepository.Create
func (r *CachedWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	return r.inner.Create(ctx, workflow)
}

// Get implements WorkflowRepository.Get with cache-aside semantics.
// Cache failures are treated as misses.
func (r *CachedWorkflowRepository) Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	key := workflowCacheKey(id)

	if data, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		var workflow models.Workflow
		if err := json.Unmarshal(data, &workflow); err == nil {
			return &workflow, nil
		}
	}

	workflow, err := r.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(workflow); err == nil {
		_ = r.cache.Set(ctx, key, data, r.ttl)
	}

	return workflow, nil
}

// Update implements WorkflowRepository.Update and invalidates the entry
func (r *CachedWorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	if err := r.inner.Update(ctx, workflow); err != nil {
		return err
	}
	_ = r.cache.Delete(ctx, workflowCacheKey(workflow.ID))
	return nil
}

// Delete implements WorkflowRepository.Delete and invalidates the entry
func (r *CachedWorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	_ = r.cache.Delete(ctx, workflowCacheKey(id))
	return nil
}

// List implements WorkflowRepository.List; listings are not cached
func (r *CachedWorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	return r.inner.List(ctx)
}

var _ WorkflowRepository = (*CachedWorkflowRepository)(nil)
