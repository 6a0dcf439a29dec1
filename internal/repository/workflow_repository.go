package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/flowmesh/flowmesh/internal/models"
)

// WorkflowRepositoryImpl implements WorkflowRepository
type WorkflowRepositoryImpl struct {
	db *sqlx.DB
}

// NewWorkflowRepository creates a new WorkflowRepository instance
func NewWorkflowRepository(db *sqlx.DB) WorkflowRepository {
	return &WorkflowRepositoryImpl{db: db}
}

// Create implements WorkflowRepository.Create
func (r *WorkflowRepositoryImpl) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow == nil {
		return errors.New("workflow cannot be nil")
	}
	if err := workflow.Validate(); err != nil {
		return fmt.Errorf("invalid workflow: %w", err)
	}

	if workflow.ID == uuid.Nil {
		workflow.ID = uuid.New()
	}
	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}
	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	query := `INSERT INTO workflows (id, name, nodes, edges, status, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Nodes,
		workflow.Edges,
		workflow.Status,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// Get implements WorkflowRepository.Get
func (r *WorkflowRepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	query := `SELECT id, name, nodes, edges, status, created_at, updated_at
              FROM workflows WHERE id = $1`

	var workflow models.Workflow
	if err := r.db.GetContext(ctx, &workflow, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return &workflow, nil
}

// Update implements WorkflowRepository.Update. It bumps updated_at and
// reports ErrNotFound when the workflow does not exist.
func (r *WorkflowRepositoryImpl) Update(ctx context.Context, workflow *models.Workflow) error {
	if workflow == nil {
		return errors.New("workflow cannot be nil")
	}
	if err := workflow.Validate(); err != nil {
		return fmt.Errorf("invalid workflow: %w", err)
	}

	workflow.UpdatedAt = time.Now().UTC()

	query := `UPDATE workflows
              SET name = $2, nodes = $3, edges = $4, status = $5, updated_at = $6
              WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Nodes,
		workflow.Edges,
		workflow.Status,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Delete implements WorkflowRepository.Delete. Executions and steps
// cascade via foreign keys.
func (r *WorkflowRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}

	return nil
}

// List implements WorkflowRepository.List, most recently updated first
func (r *WorkflowRepositoryImpl) List(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT id, name, nodes, edges, status, created_at, updated_at
              FROM workflows ORDER BY updated_at DESC`

	workflows := []*models.Workflow{}
	if err := r.db.SelectContext(ctx, &workflows, query); err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}
