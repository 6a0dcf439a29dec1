// Package repository provides Postgres-backed persistence for
// workflows, executions and execution steps.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/models"
)

// WorkflowRepository defines the interface for workflow persistence
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	Get(ctx context.Context, id uuid.UUID) (*models.Workflow, error)
	Update(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*models.Workflow, error)
}

// ExecutionRepository defines the interface for execution and step
// persistence. CreateExecution enqueues work; ClaimNextPending is the
// single atomic dequeue used by the queue processor.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, workflowID uuid.UUID) (*models.Execution, error)
	ClaimNextPending(ctx context.Context) (uuid.UUID, error)
	TransitionExecution(ctx context.Context, id uuid.UUID, status models.ExecutionStatus, errorMessage string) error
	GetExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error)
	GetExecutionWithSteps(ctx context.Context, id uuid.UUID) (*models.ExecutionWithSteps, error)
	GetExecutionWithWorkflow(ctx context.Context, id uuid.UUID) (*models.ExecutionWorkflow, error)
	GetLatestExecution(ctx context.Context, workflowID uuid.UUID) (*models.Execution, error)

	CreateStep(ctx context.Context, executionID uuid.UUID, nodeID string) (uuid.UUID, error)
	StepToRunning(ctx context.Context, stepID uuid.UUID) error
	StepToCompleted(ctx context.Context, stepID uuid.UUID, result models.JSONMap) error
	StepToFailed(ctx context.Context, stepID uuid.UUID, errorMessage string) error

	FailStuckRunning(ctx context.Context, reason string) (int64, error)
}
