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

// ExecutionRepositoryImpl implements ExecutionRepository
type ExecutionRepositoryImpl struct {
	db *sqlx.DB
}

// NewExecutionRepository creates a new ExecutionRepository instance
func NewExecutionRepository(db *sqlx.DB) ExecutionRepository {
	return &ExecutionRepositoryImpl{db: db}
}

// CreateExecution implements ExecutionRepository.CreateExecution.
// The execution is enqueued in status pending.
func (r *ExecutionRepositoryImpl) CreateExecution(ctx context.Context, workflowID uuid.UUID) (*models.Execution, error) {
	execution := &models.Execution{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		Status:     models.ExecutionStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	query := `INSERT INTO workflow_executions (id, workflow_id, status, created_at)
              VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.Status, execution.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	return execution, nil
}

// ClaimNextPending implements ExecutionRepository.ClaimNextPending.
// The claim is a single statement: the oldest pending execution moves
// to running with started_at set, under FOR UPDATE SKIP LOCKED so
// concurrent workers never receive the same execution.
func (r *ExecutionRepositoryImpl) ClaimNextPending(ctx context.Context) (uuid.UUID, error) {
	query := `UPDATE workflow_executions
              SET status = 'running', started_at = now()
              WHERE id = (
                  SELECT id FROM workflow_executions
                  WHERE status = 'pending'
                  ORDER BY created_at, id
                  LIMIT 1
                  FOR UPDATE SKIP LOCKED
              )
              RETURNING id`

	var id uuid.UUID
	if err := r.db.GetContext(ctx, &id, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, models.ErrNoPendingExecutions
		}
		return uuid.Nil, fmt.Errorf("failed to claim pending execution: %w", err)
	}

	return id, nil
}

// TransitionExecution implements ExecutionRepository.TransitionExecution.
// It enforces the monotonic status machine inside a transaction and
// stamps started_at / completed_at on entry to running / terminal
// states.
func (r *ExecutionRepositoryImpl) TransitionExecution(ctx context.Context, id uuid.UUID, status models.ExecutionStatus, errorMessage string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current models.ExecutionStatus
	if err := tx.GetContext(ctx, &current,
		`SELECT status FROM workflow_executions WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to read execution status: %w", err)
	}

	if current == status {
		// Idempotent: the claim already moved pending -> running
		return tx.Commit()
	}
	if !models.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, current, status)
	}

	now := time.Now().UTC()
	query := `UPDATE workflow_executions
              SET status = $2,
                  error_message = NULLIF($3, ''),
                  started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, $4) ELSE started_at END,
                  completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN $4 ELSE completed_at END
              WHERE id = $1`

	if _, err := tx.ExecContext(ctx, query, id, status, errorMessage, now); err != nil {
		return fmt.Errorf("failed to transition execution: %w", err)
	}

	return tx.Commit()
}

// GetExecution implements ExecutionRepository.GetExecution
func (r *ExecutionRepositoryImpl) GetExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	query := `SELECT id, workflow_id, status, started_at, completed_at,
                     COALESCE(error_message, '') AS error_message, created_at
              FROM workflow_executions WHERE id = $1`

	var execution models.Execution
	if err := r.db.GetContext(ctx, &execution, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	return &execution, nil
}

// executionStepRow is the scan target for the LEFT JOIN in
// GetExecutionWithSteps; step columns are nullable when an execution
// has no steps yet.
type executionStepRow struct {
	ID           uuid.UUID       `db:"id"`
	WorkflowID   uuid.UUID       `db:"workflow_id"`
	Status       string          `db:"status"`
	StartedAt    *time.Time      `db:"started_at"`
	CompletedAt  *time.Time      `db:"completed_at"`
	ErrorMessage string          `db:"error_message"`
	CreatedAt    time.Time       `db:"created_at"`
	StepID       *uuid.UUID      `db:"step_id"`
	NodeID       *string         `db:"node_id"`
	StepStatus   *string         `db:"step_status"`
	StepResult   *models.JSONMap `db:"step_result"`
	StepError    *string         `db:"step_error"`
	StepStarted  *time.Time      `db:"step_started_at"`
	StepDone     *time.Time      `db:"step_completed_at"`
	StepCreated  *time.Time      `db:"step_created_at"`
}

// GetExecutionWithSteps implements ExecutionRepository.GetExecutionWithSteps.
// Steps are ordered by created_at; NULL step rows from the outer join
// (executions with no steps) are dropped.
func (r *ExecutionRepositoryImpl) GetExecutionWithSteps(ctx context.Context, id uuid.UUID) (*models.ExecutionWithSteps, error) {
	query := `SELECT e.id, e.workflow_id, e.status, e.started_at, e.completed_at,
                     COALESCE(e.error_message, '') AS error_message, e.created_at,
                     s.id AS step_id, s.node_id, s.status AS step_status,
                     s.result AS step_result, s.error_message AS step_error,
                     s.started_at AS step_started_at, s.completed_at AS step_completed_at,
                     s.created_at AS step_created_at
              FROM workflow_executions e
              LEFT JOIN execution_steps s ON s.execution_id = e.id
              WHERE e.id = $1
              ORDER BY s.created_at, s.id`

	rows := []executionStepRow{}
	if err := r.db.SelectContext(ctx, &rows, query, id); err != nil {
		return nil, fmt.Errorf("failed to get execution with steps: %w", err)
	}
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}

	first := rows[0]
	out := &models.ExecutionWithSteps{
		Execution: models.Execution{
			ID:           first.ID,
			WorkflowID:   first.WorkflowID,
			Status:       models.ExecutionStatus(first.Status),
			StartedAt:    first.StartedAt,
			CompletedAt:  first.CompletedAt,
			ErrorMessage: first.ErrorMessage,
			CreatedAt:    first.CreatedAt,
		},
		Steps: []models.ExecutionStep{},
	}

	for _, row := range rows {
		if row.StepID == nil {
			continue
		}
		step := models.ExecutionStep{
			ID:          *row.StepID,
			ExecutionID: first.ID,
			Status:      models.StepStatusPending,
			StartedAt:   row.StepStarted,
			CompletedAt: row.StepDone,
		}
		if row.NodeID != nil {
			step.NodeID = *row.NodeID
		}
		if row.StepStatus != nil {
			step.Status = models.StepStatus(*row.StepStatus)
		}
		if row.StepResult != nil {
			step.Result = *row.StepResult
		}
		if row.StepError != nil {
			step.ErrorMessage = *row.StepError
		}
		if row.StepCreated != nil {
			step.CreatedAt = *row.StepCreated
		}
		out.Steps = append(out.Steps, step)
	}

	return out, nil
}

// GetExecutionWithWorkflow implements ExecutionRepository.GetExecutionWithWorkflow
func (r *ExecutionRepositoryImpl) GetExecutionWithWorkflow(ctx context.Context, id uuid.UUID) (*models.ExecutionWorkflow, error) {
	query := `SELECT e.id, e.workflow_id, e.status, e.started_at, e.completed_at,
                     COALESCE(e.error_message, '') AS error_message, e.created_at,
                     w.name AS workflow_name, w.nodes, w.edges
              FROM workflow_executions e
              JOIN workflows w ON w.id = e.workflow_id
              WHERE e.id = $1`

	var out models.ExecutionWorkflow
	if err := r.db.GetContext(ctx, &out, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get execution with workflow: %w", err)
	}

	return &out, nil
}

// GetLatestExecution implements ExecutionRepository.GetLatestExecution
func (r *ExecutionRepositoryImpl) GetLatestExecution(ctx context.Context, workflowID uuid.UUID) (*models.Execution, error) {
	query := `SELECT id, workflow_id, status, started_at, completed_at,
                     COALESCE(error_message, '') AS error_message, created_at
              FROM workflow_executions
              WHERE workflow_id = $1
              ORDER BY created_at DESC, id DESC
              LIMIT 1`

	var execution models.Execution
	if err := r.db.GetContext(ctx, &execution, query, workflowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest execution: %w", err)
	}

	return &execution, nil
}

// CreateStep implements ExecutionRepository.CreateStep
func (r *ExecutionRepositoryImpl) CreateStep(ctx context.Context, executionID uuid.UUID, nodeID string) (uuid.UUID, error) {
	stepID := uuid.New()

	query := `INSERT INTO execution_steps (id, execution_id, node_id, status, created_at)
              VALUES ($1, $2, $3, 'pending', $4)`

	if _, err := r.db.ExecContext(ctx, query, stepID, executionID, nodeID, time.Now().UTC()); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create step: %w", err)
	}

	return stepID, nil
}

// StepToRunning implements ExecutionRepository.StepToRunning
func (r *ExecutionRepositoryImpl) StepToRunning(ctx context.Context, stepID uuid.UUID) error {
	query := `UPDATE execution_steps SET status = 'running', started_at = $2 WHERE id = $1`
	return r.stepUpdate(ctx, query, stepID, time.Now().UTC())
}

// StepToCompleted implements ExecutionRepository.StepToCompleted
func (r *ExecutionRepositoryImpl) StepToCompleted(ctx context.Context, stepID uuid.UUID, result models.JSONMap) error {
	query := `UPDATE execution_steps SET status = 'completed', result = $2, completed_at = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, stepID, result, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to complete step: %w", err)
	}
	return checkStepAffected(res)
}

// StepToFailed implements ExecutionRepository.StepToFailed
func (r *ExecutionRepositoryImpl) StepToFailed(ctx context.Context, stepID uuid.UUID, errorMessage string) error {
	query := `UPDATE execution_steps SET status = 'failed', error_message = $2, completed_at = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, stepID, errorMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to fail step: %w", err)
	}
	return checkStepAffected(res)
}

// FailStuckRunning implements ExecutionRepository.FailStuckRunning.
// Called once at startup: any execution left in running by a crashed
// process is marked failed. There is no partial replay.
func (r *ExecutionRepositoryImpl) FailStuckRunning(ctx context.Context, reason string) (int64, error) {
	query := `UPDATE workflow_executions
              SET status = 'failed', error_message = $1, completed_at = now()
              WHERE status = 'running'`

	res, err := r.db.ExecContext(ctx, query, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck executions: %w", err)
	}

	return res.RowsAffected()
}

func (r *ExecutionRepositoryImpl) stepUpdate(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	return checkStepAffected(res)
}

func checkStepAffected(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Compile-time interface checks
var (
	_ ExecutionRepository = (*ExecutionRepositoryImpl)(nil)
	_ WorkflowRepository  = (*WorkflowRepositoryImpl)(nil)
)
