package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/internal/models"
)

func sampleWorkflow() *models.Workflow {
	return &models.Workflow{
		Name: "deploy-pipeline",
		Nodes: models.NodeList{
			{ID: "a", Type: models.NodeTypeTrigger, Subtype: "manual_trigger"},
			{ID: "b", Type: models.NodeTypeAction, Subtype: "api_request"},
		},
		Edges: models.EdgeList{{ID: "e1", Source: "a", Target: "b"}},
	}
}

func TestWorkflowCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)

	mock.ExpectExec("INSERT INTO workflows").
		WillReturnResult(sqlmock.NewResult(0, 1))

	workflow := sampleWorkflow()
	require.NoError(t, repo.Create(context.Background(), workflow))
	assert.NotEqual(t, uuid.Nil, workflow.ID, "id assigned")
	assert.Equal(t, models.WorkflowStatusActive, workflow.Status, "default status")
	assert.False(t, workflow.CreatedAt.IsZero())
}

func TestWorkflowCreateRejectsInvalidGraph(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewWorkflowRepository(db)

	workflow := sampleWorkflow()
	workflow.Edges = models.EdgeList{{ID: "e1", Source: "a", Target: "a"}}

	err := repo.Create(context.Background(), workflow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self loop")

	assert.Error(t, repo.Create(context.Background(), nil))
}

func TestWorkflowGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("FROM workflows WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "nodes", "edges", "status", "created_at", "updated_at",
		}).AddRow(id, "deploy-pipeline",
			[]byte(`[{"id": "a", "subtype": "manual_trigger"}]`), []byte(`[]`),
			"active", now, now))

	workflow, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "deploy-pipeline", workflow.Name)
	require.Len(t, workflow.Nodes, 1)
	assert.Equal(t, "manual_trigger", workflow.Nodes[0].Subtype)
}

func TestWorkflowGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)

	mock.ExpectQuery("FROM workflows WHERE id").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWorkflowUpdateNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)

	mock.ExpectExec("UPDATE workflows").
		WillReturnResult(sqlmock.NewResult(0, 0))

	workflow := sampleWorkflow()
	workflow.ID = uuid.New()
	err := repo.Update(context.Background(), workflow)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWorkflowDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM workflows").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec("DELETE FROM workflows").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), uuid.New()), models.ErrNotFound)
}

func TestWorkflowList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWorkflowRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM workflows ORDER BY updated_at DESC").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "nodes", "edges", "status", "created_at", "updated_at",
		}).
			AddRow(uuid.New(), "newer", []byte(`[]`), []byte(`[]`), "active", now, now).
			AddRow(uuid.New(), "older", []byte(`[]`), []byte(`[]`), "active", now, now.Add(-time.Hour)))

	workflows, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "newer", workflows[0].Name)
}
