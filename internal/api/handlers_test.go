package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/internal/config"
	"github.com/flowmesh/flowmesh/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryWorkflows struct {
	workflows map[uuid.UUID]*models.Workflow
}

func newMemoryWorkflows() *memoryWorkflows {
	return &memoryWorkflows{workflows: make(map[uuid.UUID]*models.Workflow)}
}

func (r *memoryWorkflows) Create(_ context.Context, workflow *models.Workflow) error {
	if workflow.ID == uuid.Nil {
		workflow.ID = uuid.New()
	}
	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}
	r.workflows[workflow.ID] = workflow
	return nil
}

func (r *memoryWorkflows) Get(_ context.Context, id uuid.UUID) (*models.Workflow, error) {
	workflow, ok := r.workflows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return workflow, nil
}

func (r *memoryWorkflows) Update(_ context.Context, workflow *models.Workflow) error {
	if _, ok := r.workflows[workflow.ID]; !ok {
		return models.ErrNotFound
	}
	r.workflows[workflow.ID] = workflow
	return nil
}

func (r *memoryWorkflows) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.workflows[id]; !ok {
		return models.ErrNotFound
	}
	delete(r.workflows, id)
	return nil
}

func (r *memoryWorkflows) List(_ context.Context) ([]*models.Workflow, error) {
	out := make([]*models.Workflow, 0, len(r.workflows))
	for _, w := range r.workflows {
		out = append(out, w)
	}
	return out, nil
}

type memoryExecutions struct {
	executions map[uuid.UUID]*models.Execution
	byWorkflow map[uuid.UUID]uuid.UUID
}

func newMemoryExecutions() *memoryExecutions {
	return &memoryExecutions{
		executions: make(map[uuid.UUID]*models.Execution),
		byWorkflow: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *memoryExecutions) CreateExecution(_ context.Context, workflowID uuid.UUID) (*models.Execution, error) {
	execution := &models.Execution{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		Status:     models.ExecutionStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	r.executions[execution.ID] = execution
	r.byWorkflow[workflowID] = execution.ID
	return execution, nil
}

func (r *memoryExecutions) ClaimNextPending(_ context.Context) (uuid.UUID, error) {
	return uuid.Nil, models.ErrNoPendingExecutions
}

func (r *memoryExecutions) TransitionExecution(_ context.Context, id uuid.UUID, status models.ExecutionStatus, errorMessage string) error {
	e, ok := r.executions[id]
	if !ok {
		return models.ErrNotFound
	}
	e.Status = status
	e.ErrorMessage = errorMessage
	return nil
}

func (r *memoryExecutions) GetExecution(_ context.Context, id uuid.UUID) (*models.Execution, error) {
	e, ok := r.executions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return e, nil
}

func (r *memoryExecutions) GetExecutionWithSteps(_ context.Context, id uuid.UUID) (*models.ExecutionWithSteps, error) {
	e, ok := r.executions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.ExecutionWithSteps{Execution: *e, Steps: []models.ExecutionStep{}}, nil
}

func (r *memoryExecutions) GetExecutionWithWorkflow(_ context.Context, id uuid.UUID) (*models.ExecutionWorkflow, error) {
	e, ok := r.executions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.ExecutionWorkflow{Execution: *e}, nil
}

func (r *memoryExecutions) GetLatestExecution(_ context.Context, workflowID uuid.UUID) (*models.Execution, error) {
	id, ok := r.byWorkflow[workflowID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.executions[id], nil
}

func (r *memoryExecutions) CreateStep(_ context.Context, _ uuid.UUID, _ string) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (r *memoryExecutions) StepToRunning(_ context.Context, _ uuid.UUID) error  { return nil }
func (r *memoryExecutions) StepToCompleted(_ context.Context, _ uuid.UUID, _ models.JSONMap) error {
	return nil
}
func (r *memoryExecutions) StepToFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }
func (r *memoryExecutions) FailStuckRunning(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func testServer(t *testing.T) (*Server, *memoryWorkflows, *memoryExecutions) {
	t.Helper()
	workflows := newMemoryWorkflows()
	executions := newMemoryExecutions()
	handlers := NewHandlers(workflows, executions, nil)
	server := NewServer(handlers, config.APIConfig{
		ListenAddress: ":0",
		ReadTimeout:   time.Second,
		WriteTimeout:  time.Second,
		IdleTimeout:   time.Second,
	})
	return server, workflows, executions
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), out))
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := testServer(t)
	recorder := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCreateWorkflow(t *testing.T) {
	server, workflows, _ := testServer(t)

	recorder := doJSON(t, server, http.MethodPost, "/workflows", map[string]interface{}{
		"name": "deploy-pipeline",
		"nodes": []map[string]interface{}{
			{"id": "a", "type": "trigger", "subtype": "manual_trigger"},
		},
		"edges": []map[string]interface{}{},
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created models.Workflow
	decode(t, recorder, &created)
	assert.Equal(t, "deploy-pipeline", created.Name)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Len(t, workflows.workflows, 1)
}

func TestCreateWorkflowValidation(t *testing.T) {
	server, _, _ := testServer(t)

	recorder := doJSON(t, server, http.MethodPost, "/workflows", map[string]interface{}{
		"nodes": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	var errBody map[string]string
	decode(t, recorder, &errBody)
	assert.Equal(t, "name is required", errBody["error"])

	req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewReader([]byte("{broken")))
	recorder = httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUpdateWorkflow(t *testing.T) {
	server, workflows, _ := testServer(t)
	workflow := &models.Workflow{Name: "before"}
	require.NoError(t, workflows.Create(context.Background(), workflow))

	recorder := doJSON(t, server, http.MethodPut, "/workflows/"+workflow.ID.String(), map[string]interface{}{
		"name": "after",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "after", workflows.workflows[workflow.ID].Name)

	recorder = doJSON(t, server, http.MethodPut, "/workflows/"+uuid.NewString(), map[string]interface{}{
		"name": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = doJSON(t, server, http.MethodPut, "/workflows/not-a-uuid", map[string]interface{}{
		"name": "x",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestDeleteWorkflow(t *testing.T) {
	server, workflows, _ := testServer(t)
	workflow := &models.Workflow{Name: "doomed"}
	require.NoError(t, workflows.Create(context.Background(), workflow))

	recorder := doJSON(t, server, http.MethodDelete, "/workflows?id="+workflow.ID.String(), nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, workflows.workflows)

	recorder = doJSON(t, server, http.MethodDelete, "/workflows", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code, "id query is required")

	recorder = doJSON(t, server, http.MethodDelete, "/workflows?id="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestListWorkflows(t *testing.T) {
	server, workflows, _ := testServer(t)
	require.NoError(t, workflows.Create(context.Background(), &models.Workflow{Name: "one"}))

	recorder := doJSON(t, server, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var listed []models.Workflow
	decode(t, recorder, &listed)
	assert.Len(t, listed, 1)
}

func TestCreateExecutionEnqueues(t *testing.T) {
	server, workflows, executions := testServer(t)
	workflow := &models.Workflow{Name: "runnable"}
	require.NoError(t, workflows.Create(context.Background(), workflow))

	recorder := doJSON(t, server, http.MethodPost, "/executions", map[string]interface{}{
		"workflowId": workflow.ID.String(),
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var body map[string]interface{}
	decode(t, recorder, &body)
	assert.Equal(t, "queued", body["status"])
	executionID, err := uuid.Parse(body["executionId"].(string))
	require.NoError(t, err)

	stored := executions.executions[executionID]
	require.NotNil(t, stored)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status, "the API never runs workflows inline")
}

func TestCreateExecutionUnknownWorkflow(t *testing.T) {
	server, _, executions := testServer(t)

	recorder := doJSON(t, server, http.MethodPost, "/executions", map[string]interface{}{
		"workflowId": uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Empty(t, executions.executions)

	recorder = doJSON(t, server, http.MethodPost, "/executions", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, server, http.MethodPost, "/executions", map[string]interface{}{
		"workflowId": "not-a-uuid",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestExecuteWorkflowRoute(t *testing.T) {
	server, workflows, executions := testServer(t)
	workflow := &models.Workflow{Name: "runnable"}
	require.NoError(t, workflows.Create(context.Background(), workflow))

	recorder := doJSON(t, server, http.MethodPost, "/workflows/"+workflow.ID.String()+"/execute", nil)
	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Len(t, executions.executions, 1)
}

func TestQueryExecutions(t *testing.T) {
	server, workflows, executions := testServer(t)
	workflow := &models.Workflow{Name: "queried"}
	require.NoError(t, workflows.Create(context.Background(), workflow))
	execution, err := executions.CreateExecution(context.Background(), workflow.ID)
	require.NoError(t, err)

	recorder := doJSON(t, server, http.MethodGet, "/executions?executionId="+execution.ID.String(), nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var withSteps models.ExecutionWithSteps
	decode(t, recorder, &withSteps)
	assert.Equal(t, execution.ID, withSteps.ID)

	recorder = doJSON(t, server, http.MethodGet, "/executions?workflowId="+workflow.ID.String()+"&latest=true", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server, http.MethodGet, "/executions", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, server, http.MethodGet, "/executions?executionId="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestLatestExecutionNull(t *testing.T) {
	server, workflows, _ := testServer(t)
	workflow := &models.Workflow{Name: "never-ran"}
	require.NoError(t, workflows.Create(context.Background(), workflow))

	recorder := doJSON(t, server, http.MethodGet, "/workflows/"+workflow.ID.String()+"/executions/latest", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "null", recorder.Body.String(), "no runs yet renders as null, not 404")
}

func TestExecutionStatus(t *testing.T) {
	server, workflows, executions := testServer(t)
	workflow := &models.Workflow{Name: "status"}
	require.NoError(t, workflows.Create(context.Background(), workflow))
	execution, err := executions.CreateExecution(context.Background(), workflow.ID)
	require.NoError(t, err)

	recorder := doJSON(t, server, http.MethodGet, "/executions/"+execution.ID.String()+"/status", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server, http.MethodGet, "/executions/"+uuid.NewString()+"/status", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRateLimiter(t *testing.T) {
	workflows := newMemoryWorkflows()
	executions := newMemoryExecutions()
	handlers := NewHandlers(workflows, executions, nil)
	server := NewServer(handlers, config.APIConfig{
		ListenAddress: ":0",
		ReadTimeout:   time.Second,
		WriteTimeout:  time.Second,
		IdleTimeout:   time.Second,
		RateLimit:     config.RateLimit{Enabled: true, Limit: 1, Burst: 1},
	})

	first := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
