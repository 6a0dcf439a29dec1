package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/models"
	"github.com/flowmesh/flowmesh/internal/observability"
	"github.com/flowmesh/flowmesh/internal/repository"
)

// Handlers implements the HTTP endpoints over the repositories.
// Creating an execution only enqueues it; the queue processor picks
// it up asynchronously.
type Handlers struct {
	workflows  repository.WorkflowRepository
	executions repository.ExecutionRepository
	logger     observability.Logger
}

// NewHandlers creates the handler set
func NewHandlers(workflows repository.WorkflowRepository, executions repository.ExecutionRepository, logger observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Handlers{
		workflows:  workflows,
		executions: executions,
		logger:     logger,
	}
}

// workflowRequest is the body of POST /workflows and PUT /workflows/:id
type workflowRequest struct {
	Name  string          `json:"name"`
	Nodes models.NodeList `json:"nodes"`
	Edges models.EdgeList `json:"edges"`
}

// executionRequest is the body of POST /executions
type executionRequest struct {
	WorkflowID string `json:"workflowId"`
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListWorkflows handles GET /workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	workflows, err := h.workflows.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow handles POST /workflows
func (h *Handlers) CreateWorkflow(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if req.Name == "" {
		h.badRequest(c, "name is required")
		return
	}

	workflow := &models.Workflow{
		Name:  req.Name,
		Nodes: req.Nodes,
		Edges: req.Edges,
	}
	if err := h.workflows.Create(c.Request.Context(), workflow); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, workflow)
}

// UpdateWorkflow handles PUT /workflows/:id
func (h *Handlers) UpdateWorkflow(c *gin.Context) {
	id, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}

	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if req.Name == "" {
		h.badRequest(c, "name is required")
		return
	}

	workflow := &models.Workflow{
		ID:     id,
		Name:   req.Name,
		Nodes:  req.Nodes,
		Edges:  req.Edges,
		Status: models.WorkflowStatusActive,
	}
	if err := h.workflows.Update(c.Request.Context(), workflow); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, workflow)
}

// DeleteWorkflow handles DELETE /workflows?id=...
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		h.badRequest(c, "id is required")
		return
	}
	id, ok := h.parseID(c, raw)
	if !ok {
		return
	}

	if err := h.workflows.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CreateExecution handles POST /executions: it enqueues a run for the
// queue processor and returns immediately
func (h *Handlers) CreateExecution(c *gin.Context) {
	var req executionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	if req.WorkflowID == "" {
		h.badRequest(c, "workflowId is required")
		return
	}
	workflowID, ok := h.parseID(c, req.WorkflowID)
	if !ok {
		return
	}

	h.enqueue(c, workflowID)
}

// ExecuteWorkflow handles POST /workflows/:id/execute
func (h *Handlers) ExecuteWorkflow(c *gin.Context) {
	workflowID, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}
	h.enqueue(c, workflowID)
}

func (h *Handlers) enqueue(c *gin.Context, workflowID uuid.UUID) {
	// Reject unknown workflows up front rather than surfacing an FK
	// violation from the insert
	if _, err := h.workflows.Get(c.Request.Context(), workflowID); err != nil {
		h.fail(c, err)
		return
	}

	execution, err := h.executions.CreateExecution(c.Request.Context(), workflowID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"executionId": execution.ID,
		"status":      "queued",
	})
}

// QueryExecutions handles GET /executions with either
// ?executionId=... or ?workflowId=...&latest=true
func (h *Handlers) QueryExecutions(c *gin.Context) {
	if raw := c.Query("executionId"); raw != "" {
		id, ok := h.parseID(c, raw)
		if !ok {
			return
		}
		execution, err := h.executions.GetExecutionWithSteps(c.Request.Context(), id)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, execution)
		return
	}

	if raw := c.Query("workflowId"); raw != "" && c.Query("latest") == "true" {
		workflowID, ok := h.parseID(c, raw)
		if !ok {
			return
		}
		h.latestExecution(c, workflowID)
		return
	}

	h.badRequest(c, "executionId or workflowId=...&latest=true is required")
}

// LatestExecutionForWorkflow handles GET /workflows/:id/executions/latest
func (h *Handlers) LatestExecutionForWorkflow(c *gin.Context) {
	workflowID, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}
	h.latestExecution(c, workflowID)
}

// latestExecution writes the latest execution summary, or null when
// the workflow has never run
func (h *Handlers) latestExecution(c *gin.Context, workflowID uuid.UUID) {
	execution, err := h.executions.GetLatestExecution(c.Request.Context(), workflowID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusOK, nil)
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

// ExecutionStatus handles GET /executions/:id/status
func (h *Handlers) ExecutionStatus(c *gin.Context) {
	id, ok := h.parseID(c, c.Param("id"))
	if !ok {
		return
	}

	execution, err := h.executions.GetExecutionWithSteps(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

func (h *Handlers) parseID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		h.badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// fail maps repository errors onto the stable error envelope
func (h *Handlers) fail(c *gin.Context, err error) {
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.logger.Error("Request failed", map[string]interface{}{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
