// Package engine executes one workflow run end to end: topological
// node evaluation, conditional branch skips, and the durable
// execution/step audit trail.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/integration"
	"github.com/flowmesh/flowmesh/internal/models"
	"github.com/flowmesh/flowmesh/internal/observability"
	"github.com/flowmesh/flowmesh/internal/repository"
)

// SetVariableID is the integration whose successful results mirror a
// value into the execution's variables.
const SetVariableID = "set_variable"

// Engine orchestrates single executions. It owns no cross-execution
// state: every run gets a fresh context and branch-decision map.
type Engine struct {
	executions repository.ExecutionRepository
	registry   *integration.Registry
	logger     observability.Logger
}

// New creates an Engine
func New(executions repository.ExecutionRepository, registry *integration.Registry, logger observability.Logger) *Engine {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Engine{
		executions: executions,
		registry:   registry,
		logger:     logger,
	}
}

// Execute runs one claimed execution to completion, recording a step
// per evaluated node and finalizing the execution status. Node
// failures finalize the run as failed and are not returned as errors;
// only store failures propagate.
func (e *Engine) Execute(ctx context.Context, executionID uuid.UUID) error {
	loaded, err := e.executions.GetExecutionWithWorkflow(ctx, executionID)
	if err != nil {
		if err == models.ErrNotFound {
			return e.failExecution(ctx, executionID, "Execution not found")
		}
		return fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	// The claim already moved the execution to running; this is a
	// no-op assertion for runs entered through other paths.
	if err := e.executions.TransitionExecution(ctx, executionID, models.ExecutionStatusRunning, ""); err != nil {
		return fmt.Errorf("failed to mark execution running: %w", err)
	}

	ec := models.NewExecutionContext(executionID)
	branchDecisions := make(map[string]bool)

	order := TopoSort(loaded.Nodes, loaded.Edges)
	if len(order) != len(loaded.Nodes) {
		return e.failExecution(ctx, executionID, "Workflow contains cycles")
	}

	e.logger.Info("Executing workflow", map[string]interface{}{
		"execution_id": executionID,
		"workflow":     loaded.WorkflowName,
		"nodes":        len(order),
	})

	for _, nodeID := range order {
		node := nodeByID(loaded.Nodes, nodeID)
		if node == nil {
			return e.failExecution(ctx, executionID, fmt.Sprintf("node %q missing from workflow", nodeID))
		}

		if shouldSkip(nodeID, loaded.Edges, branchDecisions) {
			e.logger.Debug("Skipping node on losing branch", map[string]interface{}{
				"execution_id": executionID,
				"node_id":      nodeID,
			})
			continue
		}

		stepID, err := e.executions.CreateStep(ctx, executionID, nodeID)
		if err != nil {
			return e.storeFailure(ctx, executionID, err)
		}
		if err := e.executions.StepToRunning(ctx, stepID); err != nil {
			return e.storeFailure(ctx, executionID, err)
		}

		result := e.registry.ExecuteIntegration(ctx, node.Subtype, node.Config, ec)

		if node.Subtype == integration.BranchConditionID && result.Data != nil {
			if decision, ok := result.Data["result"].(bool); ok {
				branchDecisions[nodeID] = decision
			}
		}

		ec.SetNodeOutput(nodeID, result.AsMap())

		if node.Subtype == SetVariableID && result.Success && result.Data != nil {
			if name, ok := result.Data["variableName"].(string); ok {
				ec.SetVariable(name, integration.ParseValue(result.Data["value"]))
			}
		}

		if !result.Success {
			if err := e.executions.StepToFailed(ctx, stepID, result.Error); err != nil {
				return e.storeFailure(ctx, executionID, err)
			}
			e.logger.Warn("Node failed, halting execution", map[string]interface{}{
				"execution_id": executionID,
				"node_id":      nodeID,
				"subtype":      node.Subtype,
				"error":        result.Error,
			})
			return e.failExecution(ctx, executionID, result.Error)
		}

		if err := e.executions.StepToCompleted(ctx, stepID, result.AsMap()); err != nil {
			return e.storeFailure(ctx, executionID, err)
		}
	}

	if err := e.executions.TransitionExecution(ctx, executionID, models.ExecutionStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}

	e.logger.Info("Execution completed", map[string]interface{}{
		"execution_id": executionID,
	})
	return nil
}

// failExecution finalizes an execution as failed
func (e *Engine) failExecution(ctx context.Context, executionID uuid.UUID, message string) error {
	if err := e.executions.TransitionExecution(ctx, executionID, models.ExecutionStatusFailed, message); err != nil {
		return fmt.Errorf("failed to mark execution failed: %w", err)
	}
	return nil
}

// storeFailure handles a store error mid-run: best-effort failed
// write, then the original error surfaces to the caller
func (e *Engine) storeFailure(ctx context.Context, executionID uuid.UUID, cause error) error {
	if err := e.executions.TransitionExecution(ctx, executionID, models.ExecutionStatusFailed, cause.Error()); err != nil {
		e.logger.Error("Failed to record execution failure", map[string]interface{}{
			"execution_id": executionID,
			"error":        err.Error(),
		})
	}
	return cause
}

func nodeByID(nodes models.NodeList, id string) *models.Node {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
	}
	return nil
}

// shouldSkip reports whether a node sits on the losing side of a
// decided branch. For every incoming edge whose source has a recorded
// decision, the edge is classified as the true or false edge — the
// sourceHandle is authoritative, with a legacy fallback on the
// "-true-"/"-false-" edge id substring — and the node is skipped iff
// any classified edge contradicts the decision. Edges from undecided
// or non-branch sources never cause a skip.
func shouldSkip(nodeID string, edges models.EdgeList, decisions map[string]bool) bool {
	for _, edge := range edges {
		if edge.Target != nodeID {
			continue
		}
		decision, decided := decisions[edge.Source]
		if !decided {
			continue
		}

		isTrue, isFalse := classifyBranchEdge(edge)
		if isTrue && !decision {
			return true
		}
		if isFalse && decision {
			return true
		}
	}
	return false
}

func classifyBranchEdge(edge models.Edge) (isTrue, isFalse bool) {
	switch edge.SourceHandle {
	case "true":
		return true, false
	case "false":
		return false, true
	}
	// Legacy graphs encode the handle in the edge id
	if strings.Contains(edge.ID, "-true-") {
		return true, false
	}
	if strings.Contains(edge.ID, "-false-") {
		return false, true
	}
	return false, false
}
