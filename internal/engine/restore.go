package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/integration"
	"github.com/flowmesh/flowmesh/internal/models"
)

// RestoreContext rebuilds the runtime context of a finished execution
// from its stored steps: completed step results become node outputs,
// and set_variable results are mirrored back into variables. This is
// a client view; the engine never resumes a partially run execution.
func (e *Engine) RestoreContext(ctx context.Context, executionID uuid.UUID) (*models.ExecutionContext, error) {
	loaded, err := e.executions.GetExecutionWithSteps(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	ec := models.NewExecutionContext(executionID)
	for _, step := range loaded.Steps {
		if step.Status != models.StepStatusCompleted || step.Result == nil {
			continue
		}
		ec.SetNodeOutput(step.NodeID, step.Result)

		if resultSubtype(step.Result) != SetVariableID {
			continue
		}
		data, ok := step.Result["data"].(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := data["variableName"].(string); ok {
			ec.SetVariable(name, integration.ParseValue(data["value"]))
		}
	}

	return ec, nil
}

// RecoverStuck fails every execution left in running by a previous
// process. Called once at startup; there is no partial replay.
func (e *Engine) RecoverStuck(ctx context.Context, reason string) (int64, error) {
	count, err := e.executions.FailStuckRunning(ctx, reason)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		e.logger.Warn("Failed stuck executions from previous run", map[string]interface{}{
			"count": count,
		})
	}
	return count, nil
}

func resultSubtype(result models.JSONMap) string {
	metadata, ok := result["metadata"].(map[string]interface{})
	if !ok {
		return ""
	}
	subtype, _ := metadata["subtype"].(string)
	return subtype
}
