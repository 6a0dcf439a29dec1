package models

import "github.com/google/uuid"

// ExecutionContext carries variables and node outputs across the
// nodes of a single execution. It lives for the duration of one run
// and is never persisted; a completed execution's context can be
// rebuilt from its stored steps.
type ExecutionContext struct {
	ExecutionID uuid.UUID
	Variables   map[string]interface{}
	NodeOutputs map[string]map[string]interface{}
}

// NewExecutionContext creates an empty context for one execution
func NewExecutionContext(executionID uuid.UUID) *ExecutionContext {
	return &ExecutionContext{
		ExecutionID: executionID,
		Variables:   make(map[string]interface{}),
		NodeOutputs: make(map[string]map[string]interface{}),
	}
}

// SetNodeOutput records a node's result tree. Outputs are written
// exactly once, when the node completes.
func (c *ExecutionContext) SetNodeOutput(nodeID string, output map[string]interface{}) {
	c.NodeOutputs[nodeID] = output
}

// SetVariable records a named variable for later $vars lookups
func (c *ExecutionContext) SetVariable(name string, value interface{}) {
	c.Variables[name] = value
}
