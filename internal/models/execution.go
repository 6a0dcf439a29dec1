package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of a workflow execution
type ExecutionStatus string

// Execution statuses. Transitions are monotonic:
// pending -> running -> completed | failed.
const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ValidTransition reports whether an execution may move from one
// status to another
func ValidTransition(from, to ExecutionStatus) bool {
	switch from {
	case ExecutionStatusPending:
		return to == ExecutionStatusRunning || to == ExecutionStatusFailed
	case ExecutionStatusRunning:
		return to == ExecutionStatusCompleted || to == ExecutionStatusFailed
	default:
		return false
	}
}

// Terminal reports whether the status is a final state
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Execution is one run of a workflow
type Execution struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	WorkflowID   uuid.UUID       `json:"workflow_id" db:"workflow_id"`
	Status       ExecutionStatus `json:"status" db:"status"`
	StartedAt    *time.Time      `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at" db:"completed_at"`
	ErrorMessage string          `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// StepStatus is the lifecycle state of an execution step
type StepStatus string

// Step statuses
const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// ExecutionStep is the audit record of one node within one execution
type ExecutionStep struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	ExecutionID  uuid.UUID  `json:"execution_id" db:"execution_id"`
	NodeID       string     `json:"node_id" db:"node_id"`
	Status       StepStatus `json:"status" db:"status"`
	Result       JSONMap    `json:"result,omitempty" db:"result"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    *time.Time `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ExecutionWithSteps is the joined read used by the status endpoints
type ExecutionWithSteps struct {
	Execution
	Steps []ExecutionStep `json:"steps"`
}

// ExecutionWorkflow is the joined read the engine loads before a run:
// the execution plus the graph it executes
type ExecutionWorkflow struct {
	Execution
	WorkflowName string   `json:"workflow_name" db:"workflow_name"`
	Nodes        NodeList `json:"nodes" db:"nodes"`
	Edges        EdgeList `json:"edges" db:"edges"`
}
