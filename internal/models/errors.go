package models

import "errors"

// Sentinel errors shared across the repository and API layers.
var (
	// ErrNotFound indicates the requested workflow, execution or step
	// does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates an execution status change that
	// violates the pending -> running -> completed/failed machine
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoPendingExecutions indicates the queue had nothing to claim
	ErrNoPendingExecutions = errors.New("no pending executions")
)
