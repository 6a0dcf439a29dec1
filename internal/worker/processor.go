// Package worker runs the queue processor: a cooperative loop that
// claims queued executions and hands them to the engine.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/models"
	"github.com/flowmesh/flowmesh/internal/observability"
)

// Claimer is the queue side of the execution repository
type Claimer interface {
	ClaimNextPending(ctx context.Context) (uuid.UUID, error)
}

// Executor runs one claimed execution to completion
type Executor interface {
	Execute(ctx context.Context, executionID uuid.UUID) error
}

// Processor is the long-running queue loop. Stop is checked at every
// loop head; an in-flight execution always finishes before the loop
// exits.
type Processor struct {
	claimer       Claimer
	executor      Executor
	logger        observability.Logger
	idleInterval  time.Duration
	errorInterval time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewProcessor creates a Processor
func NewProcessor(claimer Claimer, executor Executor, logger observability.Logger, idleInterval, errorInterval time.Duration) *Processor {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if idleInterval <= 0 {
		idleInterval = time.Second
	}
	if errorInterval <= 0 {
		errorInterval = 5 * time.Second
	}
	return &Processor{
		claimer:       claimer,
		executor:      executor,
		logger:        logger,
		idleInterval:  idleInterval,
		errorInterval: errorInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the loop in its own goroutine
func (p *Processor) Start(ctx context.Context) {
	go p.Run(ctx)
}

// Run executes the claim/execute loop until Stop is called or the
// context is canceled
func (p *Processor) Run(ctx context.Context) {
	defer close(p.done)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = p.errorInterval
	policy.MaxElapsedTime = 0 // retry forever
	policy.Reset()

	p.logger.Info("Queue processor started", map[string]interface{}{
		"idle_interval":  p.idleInterval.String(),
		"error_interval": p.errorInterval.String(),
	})

	for {
		select {
		case <-p.stop:
			p.logger.Info("Queue processor stopped", nil)
			return
		case <-ctx.Done():
			p.logger.Info("Queue processor context canceled", nil)
			return
		default:
		}

		executionID, err := p.claimer.ClaimNextPending(ctx)
		if err != nil {
			if errors.Is(err, models.ErrNoPendingExecutions) {
				policy.Reset()
				p.sleep(ctx, p.idleInterval)
				continue
			}
			p.logger.Error("Failed to claim pending execution", map[string]interface{}{
				"error": err.Error(),
			})
			p.sleep(ctx, policy.NextBackOff())
			continue
		}

		if err := p.executor.Execute(ctx, executionID); err != nil {
			p.logger.Error("Execution failed unexpectedly", map[string]interface{}{
				"execution_id": executionID,
				"error":        err.Error(),
			})
			p.sleep(ctx, policy.NextBackOff())
			continue
		}

		policy.Reset()
	}
}

// Stop flips the stop flag and waits for the loop, including any
// in-flight execution, to finish
func (p *Processor) Stop() {
	select {
	case <-p.stop:
		// already stopping
	default:
		close(p.stop)
	}
	<-p.done
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}
