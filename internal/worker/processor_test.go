package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/flowmesh/flowmesh/internal/models"
)

// fakeQueue hands out a fixed set of execution ids, then reports an
// empty queue
type fakeQueue struct {
	mu      sync.Mutex
	pending []uuid.UUID
	claims  int
}

func (q *fakeQueue) ClaimNextPending(_ context.Context) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.claims++
	if len(q.pending) == 0 {
		return uuid.Nil, models.ErrNoPendingExecutions
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	return id, nil
}

type recordingExecutor struct {
	mu       sync.Mutex
	executed []uuid.UUID
	err      error
	delay    time.Duration
	done     chan struct{}
}

func (e *recordingExecutor) Execute(_ context.Context, executionID uuid.UUID) error {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.mu.Lock()
	e.executed = append(e.executed, executionID)
	count := len(e.executed)
	e.mu.Unlock()
	if e.done != nil && count == cap(e.executed) {
		close(e.done)
	}
	return e.err
}

func (e *recordingExecutor) snapshot() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uuid.UUID(nil), e.executed...)
}

func TestProcessorDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	first, second := uuid.New(), uuid.New()
	queue := &fakeQueue{pending: []uuid.UUID{first, second}}
	executor := &recordingExecutor{
		executed: make([]uuid.UUID, 0, 2),
		done:     make(chan struct{}),
	}

	p := NewProcessor(queue, executor, nil, 10*time.Millisecond, 10*time.Millisecond)
	p.Start(context.Background())

	select {
	case <-executor.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for executions")
	}
	p.Stop()

	assert.Equal(t, []uuid.UUID{first, second}, executor.snapshot())
}

func TestProcessorIdlesOnEmptyQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	queue := &fakeQueue{}
	executor := &recordingExecutor{}

	p := NewProcessor(queue, executor, nil, 5*time.Millisecond, 10*time.Millisecond)
	p.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	p.Stop()

	queue.mu.Lock()
	claims := queue.claims
	queue.mu.Unlock()
	assert.Greater(t, claims, 1, "kept polling while idle")
	assert.Empty(t, executor.snapshot())
}

func TestProcessorSurvivesExecutorErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	first, second := uuid.New(), uuid.New()
	queue := &fakeQueue{pending: []uuid.UUID{first, second}}
	executor := &recordingExecutor{
		executed: make([]uuid.UUID, 0, 2),
		done:     make(chan struct{}),
		err:      errors.New("store unavailable"),
	}

	p := NewProcessor(queue, executor, nil, 5*time.Millisecond, 10*time.Millisecond)
	p.Start(context.Background())

	select {
	case <-executor.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for executions")
	}
	p.Stop()

	assert.Len(t, executor.snapshot(), 2, "errors back off but never kill the loop")
}

func TestProcessorStopWaitsForInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	id := uuid.New()
	queue := &fakeQueue{pending: []uuid.UUID{id}}
	executor := &recordingExecutor{
		executed: make([]uuid.UUID, 0, 1),
		done:     make(chan struct{}),
		delay:    50 * time.Millisecond,
	}

	p := NewProcessor(queue, executor, nil, 5*time.Millisecond, 10*time.Millisecond)
	p.Start(context.Background())

	// Let the claim happen, then stop mid-execution
	time.Sleep(10 * time.Millisecond)
	p.Stop()

	require.Len(t, executor.snapshot(), 1, "in-flight execution completed before Stop returned")
}

func TestProcessorStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewProcessor(&fakeQueue{}, &recordingExecutor{}, nil, 5*time.Millisecond, 10*time.Millisecond)
	p.Start(context.Background())

	p.Stop()
	p.Stop()
}

func TestProcessorHonorsContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewProcessor(&fakeQueue{}, &recordingExecutor{}, nil, 5*time.Millisecond, 10*time.Millisecond)
	p.Start(ctx)

	cancel()
	select {
	case <-p.done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
}
