package generator

import (
	"context"

	"eventai/internal/models"
)

// Task is a generation running on its own goroutine. The caller waits on
// Done or Result from whichever context owns its UI state.
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc
	result models.GenerationResult
}

// Start runs Generate in the background and returns immediately.
func (g *Generator) Start(ctx context.Context, req models.GenerationRequest) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(t.done)
		defer cancel()
		t.result = g.Generate(ctx, req)
	}()
	return t
}

// Wrap returns a task that completes after inner does and after then has
// observed its result.
func Wrap(inner *Task, then func(models.GenerationResult)) *Task {
	t := &Task{done: make(chan struct{}), cancel: inner.cancel}
	go func() {
		defer close(t.done)
		t.result = inner.Result()
		then(t.result)
	}()
	return t
}

// Done is closed once the result is available.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the generation finishes.
func (t *Task) Result() models.GenerationResult {
	<-t.done
	return t.result
}

// Cancel aborts the request context. The task still completes, normally with
// a Failure reported by the transport.
func (t *Task) Cancel() {
	t.cancel()
}
