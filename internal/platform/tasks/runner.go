package tasks

import (
	"context"
	"log/slog"
	"sync"

	"quill/contexts/content-delivery/distribution-service/ports"
)

// Runner executes submitted functions on detached goroutines while keeping
// them countable, so process shutdown can drain in-flight work.
type Runner struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Submit starts fn on its own goroutine and returns a handle that closes
// when fn returns. After Shutdown, submissions run inline instead.
func (r *Runner) Submit(name string, fn func(context.Context)) ports.TaskHandle {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		fn(context.Background())
		return closedHandle()
	}
	r.wg.Add(1)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer r.wg.Done()
		defer close(done)
		defer func() {
			if recovered := recover(); recovered != nil {
				r.logger.Error("detached task panicked",
					"event", "task_runner_panic",
					"module", "internal/platform/tasks",
					"layer", "platform",
					"task", name,
					"panic", recovered,
				)
			}
		}()
		r.logger.Debug("detached task started",
			"event", "task_runner_started",
			"module", "internal/platform/tasks",
			"layer", "platform",
			"task", name,
		)
		fn(context.Background())
	}()
	return handle{done: done}
}

// Shutdown stops accepting detached work and blocks until running tasks
// finish.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

type handle struct {
	done chan struct{}
}

func (h handle) Done() <-chan struct{} {
	return h.done
}

func closedHandle() handle {
	done := make(chan struct{})
	close(done)
	return handle{done: done}
}

var _ ports.TaskRunner = (*Runner)(nil)
