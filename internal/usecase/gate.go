package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultReadyTimeout = 10 * time.Second

// Task is one unit of work tracked by the Gate. It settles exactly once.
type Task struct {
	name string
	done chan struct{}
	once sync.Once
}

// Settle marks the task finished. Extra calls are ignored.
func (t *Task) Settle() {
	t.once.Do(func() { close(t.done) })
}

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Gate decides when a session's content is ready: every known task settled,
// or the timeout elapsed.
type Gate struct {
	mu      sync.Mutex
	tasks   []*Task
	timeout time.Duration
	logger  *slog.Logger
}

// NewGate builds a gate; a non-positive timeout falls back to 10s.
func NewGate(timeout time.Duration, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	return &Gate{timeout: timeout, logger: logger}
}

// Track registers a task settled by the caller.
func (g *Gate) Track(name string) *Task {
	task := &Task{name: name, done: make(chan struct{})}

	g.mu.Lock()
	g.tasks = append(g.tasks, task)
	g.mu.Unlock()

	return task
}

// Go runs fn in its own goroutine and settles the task when fn returns, even
// if it panics.
func (g *Gate) Go(name string, fn func()) *Task {
	task := g.Track(name)
	go func() {
		defer task.Settle()
		defer func() {
			if r := recover(); r != nil && g.logger != nil {
				g.logger.Error("gate task panicked", "task", name, "panic", r)
			}
		}()
		fn()
	}()
	return task
}

// Pending returns the number of tasks not yet settled.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, task := range g.tasks {
		select {
		case <-task.done:
		default:
			n++
		}
	}
	return n
}

// Ready blocks until all known tasks settle and reports true, or gives up
// after the timeout (or when ctx ends) and reports false. Tasks tracked while
// Ready is waiting are awaited too, within the same deadline.
func (g *Gate) Ready(ctx context.Context) bool {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	waited := 0
	for {
		g.mu.Lock()
		pending := g.tasks[waited:]
		total := len(g.tasks)
		g.mu.Unlock()

		if len(pending) == 0 {
			return true
		}

		for _, task := range pending {
			select {
			case <-task.done:
			case <-timer.C:
				g.giveUp("timeout")
				return false
			case <-ctx.Done():
				g.giveUp("context done")
				return false
			}
		}
		waited = total
	}
}

func (g *Gate) giveUp(reason string) {
	if g.logger == nil {
		return
	}
	g.logger.Warn("content gate gave up waiting",
		"reason", reason,
		"pending", g.Pending(),
		"timeout", g.timeout)
}
