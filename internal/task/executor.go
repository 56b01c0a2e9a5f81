package task

import (
	"log/slog"
	"sync"
	"time"
)

// Executor arranges one-shot deferred work. Scheduling is fire-and-forget:
// the caller is never blocked on, or notified of, completion, and a
// scheduled task cannot be cancelled.
type Executor interface {
	Schedule(delay time.Duration, fn func())
}

// TimerExecutor runs scheduled functions on their own goroutine after the
// delay. Panics are recovered and logged so a bad task never takes the
// process down.
type TimerExecutor struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewTimerExecutor(logger *slog.Logger) *TimerExecutor {
	return &TimerExecutor{logger: logger}
}

func (e *TimerExecutor) Schedule(delay time.Duration, fn func()) {
	e.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("scheduled task panicked", "panic", r)
			}
		}()
		fn()
	})
}

// Wait blocks until all scheduled tasks have run. Used on shutdown and in
// tests; new tasks may still be scheduled while waiting.
func (e *TimerExecutor) Wait() {
	e.wg.Wait()
}

// Manual is an Executor for tests: tasks queue up until Drain runs them on
// the calling goroutine, making asynchronous pipelines testable
// synchronously.
type Manual struct {
	mu    sync.Mutex
	queue []func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Schedule(delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
}

// Drain runs every queued task, including tasks scheduled by tasks, and
// returns the number executed.
func (m *Manual) Drain() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return ran
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
		ran++
	}
}

// Pending reports how many tasks are queued but not yet run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
