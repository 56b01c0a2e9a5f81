package task

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualDrainRunsQueuedTasks(t *testing.T) {
	m := NewManual()
	var ran atomic.Int32

	m.Schedule(time.Second, func() { ran.Add(1) })
	m.Schedule(0, func() { ran.Add(1) })

	assert.Equal(t, 2, m.Pending())
	assert.Equal(t, 2, m.Drain())
	assert.Equal(t, int32(2), ran.Load())
	assert.Equal(t, 0, m.Pending())
}

func TestManualDrainRunsTasksScheduledByTasks(t *testing.T) {
	m := NewManual()
	var ran atomic.Int32

	m.Schedule(0, func() {
		ran.Add(1)
		m.Schedule(0, func() { ran.Add(1) })
	})

	assert.Equal(t, 2, m.Drain())
	assert.Equal(t, int32(2), ran.Load())
}

func TestTimerExecutorRunsTask(t *testing.T) {
	e := NewTimerExecutor(slog.Default())
	var ran atomic.Bool

	e.Schedule(time.Millisecond, func() { ran.Store(true) })
	e.Wait()

	assert.True(t, ran.Load())
}

func TestTimerExecutorRecoversPanic(t *testing.T) {
	e := NewTimerExecutor(slog.Default())

	e.Schedule(time.Millisecond, func() { panic("boom") })
	e.Wait() // must not crash the test binary
}
