package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(&SchedulerConfig{
		CheckInterval: 20 * time.Millisecond,
		MaxWorkers:    4,
	})
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestOnceTaskExecutesOnce(t *testing.T) {
	s := newRunningScheduler(t)

	var calls atomic.Int64
	task := NewOnceTask("once", time.Now(), time.Second, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, s.AddTask(task))

	assert.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, TaskStatusCompleted, task.GetStatus())
}

func TestIntervalTaskRepeats(t *testing.T) {
	s := newRunningScheduler(t)

	var calls atomic.Int64
	task := NewIntervalTask("interval", time.Now(), 30*time.Millisecond, time.Second, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, s.AddTask(task))

	assert.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFailedTaskCountsAndReschedules(t *testing.T) {
	s := newRunningScheduler(t)

	var calls atomic.Int64
	task := NewIntervalTask("failing", time.Now(), 30*time.Millisecond, time.Second, func(ctx context.Context) error {
		calls.Add(1)
		return fmt.Errorf("boom")
	})
	require.NoError(t, s.AddTask(task))

	assert.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	stats := s.GetStats()
	assert.GreaterOrEqual(t, stats.FailedTasks, int64(2))
	assert.Equal(t, int64(1), stats.TotalTasks)
}

func TestRemoveTaskStopsExecution(t *testing.T) {
	s := newRunningScheduler(t)

	task := NewOnceTask("future", time.Now().Add(time.Hour), time.Second, func(ctx context.Context) error {
		t.Error("被移除的任务不应执行")
		return nil
	})
	require.NoError(t, s.AddTask(task))
	assert.True(t, s.RemoveTask(task.GetID()))
	assert.False(t, s.RemoveTask(task.GetID()))
	assert.Nil(t, s.GetTask(task.GetID()))
}

func TestCronTaskParsing(t *testing.T) {
	_, err := NewCronTask("bad", "not a cron", time.Second, nil)
	require.Error(t, err)

	task, err := NewCronTask("nightly", "0 0 3 * * *", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeCron, task.GetType())
	assert.False(t, task.GetNextTime().IsZero())
}

func TestAddTaskRequiresRunning(t *testing.T) {
	s := NewScheduler(nil)
	err := s.AddTask(NewOnceTask("x", time.Now(), time.Second, nil))
	assert.Error(t, err)
}

func TestTaskHeapOrdering(t *testing.T) {
	h := NewTaskHeap()
	now := time.Now()

	late := NewOnceTask("late", now.Add(time.Hour), time.Second, nil)
	early := NewOnceTask("early", now.Add(-time.Minute), time.Second, nil)
	mid := NewOnceTask("mid", now.Add(time.Minute), time.Second, nil)

	h.SafePush(late)
	h.SafePush(early)
	h.SafePush(mid)

	next := h.GetNextExecuteTime()
	require.NotNil(t, next)
	assert.True(t, next.Equal(early.GetNextTime()))

	ready := h.PopReadyTasks(now)
	require.Len(t, ready, 1)
	assert.Equal(t, "early", ready[0].GetName())
	assert.Equal(t, 2, h.SafeSize())
}
