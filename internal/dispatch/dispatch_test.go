package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() *Dispatcher {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmit_ReturnsBeforeTaskCompletes(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	release := make(chan struct{})

	task, err := d.Submit("slow", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	select {
	case <-task.Done():
		t.Fatal("task finished before it was released")
	default:
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, task.Wait(ctx))
}

func TestTask_WaitReturnsTaskError(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	boom := errors.New("boom")

	task, err := d.Submit("failing", func(context.Context) error { return boom })
	require.NoError(t, err)

	assert.ErrorIs(t, task.Wait(context.Background()), boom)
}

func TestTask_FailureLoggedAtDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	d := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	task, err := d.Submit("failing", func(context.Context) error { return errors.New("boom") })
	require.NoError(t, err)
	require.Error(t, task.Wait(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=background_task_failed")
	assert.NotContains(t, out, "level=ERROR")
}

func TestTask_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	release := make(chan struct{})
	defer close(release)

	task, err := d.Submit("blocked", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, task.Wait(ctx), context.DeadlineExceeded)
}

func TestTask_PanicIsRecovered(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	task, err := d.Submit("panicky", func(context.Context) error { panic("kaboom") })
	require.NoError(t, err)

	err = task.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestTaskID_PropagatedToContext(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	var seen atomic.Value

	task, err := d.Submit("id", func(ctx context.Context) error {
		seen.Store(TaskID(ctx))
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, task.Wait(context.Background()))

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, task.ID, seen.Load())
	assert.Empty(t, TaskID(context.Background()))
}

func TestSubmit_AfterClose(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	d.Close()

	task, err := d.Submit("late", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, task)
}

func TestSubmit_NilFunc(t *testing.T) {
	t.Parallel()

	_, err := newTestDispatcher().Submit("nil", nil)
	assert.Error(t, err)
}

func TestShutdown_DrainsInFlightTasks(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	var completed atomic.Int32

	for i := 0; i < 5; i++ {
		_, err := d.Submit("work", func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			completed.Add(1)
			return nil
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	assert.Equal(t, int32(5), completed.Load())

	_, err := d.Submit("after", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShutdown_AbandonsAfterDeadline(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher()
	release := make(chan struct{})
	defer close(release)

	_, err := d.Submit("stuck", func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)
}
