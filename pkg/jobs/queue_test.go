package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 2)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))

	got := []string{<-done, <-done}
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "a"}), ErrNotStarted)
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "overflow"}), ErrFull)

	stats := q.Stats()
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 1, stats.Pending)
}

func TestQueueShutdownWaitsForRunningJob(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	q := NewQueue("test", func(ctx context.Context, _ Job) error {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(ctx.Err() == nil)
		return nil
	}, QueueConfig{})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Shutdown(ctx))
	assert.True(t, finished.Load())
	assert.ErrorIs(t, q.Enqueue(Job{ID: "b"}), ErrStopped)
}

func TestQueueShutdownDeadlineCancelsJob(t *testing.T) {
	started := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, _ Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
}

func TestQueueRetriesOnlyRetryableErrors(t *testing.T) {
	transient := errors.New("transient")
	var calls int32
	finished := make(chan struct{})

	q := NewQueue("test", func(_ context.Context, job Job) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return transient
		}
		close(finished)
		return nil
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		Retryable:  func(err error) bool { return errors.Is(err, transient) },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueNoRetriesByDefault(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}, QueueConfig{RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	time.Sleep(50 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueGivesUpWhenRetryCannotBeRequeued(t *testing.T) {
	transient := errors.New("transient")
	failed := make(chan struct{})
	blocking := make(chan struct{})
	release := make(chan struct{})
	gaveUp := make(chan Job, 1)
	var cause error

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		switch job.ID {
		case "flaky":
			close(failed)
			return transient
		case "blocker":
			close(blocking)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	}, QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: 1,
		RetryDelay: 150 * time.Millisecond,
		OnGiveUp: func(job Job, err error) {
			cause = err
			gaveUp <- job
		},
	})
	q.Start(context.Background())
	defer func() {
		close(release)
		q.Stop()
	}()

	require.NoError(t, q.Enqueue(Job{ID: "flaky"}))
	<-failed
	require.Eventually(t, func() bool { return q.Stats().Retrying == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "blocker"}))
	<-blocking
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))

	select {
	case job := <-gaveUp:
		assert.Equal(t, "flaky", job.ID)
		assert.Equal(t, 1, job.Attempt)
		assert.ErrorIs(t, cause, ErrFull)
		assert.ErrorIs(t, cause, transient)
	case <-time.After(2 * time.Second):
		t.Fatal("dropped retry was not reported")
	}
}

func TestQueueGivesUpExhaustedJob(t *testing.T) {
	boom := errors.New("boom")
	gaveUp := make(chan error, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		return boom
	}, QueueConfig{OnGiveUp: func(_ Job, err error) { gaveUp <- err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	select {
	case err := <-gaveUp:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("failed job was not reported")
	}
}

func TestQueueStopGivesUpBufferedJobs(t *testing.T) {
	started := make(chan struct{})
	var mu sync.Mutex
	causes := map[string]error{}

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if job.ID == "running" {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{Workers: 1, BufferSize: 2, OnGiveUp: func(job Job, err error) {
		mu.Lock()
		defer mu.Unlock()
		causes[job.ID] = err
	}})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "running"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "buffered"}))
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, causes["buffered"], ErrStopped)
	assert.ErrorIs(t, causes["running"], context.Canceled)
	assert.Equal(t, 0, q.Pending())
}
