package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLimiter_AcquireRelease(t *testing.T) {
	l := NewJobLimiter(2, time.Second)
	ctx := context.Background()

	assert.Equal(t, 0, l.Status().Running)
	assert.Equal(t, 2, l.Status().Available)

	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, 2, l.Status().Running)
	assert.Equal(t, 0, l.Status().Available)

	l.Release()
	assert.Equal(t, 1, l.Status().Running)
	assert.Equal(t, 1, l.Status().Available)

	l.Release()
	assert.Equal(t, 0, l.Status().Running)
}

func TestJobLimiter_TimesOutWhenFull(t *testing.T) {
	l := NewJobLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	defer l.Release()

	start := time.Now()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrTooManyJobs)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, 1, l.Status().Rejected)
	assert.Equal(t, 0, l.Status().Queued)
}

func TestJobLimiter_NeverExceedsMax(t *testing.T) {
	const workers = 3
	l := NewJobLimiter(workers, 5*time.Second)

	var wg sync.WaitGroup
	var peak, current atomic.Int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer l.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, int(peak.Load()), workers)
	assert.Equal(t, 0, l.Status().Running)
}

func TestJobLimiter_CountsQueuedRuns(t *testing.T) {
	l := NewJobLimiter(1, 5*time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	errCh := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errCh <- l.Acquire(context.Background()) }()
	}
	assert.Eventually(t, func() bool { return l.Status().Queued == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, LimiterStatus{Running: 1, Queued: 2, Available: 0, Workers: 1}, l.Status())

	l.Release()
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, l.Status().Queued)

	l.Release()
	require.NoError(t, <-errCh)
	l.Release()
	assert.Equal(t, LimiterStatus{Available: 1, Workers: 1}, l.Status())
}

func TestJobLimiter_ContextCancellation(t *testing.T) {
	l := NewJobLimiter(1, 5*time.Second)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestJobLimiter_WaitForDrain(t *testing.T) {
	l := NewJobLimiter(2, time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() { done <- l.WaitForDrain(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForDrain returned with an active run")
	case <-time.After(150 * time.Millisecond):
	}

	l.Release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not return after release")
	}
}

func TestJobLimiter_WaitForDrainCancelled(t *testing.T) {
	l := NewJobLimiter(1, time.Second)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestJobLimiter_WaitForDrainWhenIdle(t *testing.T) {
	l := NewJobLimiter(1, time.Second)
	assert.NoError(t, l.WaitForDrain(context.Background()))

	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
	assert.NoError(t, l.WaitForDrain(context.Background()))
}

func TestJobLimiter_Status(t *testing.T) {
	l := NewJobLimiter(3, time.Second)
	assert.Equal(t, LimiterStatus{Available: 3, Workers: 3}, l.Status())

	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, LimiterStatus{Running: 1, Available: 2, Workers: 3}, l.Status())
	l.Release()
}

func TestJobLimiter_Defaults(t *testing.T) {
	assert.Equal(t, DefaultWorkers, NewJobLimiter(0, 0).Workers())
}
