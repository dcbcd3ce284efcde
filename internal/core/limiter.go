package core

// limiter.go bounds the number of pipeline runs in flight.
//
// At most NUM_WORKERS runs hold a worker slot. A run that finds every slot
// taken is queued for up to maxWait and then rejected with ErrTooManyJobs.
// The limiter counts running, queued and rejected runs for /healthz, and
// WaitForDrain lets shutdown wait for the running ones.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyJobs is returned when all worker slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyJobs = errors.New("too many concurrent jobs, please try again later")

// DefaultWorkers is the default limit for parallel runs.
const DefaultWorkers = 4

// DefaultMaxWaitTime is how long a queued run waits for a slot.
const DefaultMaxWaitTime = 30 * time.Second

// JobLimiter hands out worker slots to runs.
type JobLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu       sync.Mutex
	running  int
	queued   int
	rejected int
	idle     chan struct{} // closed while running == 0
}

// NewJobLimiter allows at most workers runs at once. Queued runs that get
// no slot within maxWait receive ErrTooManyJobs.
func NewJobLimiter(workers int, maxWait time.Duration) *JobLimiter {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &JobLimiter{
		slots:   make(chan struct{}, workers),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a worker slot, queueing while none is free. The caller
// must call Release once the run finishes.
func (l *JobLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case l.slots <- struct{}{}:
		l.started()
		return nil
	default:
	}

	l.mu.Lock()
	l.queued++
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.queued--
		l.mu.Unlock()
	}()

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.started()
		return nil
	case <-timer.C:
		l.mu.Lock()
		l.rejected++
		l.mu.Unlock()
		return ErrTooManyJobs
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *JobLimiter) started() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running == 0 {
		l.idle = make(chan struct{})
	}
	l.running++
}

// Release returns the slot taken by Acquire.
func (l *JobLimiter) Release() {
	l.mu.Lock()
	l.running--
	if l.running == 0 {
		close(l.idle)
	}
	l.mu.Unlock()
	<-l.slots
}

// Workers returns the number of worker slots.
func (l *JobLimiter) Workers() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *JobLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is a snapshot of worker slot usage.
type LimiterStatus struct {
	Running   int `json:"running"`
	Queued    int `json:"queued"`
	Available int `json:"available"`
	Workers   int `json:"workers"`
	Rejected  int `json:"rejected"`
}

// Status returns the current slot usage.
func (l *JobLimiter) Status() LimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterStatus{
		Running:   l.running,
		Queued:    l.queued,
		Available: cap(l.slots) - l.running,
		Workers:   cap(l.slots),
		Rejected:  l.rejected,
	}
}
