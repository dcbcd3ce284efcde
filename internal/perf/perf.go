// Package perf times pipeline steps and records process memory deltas.
package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/datacleaner/internal/resource"
)

// StepResult is the outcome of one timed step.
type StepResult struct {
	Name       string        `json:"name"`
	Duration   time.Duration `json:"duration_ns"`
	DurationMS int64         `json:"duration_ms"`
	// RSSDeltaMB is the change in resident memory across the step. It is
	// zero when RSS could not be read.
	RSSDeltaMB float64 `json:"rss_delta_mb"`
	Error      string  `json:"error,omitempty"`
}

// RSSFunc reports resident memory in bytes.
type RSSFunc func(ctx context.Context) (uint64, error)

// Tracker collects step results for one run. Safe for concurrent use.
type Tracker struct {
	Logger *slog.Logger
	RSS    RSSFunc // nil means resource.ProcessRSS
	now    func() time.Time

	mu    sync.Mutex
	steps []StepResult
}

// NewTracker returns a Tracker that logs to logger (nil = slog.Default()).
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{Logger: logger}
}

func (t *Tracker) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *Tracker) rss(ctx context.Context) (uint64, bool) {
	fn := t.RSS
	if fn == nil {
		fn = resource.ProcessRSS
	}
	n, err := fn(ctx)
	return n, err == nil
}

func (t *Tracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Step runs fn, records its duration and memory delta, and logs the
// outcome. fn's error is returned unchanged.
func (t *Tracker) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	log := t.logger()
	log.Info("step started", "step", name)

	before, okBefore := t.rss(ctx)
	start := t.clock()
	err := fn(ctx)
	elapsed := t.clock().Sub(start)
	after, okAfter := t.rss(ctx)

	res := StepResult{Name: name, Duration: elapsed, DurationMS: elapsed.Milliseconds()}
	if okBefore && okAfter {
		res.RSSDeltaMB = float64(int64(after)-int64(before)) / (1024 * 1024)
	}
	if err != nil {
		res.Error = err.Error()
	}

	t.mu.Lock()
	t.steps = append(t.steps, res)
	t.mu.Unlock()

	if err != nil {
		log.Error("step failed",
			"step", name,
			"duration_ms", res.DurationMS,
			"error", err,
		)
		return err
	}
	log.Info("step completed",
		"step", name,
		"duration_ms", res.DurationMS,
		"rss_delta_mb", res.RSSDeltaMB,
	)
	return nil
}

// Steps returns a copy of the recorded results in completion order.
func (t *Tracker) Steps() []StepResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StepResult, len(t.steps))
	copy(out, t.steps)
	return out
}

// Total is the sum of all step durations.
func (t *Tracker) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var d time.Duration
	for _, s := range t.steps {
		d += s.Duration
	}
	return d
}

// LogSummary logs one line per step and the total.
func (t *Tracker) LogSummary() {
	log := t.logger()
	for _, s := range t.Steps() {
		log.Info("step summary", "step", s.Name, "duration_ms", s.DurationMS, "rss_delta_mb", s.RSSDeltaMB)
	}
	log.Info("run total", "duration_ms", t.Total().Milliseconds())
}
