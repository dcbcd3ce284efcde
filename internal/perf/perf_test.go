package perf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() *Tracker {
	tr := NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rss := []uint64{100 << 20, 150 << 20, 150 << 20, 140 << 20}
	tr.RSS = func(context.Context) (uint64, error) {
		v := rss[0]
		rss = rss[1:]
		return v, nil
	}
	ticks := []time.Time{time.Unix(0, 0), time.Unix(2, 0), time.Unix(2, 0), time.Unix(2, 500_000_000)}
	tr.now = func() time.Time {
		v := ticks[0]
		ticks = ticks[1:]
		return v
	}
	return tr
}

func TestTrackerStep(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	require.NoError(t, tr.Step(ctx, "load", func(context.Context) error { return nil }))

	boom := errors.New("boom")
	err := tr.Step(ctx, "write", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	steps := tr.Steps()
	require.Len(t, steps, 2)

	assert.Equal(t, "load", steps[0].Name)
	assert.Equal(t, 2*time.Second, steps[0].Duration)
	assert.Equal(t, int64(2000), steps[0].DurationMS)
	assert.InDelta(t, 50.0, steps[0].RSSDeltaMB, 1e-9)
	assert.Empty(t, steps[0].Error)

	assert.Equal(t, "write", steps[1].Name)
	assert.InDelta(t, -10.0, steps[1].RSSDeltaMB, 1e-9)
	assert.Equal(t, "boom", steps[1].Error)

	assert.Equal(t, 2500*time.Millisecond, tr.Total())
}

func TestTrackerRSSUnavailable(t *testing.T) {
	tr := NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.RSS = func(context.Context) (uint64, error) { return 0, errors.New("unsupported") }

	require.NoError(t, tr.Step(context.Background(), "noop", func(context.Context) error { return nil }))
	assert.Zero(t, tr.Steps()[0].RSSDeltaMB)
}
