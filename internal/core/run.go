package core

// run.go executes pipeline runs: a single synchronous Run, a background
// Start, and a bounded RunBatch.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/datacleaner/internal/colname"
	"github.com/JonMunkholm/datacleaner/internal/convert"
	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/errs"
	"github.com/JonMunkholm/datacleaner/internal/format"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/lookup"
	"github.com/JonMunkholm/datacleaner/internal/perf"
	"github.com/JonMunkholm/datacleaner/internal/sink"
)

// Run executes req and waits for it to finish. The returned result is
// recorded in the run history whether or not the run failed; on failure
// the error is returned as well.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	res := s.newRun(ctx, req)
	return s.execute(ctx, res.ID, req)
}

// Start validates req, reserves a worker slot and runs it in the
// background. The run is visible through GetRun immediately.
func (s *Service) Start(ctx context.Context, req RunRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	res := s.newRun(ctx, req)

	// Detach from the request context but keep its ids for logging.
	runCtx := logging.WithRunID(context.WithoutCancel(ctx), res.ID)
	go func() {
		defer s.limiter.Release()
		s.execute(runCtx, res.ID, req)
	}()
	return res.ID, nil
}

// RunBatch runs every request concurrently, at most Workers at a time.
// Results keep the order of reqs. A failed run is recorded in its result
// and does not stop the others; the error is non-nil only when ctx ends
// before the batch finishes.
func (s *Service) RunBatch(ctx context.Context, reqs []RunRequest) ([]*RunResult, error) {
	results := make([]*RunResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.limiter.Workers())
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Run(ctx, req)
			if res == nil {
				res = s.rejected(ctx, req, err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("batch completed", "runs", len(reqs), "failed", countFailed(results))
	return results, ctx.Err()
}

func countFailed(results []*RunResult) int {
	n := 0
	for _, r := range results {
		if r != nil && r.Phase != PhaseComplete {
			n++
		}
	}
	return n
}

// rejected records a run that never started, so batch callers get one
// result per request.
func (s *Service) rejected(ctx context.Context, req RunRequest, err error) *RunResult {
	res := s.newRun(ctx, req)
	return s.finish(res.ID, err, nil, logging.Enrich(ctx, s.log))
}

func (s *Service) newRun(ctx context.Context, req RunRequest) *RunResult {
	outFmt := strings.ToLower(req.OutputFormat)
	if outFmt == "" {
		outFmt = s.opts.OutputFormat
	}
	res := &RunResult{
		ID:           uuid.New().String(),
		Input:        req.Input,
		Phase:        PhaseQueued,
		Origin:       originFromContext(ctx),
		StartedAt:    time.Now(),
		DryRun:       req.DryRun,
		OutputFormat: outFmt,
	}
	if req.Lookup != nil {
		res.Lookup = req.Lookup.Path
	}
	s.record(res)
	return res
}

// execute runs the phases for an already recorded run.
func (s *Service) execute(ctx context.Context, id string, req RunRequest) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	ctx = logging.WithRunID(ctx, id)

	log := logging.Enrich(ctx, s.log).With("input", req.Input)
	log.Info("run started", "dry_run", req.DryRun, "lookup", req.Lookup != nil)

	tracker := perf.NewTracker(log)
	err := s.pipeline(ctx, id, req, tracker, log)
	tracker.LogSummary()

	return s.finish(id, err, tracker.Steps(), log), err
}

func (s *Service) pipeline(ctx context.Context, id string, req RunRequest, tracker *perf.Tracker, log *slog.Logger) error {
	delim := s.opts.Delimiter
	if req.Delimiter != "" {
		delim, _ = format.ParseDelimiter(req.Delimiter) // validated by RunRequest.Validate
	}
	convertDir := req.ConvertDir
	if convertDir == "" {
		convertDir = s.opts.ConvertDir
	}

	var conv convert.Result
	s.setPhase(id, PhaseConverting)
	if err := tracker.Step(ctx, "convert", func(ctx context.Context) error {
		var err error
		conv, err = s.converter(ctx, delim).ConvertTo(ctx, req.Input, convertDir)
		return err
	}); err != nil {
		return err
	}
	s.update(id, func(r *RunResult) {
		r.CanonicalPath = conv.Path
		r.Converted = conv.Converted
		if conv.Assessment.Path != "" {
			a := conv.Assessment
			r.Assessment = &a
		}
	})

	s.setPhase(id, PhaseValidating)
	if err := tracker.Step(ctx, "validate header", func(ctx context.Context) error {
		return checkHeader(conv.Path)
	}); err != nil {
		return err
	}

	var ds *dataset.Dataset
	s.setPhase(id, PhaseLoading)
	if err := tracker.Step(ctx, "load", func(ctx context.Context) error {
		var err error
		ds, err = convert.LoadCanonical(ctx, conv.Path, log)
		if err == nil && ds.Empty() {
			err = &errs.PathError{Kind: errs.ErrEmptyData, Op: "run", Path: conv.Path}
		}
		return err
	}); err != nil {
		return err
	}
	s.update(id, func(r *RunResult) { r.Header = ds.Names() })

	s.setPhase(id, PhaseEnriching)
	if err := tracker.Step(ctx, "enrich", func(ctx context.Context) error {
		var err error
		if req.Lookup == nil {
			ds, err = ds.Rename(colname.Normalize, s.opts.Collision)
			return err
		}
		ds, err = s.enricherFor(log).Enrich(ctx, ds, lookup.Request{
			Path:          req.Lookup.Path,
			Key:           req.Lookup.Key,
			ReturnColumns: req.Lookup.Fields,
			UseCache:      !s.opts.DisableCache && !req.Lookup.NoCache,
		})
		return err
	}); err != nil {
		return err
	}
	s.update(id, func(r *RunResult) {
		r.Rows = ds.NumRows()
		r.Columns = ds.Names()
	})

	if req.DryRun {
		log.Info("dry run, no output written", "rows", ds.NumRows(), "cols", ds.NumCols())
		return nil
	}

	outFmt := s.outputFormat(req)
	target := s.outputTarget(req, outFmt)
	var written string
	s.setPhase(id, PhaseWriting)
	if err := tracker.Step(ctx, "write "+outFmt, func(ctx context.Context) error {
		var err error
		written, err = s.sinks[outFmt].Write(ctx, ds, target)
		return err
	}); err != nil {
		return err
	}
	s.update(id, func(r *RunResult) { r.Output = written })
	return nil
}

func (s *Service) enricherFor(log *slog.Logger) *lookup.Enricher {
	e := *s.enricher
	e.Logger = log
	loader := *e.Loader
	loader.Logger = log
	e.Loader = &loader
	return &e
}

func (s *Service) outputFormat(req RunRequest) string {
	if f := strings.ToLower(req.OutputFormat); f != "" {
		return f
	}
	return s.opts.OutputFormat
}

// outputTarget is req.Output, or <OutputDir>/<stem>.cleaned.<ext> for file
// sinks and <stem> as the table name for postgres.
func (s *Service) outputTarget(req RunRequest, outFmt string) string {
	if req.Output != "" {
		return req.Output
	}
	stem := strings.TrimSuffix(filepath.Base(req.Input), filepath.Ext(req.Input))
	if src, err := format.Resolve(req.Input, format.ForInput); err == nil {
		stem = src.Stem()
	}
	if outFmt == sink.FormatPostgres {
		return stem
	}
	return filepath.Join(s.opts.OutputDir, stem+".cleaned"+sink.FileExt(outFmt))
}

// checkHeader validates the first line of a canonical CSV file. Parquet
// files carry a typed schema and are not checked.
func checkHeader(path string) error {
	src, err := format.Resolve(path, format.ForInput)
	if err != nil {
		return err
	}
	if src.Format.Name != "csv" || src.Compression != "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return &errs.PathError{Kind: errs.ErrEmptyData, Op: "run", Path: path}
	}
	line = strings.TrimPrefix(line, "\ufeff")
	if !colname.ValidateHeaderLine(line) {
		return &errs.PathError{Kind: errs.ErrInvalidHeader, Op: "run", Path: path}
	}
	return nil
}

// finish marks the run terminal and returns a snapshot.
func (s *Service) finish(id string, err error, steps []perf.StepResult, log *slog.Logger) *RunResult {
	now := time.Now()
	var out *RunResult
	s.update(id, func(r *RunResult) {
		r.FinishedAt = &now
		r.Steps = steps
		switch {
		case err == nil:
			r.Phase = PhaseComplete
		case errors.Is(err, context.Canceled):
			r.Phase = PhaseCancelled
		default:
			r.Phase = PhaseFailed
		}
		if err != nil {
			msg := errs.Map(err)
			r.Error = err.Error()
			r.Message = &msg
		}
		out = r.clone()
	})

	if out == nil {
		return nil
	}
	if err != nil {
		log.Error("run failed", "phase", out.Phase, "error", err, "code", out.Message.Code)
	} else {
		log.Info("run completed",
			"rows", out.Rows,
			"cols", len(out.Columns),
			"output", out.Output,
			"duration_ms", out.Duration().Milliseconds(),
		)
	}
	return out
}
