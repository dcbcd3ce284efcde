package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/convert"
	"github.com/JonMunkholm/datacleaner/internal/dataset"
	"github.com/JonMunkholm/datacleaner/internal/format"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/lookup"
	"github.com/JonMunkholm/datacleaner/internal/resource"
	"github.com/JonMunkholm/datacleaner/internal/sink"
)

// DefaultRunTimeout bounds a single run when Options.Timeout is zero.
const DefaultRunTimeout = 10 * time.Minute

// DefaultHistorySize is how many finished runs are kept in memory.
const DefaultHistorySize = 200

// Options configures a Service. Zero values select the package defaults.
type Options struct {
	ConvertDir   string
	Delimiter    rune
	OutputDir    string
	OutputFormat string

	MaxRecommendedGB float64
	Probe            resource.MemoryProbe

	CacheCapacity int
	DisableCache  bool
	Collision     dataset.CollisionPolicy
	// LookupLoad replaces the lookup file reader, mainly for tests.
	LookupLoad lookup.LoadFunc

	Workers     int
	MaxWait     time.Duration
	Timeout     time.Duration
	HistorySize int

	// DB receives postgres output; nil makes postgres runs fail with
	// sink.ErrNoDatabase.
	DB     sink.TxBeginner
	Schema string

	Logger *slog.Logger
}

// OptionsFromConfig maps loaded configuration onto Service options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	delim, err := format.ParseDelimiter(cfg.Convert.Delimiter)
	if err != nil {
		return Options{}, err
	}
	policy, err := dataset.ParseCollisionPolicy(cfg.Lookup.Collision)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ConvertDir:       cfg.Convert.Dir,
		Delimiter:        delim,
		OutputDir:        cfg.Output.Dir,
		OutputFormat:     strings.ToLower(cfg.Output.Format),
		MaxRecommendedGB: cfg.Resource.MaxRecommendedGB,
		CacheCapacity:    cfg.Lookup.CacheCapacity,
		DisableCache:     !cfg.Lookup.Cache,
		Collision:        policy,
		Workers:          cfg.Jobs.Workers,
		MaxWait:          cfg.Jobs.MaxWait,
		Timeout:          cfg.Jobs.Timeout,
		Schema:           cfg.Output.Schema,
	}, nil
}

// Service runs pipelines and owns the state shared between them.
type Service struct {
	opts     Options
	log      *slog.Logger
	cache    *lookup.Cache
	enricher *lookup.Enricher
	advisor  *resource.Advisor
	limiter  *JobLimiter
	sinks    map[string]sink.Sink

	mu    sync.RWMutex
	runs  map[string]*RunResult
	order []string // run ids, oldest first
}

// NewService creates a Service from opts.
func NewService(opts Options) *Service {
	if opts.ConvertDir == "" {
		opts.ConvertDir = convert.DefaultOutputDir
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "cleaned"
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = sink.FormatCSV
	}
	if opts.Collision == "" {
		opts.Collision = dataset.LastWins
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRunTimeout
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	cache := lookup.NewCache(opts.CacheCapacity)
	advisor := resource.NewAdvisor(opts.MaxRecommendedGB, log)
	if opts.Probe != nil {
		advisor.Probe = opts.Probe
	}

	return &Service{
		opts:    opts,
		log:     log,
		cache:   cache,
		advisor: advisor,
		enricher: &lookup.Enricher{
			Loader:    &lookup.Loader{Cache: cache, Load: opts.LookupLoad, Logger: log},
			Collision: opts.Collision,
			Logger:    log,
		},
		limiter: NewJobLimiter(opts.Workers, opts.MaxWait),
		sinks: map[string]sink.Sink{
			sink.FormatCSV:      sink.CSV{},
			sink.FormatParquet:  sink.Parquet{},
			sink.FormatPostgres: &sink.Postgres{DB: opts.DB, Schema: opts.Schema, Logger: log},
		},
		runs: make(map[string]*RunResult),
	}
}

// Assess reports the resource advisory for path. It never fails.
func (s *Service) Assess(ctx context.Context, path string) resource.Assessment {
	return s.advisorFor(ctx).Assess(ctx, path)
}

// AssessWithLimit is Assess with a different large-file threshold in GB;
// maxGB <= 0 keeps the configured one.
func (s *Service) AssessWithLimit(ctx context.Context, path string, maxGB float64) resource.Assessment {
	a := s.advisorFor(ctx)
	if maxGB > 0 {
		a.MaxRecommendedGB = maxGB
	}
	return a.Assess(ctx, path)
}

// Convert converts path into outDir (the configured directory when empty).
func (s *Service) Convert(ctx context.Context, path, outDir string) (convert.Result, error) {
	return s.ConvertWithDelimiter(ctx, path, outDir, "")
}

// ConvertWithDelimiter is Convert with a delimiter override for .txt and
// .tsv input. An empty delimiter keeps the configured one.
func (s *Service) ConvertWithDelimiter(ctx context.Context, path, outDir, delimiter string) (convert.Result, error) {
	delim := s.opts.Delimiter
	if delimiter != "" {
		d, err := format.ParseDelimiter(delimiter)
		if err != nil {
			return convert.Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		delim = d
	}
	if outDir == "" {
		outDir = s.opts.ConvertDir
	}
	return s.converter(ctx, delim).ConvertTo(ctx, path, outDir)
}

// ResetLookupCache drops every cached lookup table.
func (s *Service) ResetLookupCache() {
	s.cache.Reset()
	s.log.Info("lookup cache reset")
}

// EvictLookup drops the cached table for path. It reports whether an entry
// was present.
func (s *Service) EvictLookup(path string) bool {
	ok := s.cache.Evict(path)
	s.log.Info("lookup cache evict", "path", path, "evicted", ok)
	return ok
}

// CacheStats returns lookup cache counters.
func (s *Service) CacheStats() lookup.CacheStats {
	return s.cache.Stats()
}

// LimiterStatus returns worker slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForJobs blocks until no run is in flight or ctx is done.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) converter(ctx context.Context, delim rune) *convert.Converter {
	return &convert.Converter{
		OutputDir: s.opts.ConvertDir,
		Delimiter: delim,
		Advisor:   s.advisorFor(ctx),
		Logger:    logging.Enrich(ctx, s.log),
	}
}

// advisorFor returns a copy of the advisor that logs with ctx's ids.
func (s *Service) advisorFor(ctx context.Context) *resource.Advisor {
	a := *s.advisor
	a.Logger = logging.Enrich(ctx, s.log)
	return &a
}
