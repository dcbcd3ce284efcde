package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/datacleaner/internal/errs"
	"github.com/JonMunkholm/datacleaner/internal/format"
	"github.com/JonMunkholm/datacleaner/internal/perf"
	"github.com/JonMunkholm/datacleaner/internal/resource"
	"github.com/JonMunkholm/datacleaner/internal/sink"
)

// ErrInvalidRequest is returned for run requests that fail validation.
var ErrInvalidRequest = errors.New("invalid run request")

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// RunPhase indicates the current stage of a run.
type RunPhase string

const (
	PhaseQueued     RunPhase = "queued"
	PhaseConverting RunPhase = "converting"
	PhaseValidating RunPhase = "validating"
	PhaseLoading    RunPhase = "loading"
	PhaseEnriching  RunPhase = "enriching"
	PhaseWriting    RunPhase = "writing"
	PhaseComplete   RunPhase = "complete"
	PhaseFailed     RunPhase = "failed"
	PhaseCancelled  RunPhase = "cancelled"
)

// Done reports whether the phase is terminal.
func (p RunPhase) Done() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// LookupSpec configures enrichment for one run. Key and Fields are raw
// column names; they are normalized before the join.
type LookupSpec struct {
	Path    string   `json:"path"`
	Key     string   `json:"key"`
	Fields  []string `json:"fields"`
	NoCache bool     `json:"no_cache,omitempty"`
}

// RunRequest describes one pipeline run. Empty fields fall back to the
// Service defaults.
type RunRequest struct {
	Input        string      `json:"input"`
	Output       string      `json:"output,omitempty"`
	OutputFormat string      `json:"output_format,omitempty"`
	ConvertDir   string      `json:"convert_dir,omitempty"`
	Delimiter    string      `json:"delimiter,omitempty"`
	DryRun       bool        `json:"dry_run,omitempty"`
	Lookup       *LookupSpec `json:"lookup,omitempty"`
}

// Validate reports every problem with the request. The error matches
// ErrInvalidRequest, or errs.ErrInvalidPath for an empty input.
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return &errs.PathError{Kind: errs.ErrInvalidPath, Op: "run", Path: r.Input, Err: errors.New("input is required")}
	}

	var problems []string
	switch strings.ToLower(r.OutputFormat) {
	case "", sink.FormatCSV, sink.FormatParquet, sink.FormatPostgres:
	default:
		problems = append(problems, fmt.Sprintf("output_format %q must be one of: csv, parquet, postgres", r.OutputFormat))
	}
	if _, err := format.ParseDelimiter(r.Delimiter); err != nil {
		problems = append(problems, err.Error())
	}
	if r.Lookup != nil {
		if strings.TrimSpace(r.Lookup.Path) == "" {
			problems = append(problems, "lookup.path is required")
		}
		if strings.TrimSpace(r.Lookup.Key) == "" {
			problems = append(problems, "lookup.key is required")
		}
		if len(r.Lookup.Fields) == 0 {
			problems = append(problems, "lookup.fields must list at least one column")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Origin records who requested a run.
type Origin struct {
	Source    string `json:"source"` // "cli" or "http"
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// RunResult is the record of one run. Results returned by the Service are
// snapshots and safe to read without locking.
type RunResult struct {
	ID           string     `json:"id"`
	Input        string     `json:"input"`
	Phase        RunPhase   `json:"phase"`
	Origin       Origin     `json:"origin"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DryRun       bool       `json:"dry_run"`
	OutputFormat string     `json:"output_format"`

	// CanonicalPath is the CSV or Parquet file the data was loaded from.
	CanonicalPath string   `json:"canonical_path,omitempty"`
	Converted     bool     `json:"converted"`
	Header        []string `json:"header,omitempty"`

	Rows    int      `json:"rows"`
	Columns []string `json:"columns,omitempty"`
	Lookup  string   `json:"lookup,omitempty"`
	Output  string   `json:"output,omitempty"`

	Assessment *resource.Assessment `json:"assessment,omitempty"`
	Steps      []perf.StepResult    `json:"steps,omitempty"`

	Error   string            `json:"error,omitempty"`
	Message *errs.UserMessage `json:"message,omitempty"`
}

// Duration is the wall time of the run so far.
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

func (r *RunResult) clone() *RunResult {
	c := *r
	c.Header = append([]string(nil), r.Header...)
	c.Columns = append([]string(nil), r.Columns...)
	c.Steps = append([]perf.StepResult(nil), r.Steps...)
	if r.Assessment != nil {
		a := *r.Assessment
		c.Assessment = &a
	}
	if r.Message != nil {
		m := *r.Message
		c.Message = &m
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
