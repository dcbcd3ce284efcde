package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/errs"
	"github.com/JonMunkholm/datacleaner/internal/resource"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
	faintColor   = color.New(color.Faint)
)

// UI prints status lines for the terminal. Color is dropped automatically
// when the output is not a terminal.
type UI struct {
	w io.Writer
}

func NewUI(w io.Writer) *UI { return &UI{w: w} }

func (u *UI) Success(format string, args ...any) {
	successColor.Fprintf(u.w, "✓ %s\n", fmt.Sprintf(format, args...))
}

func (u *UI) Error(format string, args ...any) {
	errorColor.Fprintf(u.w, "✗ %s\n", fmt.Sprintf(format, args...))
}

func (u *UI) Warning(format string, args ...any) {
	warningColor.Fprintf(u.w, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func (u *UI) Info(format string, args ...any) {
	infoColor.Fprintf(u.w, "ℹ %s\n", fmt.Sprintf(format, args...))
}

func (u *UI) Bold(format string, args ...any) {
	boldColor.Fprintln(u.w, fmt.Sprintf(format, args...))
}

func (u *UI) Plain(format string, args ...any) {
	fmt.Fprintln(u.w, fmt.Sprintf(format, args...))
}

// Failure prints the user-facing message for err, its action and code, and
// the technical error underneath.
func (u *UI) Failure(err error) {
	msg := errs.Map(err)
	u.Error("%s (Code: %s)", msg.Message, msg.Code)
	if msg.Action != "" {
		u.Plain("  %s", msg.Action)
	}
	var ce *errs.ConversionError
	if errors.As(err, &ce) {
		for _, h := range ce.Hints[min(1, len(ce.Hints)):] {
			u.Plain("  %s: %s (Code: %s)", h.Message, h.Action, h.Code)
		}
	}
	faintColor.Fprintf(u.w, "  %v\n", err)
}

// fail prints err and marks it as reported so Execute does not print it
// a second time.
func (u *UI) fail(err error) error {
	u.Failure(err)
	return &reportedError{err: err}
}

// Assessment prints an advisory summary.
func (u *UI) Assessment(a resource.Assessment) {
	switch {
	case a.Moot:
		u.Warning("%s does not exist; nothing to assess", a.Path)
		return
	case a.Degraded:
		u.Warning("system memory could not be read, using defaults: %v", a.Err)
	}
	u.Bold("Resource assessment for %s", a.Path)
	u.Plain("  file size:         %s", humanBytes(a.FileSizeBytes))
	u.Plain("  available memory:  %.2f GB", a.AvailableMemoryGB)
	u.Plain("  chunk size:        %d rows", a.RecommendedChunkSize)
	u.Plain("  streaming:         %t", a.Streaming)
	u.assessmentWarnings(a)
}

func (u *UI) assessmentWarnings(a resource.Assessment) {
	if a.Streaming && !a.Moot && !a.Degraded {
		u.Warning("large file relative to memory (ratio %.2f); consider splitting it", a.MemoryRatio)
	}
}

// RunResult prints the outcome of a successful run the way a single
// `run` invocation reports it.
func (u *UI) RunResult(res *core.RunResult) {
	if res.Converted {
		u.Success("Converted %s to %s", res.Input, res.CanonicalPath)
	}
	if len(res.Header) > 0 {
		u.Bold("Cleaned header columns:")
		u.Plain("%s", strings.Join(res.Header, ", "))
	}
	u.Info("%d rows, columns: %s", res.Rows, strings.Join(res.Columns, ", "))
	if res.Lookup != "" {
		u.Info("Enriched from %s", res.Lookup)
	}
	if res.DryRun {
		u.Success("Dry run complete! No output file created.")
	} else {
		u.Success("Cleaning complete! Output saved to: %s", res.Output)
	}
	u.Steps(res)
}

// Steps prints per-step timings and the total runtime.
func (u *UI) Steps(res *core.RunResult) {
	for _, s := range res.Steps {
		faintColor.Fprintf(u.w, "  %-16s %6dms\n", s.Name, s.DurationMS)
	}
	u.Info("Total runtime: %.2f seconds", res.Duration().Seconds())
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
