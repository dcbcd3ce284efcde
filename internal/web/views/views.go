// Package views renders the HTML run reports.
package views

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/datacleaner/internal/core"
)

const style = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;margin:1rem 0}
th,td{border:1px solid #d1d5db;padding:.35rem .7rem;text-align:left}
th{background:#f3f4f6}
.complete{color:#047857}.failed,.cancelled{color:#b91c1c}
.muted{color:#6b7280}code{background:#f3f4f6;padding:0 .25rem}`

// Page wraps body in the HTML document shell.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>")
		p.text(title)
		p.raw("</title><style>" + style + "</style></head><body>")
		if p.err != nil {
			return p.err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		p.raw("</body></html>")
		return p.err
	})
}

// RunReport renders one run: status, files, assessment, steps and columns.
func RunReport(r *core.RunResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.raw("<h1>Run <code>")
		p.text(r.ID)
		p.raw("</code></h1>")
		p.raw(`<p>Status: <strong class="` + string(r.Phase) + `">`)
		p.text(string(r.Phase))
		p.raw("</strong>")
		if r.DryRun {
			p.raw(` <span class="muted">(dry run)</span>`)
		}
		p.raw("</p>")

		if r.Message != nil {
			p.raw(`<p class="failed">`)
			p.text(r.Message.Message)
			p.raw(" (")
			p.text(r.Message.Code)
			p.raw(")<br>")
			p.text(r.Message.Action)
			p.raw("</p>")
		}

		p.raw("<table>")
		p.row("Input", r.Input)
		p.row("Canonical file", r.CanonicalPath)
		p.row("Converted", strconv.FormatBool(r.Converted))
		if r.Lookup != "" {
			p.row("Lookup", r.Lookup)
		}
		p.row("Output format", r.OutputFormat)
		if r.Output != "" {
			p.row("Output", r.Output)
		}
		p.row("Rows", strconv.Itoa(r.Rows))
		p.row("Started", r.StartedAt.Format(time.RFC3339))
		p.row("Duration", r.Duration().Round(time.Millisecond).String())
		p.row("Requested by", origin(r.Origin))
		p.raw("</table>")

		if a := r.Assessment; a != nil {
			p.raw("<h2>Resources</h2><table>")
			p.row("File size (GB)", fmt.Sprintf("%.3f", a.FileSizeGB))
			p.row("Available memory (GB)", fmt.Sprintf("%.2f", a.AvailableMemoryGB))
			p.row("Recommended chunk size", strconv.Itoa(a.RecommendedChunkSize))
			p.row("Streaming", strconv.FormatBool(a.Streaming))
			if a.Degraded {
				p.row("Degraded", fmt.Sprint(a.Err))
			}
			p.raw("</table>")
		}

		if len(r.Steps) > 0 {
			p.raw("<h2>Steps</h2><table><tr><th>Step</th><th>Duration (ms)</th><th>RSS delta (MB)</th><th>Error</th></tr>")
			for _, s := range r.Steps {
				p.raw("<tr><td>")
				p.text(s.Name)
				p.raw("</td><td>")
				p.text(strconv.FormatInt(s.DurationMS, 10))
				p.raw("</td><td>")
				p.text(fmt.Sprintf("%.2f", s.RSSDeltaMB))
				p.raw("</td><td>")
				p.text(s.Error)
				p.raw("</td></tr>")
			}
			p.raw("</table>")
		}

		if len(r.Columns) > 0 {
			p.raw("<h2>Columns</h2><p>")
			p.text(strings.Join(r.Columns, ", "))
			p.raw("</p>")
		}

		p.raw(`<p><a href="/runs">All runs</a></p>`)
		return p.err
	})
}

// RunList renders a table of runs, newest first.
func RunList(runs []*core.RunResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw("<h1>Runs</h1>")
		if len(runs) == 0 {
			p.raw(`<p class="muted">No runs yet.</p>`)
			return p.err
		}
		p.raw("<table><tr><th>Run</th><th>Input</th><th>Status</th><th>Rows</th><th>Started</th></tr>")
		for _, r := range runs {
			p.raw(`<tr><td><a href="`)
			p.text(string(templ.URL("/runs/" + r.ID)))
			p.raw(`">`)
			p.text(shortID(r.ID))
			p.raw("</a></td><td>")
			p.text(r.Input)
			p.raw(`</td><td class="` + string(r.Phase) + `">`)
			p.text(string(r.Phase))
			p.raw("</td><td>")
			p.text(strconv.Itoa(r.Rows))
			p.raw("</td><td>")
			p.text(r.StartedAt.Format(time.RFC3339))
			p.raw("</td></tr>")
		}
		p.raw("</table>")
		return p.err
	})
}

func origin(o core.Origin) string {
	if o.IP == "" {
		return o.Source
	}
	return o.Source + " " + o.IP
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// printer writes HTML fragments, remembering the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) row(label, value string) {
	p.raw("<tr><th>")
	p.text(label)
	p.raw("</th><td>")
	p.text(value)
	p.raw("</td></tr>")
}
