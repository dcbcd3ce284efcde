package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/core"
)

type runFlags struct {
	input        string
	output       string
	convertDir   string
	lookup       string
	lookupKey    string
	lookupFields []string
	outputFormat string
	delimiter    string
	noCache      bool
	dryRun       bool
	job          string
}

func (f *runFlags) request() core.RunRequest {
	req := core.RunRequest{
		Input:        f.input,
		Output:       f.output,
		OutputFormat: f.outputFormat,
		ConvertDir:   f.convertDir,
		Delimiter:    f.delimiter,
		DryRun:       f.dryRun,
	}
	if f.lookup != "" || f.lookupKey != "" || len(f.lookupFields) > 0 {
		req.Lookup = &core.LookupSpec{
			Path:    f.lookup,
			Key:     f.lookupKey,
			Fields:  f.lookupFields,
			NoCache: f.noCache,
		}
	}
	return req
}

func newRunCommand(app *App) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Convert, normalize, enrich and write a file",
		Long: `Run the full pipeline on one input: convert it to canonical CSV, check the
header line, normalize column names, optionally left-join fields from a lookup
file, and write the result.

With --job, every run listed in a YAML job file is executed, at most
$NUM_WORKERS at a time.`,
		Example: `  $ datacleaner run -i sample.xlsx --lookup lookup.csv --lookup-key Email --lookup-fields User_Type,Region
  $ datacleaner run -i events.jsonl --output-format parquet -o events.parquet
  $ datacleaner run -i orders.csv --output-format postgres -o orders
  $ datacleaner run --job nightly.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.job != "" {
				return runJob(cmd, app, f.job)
			}
			return runOne(cmd, app, f.request())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "input file path")
	fl.StringVarP(&f.output, "output", "o", "", "output file path, or table name for postgres output")
	fl.StringVar(&f.convertDir, "convert-dir", "", "directory for converted files (default $CONVERT_DIR)")
	fl.StringVar(&f.lookup, "lookup", "", "path to lookup file")
	fl.StringVar(&f.lookupKey, "lookup-key", "", "column to join on")
	fl.StringSliceVar(&f.lookupFields, "lookup-fields", nil, "comma-separated fields to join from the lookup")
	fl.StringVar(&f.outputFormat, "output-format", "", "csv, parquet or postgres (default $OUTPUT_FORMAT)")
	fl.StringVar(&f.delimiter, "delimiter", "", "delimiter for .txt and .tsv input")
	fl.BoolVar(&f.noCache, "no-cache", false, "reload the lookup file instead of using the cache")
	fl.BoolVar(&f.dryRun, "dry-run", false, "run every step but write no output")
	fl.StringVar(&f.job, "job", "", "YAML job file listing several runs")

	cmd.MarkFlagsOneRequired("input", "job")
	cmd.MarkFlagsMutuallyExclusive("input", "job")
	return cmd
}

func runOne(cmd *cobra.Command, app *App, req core.RunRequest) error {
	ui := NewUI(cmd.OutOrStdout())

	res, err := app.Service.Run(cmd.Context(), req)
	if err != nil {
		if res != nil {
			ui.Steps(res)
		}
		return ui.fail(err)
	}
	ui.RunResult(res)
	return nil
}

func runJob(cmd *cobra.Command, app *App, path string) error {
	ui := NewUI(cmd.OutOrStdout())

	job, err := config.LoadJob(path)
	if err != nil {
		return ui.fail(err)
	}

	reqs := requestsFromJob(job)
	ui.Info("Running %d runs from %s", len(reqs), path)

	results, err := app.Service.RunBatch(cmd.Context(), reqs)
	if err != nil {
		return ui.fail(err)
	}

	failed := 0
	for i, res := range results {
		n := fmt.Sprintf("[%d/%d]", i+1, len(results))
		if res.Phase != core.PhaseComplete {
			failed++
			code, msg := "ERR000", res.Error
			if res.Message != nil {
				code, msg = res.Message.Code, res.Message.Message
			}
			ui.Error("%s %s: %s (Code: %s)", n, res.Input, msg, code)
			continue
		}
		if res.DryRun {
			ui.Success("%s %s: %d rows (dry run)", n, res.Input, res.Rows)
		} else {
			ui.Success("%s %s: %d rows -> %s", n, res.Input, res.Rows, res.Output)
		}
	}

	if failed > 0 {
		err := fmt.Errorf("%d of %d runs failed", failed, len(results))
		ui.Error("%v", err)
		return &reportedError{err: err}
	}
	ui.Success("All %d runs complete", len(results))
	return nil
}

func requestsFromJob(job *config.Job) []core.RunRequest {
	reqs := make([]core.RunRequest, len(job.Runs))
	for i, r := range job.Runs {
		reqs[i] = core.RunRequest{
			Input:        r.Input,
			Output:       r.Output,
			OutputFormat: r.OutputFormat,
			ConvertDir:   r.ConvertDir,
			Delimiter:    r.Delimiter,
			DryRun:       r.DryRun,
		}
		if r.Lookup != nil {
			reqs[i].Lookup = &core.LookupSpec{
				Path:    r.Lookup.Path,
				Key:     r.Lookup.Key,
				Fields:  r.Lookup.Fields,
				NoCache: r.Lookup.NoCache,
			}
		}
	}
	return reqs
}
