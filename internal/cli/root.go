// Package cli implements the datacleaner command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/core"
)

// App carries what the commands share. Main builds it once.
type App struct {
	Config  *config.Config
	Service *core.Service
	Version string
}

// reportedError is an error that has already been printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// NewRootCommand builds the command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:     "datacleaner",
		Short:   "Convert, assess and enrich tabular files",
		Version: app.Version,
		Long: `Convert CSV, Excel, Parquet, JSON and delimited text files to a canonical
CSV, normalize their column names, enrich them from a lookup table, and write
the result as CSV, Parquet or a PostgreSQL table.`,
		Example: `  # Clean a spreadsheet and enrich it from a lookup file
  $ datacleaner run -i sample.xlsx --lookup users.csv --lookup-key Email --lookup-fields User_Type,Region

  # Convert a pipe-delimited export to CSV
  $ datacleaner convert export.txt --delimiter "|"

  # Run every entry of a job file
  $ datacleaner run --job nightly.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newConvertCommand(app),
		newAssessCommand(app),
		newRunCommand(app),
		newCacheCommand(app),
		newServeCommand(app),
	)
	return root
}

// Execute runs the command line with args. Errors not already printed by a
// command are printed to stderr. The returned error means exit status 1.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCommand(app)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	var reported *reportedError
	if err != nil && !errors.As(err, &reported) {
		NewUI(root.ErrOrStderr()).Error("%v", err)
		root.PrintErrf("Run '%s --help' for usage.\n", root.CommandPath())
	}
	return err
}
