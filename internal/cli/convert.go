package cli

import (
	"github.com/spf13/cobra"
)

func newConvertCommand(app *App) *cobra.Command {
	var outDir, delimiter string

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Convert a file to canonical CSV",
		Long: `Convert any supported file to CSV in the convert directory, named
<stem>.converted.csv. CSV and Parquet files are already canonical and are
left untouched.`,
		Example: `  $ datacleaner convert report.xlsx
  $ datacleaner convert export.txt --delimiter "|" --convert-dir ./tmp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(cmd.OutOrStdout())

			res, err := app.Service.ConvertWithDelimiter(cmd.Context(), args[0], outDir, delimiter)
			if err != nil {
				return ui.fail(err)
			}
			if !res.Converted {
				ui.Info("%s is already canonical (%s); nothing to convert", res.Path, res.Format)
				return nil
			}
			ui.Success("Converted %s to %s (%d rows, %d columns)", args[0], res.Path, res.Rows, res.Cols)
			ui.assessmentWarnings(res.Assessment)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "convert-dir", "", "directory for converted files (default $CONVERT_DIR)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", `delimiter for .txt and .tsv input, e.g. ";" or "\t"`)
	return cmd
}
