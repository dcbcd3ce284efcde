package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newAssessCommand(app *App) *cobra.Command {
	var (
		maxGB  float64
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "assess <file>",
		Short: "Recommend a chunk size for a file from available memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.Service.AssessWithLimit(cmd.Context(), args[0], maxGB)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			NewUI(cmd.OutOrStdout()).Assessment(a)
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxGB, "max-gb", 0, "file size in GB above which streaming is recommended (default $RESOURCE_MAX_GB)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the assessment as JSON")
	return cmd
}
