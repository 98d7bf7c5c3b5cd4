package commands

import (
	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/report"
)

func newReportCommand(opts *rootOptions) *cobra.Command {
	var codes []string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the trial report of the active financial year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				rows := a.ledger.Report()
				return report.Render(cmd.OutOrStdout(), rows, report.Total(rows, codes))
			})
		},
	}
	cmd.Flags().StringSliceVar(&codes, "total", nil, "root codes summed in the TOTAL line (default 1,2,4,5)")
	return cmd
}
