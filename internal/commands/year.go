package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newYearCommand(opts *rootOptions) *cobra.Command {
	yearCmd := &cobra.Command{
		Use:   "year",
		Short: "Financial year close",
	}

	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Close the active financial year; the ledger becomes read-only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				rec, err := a.ledger.CloseYear(cmd.Context(), opts.actor)
				if err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("year: close %s", a.ledger.FiscalYear()))
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Closed %s on %s by %s\n", a.ledger.FiscalYear(), rec.CloseDate, rec.ClosedBy)
				if s := rec.Summary; s != nil {
					fmt.Fprintf(out, "  revenue %s  expenses %s  net income %s  entries %d\n",
						s.TotalRevenue.StringFixed(2), s.TotalExpenses.StringFixed(2), s.NetIncome.StringFixed(2), s.EntryCount)
				}
				return nil
			})
		},
	}

	reopenCmd := &cobra.Command{
		Use:   "reopen",
		Short: "Reopen the active financial year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				if err := a.ledger.ReopenYear(cmd.Context()); err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("year: reopen %s", a.ledger.FiscalYear()))
				fmt.Fprintf(cmd.OutOrStdout(), "Reopened %s\n", a.ledger.FiscalYear())
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the active financial year is closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				rec, err := a.ledger.YearStatus(cmd.Context())
				if err != nil {
					return err
				}
				if !rec.IsClosed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is open\n", a.ledger.FiscalYear())
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is closed (%s by %s)\n", a.ledger.FiscalYear(), rec.CloseDate, rec.ClosedBy)
				return nil
			})
		},
	}

	yearCmd.AddCommand(closeCmd, reopenCmd, statusCmd)
	return yearCmd
}
