package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/satellite"
)

func newTreasuryCommand(opts *rootOptions) *cobra.Command {
	treasuryCmd := &cobra.Command{
		Use:   "treasury",
		Short: "Bank accounts and cash safes",
	}

	var in satellite.TreasuryInput
	var kind string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a bank account or cash safe with its ledger account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				in.Name = args[0]
				in.Kind = model.TreasuryKind(kind)
				t, err := a.sat.AddTreasury(cmd.Context(), in)
				if err != nil {
					return err
				}
				acct, _ := a.ledger.Account(t.AccountID)
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("treasury: add %s", t.Name))
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s as account %s (%s)\n", t.Kind, t.Name, acct.Code, t.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&kind, "kind", string(model.TreasuryBank), "bank or cash")
	addCmd.Flags().StringVar(&in.BankName, "bank", "", "bank name")
	addCmd.Flags().StringVar(&in.AccountNumber, "number", "", "bank account number")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List treasury accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tKIND\tNAME\tCODE\tBALANCE")
				for _, t := range a.sat.Treasury() {
					acct, _ := a.ledger.Account(t.AccountID)
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Kind, t.Name, acct.Code, acct.Balance.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a treasury account and its ledger account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				if err := a.sat.DeleteTreasury(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("treasury: delete %s", args[0]))
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	treasuryCmd.AddCommand(addCmd, listCmd, deleteCmd)
	return treasuryCmd
}
