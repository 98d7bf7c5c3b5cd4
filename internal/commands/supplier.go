package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/satellite"
)

func newSupplierCommand(opts *rootOptions) *cobra.Command {
	supplierCmd := &cobra.Command{
		Use:   "supplier",
		Short: "Supplier accounts",
	}

	var in satellite.SupplierInput
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a supplier with its ledger account under Suppliers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				in.Name = args[0]
				sup, err := a.sat.AddSupplier(cmd.Context(), in)
				if err != nil {
					return err
				}
				acct, _ := a.ledger.Account(sup.AccountID)
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("supplier: add %s", sup.Name))
				fmt.Fprintf(cmd.OutOrStdout(), "Added supplier %s as account %s (%s)\n", sup.Name, acct.Code, sup.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	addCmd.Flags().StringVar(&in.TaxNumber, "tax-number", "", "tax registration number")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List suppliers with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCODE\tBALANCE\tPHONE")
				for _, s := range a.sat.Suppliers() {
					acct, _ := a.ledger.Account(s.AccountID)
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, acct.Code, acct.Balance.StringFixed(2), s.Phone)
				}
				return tw.Flush()
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a supplier and its ledger account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				if err := a.sat.DeleteSupplier(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("supplier: delete %s", args[0]))
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	supplierCmd.AddCommand(addCmd, listCmd, deleteCmd)
	return supplierCmd
}
