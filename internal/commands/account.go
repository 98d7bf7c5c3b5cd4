package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/accounts"
	"github.com/schoolpaypro/ledger/internal/model"
	"github.com/schoolpaypro/ledger/internal/report"
)

func newAccountCommand(opts *rootOptions) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Chart of accounts operations",
	}
	accountCmd.AddCommand(
		newAccountListCommand(opts),
		newAccountTreeCommand(opts),
		newAccountAddCommand(opts),
		newAccountUpdateCommand(opts),
		newAccountDeleteCommand(opts),
		newAccountNextCodeCommand(opts),
		newAccountExportCommand(opts),
		newAccountImportCommand(opts),
	)
	return accountCmd
}

func newAccountListCommand(opts *rootOptions) *cobra.Command {
	var accountType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts ordered by code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tBALANCE\tID")
				for _, acct := range a.ledger.Accounts() {
					if accountType != "" && string(acct.Type) != accountType {
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", acct.Code, acct.Name, acct.Type, acct.Balance.StringFixed(2), acct.ID)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&accountType, "type", "", "only accounts of this type")
	return cmd
}

func newAccountTreeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the chart as a tree with stored balance rollups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				rows := report.Aggregate(a.ledger.Accounts(), nil, report.Options{})
				return report.Render(cmd.OutOrStdout(), rows, report.Total(rows, nil))
			})
		},
	}
}

func newAccountAddCommand(opts *rootOptions) *cobra.Command {
	var (
		parent, code, accountType, description string
		isMain                                 bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an account; without --code the next child code of --parent is used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				acct := model.Account{
					Code:        code,
					Name:        args[0],
					Type:        model.AccountType(accountType),
					IsMain:      isMain,
					Description: description,
				}
				acct.Level = model.LevelLeaf
				if isMain {
					acct.Level = model.LevelBranch
				}

				var (
					created model.Account
					err     error
				)
				switch {
				case parent != "":
					p, rerr := a.resolveAccount(parent)
					if rerr != nil {
						return rerr
					}
					if code == "" {
						created, err = a.ledger.CreateChild(cmd.Context(), p.ID, acct)
						break
					}
					acct.ParentID = p.ID
					if acct.Type == "" {
						acct.Type = p.Type
					}
					created, err = a.ledger.AddAccount(cmd.Context(), acct)
				case code == "":
					return fmt.Errorf("either --parent or --code is required")
				default:
					created, err = a.ledger.AddAccount(cmd.Context(), acct)
				}
				if err != nil {
					return err
				}

				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("account: add %s %s", created.Code, created.Name))
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", created.Code, created.Name, created.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent account code or id")
	cmd.Flags().StringVar(&code, "code", "", "explicit account code")
	cmd.Flags().StringVar(&accountType, "type", "", "account type (default: parent's type)")
	cmd.Flags().StringVar(&description, "description", "", "account description")
	cmd.Flags().BoolVar(&isMain, "main", false, "folder account that holds children")
	return cmd
}

func newAccountUpdateCommand(opts *rootOptions) *cobra.Command {
	var (
		name, code, accountType, parent, description string
		isMain                                       bool
	)

	cmd := &cobra.Command{
		Use:   "update <code|id>",
		Short: "Update account fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				acct, err := a.resolveAccount(args[0])
				if err != nil {
					return err
				}

				var p accounts.Patch
				flags := cmd.Flags()
				if flags.Changed("name") {
					p.Name = &name
				}
				if flags.Changed("code") {
					p.Code = &code
				}
				if flags.Changed("type") {
					t := model.AccountType(accountType)
					p.Type = &t
				}
				if flags.Changed("description") {
					p.Description = &description
				}
				if flags.Changed("main") {
					p.IsMain = &isMain
				}
				if flags.Changed("parent") {
					np, err := a.resolveAccount(parent)
					if err != nil {
						return err
					}
					p.ParentID = &np.ID
				}

				updated, err := a.ledger.UpdateAccount(cmd.Context(), acct.ID, p)
				if err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("account: update %s", updated.Code))
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", updated.Code, updated.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&code, "code", "", "new code")
	cmd.Flags().StringVar(&accountType, "type", "", "new type")
	cmd.Flags().StringVar(&parent, "parent", "", "new parent code or id")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().BoolVar(&isMain, "main", false, "folder account flag")
	return cmd
}

func newAccountDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code|id>",
		Short: "Delete a leaf account with zero balance and no postings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				acct, err := a.resolveAccount(args[0])
				if err != nil {
					return err
				}
				if err := a.ledger.DeleteAccount(cmd.Context(), acct.ID); err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("account: delete %s", acct.Code))
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", acct.Code, acct.Name)
				return nil
			})
		},
	}
}

func newAccountNextCodeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "next-code <parent code|id>",
		Short: "Print the code the next child of an account would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				p, err := a.resolveAccount(args[0])
				if err != nil {
					return err
				}
				code, err := a.ledger.NextCode(p.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), code)
				return nil
			})
		},
	}
}

func newAccountExportCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chart of accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				w := cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				return accounts.WriteAccounts(w, a.ledger.Accounts())
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newAccountImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Add accounts from a CSV export; codes already present are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			rows, err := accounts.ReadAccounts(f)
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(a *app) error {
				added, skipped, err := a.ledger.ImportAccounts(cmd.Context(), rows)
				if err != nil {
					return err
				}
				if added > 0 {
					a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("account: import %d accounts", added))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts, skipped %d existing codes\n", added, skipped)
				return nil
			})
		},
	}
}
