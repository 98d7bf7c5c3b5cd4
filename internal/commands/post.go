package commands

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/model"
)

func newPostCommand(opts *rootOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "post <code:amount>...",
		Short: "Adjust account balances directly",
		Long: `Adjust account balances directly. Each argument is CODE:AMOUNT; a
negative amount lowers the balance. Nothing is applied unless every account
exists.`,
		Example: "  schoolledger post 1101:250 4101:-250",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				postings := make([]model.Posting, 0, len(args))
				for _, arg := range args {
					ref, amount, err := parsePosting(arg)
					if err != nil {
						return err
					}
					acct, err := a.resolveAccount(ref)
					if err != nil {
						return err
					}
					postings = append(postings, model.Posting{AccountID: acct.ID, Amount: amount, Description: description})
				}

				if err := a.ledger.PostTransactions(cmd.Context(), postings); err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("post: %s", strings.Join(args, " ")))
				fmt.Fprintf(cmd.OutOrStdout(), "Posted %d adjustments\n", len(postings))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "description stored with each posting")
	return cmd
}

// parsePosting splits "1101:250.50" into its account reference and amount.
func parsePosting(s string) (string, decimal.Decimal, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", decimal.Zero, fmt.Errorf("invalid posting %q: want CODE:AMOUNT", s)
	}
	amount, err := decimal.NewFromString(s[i+1:])
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("invalid amount in %q: %w", s, err)
	}
	return s[:i], amount, nil
}
