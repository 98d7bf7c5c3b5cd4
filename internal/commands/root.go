package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/buildinfo"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dir   string
	actor string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "schoolledger",
		Short:   "School chart of accounts and general ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "ledger directory")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", defaultActor(), "name recorded in the audit log")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountCommand(opts),
		newPostCommand(opts),
		newJournalCommand(opts),
		newTreasuryCommand(opts),
		newSupplierCommand(opts),
		newYearCommand(opts),
		newReportCommand(opts),
		newServeCommand(opts),
		newTokenCommand(opts),
	)

	return rootCmd
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
