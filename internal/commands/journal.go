package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/schoolpaypro/ledger/internal/journal"
	"github.com/schoolpaypro/ledger/internal/model"
)

func newJournalCommand(opts *rootOptions) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Journal entry operations",
	}
	journalCmd.AddCommand(
		newJournalAddCommand(opts),
		newJournalListCommand(opts),
		newJournalStatusCommand(opts, "approve", model.StatusApproved),
		newJournalStatusCommand(opts, "post", model.StatusPosted),
		newJournalStatusCommand(opts, "reject", model.StatusRejected),
		newJournalExportCommand(opts),
	)
	return journalCmd
}

func newJournalAddCommand(opts *rootOptions) *cobra.Command {
	var (
		description string
		date        string
		status      string
		year        string
		lines       []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a journal entry",
		Example: `  schoolledger journal add -d "September tuition" \
    --line 1103:5000:0 --line 41:0:5000 --status APPROVED`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				e := model.JournalEntry{
					Description: description,
					Status:      model.EntryStatus(strings.ToUpper(status)),
					FiscalYear:  year,
					Date:        time.Now().UTC(),
				}
				if date != "" {
					d, err := time.Parse(time.DateOnly, date)
					if err != nil {
						return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
					}
					e.Date = d
				}
				for _, l := range lines {
					ref, debit, credit, err := parseLine(l)
					if err != nil {
						return err
					}
					acct, err := a.resolveAccount(ref)
					if err != nil {
						return err
					}
					e.Lines = append(e.Lines, model.JournalLine{AccountID: acct.ID, Debit: debit, Credit: credit})
				}

				added, err := a.ledger.RecordEntry(cmd.Context(), e)
				if err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("journal: add %s", added.ID))
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s (%s) debit %s credit %s\n",
					added.ID, added.Status, added.TotalDebit.StringFixed(2), added.TotalCredit.StringFixed(2))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "entry description")
	cmd.Flags().StringVar(&date, "date", "", "entry date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&status, "status", string(model.StatusDraft), "initial status: DRAFT, APPROVED or POSTED")
	cmd.Flags().StringVar(&year, "year", "", "fiscal year tag (default: active year)")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "entry line CODE:DEBIT:CREDIT (repeatable)")
	return cmd
}

func newJournalListCommand(opts *rootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tDEBIT\tCREDIT\tYEAR\tDESCRIPTION")
				for _, e := range a.ledger.Entries() {
					if status != "" && !strings.EqualFold(string(e.Status), status) {
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						e.ID, e.Date.Format(time.DateOnly), e.Status,
						e.TotalDebit.StringFixed(2), e.TotalCredit.StringFixed(2), e.FiscalYear, e.Description)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only entries with this status")
	return cmd
}

func newJournalStatusCommand(opts *rootOptions, verb string, status model.EntryStatus) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <entry-id>",
		Short: fmt.Sprintf("Move an entry to %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				e, err := a.ledger.SetEntryStatus(cmd.Context(), args[0], status)
				if err != nil {
					return err
				}
				a.snapshot(cmd.ErrOrStderr(), fmt.Sprintf("journal: %s %s", verb, e.ID))
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", e.ID, e.Status)
				return nil
			})
		},
	}
}

func newJournalExportCommand(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write journal entries as CSV, one row per line",
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
				return journal.WriteEntries(w, a.ledger.Entries())
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// parseLine splits "1101:100:0" into account reference, debit and credit.
func parseLine(s string) (string, decimal.Decimal, decimal.Decimal, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", decimal.Zero, decimal.Zero, fmt.Errorf("invalid line %q: want CODE:DEBIT:CREDIT", s)
	}
	amounts := make([]decimal.Decimal, 2)
	for i, p := range parts[1:] {
		if p == "" {
			continue
		}
		d, err := decimal.NewFromString(p)
		if err != nil {
			return "", decimal.Zero, decimal.Zero, fmt.Errorf("invalid amount in line %q: %w", s, err)
		}
		amounts[i] = d
	}
	return parts[0], amounts[0], amounts[1], nil
}
