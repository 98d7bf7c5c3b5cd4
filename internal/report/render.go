package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes rows as an indented text tree followed by the total line.
func Render(w io.Writer, rows []Row, total Totals) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tACCOUNT\tDEBIT\tCREDIT\tFROM")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\t%s\n",
			r.Account.Code, strings.Repeat("  ", r.Depth), r.Account.Name,
			r.Debit.StringFixed(2), r.Credit.StringFixed(2), r.Source)
	}
	fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\n", total.Debit.StringFixed(2), total.Credit.StringFixed(2))
	return tw.Flush()
}
