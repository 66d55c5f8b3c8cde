package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/goblinsan/ado-report/pkg/report"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(ticketsCmd)
	addVisibilityFlags(ticketsCmd)
	f := ticketsCmd.Flags()
	f.StringP("search", "s", "", "match the title or the id")
	f.String("client", report.All, "only this client")
	f.String("assignee", report.All, "only this assignee")
	f.String("column", report.All, "only this board column")
	f.String("sort", string(report.SortUpdated), "order: updated, priority, id or title")
	f.Int("page", 1, "page to print")
	f.Int("per-page", report.DefaultPerPage, "tickets per page")
}

func ticketQuery(cmd *cobra.Command) (report.TicketQuery, error) {
	f := cmd.Flags()
	q := report.TicketQuery{Visibility: visibilityFlags(cmd)}
	q.Text, _ = f.GetString("search")
	q.Client, _ = f.GetString("client")
	q.Assignee, _ = f.GetString("assignee")
	q.Column, _ = f.GetString("column")
	q.Page, _ = f.GetInt("page")
	q.PerPage, _ = f.GetInt("per-page")

	sort, _ := f.GetString("sort")
	switch by := report.SortBy(sort); by {
	case report.SortUpdated, report.SortPriority, report.SortID, report.SortTitle:
		q.Sort = by
	default:
		return report.TicketQuery{}, fmt.Errorf("unknown sort %q, use updated, priority, id or title", sort)
	}
	return q, nil
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List the root items with filters, ordering and pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutput(outputFormat); err != nil {
			return err
		}
		q, err := ticketQuery(cmd)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		snap, err := a.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		page := report.Tickets(snap.Roots, q)
		return render(os.Stdout, outputFormat, page, func(w io.Writer) { printTickets(w, page) })
	},
}
