package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/report"
	"github.com/goblinsan/ado-report/pkg/types"
	"gopkg.in/yaml.v3"
)

var (
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func checkOutput(format string) error {
	switch format {
	case "text", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q, use text, json or yaml", format)
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		text(w)
		return nil
	}
	return checkOutput(format)
}

// table aligns tab separated cells. tabwriter counts colour escapes as
// width, so coloured text only goes in the last cell of a row.
func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func hours(h float64) string {
	return fmt.Sprintf("%.1fh", h)
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func printStats(w io.Writer, snap *engine.Snapshot) {
	fmt.Fprintln(w, snap.Stats.String())
	if len(snap.Stats.LostIDs) > 0 {
		fmt.Fprintf(w, "%s could not load %v\n", yellow("Warning:"), snap.Stats.LostIDs)
	}
	fmt.Fprintf(w, "Fetched at %s in %s\n", snap.FetchedAt.Format(time.RFC3339), snap.Stats.Duration.Round(time.Millisecond))
}

func printCounts(w io.Writer, title string, counts []report.Count) {
	fmt.Fprintln(w, bold(title))
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw := table(w)
	for _, c := range counts {
		fmt.Fprintf(tw, "  %s\t%d\n", c.Label, c.Count)
	}
	tw.Flush()
}

func printAged(w io.Writer, title string, items []report.AgedItem) {
	fmt.Fprintln(w, bold(title))
	if len(items) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	tw := table(w)
	for _, it := range items {
		fmt.Fprintf(tw, "  #%d\t%s\t%s\t%d days\n", it.ID, it.Title, day(it.Date), it.Days)
	}
	tw.Flush()
}

func printReports(w io.Writer, states []report.Count, r report.Reports) {
	printCounts(w, "States", states)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %d open, %d resolved\n", bold("Tickets:"), r.TotalOpen, r.TotalResolved)
	coverage := fmt.Sprintf("%.0f%%", r.Coverage)
	switch {
	case r.Coverage >= 90:
		coverage = green(coverage)
	case r.Coverage < 50:
		coverage = red(coverage)
	}
	fmt.Fprintf(w, "%s %d assigned, %d unassigned (%s)\n\n", bold("Assignment:"), r.Assigned, r.Unassigned, coverage)

	fmt.Fprintln(w, bold("Workload"))
	tw := table(w)
	fmt.Fprintf(tw, "  Assignee\t%s\tTotal\n", strings.Join(r.Columns, "\t"))
	for _, p := range r.People {
		cells := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			cells[i] = fmt.Sprint(p.Columns[col])
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", p.Name, strings.Join(cells, "\t"), p.Total)
	}
	tw.Flush()
	fmt.Fprintln(w)

	printCounts(w, "Clients", r.Clients)
	fmt.Fprintln(w)
	printCounts(w, "Types", r.Types)
	fmt.Fprintln(w)
	printAged(w, "Oldest", r.Oldest)
	fmt.Fprintln(w)
	printAged(w, "Stale", r.Stale)
	fmt.Fprintln(w)
	printCounts(w, "Most resolved", r.TopResolved)
}

func printHours(w io.Writer, s report.HoursSummary) {
	label := "Hours"
	if s.Ranged {
		label = "Hours (in range)"
	}
	fmt.Fprintf(w, "%s %d items, %s estimated, %s invested\n", bold(label+":"), s.Items, hours(s.Estimated), hours(s.Invested))
}

func printBudget(w io.Writer, r report.BudgetReport) {
	fmt.Fprintf(w, "%s %d-%02d\n", bold("Budget"), r.Period.Year, int(r.Period.Month))
	if len(r.Lines) == 0 {
		fmt.Fprintln(w, "  (no hours logged)")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "  Client\tActual\tBudget\tUsed\tTickets\tStatus")
	for _, l := range r.Lines {
		budget, used := "-", "-"
		if l.BudgetHours > 0 {
			budget = hours(l.BudgetHours)
			used = fmt.Sprintf("%.0f%%", l.PercentUsed)
		}
		status := string(l.Status)
		switch l.Status {
		case report.StatusOver:
			status = red(fmt.Sprintf("over by %s", hours(l.Excess())))
		case report.StatusWarning:
			status = yellow(status)
		case report.StatusOK:
			status = green(status)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%d\t%s\n", l.Client, hours(l.ActualHours), budget, used, l.TicketCount, status)
	}
	tw.Flush()
	fmt.Fprintf(w, "Total: %s\n", hours(r.TotalActual))
}

func printTickets(w io.Writer, p report.TicketPage) {
	if p.Total == 0 {
		fmt.Fprintln(w, "No tickets match.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tColumn\tAssignee\tClient\tUpdated\tHours\tTitle")
	for _, t := range p.Tickets {
		title := t.Title
		if t.Class == report.ClassNew {
			title = yellow(title)
		} else if t.Class == report.ClassResolved {
			title = green(title)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Column, t.Assignee, t.Client, day(t.ChangedDate), hours(t.InvestedHours), title)
	}
	tw.Flush()
	fmt.Fprintf(w, "Page %d of %d (%d tickets)\n", p.Page, p.TotalPages, p.Total)
}

func printComments(w io.Writer, id int, comments []types.Comment) {
	if len(comments) == 0 {
		fmt.Fprintf(w, "No comments on #%d.\n", id)
		return
	}
	for _, c := range comments {
		fmt.Fprintf(w, "%s %s\n", bold(c.CreatedBy.DisplayName), day(c.CreatedDate))
		fmt.Fprintf(w, "%s\n\n", strings.TrimSpace(c.Text))
	}
}

func printItems(w io.Writer, items []types.WorkItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "None.")
		return
	}
	tw := table(w)
	fmt.Fprintln(tw, "ID\tTitle\tState\tAssignee")
	for _, it := range items {
		who, _ := it.AssignedTo()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.ID, it.Title(), it.State(), who.DisplayName)
	}
	tw.Flush()
}
