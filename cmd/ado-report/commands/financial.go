package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/report"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(financialCmd)
	financialCmd.Flags().Int("year", 0, "year of the period (default current year)")
	financialCmd.Flags().Int("month", 0, "month of the period, 1-12 (default current month)")
	financialCmd.Flags().String("search", "", "only clients whose name contains this text")
	financialCmd.Flags().Bool("over-only", false, "only clients over budget")
}

// period resolves the year and month flags against now. Zero means current.
func period(year, month int, now time.Time, loc *time.Location) (report.Period, error) {
	now = now.In(loc)
	p := report.Period{Year: now.Year(), Month: now.Month(), Location: loc}
	if year != 0 {
		p.Year = year
	}
	if month != 0 {
		if month < 1 || month > 12 {
			return report.Period{}, fmt.Errorf("month %d must be between 1 and 12", month)
		}
		p.Month = time.Month(month)
	}
	return p, nil
}

func budgetReport(snap *engine.Snapshot, p report.Period, search string, overOnly bool) report.BudgetReport {
	return report.Budget(snap.Roots, snap.Budgets, p).Filter(search, overOnly)
}

var financialCmd = &cobra.Command{
	Use:     "financial",
	Aliases: []string{"budget"},
	Short:   "Compare the hours logged per client in a month against their budgets",
	Long: `Sum the time entries dated inside the selected month per client and compare
them with the monthly (or total) hours of the client's budget feature. Over
budget clients come first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutput(outputFormat); err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}

		year, _ := cmd.Flags().GetInt("year")
		month, _ := cmd.Flags().GetInt("month")
		search, _ := cmd.Flags().GetString("search")
		overOnly, _ := cmd.Flags().GetBool("over-only")
		p, err := period(year, month, time.Now(), a.cfg.Location())
		if err != nil {
			return err
		}

		snap, err := a.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		rep := budgetReport(snap, p, search, overOnly)
		return render(os.Stdout, outputFormat, rep, func(w io.Writer) { printBudget(w, rep) })
	},
}
