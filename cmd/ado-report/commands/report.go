package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/report"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	addVisibilityFlags(reportCmd)
	reportCmd.Flags().Int("top", report.DefaultTopN, "length of the oldest, stale and most resolved rankings")
	reportCmd.Flags().IntSlice("ids", nil, "restrict the hours summary to these root items")
	reportCmd.Flags().String("from", "", "count invested hours from this date (YYYY-MM-DD)")
	reportCmd.Flags().String("to", "", "count invested hours up to this date, inclusive (YYYY-MM-DD)")
}

func addVisibilityFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("show-new", report.DefaultVisibility().ShowNew, "include new items")
	cmd.Flags().Bool("show-resolved", report.DefaultVisibility().ShowResolved, "include resolved items")
}

func visibilityFlags(cmd *cobra.Command) report.Visibility {
	var v report.Visibility
	v.ShowNew, _ = cmd.Flags().GetBool("show-new")
	v.ShowResolved, _ = cmd.Flags().GetBool("show-resolved")
	return v
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid work item id %q", arg)
	}
	return id, nil
}

// overview is the report command's output.
type overview struct {
	States  []report.Count      `json:"states" yaml:"states"`
	Reports report.Reports      `json:"reports" yaml:"reports"`
	Hours   report.HoursSummary `json:"hours" yaml:"hours"`
}

func buildOverview(snap *engine.Snapshot, opts report.Options, hq report.HoursQuery) overview {
	return overview{
		States:  report.StateDistribution(snap.Roots),
		Reports: report.Build(snap.Roots, opts),
		Hours:   report.Hours(snap.Roots, hq),
	}
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the state distribution, workload and ranking reports",
	Long: `Refresh the snapshot and print the state distribution, assignment coverage,
the assignee by board column matrix, client and type breakdowns, the oldest and
stalest open items, the assignees with most resolved items and an estimated
versus invested hours summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutput(outputFormat); err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}

		top, _ := cmd.Flags().GetInt("top")
		ids, _ := cmd.Flags().GetIntSlice("ids")
		fromFlag, _ := cmd.Flags().GetString("from")
		toFlag, _ := cmd.Flags().GetString("to")
		from, to, err := report.ParseDayRange(fromFlag, toFlag, a.cfg.Location())
		if err != nil {
			return err
		}

		snap, err := a.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		out := buildOverview(snap,
			report.Options{Visibility: visibilityFlags(cmd), Now: time.Now(), TopN: top},
			report.HoursQuery{IDs: ids, From: from, To: to},
		)
		return render(os.Stdout, outputFormat, out, func(w io.Writer) {
			printReports(w, out.States, out.Reports)
			fmt.Fprintln(w)
			printHours(w, out.Hours)
		})
	},
}
