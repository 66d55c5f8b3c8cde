package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pull the work item hierarchy and print what was loaded",
	Long: `Query the root items, expand their hierarchy level by level, roll the line
item hours up into every root and pull the budget sources. Text output prints
the fetch summary; json and yaml print the whole snapshot.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutput(outputFormat); err != nil {
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
		return render(os.Stdout, outputFormat, snap, func(w io.Writer) { printStats(w, snap) })
	},
}
