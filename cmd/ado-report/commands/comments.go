package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(bugsCmd)
}

var commentsCmd = &cobra.Command{
	Use:   "comments <id>",
	Short: "Print the discussion of a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutput(outputFormat); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		comments, err := a.Comments(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(os.Stdout, outputFormat, comments, func(w io.Writer) { printComments(w, id, comments) })
	},
}

var bugsCmd = &cobra.Command{
	Use:   "bugs <id>",
	Short: "List the bugs linked to a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkOutput(outputFormat); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		bugs, err := a.RelatedBugs(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(os.Stdout, outputFormat, bugs, func(w io.Writer) { printItems(w, bugs) })
	},
}
