package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Display the Azure DevOps identity behind the token",
	Long:  `Display the Azure DevOps user the configured or remembered token authenticates as.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		user, err := a.client.ConnectionData(cmd.Context())
		if err != nil {
			a.forgetRejected(err)
			return err
		}

		fmt.Fprintf(os.Stdout, "Logged in as: %s\n", user.DisplayName)
		if user.UniqueName != "" {
			fmt.Fprintf(os.Stdout, "Account: %s\n", user.UniqueName)
		}
		fmt.Fprintf(os.Stdout, "Organization: %s\n", a.cfg.Organization)
		fmt.Fprintf(os.Stdout, "Project: %s\n", a.cfg.Project)
		if a.remembered {
			fmt.Fprintf(os.Stdout, "Credentials: %s\n", a.store.Path)
		}
		return nil
	},
}
