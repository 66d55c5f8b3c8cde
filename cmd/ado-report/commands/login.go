package commands

import (
	"fmt"
	"os"

	"github.com/goblinsan/ado-report/pkg/credentials"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	loginCmd.Flags().Bool("remember", false, "store the token, organization and project for later runs")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check a personal access token and optionally remember it",
	Long: `Verify that the token, organization and project given by flags, environment
or config file are accepted by Azure DevOps. With --remember they are saved to
the user's config directory and used whenever no token is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		remember, _ := cmd.Flags().GetBool("remember")

		a, err := newApp()
		if err != nil {
			return err
		}
		user, err := a.client.ConnectionData(cmd.Context())
		if err != nil {
			a.forgetRejected(err)
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Logged in as: %s\n", user.DisplayName)

		if !remember {
			return nil
		}
		if a.cfg.Token == "" {
			return fmt.Errorf("--remember needs a personal access token, access tokens are not stored")
		}
		creds := credentials.Credentials{Token: a.cfg.Token, Organization: a.cfg.Organization, Project: a.cfg.Project}
		if err := a.store.Save(creds); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Credentials saved to %s\n", a.store.Path)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the remembered credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentialStore()
		if err != nil {
			return err
		}
		if err := store.Forget(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Stored credentials removed.")
		return nil
	},
}
