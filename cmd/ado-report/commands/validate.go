package commands

import (
	"fmt"
	"os"

	"github.com/goblinsan/ado-report/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without contacting Azure DevOps",
	Long: `Validate the resolved configuration (flags, environment, config file and
remembered credentials). Checks required settings, limits, the time zone, the
refresh schedule and the logging options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := credentialStore()
		if err != nil {
			return err
		}

		errs := validateConfig(viper.GetViper(), store)
		if len(errs) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed with %d error(s):\n", len(errs))
			for i, e := range errs {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, e)
			}
			os.Exit(1)
		}

		fmt.Println("Configuration is valid.")
		return nil
	},
}

func validateConfig(v *viper.Viper, store credentials.Store) []string {
	cfg, _, err := loadConfig(v, store)
	if err != nil {
		return []string{err.Error()}
	}
	return cfg.Validate()
}
