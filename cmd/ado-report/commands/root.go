package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goblinsan/ado-report/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	outputFormat string
	rootCmd      = &cobra.Command{
		Use:   "ado-report",
		Short: "Time tracking and budget reports over Azure DevOps work items",
		Long: `ado-report pulls the support work items of an Azure DevOps project,
rolls the hours logged on line items up into every backlog item, and
prints or serves workload, ticket and budget-vs-actual reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ado-report.yaml)")
	flags.StringVarP(&outputFormat, "output", "o", "text", "output format: text, json or yaml")
	flags.String(config.KeyToken, "", "Azure DevOps personal access token")
	flags.String(config.KeyOrganization, "", "Azure DevOps organization")
	flags.String(config.KeyProject, "", "Azure DevOps project")
	flags.String(config.KeyBaseURL, "", "Azure DevOps base URL (default https://dev.azure.com)")
	flags.String(config.KeyLogLevel, "", "log level: debug, info, warn or error")
	flags.String(config.KeyLogFormat, "", "log format: console or json")
	flags.String(config.KeyLogFile, "", "write logs to a rotated file instead of stderr")

	for _, key := range []string{
		config.KeyToken, config.KeyOrganization, config.KeyProject, config.KeyBaseURL,
		config.KeyLogLevel, config.KeyLogFormat, config.KeyLogFile,
	} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		// Search config in home directory with name ".ado-report" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ado-report")
	}

	// ADO_REPORT_BATCH_SIZE sets batch-size
	viper.SetEnvPrefix("ADO_REPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
