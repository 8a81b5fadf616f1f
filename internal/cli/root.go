// Package cli defines the command-line surface of the service.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	dryRun  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sightwatch",
	Short: "Sightwatch - community sighting correlation service",
	Long: `Sightwatch collects short community reports of enforcement activity
from multiple platforms, filters them for relevance, resolves where they
happened, and correlates independent reports into corroborated incident
alerts.

A single uncorroborated post never produces an alert; corroboration from
independent sources (or a pre-vetted platform) does.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sightwatch v0.3.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sightwatch.yaml, then $HOME/.sightwatch/config.yaml)")
	rootCmd.PersistentFlags().Bool("dry-run", false, "process everything but suppress notifications")
	_ = viper.BindPFlag("dry_run", rootCmd.PersistentFlags().Lookup("dry-run"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.sightwatch")
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("sightwatch")
	}

	// Environment variables matching SIGHTWATCH_* override the file.
	viper.SetEnvPrefix("SIGHTWATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
