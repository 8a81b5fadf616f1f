package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sightwatch/sightwatch/internal/app"
	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/logging"
)

// runCmd starts the service
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start collecting, correlating and alerting",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		if err := logging.Init(cfg.LogDir, cfg.LogLevel); err != nil {
			return err
		}
		defer logging.Close()

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
