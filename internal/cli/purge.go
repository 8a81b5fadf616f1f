package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/store"
)

var purgeDays int

// purgeCmd deletes old rows without starting the service
var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete reports and clusters past retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		days := cfg.RetentionDays
		if purgeDays > 0 {
			days = purgeDays
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.PurgeOlderThan(time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d reports older than %d days\n", n, days)
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "override retention_days from config")
	rootCmd.AddCommand(purgeCmd)
}
