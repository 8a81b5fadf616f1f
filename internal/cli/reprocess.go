package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sightwatch/sightwatch/internal/app"
	"github.com/sightwatch/sightwatch/internal/config"
	"github.com/sightwatch/sightwatch/internal/logging"
	"github.com/sightwatch/sightwatch/internal/store"
)

const reprocessBatchSize = 500

// reprocessCmd re-runs text annotation over every stored report, for when
// keywords, gazetteers or locales have changed since ingestion.
var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-run relevance and location annotation over stored reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if err := logging.Init(cfg.LogDir, cfg.LogLevel); err != nil {
			return err
		}
		defer logging.Close()

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		pipeline, err := app.BuildPipeline(st, cfg)
		if err != nil {
			return err
		}

		var lastID int64
		updated := 0
		for {
			batch, err := st.ReportsAfter(lastID, reprocessBatchSize)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				break
			}
			for i := range batch {
				r := &batch[i]
				lastID = r.ID
				if err := pipeline.Reannotate(r); err != nil {
					logging.Error("Reannotation failed", "report", r.ID, "error", err)
					continue
				}
				updated++
			}
			fmt.Printf("Reprocessed %d reports\n", updated)
		}

		fmt.Printf("Done. %d reports reprocessed.\n", updated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reprocessCmd)
}
