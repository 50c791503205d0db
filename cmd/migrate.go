package cmd

import (
	"context"

	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/reel-places/library/log"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "migrate",
	Long:  `create the recommendation cache table and its index`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadSettingsFromConfig()

		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			log.Logger.Panic("open store", zap.Error(err))
		}
		defer closeStore()

		if err = store.Migrate(ctx); err != nil {
			log.Logger.Panic("migrate", zap.Error(err))
		}
		log.Logger.Info("migrated", zap.String("table", cfg.CacheTable))
	},
}

func init() {
	rootCMD.AddCommand(migrateCMD)
}
