package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/reel-places/internal/web"
	"github.com/Laisky/reel-places/library/log"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `HTTP API for recommendations and nearby places`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runAPI(ctx, loadSettingsFromConfig()); err != nil {
			log.Logger.Panic("run api", zap.Error(err))
		}
	},
}

func runAPI(ctx context.Context, cfg Settings) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err = store.Migrate(ctx); err != nil {
		return err
	}

	recommendSvc, err := newRecommendService(cfg, store)
	if err != nil {
		return err
	}

	opts := []web.Option{web.WithCORSOrigins(cfg.CORSOrigins)}
	nearbySvc, closeNearby, err := newNearbyService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNearby()
	if nearbySvc != nil {
		opts = append(opts, web.WithNearby(nearbySvc))
	}

	srv, err := web.NewServer(recommendSvc, opts...)
	if err != nil {
		return err
	}

	return srv.Run(ctx, cfg.Listen)
}

func init() {
	rootCMD.AddCommand(apiCMD)
}
