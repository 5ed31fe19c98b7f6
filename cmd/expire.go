package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	config "github.com/TrizenVenturesLLP/task-connect-relay/internal/configs"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/metrics"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

var expireOnce bool

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire open tasks past their deadline",
	Long:  "Moves open tasks whose expiresAt has passed to expired, once or every EXPIRY_INTERVAL_SECONDS",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log := config.NewLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := config.OpenStore(ctx, cfg, log, false)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				log.WithError(err).Warn("store close failed")
			}
		}()

		svcCfg, err := cfg.Services()
		if err != nil {
			return err
		}
		svcs := services.New(store, svcCfg, log, metrics.NewMetrics())

		if expireOnce {
			n, err := svcs.Expiry.SweepOnce(ctx)
			if err != nil {
				return err
			}
			log.WithField("expired", n).Info("expiry sweep done")
			return nil
		}

		log.WithField("interval", cfg.ExpiryInterval()).Info("expiry loop started")
		return svcs.Expiry.Run(ctx, cfg.ExpiryInterval())
	},
}

func init() {
	expireCmd.Flags().BoolVar(&expireOnce, "once", false, "run a single sweep and exit")
	rootCmd.AddCommand(expireCmd)
}
