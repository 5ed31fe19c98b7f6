package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/auth"
	config "github.com/TrizenVenturesLLP/task-connect-relay/internal/configs"
	httpapi "github.com/TrizenVenturesLLP/task-connect-relay/internal/http"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/metrics"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/ratelimit"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the task marketplace HTTP API on the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log := config.NewLogger(cfg)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := config.OpenStore(ctx, cfg, log, cfg.DatabaseAutoMigrate)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(context.Background()); err != nil {
				log.WithError(err).Warn("store close failed")
			}
		}()

		limiter, closeLimiter, err := newLimiter(cfg)
		if err != nil {
			return err
		}
		defer closeLimiter()

		verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return err
		}

		svcCfg, err := cfg.Services()
		if err != nil {
			return err
		}
		m := metrics.NewMetrics()
		svcs := services.New(store, svcCfg, log, m)

		e := httpapi.NewEcho(log, m)
		httpapi.Register(e, httpapi.NewHandler(svcs), verifier, limiter, log)

		serveErr := make(chan error, 1)
		go func() {
			log.WithFields(logrus.Fields{
				"addr":  cfg.AppURL(),
				"store": cfg.StoreDriver,
			}).Info("HTTP server listening")
			if err := e.Start(cfg.AppURL()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown incomplete")
		}

		log.Info("HTTP server shut down gracefully")
		return nil
	},
}

// newLimiter builds the limiter named by RATE_LIMIT_BACKEND and a func that
// releases it.
func newLimiter(cfg config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimitBackend != "redis" {
		return ratelimit.NewMemoryLimiter(cfg.RateLimit), func() {}, nil
	}

	redisClient, err := config.NewRedisClient(cfg.RedisAddr())
	if err != nil {
		return nil, nil, err
	}
	return ratelimit.NewRedisLimiter(redisClient, cfg.RedisKeyPrefix, cfg.RateLimit), redisClient.Close, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
