package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/baechuer/cityevents/services/crop-service/internal/batch"
	"github.com/baechuer/cityevents/services/crop-service/internal/config"
	"github.com/baechuer/cityevents/services/crop-service/internal/handler"
	"github.com/baechuer/cityevents/services/crop-service/internal/logger"
	"github.com/baechuer/cityevents/services/crop-service/internal/messaging"
	"github.com/baechuer/cityevents/services/crop-service/internal/render"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Run the HTTP API, the update consumer and the batch scheduler.",
	Action: serveCmd,
}

func serveCmd(cc *cli.Context) error {
	logger.Init()
	log := logger.Logger

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("starting crop-service")

	setup, err := loadCroppingSetup(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	// Ensure buckets exist
	if err := b.files.EnsureBuckets(ctx); err != nil {
		log.Error().Err(err).Msg("failed to ensure buckets exist")
	}

	var plans render.PlanStore
	if b.planCache != nil {
		plans = b.planCache
	}
	plansSvc := render.NewService(b.refs, b.dims, b.processor, setup.cropping.Settings, setup.cropping.Tree, plans, log)
	runner := b.runner(cfg, setup, log)

	go batch.NewScheduler(runner, cfg.BatchInterval, log).Run(ctx)

	consumer, err := messaging.NewConsumer(cfg, runner, log)
	if err != nil {
		return err
	}
	defer consumer.Close()
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("consumer stopped")
		}
	}()

	h := handler.NewCropHandler(plansSvc, setup.schema, runner, log)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewRouter(h, readiness(b), cfg),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("crop-service started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down crop-service")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return shutdown(shutdownCtx, srv, log)
}

func readiness(b *backend) handler.ReadyFunc {
	return func(ctx context.Context) error {
		if err := b.pool.Ping(ctx); err != nil {
			return err
		}
		if b.planCache != nil {
			return b.planCache.Ping(ctx)
		}
		return nil
	}
}

func shutdown(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	return nil
}
