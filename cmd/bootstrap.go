package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/baechuer/cityevents/services/crop-service/internal/batch"
	"github.com/baechuer/cityevents/services/crop-service/internal/cache"
	"github.com/baechuer/cityevents/services/crop-service/internal/config"
	"github.com/baechuer/cityevents/services/crop-service/internal/imagemeta"
	"github.com/baechuer/cityevents/services/crop-service/internal/messaging"
	"github.com/baechuer/cityevents/services/crop-service/internal/processing"
	"github.com/baechuer/cityevents/services/crop-service/internal/repository"
	"github.com/baechuer/cityevents/services/crop-service/internal/schema"
	"github.com/baechuer/cityevents/services/crop-service/internal/storage"
)

// croppingSetup is the parsed cropping configuration with the schema it
// was registered in.
type croppingSetup struct {
	cropping *config.Cropping
	schema   *schema.Schema
}

func loadCroppingSetup(cfg *config.Config, log zerolog.Logger) (*croppingSetup, error) {
	cropping, err := config.LoadCropping(cfg.CroppingConfigPaths)
	if err != nil {
		return nil, err
	}
	s, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	s, err = schema.AddVariantsToSchema(s, cropping.Tree, log)
	if err != nil {
		return nil, fmt.Errorf("failed to register crop variants: %w", err)
	}
	return &croppingSetup{cropping: cropping, schema: s}, nil
}

// backend holds the connections shared by the batch and the HTTP server.
type backend struct {
	pool      *pgxpool.Pool
	files     *storage.S3Client
	refs      *repository.ReferenceRepository
	publisher *messaging.Publisher
	planCache *cache.PlanCache // nil unless Redis is enabled
	processor *processing.Processor
	dims      *imagemeta.Source
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	files, err := storage.NewS3Client(cfg, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	publisher, err := messaging.NewPublisher(cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	b := &backend{
		pool:      pool,
		files:     files,
		refs:      repository.NewReferenceRepository(pool),
		publisher: publisher,
	}

	var marker processing.Marker = processing.NewMemoryMarker(cfg.ProcessRequestLimit, cfg.ProcessRequestTTL)
	if cfg.RedisEnabled {
		b.planCache = cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.PlanCacheTTL)
		if err := b.planCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, render plans are resolved uncached")
		}
		marker = cache.NewJobMarker(b.planCache, cfg.ProcessRequestTTL)
	}
	b.processor = processing.NewProcessor(files, publisher, marker, cfg.SiteBaseURL, log)
	b.dims = imagemeta.NewSource(files, b.processor, cfg.ProbeBytes, log)
	return b, nil
}

func (b *backend) runner(cfg *config.Config, setup *croppingSetup, log zerolog.Logger) *batch.Runner {
	return batch.NewRunner(b.refs, setup.schema, setup.cropping.Tree, b.dims, cfg.BatchWorkers, log)
}

func (b *backend) Close() {
	if b.planCache != nil {
		_ = b.planCache.Close()
	}
	b.publisher.Close()
	b.pool.Close()
}
