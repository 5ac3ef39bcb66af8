package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/traduceo/translation-engine/internal/blob"
	"github.com/traduceo/translation-engine/internal/cache"
	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/mtengine"
	"github.com/traduceo/translation-engine/internal/observability"
	"github.com/traduceo/translation-engine/internal/ocr"
	"github.com/traduceo/translation-engine/internal/pipeline"
	"github.com/traduceo/translation-engine/internal/prepare"
	"github.com/traduceo/translation-engine/internal/render"
	"github.com/traduceo/translation-engine/internal/storage"
)

// runtime holds the wired dependencies for a worker process.
type runtime struct {
	db       *sql.DB
	repos    *storage.Repositories
	cache    cache.Client
	pipeline *pipeline.Pipeline
}

// buildRuntime wires the storage, blob, cache and pipeline layers from
// configuration. Optional backends are left nil when unconfigured.
func buildRuntime(ctx context.Context, logger *observability.Logger, cfg *config.Config) (*runtime, error) {
	opts := storage.OpenOptions{
		MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	}
	if cfg.Database.Driver == "sqlite" {
		opts = storage.OpenOptions{MaxOpenConns: cfg.Database.SQLite.MaxOpenConns}
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.DatabaseDSN(), opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := storage.Bootstrap(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	rt := &runtime{
		db:    db,
		repos: storage.NewRepositories(db),
	}

	var sources blob.Store
	var artifacts blob.Store
	if cfg.Blob.Endpoint != "" {
		store, err := blob.NewS3Store(ctx, blob.S3Options{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect object store: %w", err)
		}
		sources = store
		artifacts = store
	} else {
		logger.Warn().Msg("No object store configured, artifacts will be stored inline")
		sources = blob.NewMemoryStore()
	}

	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(redisURL(cfg.Cache.Redis))
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, progress cache disabled")
		} else {
			rt.cache = client
		}
	}

	rt.pipeline = pipeline.New(pipeline.Deps{
		Jobs:       rt.repos.Jobs,
		Glossaries: rt.repos.Glossaries,
		Sources:    sources,
		Artifacts:  artifacts,
		Cache:      rt.cache,
		Preparer:   prepare.NewClient(cfg.Services.Prepare.URL, cfg.Services.Prepare.Token, cfg.Services.Prepare.Timeout),
		Recognizer: ocr.Chain{
			ocr.NewServiceClient(cfg.Services.OCR.URL, cfg.Services.OCR.Token, cfg.Services.OCR.Timeout),
			ocr.NewVisionClient(cfg.Services.OCR.VisionBaseURL, cfg.Services.OCR.VisionAPIKey, cfg.Services.OCR.Timeout),
		},
		Translator: mtengine.NewTranslator(cfg.Engines, logger),
		Renderer:   render.NewClient(cfg.Services.Render, logger),
		Logger:     logger,
	})

	return rt, nil
}

// Close releases the runtime's connections.
func (rt *runtime) Close() {
	if rt.cache != nil {
		rt.cache.Close()
	}
	rt.db.Close()
}

// redisURL builds a connection URL from the Redis settings.
func redisURL(cfg config.RedisConfig) string {
	if cfg.Password != "" {
		return fmt.Sprintf("redis://:%s@%s/%d", cfg.Password, cfg.Addr, cfg.DB)
	}
	return fmt.Sprintf("redis://%s/%d", cfg.Addr, cfg.DB)
}
