package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/traduceo/translation-engine/cmd/translation-api/handlers"
	"github.com/traduceo/translation-engine/internal/blob"
	"github.com/traduceo/translation-engine/internal/cache"
	"github.com/traduceo/translation-engine/internal/config"
	"github.com/traduceo/translation-engine/internal/mtengine"
	"github.com/traduceo/translation-engine/internal/observability"
	"github.com/traduceo/translation-engine/internal/ocr"
	"github.com/traduceo/translation-engine/internal/pipeline"
	"github.com/traduceo/translation-engine/internal/prepare"
	"github.com/traduceo/translation-engine/internal/queue"
	"github.com/traduceo/translation-engine/internal/render"
	"github.com/traduceo/translation-engine/internal/storage"
)

// application holds the wired dependencies shared by the API handlers.
type application struct {
	db        *sql.DB
	repos     *storage.Repositories
	sources   blob.Store
	artifacts blob.Store
	cache     cache.Client
	enqueuer  handlers.Enqueuer
	publisher *queue.Publisher
	pipeline  *pipeline.Pipeline
}

// newApplication wires the storage, blob, cache, queue and pipeline layers
// from configuration. Optional backends (object store, Redis, AMQP) are
// left nil when unconfigured.
func newApplication(ctx context.Context, logger *observability.Logger, cfg *config.Config) (*application, error) {
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

	app := &application{
		db:    db,
		repos: storage.NewRepositories(db),
	}

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
		app.sources = store
		app.artifacts = store
	} else {
		logger.Warn().Msg("No object store configured, using in-memory storage")
		app.sources = blob.NewMemoryStore()
	}

	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(redisURL(cfg.Cache.Redis))
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, progress cache disabled")
		} else {
			app.cache = client
		}
	}

	if cfg.Queue.URL != "" {
		publisher, err := queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Queue)
		if err != nil {
			logger.Warn().Err(err).Msg("Queue unavailable, jobs will run in-process")
		} else {
			app.publisher = publisher
			app.enqueuer = publisher
		}
	}

	app.pipeline = pipeline.New(pipeline.Deps{
		Jobs:       app.repos.Jobs,
		Glossaries: app.repos.Glossaries,
		Sources:    app.sources,
		Artifacts:  app.artifacts,
		Cache:      app.cache,
		Preparer:   prepare.NewClient(cfg.Services.Prepare.URL, cfg.Services.Prepare.Token, cfg.Services.Prepare.Timeout),
		Recognizer: ocr.Chain{
			ocr.NewServiceClient(cfg.Services.OCR.URL, cfg.Services.OCR.Token, cfg.Services.OCR.Timeout),
			ocr.NewVisionClient(cfg.Services.OCR.VisionBaseURL, cfg.Services.OCR.VisionAPIKey, cfg.Services.OCR.Timeout),
		},
		Translator: mtengine.NewTranslator(cfg.Engines, logger),
		Renderer:   render.NewClient(cfg.Services.Render, logger),
		Logger:     logger,
	})

	return app, nil
}

// Close releases the application's connections.
func (a *application) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	a.db.Close()
}

// redisURL builds a connection URL from the Redis settings.
func redisURL(cfg config.RedisConfig) string {
	if cfg.Password != "" {
		return fmt.Sprintf("redis://:%s@%s/%d", cfg.Password, cfg.Addr, cfg.DB)
	}
	return fmt.Sprintf("redis://%s/%d", cfg.Addr, cfg.DB)
}
