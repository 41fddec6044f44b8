// Package app wires configuration, storage, embedding, ingestion, and
// search into one application context.
package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/docvector/docvector/pkg/config"
	"github.com/docvector/docvector/pkg/databases"
	"github.com/docvector/docvector/pkg/embedders"
	"github.com/docvector/docvector/pkg/errdefs"
	"github.com/docvector/docvector/pkg/ingest"
	"github.com/docvector/docvector/pkg/search"
	"github.com/docvector/docvector/pkg/store"
)

// App holds every long-lived handle. One App serves the whole process;
// jobs and requests receive it explicitly instead of reaching for
// globals.
type App struct {
	Config *config.Config

	Store    *store.Store
	Vectors  databases.VectorStore
	Embedder embedders.EmbedderProvider

	Pipeline   *ingest.Pipeline
	Worker     *ingest.Worker
	Reconciler *ingest.Reconciler
	Engine     *search.Engine

	redis *redis.Client
}

// New connects every backend and assembles the service graph.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	vectors, err := databases.NewQdrantStore(&cfg.Qdrant)
	if err != nil {
		st.Close()
		return nil, err
	}

	provider, err := embedders.NewEmbedder(&cfg.Embedding)
	if err != nil {
		st.Close()
		vectors.Close()
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			st.Close()
			vectors.Close()
			provider.Close()
			return nil, errdefs.Wrap(errdefs.CodeConfiguration, "invalid redis url", err)
		}
		opt.PoolSize = cfg.Redis.MaxConnections
		rdb = redis.NewClient(opt)
	}

	embedder, err := embedders.NewCachedEmbedder(provider, cfg.Embedding.CacheSize, rdb, cfg.Embedding.CacheTTL)
	if err != nil {
		st.Close()
		vectors.Close()
		provider.Close()
		return nil, err
	}

	pipeline := ingest.NewPipeline(st, vectors, embedder, cfg)

	app := &App{
		Config:     cfg,
		Store:      st,
		Vectors:    vectors,
		Embedder:   embedder,
		Pipeline:   pipeline,
		Worker:     ingest.NewWorker(st, pipeline, cfg),
		Reconciler: ingest.NewReconciler(st, vectors, pipeline, cfg),
		Engine:     search.NewEngine(vectors, embedder, cfg),
		redis:      rdb,
	}

	slog.Info("application initialized",
		"database", cfg.Database.Driver,
		"embedding_provider", cfg.Embedding.Provider,
		"collection", cfg.Qdrant.Collection,
		"redis_cache", rdb != nil)
	return app, nil
}

// Close releases handles in reverse dependency order.
func (a *App) Close() error {
	var firstErr error
	if err := a.Embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
