package main

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/smartcache/internal/observability"
	"github.com/hrygo/smartcache/internal/profile"
	"github.com/hrygo/smartcache/plugin/ai"
	"github.com/hrygo/smartcache/plugin/ai/category"
	"github.com/hrygo/smartcache/plugin/ai/smartcache"
	"github.com/hrygo/smartcache/plugin/ai/vector"
	"github.com/hrygo/smartcache/store"
	"github.com/hrygo/smartcache/store/db"
)

// engine bundles the cache with the resources it owns.
type engine struct {
	*smartcache.Service
	store  *store.Store
	logger *slog.Logger
}

// Close stops the cache and releases the interaction store.
func (e *engine) Close() {
	e.Service.Close()
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("failed to close interaction store", slog.String("error", err.Error()))
		}
	}
}

// buildEngine wires profile, providers, similarity backend and categorizer
// into a ready cache. env resolves provider credentials.
func buildEngine(ctx context.Context, p *profile.Profile, env ai.EnvLookup) (*engine, error) {
	logger := observability.NewLogger(p.Debug)

	aiCfg, err := ai.NewConfigFromProfile(p, env)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(&aiCfg.Embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedder")
	}

	caller, err := smartcache.NewLLMCaller(&aiCfg.LLM)
	if err != nil {
		return nil, err
	}

	categorizer, err := category.New(p.CategorizerMode, p.CategoryLabels, caller.LLM(), embedder, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create categorizer")
	}

	e := &engine{logger: logger}
	var backend vector.Backend
	if p.Driver == "memory" {
		backend = vector.NewMemoryBackend(embedder)
	} else {
		driver, err := db.NewDBDriver(p)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create db driver")
		}
		e.store = store.New(driver, p)
		if err := e.store.Migrate(ctx); err != nil {
			_ = e.store.Close()
			return nil, errors.Wrap(err, "failed to migrate")
		}
		backend = vector.NewStoreBackend(e.store, embedder)
	}

	svc, err := smartcache.NewService(smartcache.ConfigFromProfile(p), smartcache.Dependencies{
		Backend:     backend,
		LLM:         caller,
		Categorizer: categorizer,
		Labels:      p.CategoryLabels,
		Logger:      logger,
	})
	if err != nil {
		if e.store != nil {
			_ = e.store.Close()
		}
		return nil, err
	}
	e.Service = svc

	logger.Debug("smartcache engine ready",
		slog.String("driver", p.Driver),
		slog.String("llm", caller.Name()),
		slog.String("embedding", embedder.Model()),
		slog.String("categorizer", p.CategorizerMode),
	)
	return e, nil
}

func newEmbedder(cfg *ai.EmbeddingConfig) (ai.EmbeddingService, error) {
	if cfg.Provider == ai.ProviderLocal {
		return ai.NewHashEmbeddingService(cfg.Dimensions), nil
	}
	return ai.NewEmbeddingService(cfg)
}
