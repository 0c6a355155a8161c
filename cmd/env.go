package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/attic-market/appraisal/internal/cache"
	"github.com/attic-market/appraisal/internal/experts"
	"github.com/attic-market/appraisal/internal/kv"
	"github.com/attic-market/appraisal/internal/pipeline"
	"github.com/attic-market/appraisal/internal/registry"
	"github.com/attic-market/appraisal/internal/resilience"
	"github.com/attic-market/appraisal/internal/sources"
	"github.com/attic-market/appraisal/pkg/marketbay"
)

// appEnv holds the initialized cache backend, roster, and evaluator
// shared by the evaluate/serve commands.
type appEnv struct {
	Backend   kv.Backend
	Cache     *cache.Store
	Roster    *registry.Roster
	Evaluator *pipeline.Evaluator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Backend != nil {
		_ = e.Backend.Close()
	}
}

// initBackend opens the configured cache backend and runs its migration.
func initBackend(ctx context.Context) (kv.Backend, error) {
	var backend kv.Backend
	var err error

	switch cfg.Cache.Backend {
	case "memory":
		backend = kv.NewMemory()
	case "sqlite":
		backend, err = kv.NewSQLite(cfg.Cache.Path)
	case "postgres":
		backend, err = kv.NewPostgres(ctx, cfg.Cache.DatabaseURL)
	case "redis":
		backend, err = kv.NewRedis(ctx, cfg.Cache.RedisAddr, "", cfg.Cache.RedisDB)
	default:
		return nil, eris.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "open %s cache backend", cfg.Cache.Backend)
	}

	if err := backend.Migrate(ctx); err != nil {
		_ = backend.Close()
		return nil, eris.Wrap(err, "migrate cache backend")
	}

	zap.L().Debug("cache backend ready", zap.String("backend", cfg.Cache.Backend))
	return backend, nil
}

// initEnv opens the cache, loads the roster, and builds an Evaluator
// with one adapter registered per roster entry. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	backend, err := initBackend(ctx)
	if err != nil {
		return nil, err
	}
	store := cache.New(backend)

	roster, err := registry.Load(cfg.Roster.Path)
	if err != nil {
		_ = backend.Close()
		return nil, eris.Wrap(err, "load roster")
	}

	ev := pipeline.New(roster, store, pipeline.Config{
		PartialOnTimeout: cfg.Pipeline.PartialOnTimeout,
	})

	for _, entry := range roster.Experts {
		ev.RegisterExpert(experts.NewClaude(entry.Name, experts.ClaudeConfig{
			APIKey: cfg.Anthropic.Key,
			Models: cfg.Anthropic.Models,
			Retry:  resilience.DefaultRetryConfig(),
		}))
	}

	if len(roster.PriceSources) > 0 {
		client := marketbay.NewClient(cfg.MarketBay.Key,
			marketbay.WithBaseURL(cfg.MarketBay.BaseURL),
			marketbay.WithRateLimit(cfg.MarketBay.RateLimit, int(cfg.MarketBay.RateLimit)),
		)
		for _, entry := range roster.PriceSources {
			ev.RegisterPriceSource(sources.NewMarketBay(entry.Name, client))
		}
	}

	zap.L().Info("evaluator ready",
		zap.Int("experts", len(roster.Experts)),
		zap.Int("price_sources", len(roster.PriceSources)),
	)

	return &appEnv{
		Backend:   backend,
		Cache:     store,
		Roster:    roster,
		Evaluator: ev,
	}, nil
}
