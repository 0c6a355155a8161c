// Package pipeline orchestrates one appraisal: concurrent expert fan-out,
// consensus, category-driven price-source fan-out, and price aggregation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/attic-market/appraisal/internal/cache"
	"github.com/attic-market/appraisal/internal/consensus"
	"github.com/attic-market/appraisal/internal/experts"
	"github.com/attic-market/appraisal/internal/model"
	"github.com/attic-market/appraisal/internal/pricing"
	"github.com/attic-market/appraisal/internal/registry"
	"github.com/attic-market/appraisal/internal/sources"
)

// maxQueryConcurrency limits simultaneous in-flight adapter calls per stage.
const maxQueryConcurrency = 8

// Config tunes orchestration behavior.
type Config struct {
	// PartialOnTimeout treats an expired context as "done with what we
	// have": opinions already settled are still consolidated, with the
	// timed-out sources recorded as failures. Off by default — a timeout
	// fails the evaluation.
	PartialOnTimeout bool
}

// Evaluator coordinates experts, price sources, and the cache for one
// appraisal at a time. Safe for concurrent use; all mutable state is
// per-call.
type Evaluator struct {
	roster  *registry.Roster
	experts map[string]experts.Expert
	prices  map[string]sources.PriceSource
	cache   *cache.Store
	cfg     Config
}

// New creates an Evaluator. cacheStore may be nil to run uncached.
func New(roster *registry.Roster, cacheStore *cache.Store, cfg Config) *Evaluator {
	return &Evaluator{
		roster:  roster,
		experts: make(map[string]experts.Expert),
		prices:  make(map[string]sources.PriceSource),
		cache:   cacheStore,
		cfg:     cfg,
	}
}

// RegisterExpert binds an adapter to its roster name.
func (e *Evaluator) RegisterExpert(exp experts.Expert) {
	e.experts[exp.Name()] = exp
}

// RegisterPriceSource binds an adapter to its roster name.
func (e *Evaluator) RegisterPriceSource(src sources.PriceSource) {
	e.prices[src.Name()] = src
}

// Evaluate appraises one item. Every adapter query runs concurrently and
// fails in isolation; the evaluation itself fails only when no expert
// produced a usable opinion (price sources are selected by the consensus
// category, so pricing structurally depends on consensus succeeding).
func (e *Evaluator) Evaluate(ctx context.Context, item model.Item) (*model.Evaluation, error) {
	start := time.Now()
	log := zap.L().With(zap.String("title", item.Title))
	log.Info("pipeline: starting evaluation")

	eval := &model.Evaluation{
		ID:        uuid.New().String(),
		Item:      item,
		CreatedAt: start.UTC(),
	}

	opinions := e.queryExperts(ctx, item, &eval.Experts)

	if ctx.Err() != nil && !e.cfg.PartialOnTimeout {
		return nil, eris.Wrap(ctx.Err(), "pipeline: evaluation cancelled during expert fan-out")
	}

	cons, err := consensus.Consolidate(opinions)
	if err != nil {
		// Empty batch: surface with enough accounting to judge partial
		// confidence.
		return nil, eris.Wrapf(err, "pipeline: %d/%d experts succeeded",
			eval.Experts.Succeeded, eval.Experts.Queried)
	}
	eval.Consensus = cons

	driving := drivingOpinion(cons)
	observations := e.queryPriceSources(ctx, driving, &eval.PriceSources)

	if ctx.Err() != nil && !e.cfg.PartialOnTimeout {
		return nil, eris.Wrap(ctx.Err(), "pipeline: evaluation cancelled during price fan-out")
	}

	eval.Price = pricing.Aggregate(observations, driving)
	eval.DurationMS = time.Since(start).Milliseconds()

	log.Info("pipeline: evaluation complete",
		zap.String("category", string(cons.Category)),
		zap.Float64("agreement_pct", cons.AgreementPct),
		zap.Float64("estimate", eval.Price.Estimate),
		zap.Int64("duration_ms", eval.DurationMS),
	)
	return eval, nil
}

// queryExperts fans out one query per enabled expert. Failures are
// recorded and excluded, never fatal here.
func (e *Evaluator) queryExperts(ctx context.Context, item model.Item, acct *model.SourceAccounting) []model.Opinion {
	entries := e.roster.ExpertsFor(item.Category)

	var mu sync.Mutex
	var opinions []model.Opinion

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxQueryConcurrency)

	for _, entry := range entries {
		exp, ok := e.experts[entry.Name]
		if !ok {
			zap.L().Warn("pipeline: roster expert has no registered adapter",
				zap.String("expert", entry.Name))
			continue
		}

		mu.Lock()
		acct.Queried++
		mu.Unlock()

		g.Go(func() error {
			opinion, err := e.examineOne(gCtx, entry, exp, item)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				acct.Failures = append(acct.Failures, model.SourceFailure{
					Source: entry.Name,
					Error:  err.Error(),
				})
				zap.L().Warn("pipeline: expert query failed",
					zap.String("expert", entry.Name),
					zap.Error(err),
				)
				return nil // isolated; never aborts siblings
			}
			acct.Succeeded++
			opinions = append(opinions, *opinion)
			return nil
		})
	}
	_ = g.Wait()

	// Fan-out completion order must not leak into consolidation: restore
	// roster order so consensus tie-breaks stay deterministic.
	orderOpinions(opinions, entries)
	return opinions
}

func (e *Evaluator) examineOne(ctx context.Context, entry registry.ExpertEntry, exp experts.Expert, item model.Item) (*model.Opinion, error) {
	if e.cache == nil || !entry.Cacheable {
		return exp.Examine(ctx, item)
	}
	ttl := time.Duration(entry.CacheTTLHours) * time.Hour
	return cache.FetchWith(ctx, e.cache, entry.Name, item, ttl,
		func(ctx context.Context) (*model.Opinion, error) {
			return exp.Examine(ctx, item)
		})
}

// orderOpinions sorts the collected batch into roster order in place.
func orderOpinions(opinions []model.Opinion, entries []registry.ExpertEntry) {
	rank := make(map[string]int, len(entries))
	for i, entry := range entries {
		rank[entry.Name] = i
	}
	for i := 1; i < len(opinions); i++ {
		for j := i; j > 0 && rank[opinions[j].Source] < rank[opinions[j-1].Source]; j-- {
			opinions[j], opinions[j-1] = opinions[j-1], opinions[j]
		}
	}
}

// priceRequest is the cache payload identifying one price lookup.
type priceRequest struct {
	Source   string         `json:"source"`
	Category model.Category `json:"category"`
	Title    string         `json:"title"`
	Phrase   string         `json:"phrase,omitempty"`
}

// queryPriceSources fans out one query per price source applicable to the
// consensus category. Price lookups always go through the cache.
func (e *Evaluator) queryPriceSources(ctx context.Context, driving model.Opinion, acct *model.SourceAccounting) []model.PriceObservation {
	entries := e.roster.PriceSourcesFor(driving.Category)

	var mu sync.Mutex
	var observations []model.PriceObservation

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxQueryConcurrency)

	for _, entry := range entries {
		src, ok := e.prices[entry.Name]
		if !ok {
			zap.L().Warn("pipeline: roster price source has no registered adapter",
				zap.String("source", entry.Name))
			continue
		}

		mu.Lock()
		acct.Queried++
		mu.Unlock()

		g.Go(func() error {
			req := priceRequest{
				Source:   entry.Name,
				Category: driving.Category,
				Title:    driving.Field(model.FieldTitle).Text(),
			}
			if len(driving.SearchPhrases) > 0 {
				req.Phrase = driving.SearchPhrases[0]
			}

			ttl := time.Duration(entry.CacheTTLHours) * time.Hour
			obs, err := cache.FetchWith(gCtx, e.cache, entry.Name, req, ttl,
				func(ctx context.Context) (*model.PriceObservation, error) {
					return src.Quote(ctx, driving)
				})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				acct.Failures = append(acct.Failures, model.SourceFailure{
					Source: entry.Name,
					Error:  err.Error(),
				})
				zap.L().Warn("pipeline: price query failed",
					zap.String("source", entry.Name),
					zap.Error(err),
				)
				return nil
			}
			acct.Succeeded++
			observations = append(observations, *obs)
			return nil
		})
	}
	_ = g.Wait()

	return observations
}

// drivingOpinion condenses the consensus into the opinion handed to price
// sources and the aggregator: merged fields, the winning category, and
// the strongest contributing confidence.
func drivingOpinion(cons *model.ConsensusResult) model.Opinion {
	driving := model.Opinion{
		Source:   "consensus",
		Category: cons.Category,
		Fields:   cons.Fields,
		Rarity:   cons.Rarity.Level,
	}
	for _, op := range cons.Opinions {
		if op.Category != cons.Category {
			continue
		}
		if op.Confidence > driving.Confidence {
			driving.Confidence = op.Confidence
		}
		driving.SearchPhrases = append(driving.SearchPhrases, op.SearchPhrases...)
	}
	return driving
}
