// Package pricing aggregates multi-source price observations into a single
// value estimate with a confidence score and derived market insights.
package pricing

import (
	"math"
	"sort"

	"github.com/attic-market/appraisal/internal/model"
)

// maxComparableSample caps how many comparable sales the consolidated
// result carries back to callers.
const maxComparableSample = 10

// weightedAverageBand is how far (as a fraction of the pool median) the
// confidence-weighted average may drift from the median before it is
// treated as an outlier-driven artifact and the median wins.
const weightedAverageBand = 0.30

// Aggregate merges a batch of price observations into a ConsolidatedPrice.
// An empty batch is legal and yields a zero-value, zero-confidence result.
// The driving opinion contributes only the rarity label for insights.
func Aggregate(observations []model.PriceObservation, driving model.Opinion) *model.ConsolidatedPrice {
	result := &model.ConsolidatedPrice{
		Currency: currencyOf(observations),
		Insights: model.MarketInsights{
			Rarity:    driving.Rarity,
			Trend:     model.TrendStable,
			Demand:    model.DemandLow,
			Liquidity: model.LiquidityPoor,
		},
	}
	if len(observations) == 0 {
		return result
	}

	for _, obs := range observations {
		result.Sources = append(result.Sources, obs.Source)
	}

	pool := buildPool(observations)

	if len(pool) == 0 {
		// Sources responded but none carried a usable price point. Fall
		// back to the weighted average of raw estimates with a fixed
		// ±20% band and middling confidence.
		est := weightedEstimate(observations)
		result.Estimate = est
		result.Low = est * 0.8
		result.High = est * 1.2
		result.Confidence = 0.5
		result.Insights = deriveInsights(observations, pool, driving)
		return result
	}

	med := median(pool)
	weighted := weightedEstimate(observations)

	// Use the weighted average while it stays near the median; a large gap
	// means a noisy source dragged it and the median is the safer pick.
	estimate := med
	if med > 0 && math.Abs(weighted-med)/med <= weightedAverageBand {
		estimate = weighted
	}

	result.Estimate = estimate
	result.Low = pool[0]
	result.High = pool[len(pool)-1]
	result.Confidence = confidenceScore(observations, pool)
	result.Insights = deriveInsights(observations, pool, driving)
	result.Comparables = sampleComparables(observations)

	return result
}

// buildPool flattens every observation's point estimate and every
// comparable sale price into one sorted list. Non-positive prices are
// dropped. The pool, not the per-source estimates, is the statistical
// basis: a source backed by many comparables outweighs a lone noisy one.
func buildPool(observations []model.PriceObservation) []float64 {
	var pool []float64
	for _, obs := range observations {
		if obs.Estimate > 0 {
			pool = append(pool, obs.Estimate)
		}
		for _, sale := range obs.Comparables {
			if sale.Price > 0 {
				pool = append(pool, sale.Price)
			}
		}
	}
	sort.Float64s(pool)
	return pool
}

// weightedEstimate is the confidence-weighted average of per-source point
// estimates. Zero-confidence sources still count with a small floor weight
// so a batch of unconfident sources does not divide by zero.
func weightedEstimate(observations []model.PriceObservation) float64 {
	var sum, weight float64
	for _, obs := range observations {
		if obs.Estimate <= 0 {
			continue
		}
		w := obs.Confidence
		if w <= 0 {
			w = 0.01
		}
		sum += obs.Estimate * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// median of a sorted pool; even counts average the two middle values.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(pool []float64) float64 {
	if len(pool) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pool {
		sum += p
	}
	return sum / float64(len(pool))
}

func stddev(pool []float64) float64 {
	if len(pool) < 2 {
		return 0
	}
	m := mean(pool)
	var ss float64
	for _, p := range pool {
		d := p - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(pool)))
}

// coefficientOfVariation is stddev/mean of the pool; 0 for degenerate pools.
func coefficientOfVariation(pool []float64) float64 {
	m := mean(pool)
	if m == 0 {
		return 0
	}
	return stddev(pool) / m
}

// confidenceScore builds the overall confidence additively from a 0.5
// base. The exact bands are load-bearing: other implementations of this
// aggregation reproduce them for parity.
//
//	+0.20 for >=3 sources, +0.10 for >=2
//	+0.15 for >=20 pooled comparables, +0.10 for >=10, +0.05 for >=5
//	+0.15 for CV < 0.2, +0.10 for < 0.4, +0.05 for < 0.6
//	+ average per-source confidence * 0.1
//	capped at 0.95
func confidenceScore(observations []model.PriceObservation, pool []float64) float64 {
	score := 0.5

	switch {
	case len(observations) >= 3:
		score += 0.20
	case len(observations) >= 2:
		score += 0.10
	}

	switch {
	case len(pool) >= 20:
		score += 0.15
	case len(pool) >= 10:
		score += 0.10
	case len(pool) >= 5:
		score += 0.05
	}

	switch cv := coefficientOfVariation(pool); {
	case cv < 0.2:
		score += 0.15
	case cv < 0.4:
		score += 0.10
	case cv < 0.6:
		score += 0.05
	}

	var confSum float64
	for _, obs := range observations {
		confSum += obs.Confidence
	}
	score += confSum / float64(len(observations)) * 0.1

	return math.Min(score, 0.95)
}

// sampleComparables collects comparables across sources ranked newest
// first, capped at maxComparableSample.
func sampleComparables(observations []model.PriceObservation) []model.ComparableSale {
	var all []model.ComparableSale
	for _, obs := range observations {
		for _, sale := range obs.Comparables {
			if sale.Price > 0 {
				all = append(all, sale)
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].SoldAt.After(all[j].SoldAt)
	})
	if len(all) > maxComparableSample {
		all = all[:maxComparableSample]
	}
	return all
}

// currencyOf picks the batch currency; observations are expected to share
// one (adapters convert upstream), defaulting to USD.
func currencyOf(observations []model.PriceObservation) string {
	for _, obs := range observations {
		if obs.Currency != "" {
			return obs.Currency
		}
	}
	return "USD"
}
