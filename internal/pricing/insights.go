package pricing

import "github.com/attic-market/appraisal/internal/model"

// deriveInsights infers market conditions from the shape of the batch:
// comparable volume drives trend, price dispersion drives demand, and the
// source/comparable counts jointly drive liquidity. The rarity label comes
// from the opinion that drove the search.
func deriveInsights(observations []model.PriceObservation, pool []float64, driving model.Opinion) model.MarketInsights {
	comparables := totalComparables(observations)

	insights := model.MarketInsights{
		Rarity:    driving.Rarity,
		Trend:     trendFromVolume(comparables),
		Demand:    demandFromDispersion(pool),
		Liquidity: liquidityFrom(len(observations), comparables),
	}
	return insights
}

// totalComparables counts the listings backing the batch. Sources that
// report a listing count are trusted over the sample of comparables they
// chose to return.
func totalComparables(observations []model.PriceObservation) int {
	total := 0
	for _, obs := range observations {
		n := obs.ListingCount
		if len(obs.Comparables) > n {
			n = len(obs.Comparables)
		}
		total += n
	}
	return total
}

// trendFromVolume reads market direction off supply: a flood of comparable
// listings means oversupply, scarcity means a hot market.
func trendFromVolume(comparables int) model.Trend {
	switch {
	case comparables > 100:
		return model.TrendDeclining
	case comparables >= 50:
		return model.TrendStable
	case comparables >= 10:
		return model.TrendRising
	default:
		return model.TrendHot
	}
}

// demandFromDispersion maps price agreement to inferred demand: tightly
// clustered sale prices indicate an active market with a settled price.
// The bands mirror the coefficient-of-variation bands in confidenceScore.
func demandFromDispersion(pool []float64) model.Demand {
	switch cv := coefficientOfVariation(pool); {
	case len(pool) == 0:
		return model.DemandLow
	case cv < 0.2:
		return model.DemandVeryHigh
	case cv < 0.4:
		return model.DemandHigh
	case cv < 0.6:
		return model.DemandMedium
	default:
		return model.DemandLow
	}
}

// liquidityFrom buckets sale velocity from source and comparable counts.
func liquidityFrom(sources, comparables int) model.Liquidity {
	switch {
	case sources >= 2 && comparables >= 20:
		return model.LiquidityExcellent
	case sources >= 2 && comparables >= 10:
		return model.LiquidityGood
	case comparables >= 5:
		return model.LiquidityFair
	default:
		return model.LiquidityPoor
	}
}
