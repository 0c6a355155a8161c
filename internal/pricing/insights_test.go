package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/attic-market/appraisal/internal/model"
)

func TestTrendFromVolume(t *testing.T) {
	assert.Equal(t, model.TrendHot, trendFromVolume(3))
	assert.Equal(t, model.TrendRising, trendFromVolume(10))
	assert.Equal(t, model.TrendStable, trendFromVolume(50))
	assert.Equal(t, model.TrendStable, trendFromVolume(100))
	assert.Equal(t, model.TrendDeclining, trendFromVolume(101))
}

func TestDemandFromDispersion(t *testing.T) {
	assert.Equal(t, model.DemandLow, demandFromDispersion(nil))
	// Identical prices: CV 0 → very high demand.
	assert.Equal(t, model.DemandVeryHigh, demandFromDispersion([]float64{50, 50, 50}))
	// Widely scattered prices: CV well above 0.6 → low demand.
	assert.Equal(t, model.DemandLow, demandFromDispersion([]float64{10, 50, 200, 900}))
}

func TestLiquidityFrom(t *testing.T) {
	assert.Equal(t, model.LiquidityExcellent, liquidityFrom(2, 20))
	assert.Equal(t, model.LiquidityGood, liquidityFrom(3, 12))
	assert.Equal(t, model.LiquidityFair, liquidityFrom(1, 8))
	assert.Equal(t, model.LiquidityPoor, liquidityFrom(1, 3))
}

func TestTotalComparables_TrustsReportedCount(t *testing.T) {
	obs := []model.PriceObservation{
		// Reported count exceeds returned sample: trust the count.
		{ListingCount: 40, Comparables: comparables(10, 11)},
		// Sample exceeds the (unset) count: count the sample.
		{Comparables: comparables(10, 11, 12)},
	}
	assert.Equal(t, 43, totalComparables(obs))
}

func TestDeriveInsights_CarriesDrivingRarity(t *testing.T) {
	obs := []model.PriceObservation{{ListingCount: 12, Estimate: 30}}
	insights := deriveInsights(obs, buildPool(obs), model.Opinion{Rarity: model.RarityUltraRare})
	assert.Equal(t, model.RarityUltraRare, insights.Rarity)
	assert.Equal(t, model.TrendRising, insights.Trend)
}
