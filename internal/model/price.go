package model

import "time"

// ComparableSale is one completed sale backing a price observation.
type ComparableSale struct {
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Condition string    `json:"condition,omitempty"`
	SoldAt    time.Time `json:"sold_at,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// PriceObservation is one marketplace/catalog source's read of an item's
// value: a point estimate, a range, and the comparable sales behind it.
type PriceObservation struct {
	Source       string           `json:"source"`
	Estimate     float64          `json:"estimate"`
	Low          float64          `json:"low"`
	High         float64          `json:"high"`
	Currency     string           `json:"currency"`
	ListingCount int              `json:"listing_count"` // comparable listings backing the estimate
	Confidence   float64          `json:"confidence"`    // [0,1]
	Comparables  []ComparableSale `json:"comparables,omitempty"`
}

// Trend describes the inferred direction of the market for an item.
type Trend string

const (
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
	TrendRising    Trend = "rising"
	TrendHot       Trend = "hot"
)

// Demand buckets inferred buyer interest.
type Demand string

const (
	DemandLow      Demand = "low"
	DemandMedium   Demand = "medium"
	DemandHigh     Demand = "high"
	DemandVeryHigh Demand = "very_high"
)

// Liquidity buckets how quickly an item of this kind tends to sell.
type Liquidity string

const (
	LiquidityPoor      Liquidity = "poor"
	LiquidityFair      Liquidity = "fair"
	LiquidityGood      Liquidity = "good"
	LiquidityExcellent Liquidity = "excellent"
)

// MarketInsights summarizes market conditions derived from the price batch.
type MarketInsights struct {
	Rarity    RarityTier `json:"rarity"`
	Trend     Trend      `json:"trend"`
	Demand    Demand     `json:"demand"`
	Liquidity Liquidity  `json:"liquidity"`
}

// ConsolidatedPrice is the statistical merge of a batch of price
// observations. Invariant: Low <= Estimate <= High whenever at least one
// valid price exists.
type ConsolidatedPrice struct {
	Estimate    float64          `json:"estimate"`
	Low         float64          `json:"low"`
	High        float64          `json:"high"`
	Currency    string           `json:"currency"`
	Confidence  float64          `json:"confidence"` // [0,1]
	Sources     []string         `json:"sources"`
	Insights    MarketInsights   `json:"insights"`
	Comparables []ComparableSale `json:"comparables,omitempty"` // ranked sample, newest first
}
