package sources

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/attic-market/appraisal/internal/model"
	"github.com/attic-market/appraisal/pkg/marketbay"
)

// defaultSearchLimit caps how many sold listings one quote pulls back.
const defaultSearchLimit = 25

// MarketBay quotes items from MarketBay sold listings.
type MarketBay struct {
	name   string
	client marketbay.Client
	limit  int
}

// NewMarketBay wraps a marketbay client as a PriceSource under the given
// roster name.
func NewMarketBay(name string, client marketbay.Client) *MarketBay {
	return &MarketBay{name: name, client: client, limit: defaultSearchLimit}
}

func (m *MarketBay) Name() string { return m.name }

// Quote searches sold listings for the opinion's best search phrase and
// condenses them into a single observation.
func (m *MarketBay) Quote(ctx context.Context, opinion model.Opinion) (*model.PriceObservation, error) {
	query := searchQuery(opinion)
	if query == "" {
		return nil, eris.Errorf("sources: %s: opinion has no searchable title", m.name)
	}

	resp, err := m.client.SearchSold(ctx, marketbay.SearchRequest{
		Query:    query,
		Category: string(opinion.Category),
		Limit:    m.limit,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sources: %s: search sold", m.name)
	}

	return observationFrom(m.name, resp), nil
}

// searchQuery prefers the expert's first suggested phrase over the raw title.
func searchQuery(opinion model.Opinion) string {
	if len(opinion.SearchPhrases) > 0 && opinion.SearchPhrases[0] != "" {
		return opinion.SearchPhrases[0]
	}
	return opinion.Field(model.FieldTitle).Text()
}

// observationFrom condenses sold listings into one PriceObservation. The
// point estimate is the median sale price; the per-source confidence
// grows with how many comparables back it.
func observationFrom(name string, resp *marketbay.SearchResponse) *model.PriceObservation {
	obs := &model.PriceObservation{
		Source:       name,
		Currency:     "USD",
		ListingCount: resp.TotalCount,
	}

	var prices []float64
	for _, listing := range resp.Listings {
		if listing.Price <= 0 {
			continue
		}
		prices = append(prices, listing.Price)
		if obs.Currency == "USD" && listing.Currency != "" {
			obs.Currency = listing.Currency
		}
		obs.Comparables = append(obs.Comparables, model.ComparableSale{
			Title:     listing.Title,
			Price:     listing.Price,
			Condition: listing.Condition,
			SoldAt:    listing.SoldAt,
			URL:       listing.URL,
		})
	}
	if len(obs.Comparables) > obs.ListingCount {
		obs.ListingCount = len(obs.Comparables)
	}
	if len(prices) == 0 {
		return obs
	}

	sort.Float64s(prices)
	obs.Low = prices[0]
	obs.High = prices[len(prices)-1]
	if n := len(prices); n%2 == 1 {
		obs.Estimate = prices[n/2]
	} else {
		obs.Estimate = (prices[n/2-1] + prices[n/2]) / 2
	}

	// More comparables, more trust, up to 0.9.
	obs.Confidence = 0.3 + 0.03*float64(len(prices))
	if obs.Confidence > 0.9 {
		obs.Confidence = 0.9
	}

	return obs
}
