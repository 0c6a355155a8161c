// Package sources holds the price-source adapters that turn a consensus
// opinion into a marketplace price observation.
package sources

import (
	"context"

	"github.com/attic-market/appraisal/internal/model"
)

// PriceSource is one marketplace or catalog capable of quoting an item.
// The opinion argument is the consensus read that drives the search.
type PriceSource interface {
	Name() string
	Quote(ctx context.Context, opinion model.Opinion) (*model.PriceObservation, error)
}

// Func adapts a plain function into a PriceSource; used for tests and
// externally-provided query functions.
type Func struct {
	SourceName string
	Fn         func(ctx context.Context, opinion model.Opinion) (*model.PriceObservation, error)
}

func (f Func) Name() string { return f.SourceName }

func (f Func) Quote(ctx context.Context, opinion model.Opinion) (*model.PriceObservation, error) {
	return f.Fn(ctx, opinion)
}
