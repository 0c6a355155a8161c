// Package experts holds the analyzer adapters that turn an item into a
// structured Opinion. Adapters own all upstream details; the orchestrator
// only sees the Expert contract.
package experts

import (
	"context"

	"github.com/attic-market/appraisal/internal/model"
)

// Expert is one analyzer capable of examining an item.
type Expert interface {
	Name() string
	Examine(ctx context.Context, item model.Item) (*model.Opinion, error)
}

// Func adapts a plain function into an Expert; used for tests and for
// wiring externally-provided query functions.
type Func struct {
	SourceName string
	Fn         func(ctx context.Context, item model.Item) (*model.Opinion, error)
}

func (f Func) Name() string { return f.SourceName }

func (f Func) Examine(ctx context.Context, item model.Item) (*model.Opinion, error) {
	return f.Fn(ctx, item)
}
