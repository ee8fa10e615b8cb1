// Package filter translates declarative predicate lists into point store
// retrievals. All predicates are pushed down to the store's indexed query
// path; the engine never materializes unfiltered points.
package filter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
	"github.com/CorniiDog/lightning-research-application/internal/store"
)

// Engine resolves filter predicates against a PointStore.
type Engine struct {
	store  store.PointStore
	logger *slog.Logger
}

// New creates a filter engine over the given store.
func New(s store.PointStore, logger *slog.Logger) *Engine {
	return &Engine{store: s, logger: logger}
}

// Indices returns the store indices satisfying every predicate, ordered by
// time_unix. Predicates are validated before any retrieval runs; an unknown
// field or operator fails with domain.InvalidPredicateError.
func (e *Engine) Indices(ctx context.Context, preds []domain.Predicate) ([]int, error) {
	if err := domain.ValidatePredicates(preds); err != nil {
		return nil, err
	}
	indices, err := e.store.Query(ctx, preds)
	if err != nil {
		return nil, fmt.Errorf("filter query: %w", err)
	}
	e.logger.Debug("filter resolved", "predicates", len(preds), "points", len(indices))
	return indices, nil
}

// PointSet resolves the predicates and materializes the filtered points as
// the immutable, time-sorted, projected view the stitching core consumes.
func (e *Engine) PointSet(ctx context.Context, preds []domain.Predicate) (*domain.PointSet, error) {
	indices, err := e.Indices(ctx, preds)
	if err != nil {
		return nil, err
	}
	points, err := e.store.FetchBatch(ctx, indices)
	if err != nil {
		return nil, fmt.Errorf("fetch filtered points: %w", err)
	}
	return domain.NewPointSet(indices, points), nil
}
