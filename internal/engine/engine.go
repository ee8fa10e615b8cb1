// Package engine wires the stitching pipeline together: filter, parallel
// dispatch, combiner, and result cache behind one memoized entry point.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CorniiDog/lightning-research-application/internal/cache"
	"github.com/CorniiDog/lightning-research-application/internal/dispatch"
	"github.com/CorniiDog/lightning-research-application/internal/domain"
	"github.com/CorniiDog/lightning-research-application/internal/filter"
	"github.com/CorniiDog/lightning-research-application/internal/observability"
	"github.com/CorniiDog/lightning-research-application/internal/stitch"
	"github.com/CorniiDog/lightning-research-application/internal/store"
)

// StrikePublisher receives freshly computed strike sets. Cached results are
// not republished.
type StrikePublisher interface {
	PublishStrikes(ctx context.Context, strikes []domain.Strike) error
}

// Engine is the core entry point for strike computation.
type Engine struct {
	store      store.PointStore
	filter     *filter.Engine
	dispatcher *dispatch.Dispatcher
	cache      *cache.ResultCache
	publisher  StrikePublisher
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates an Engine over the given collaborators.
func New(s store.PointStore, f *filter.Engine, d *dispatch.Dispatcher, c *cache.ResultCache,
	logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{store: s, filter: f, dispatcher: d, cache: c, logger: logger, metrics: metrics}
}

// SetPublisher attaches an optional sink for freshly computed strikes.
func (e *Engine) SetPublisher(p StrikePublisher) { e.publisher = p }

// ComputeStrikes validates the inputs and returns the strike set for the
// given filter and parameters, memoized per fingerprint. An empty
// dataIdentity asks the point store for the current dataset identity, so
// results computed before an ingest never shadow the new data.
func (e *Engine) ComputeStrikes(ctx context.Context, preds []domain.Predicate, params domain.Parameters, dataIdentity string) ([]domain.Strike, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidatePredicates(preds); err != nil {
		return nil, err
	}

	if dataIdentity == "" {
		var err error
		dataIdentity, err = e.store.DataIdentity(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve data identity: %w", err)
		}
	}

	fp := cache.Fingerprint(preds, params, dataIdentity)
	e.metrics.ComputeRequests.Inc()

	result, err := e.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (*cache.Result, error) {
		return e.compute(ctx, preds, params, fp)
	})
	if err != nil {
		return nil, err
	}
	return result.Strikes, nil
}

// compute runs the full uncached pipeline for one fingerprint.
func (e *Engine) compute(ctx context.Context, preds []domain.Predicate, params domain.Parameters, fp string) (*cache.Result, error) {
	start := time.Now()

	ps, err := e.filter.PointSet(ctx, preds)
	if err != nil {
		return nil, err
	}
	e.metrics.FilteredPoints.Observe(float64(ps.Len()))

	raw, err := e.dispatcher.Run(ctx, ps, params)
	if err != nil {
		return nil, err
	}
	raw = stitch.Combine(ps, raw, params)

	strikes := make([]domain.Strike, 0, len(raw))
	pointCount := 0
	for _, rs := range raw {
		s := ps.FinalizeStrike(rs.Positions)
		pointCount += s.PointCount
		strikes = append(strikes, s)
	}

	elapsed := time.Since(start)
	e.metrics.ComputeDuration.Observe(elapsed.Seconds())
	e.metrics.StrikesComputed.Observe(float64(len(strikes)))
	e.logger.Info("strike computation complete",
		"fingerprint", fp,
		"filtered_points", ps.Len(),
		"strikes", len(strikes),
		"strike_points", pointCount,
		"duration", elapsed,
	)

	if e.publisher != nil {
		if err := e.publisher.PublishStrikes(ctx, strikes); err != nil {
			e.logger.Warn("strike publish failed", "error", err)
		}
	}

	return &cache.Result{
		Fingerprint: fp,
		Strikes:     strikes,
		PointCount:  pointCount,
		ComputedAt:  domain.Clock().Now().UTC(),
	}, nil
}

// ClearCache drops every memoized result.
func (e *Engine) ClearCache(ctx context.Context) error {
	return e.cache.Clear(ctx)
}
