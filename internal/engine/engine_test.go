package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CorniiDog/lightning-research-application/internal/cache"
	"github.com/CorniiDog/lightning-research-application/internal/dispatch"
	"github.com/CorniiDog/lightning-research-application/internal/domain"
	"github.com/CorniiDog/lightning-research-application/internal/filter"
	"github.com/CorniiDog/lightning-research-application/internal/observability"
	"github.com/CorniiDog/lightning-research-application/internal/store"
)

type countingPublisher struct {
	calls   atomic.Int32
	strikes []domain.Strike
}

func (p *countingPublisher) PublishStrikes(_ context.Context, strikes []domain.Strike) error {
	p.calls.Add(1)
	p.strikes = strikes
	return nil
}

func testParams() domain.Parameters {
	p := domain.DefaultParameters()
	p.MinLightningPoints = 5
	return p
}

// seedBursts inserts two bursts of closely spaced points and a lone outlier
// that can never reach the minimum member count.
func seedBursts(t *testing.T, s store.PointStore) {
	t.Helper()
	var pts []domain.Point
	for b := 0; b < 2; b++ {
		start := 1718500000.0 + float64(b)*60
		for i := 0; i < 8; i++ {
			pts = append(pts, domain.Point{
				TimeUnix:    start + float64(i)*0.05,
				Lat:         33.6,
				Lon:         -101.8,
				Alt:         6000 + float64(i*100),
				PowerDB:     10,
				ReducedChi2: 0.5,
				NumStations: 8,
			})
		}
	}
	pts = append(pts, domain.Point{
		TimeUnix: 1718500030, Lat: 35.0, Lon: -99.0, Alt: 4000,
		PowerDB: -20, ReducedChi2: 40, NumStations: 6,
	})
	_, err := s.InsertBatch(context.Background(), pts)
	require.NoError(t, err)
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	metrics := observability.NewMetricsForTesting()

	s := store.NewMemoryStore()
	db, err := cache.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := New(s, filter.New(s, logger), dispatch.New(2, logger, metrics),
		cache.New(db, logger, metrics), logger, metrics)
	return e, s
}

func TestComputeStrikesEndToEnd(t *testing.T) {
	e, s := newTestEngine(t)
	seedBursts(t, s)

	strikes, err := e.ComputeStrikes(context.Background(), nil, testParams(), "")
	require.NoError(t, err)

	require.Len(t, strikes, 2)
	for _, st := range strikes {
		assert.Equal(t, 8, st.PointCount)
		assert.Len(t, st.Points, 8)
		assert.InDelta(t, 0.35, st.Duration(), 1e-5)
		assert.GreaterOrEqual(t, st.Bounds.MaxAlt, st.Bounds.MinAlt)
	}
	assert.Less(t, strikes[0].StartTime, strikes[1].StartTime)
}

func TestComputeStrikesUsesCacheAndSkipsRepublish(t *testing.T) {
	e, s := newTestEngine(t)
	seedBursts(t, s)

	pub := &countingPublisher{}
	e.SetPublisher(pub)

	first, err := e.ComputeStrikes(context.Background(), nil, testParams(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), pub.calls.Load())
	assert.Equal(t, first, pub.strikes)

	// Second identical request is served from the cache; nothing is
	// recomputed or republished.
	second, err := e.ComputeStrikes(context.Background(), nil, testParams(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), pub.calls.Load())
	assert.Equal(t, first, second)
}

func TestComputeStrikesIngestInvalidatesCache(t *testing.T) {
	e, s := newTestEngine(t)
	seedBursts(t, s)

	pub := &countingPublisher{}
	e.SetPublisher(pub)

	first, err := e.ComputeStrikes(context.Background(), nil, testParams(), "")
	require.NoError(t, err)
	require.Len(t, first, 2)

	// A third burst arrives; the empty dataIdentity re-resolves against the
	// store, so the stale cached result cannot shadow the new data.
	var pts []domain.Point
	for i := 0; i < 8; i++ {
		pts = append(pts, domain.Point{
			TimeUnix: 1718500120 + float64(i)*0.05, Lat: 33.6, Lon: -101.8,
			Alt: 6000, PowerDB: 10, ReducedChi2: 0.5, NumStations: 8,
		})
	}
	_, err = s.InsertBatch(context.Background(), pts)
	require.NoError(t, err)

	second, err := e.ComputeStrikes(context.Background(), nil, testParams(), "")
	require.NoError(t, err)
	assert.Len(t, second, 3)
	assert.Equal(t, int32(2), pub.calls.Load())
}

func TestComputeStrikesAppliesPredicates(t *testing.T) {
	e, s := newTestEngine(t)
	seedBursts(t, s)

	// Filter the second burst out by time.
	strikes, err := e.ComputeStrikes(context.Background(), []domain.Predicate{
		{Field: "time_unix", Op: domain.OpLT, Value: 1718500030},
	}, testParams(), "")
	require.NoError(t, err)
	assert.Len(t, strikes, 1)

	// A filter matching nothing yields no strikes.
	strikes, err = e.ComputeStrikes(context.Background(), []domain.Predicate{
		{Field: "power_db", Op: domain.OpGT, Value: 1000},
	}, testParams(), "")
	require.NoError(t, err)
	assert.Empty(t, strikes)
}

func TestComputeStrikesValidatesInput(t *testing.T) {
	e, _ := newTestEngine(t)

	bad := testParams()
	bad.MaxLightningDist = -1
	_, err := e.ComputeStrikes(context.Background(), nil, bad, "")
	var perr *domain.InvalidParameterError
	require.ErrorAs(t, err, &perr)

	_, err = e.ComputeStrikes(context.Background(), []domain.Predicate{
		{Field: "nope", Op: domain.OpGE, Value: 0},
	}, testParams(), "")
	var prerr *domain.InvalidPredicateError
	require.ErrorAs(t, err, &prerr)
}

func TestClearCacheForcesRecompute(t *testing.T) {
	e, s := newTestEngine(t)
	seedBursts(t, s)

	pub := &countingPublisher{}
	e.SetPublisher(pub)

	_, err := e.ComputeStrikes(context.Background(), nil, testParams(), "")
	require.NoError(t, err)
	require.NoError(t, e.ClearCache(context.Background()))

	_, err = e.ComputeStrikes(context.Background(), nil, testParams(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), pub.calls.Load())
}
