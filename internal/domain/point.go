package domain

import (
	"math"
	"sort"
)

// Point is one immutable LMA source solution. The stitching core references
// points by their index in the owning PointStore; the struct itself is only
// materialized for ingest, projection, and final reporting.
type Point struct {
	TimeUnix    float64 `json:"time_unix"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Alt         float64 `json:"alt"`
	PowerDB     float64 `json:"power_db"`
	ReducedChi2 float64 `json:"reduced_chi2"`
	NumStations int     `json:"num_stations"`
}

// BoundingBox is the axis-aligned geodetic extent of a strike.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
	MinAlt float64 `json:"min_alt"`
	MaxAlt float64 `json:"max_alt"`
}

// Strike is a finalized cluster of points attributed to one lightning
// event. Points holds store indices in time-ascending order (ties broken by
// ascending index). Strikes are immutable once produced by the combiner.
type Strike struct {
	Points     []int       `json:"points"`
	StartTime  float64     `json:"start_time"`
	EndTime    float64     `json:"end_time"`
	Bounds     BoundingBox `json:"bounds"`
	PointCount int         `json:"point_count"`
}

// Duration returns the strike's temporal extent in seconds.
func (s Strike) Duration() float64 {
	return s.EndTime - s.StartTime
}

// PointSet is the immutable filtered view the stitching core operates on:
// a structure-of-arrays copy of the filtered points, sorted by
// (time_unix, store index), with projected planar coordinates in meters.
// Positions (0..Len-1) index into the arrays; StoreIndex maps a position
// back to the owning store's point index.
type PointSet struct {
	StoreIndex []int
	Times      []float64
	X, Y, Z    []float64
	Lats       []float64
	Lons       []float64
	Alts       []float64

	Proj Projection
}

// NewPointSet builds a PointSet from store indices and their points. The
// input order does not matter; the result is sorted by time_unix with the
// store index as the stable secondary key, which fixes the processing order
// the stitching engine depends on for determinism.
func NewPointSet(indices []int, points []Point) *PointSet {
	type rec struct {
		idx int
		pt  Point
	}
	recs := make([]rec, len(points))
	for i, pt := range points {
		recs[i] = rec{idx: indices[i], pt: pt}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].pt.TimeUnix != recs[j].pt.TimeUnix {
			return recs[i].pt.TimeUnix < recs[j].pt.TimeUnix
		}
		return recs[i].idx < recs[j].idx
	})

	ps := &PointSet{
		StoreIndex: make([]int, len(recs)),
		Times:      make([]float64, len(recs)),
		X:          make([]float64, len(recs)),
		Y:          make([]float64, len(recs)),
		Z:          make([]float64, len(recs)),
		Lats:       make([]float64, len(recs)),
		Lons:       make([]float64, len(recs)),
		Alts:       make([]float64, len(recs)),
	}

	ps.Proj = NewProjection(centroid(recs, func(r rec) float64 { return r.pt.Lat }),
		centroid(recs, func(r rec) float64 { return r.pt.Lon }))

	for i, r := range recs {
		ps.StoreIndex[i] = r.idx
		ps.Times[i] = r.pt.TimeUnix
		ps.Lats[i] = r.pt.Lat
		ps.Lons[i] = r.pt.Lon
		ps.Alts[i] = r.pt.Alt
		ps.X[i], ps.Y[i], ps.Z[i] = ps.Proj.Project(r.pt.Lat, r.pt.Lon, r.pt.Alt)
	}
	return ps
}

// Len returns the number of points in the set.
func (ps *PointSet) Len() int { return len(ps.Times) }

// DistSq returns the squared 3D planar distance in m² between two positions.
func (ps *PointSet) DistSq(i, j int) float64 {
	dx := ps.X[i] - ps.X[j]
	dy := ps.Y[i] - ps.Y[j]
	dz := ps.Z[i] - ps.Z[j]
	return dx*dx + dy*dy + dz*dz
}

// FinalizeStrike freezes a set of positions into a Strike: positions are
// sorted into processing order, mapped to store indices, and the bounding
// attributes are recomputed from the geodetic coordinates.
func (ps *PointSet) FinalizeStrike(positions []int) Strike {
	if len(positions) == 0 {
		return Strike{Points: []int{}}
	}
	sorted := make([]int, len(positions))
	copy(sorted, positions)
	sort.Ints(sorted)

	s := Strike{
		Points:     make([]int, len(sorted)),
		PointCount: len(sorted),
		Bounds: BoundingBox{
			MinLat: math.Inf(1), MaxLat: math.Inf(-1),
			MinLon: math.Inf(1), MaxLon: math.Inf(-1),
			MinAlt: math.Inf(1), MaxAlt: math.Inf(-1),
		},
	}
	for i, pos := range sorted {
		s.Points[i] = ps.StoreIndex[pos]
		s.Bounds.MinLat = math.Min(s.Bounds.MinLat, ps.Lats[pos])
		s.Bounds.MaxLat = math.Max(s.Bounds.MaxLat, ps.Lats[pos])
		s.Bounds.MinLon = math.Min(s.Bounds.MinLon, ps.Lons[pos])
		s.Bounds.MaxLon = math.Max(s.Bounds.MaxLon, ps.Lons[pos])
		s.Bounds.MinAlt = math.Min(s.Bounds.MinAlt, ps.Alts[pos])
		s.Bounds.MaxAlt = math.Max(s.Bounds.MaxAlt, ps.Alts[pos])
	}
	s.StartTime = ps.Times[sorted[0]]
	s.EndTime = ps.Times[sorted[len(sorted)-1]]
	return s
}

func centroid[T any](recs []T, f func(T) float64) float64 {
	if len(recs) == 0 {
		return 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range recs {
		v := f(r)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return (lo + hi) / 2
}
