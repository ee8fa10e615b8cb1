package domain

import "math"

// earthRadiusMeters is the volumetric mean Earth radius.
const earthRadiusMeters = 6371000.0

// Projection maps WGS-84 coordinates onto a local tangent plane using an
// equirectangular approximation anchored at a reference latitude/longitude:
//
//	x = R · cos(lat₀) · Δlon
//	y = R · Δlat
//	z = alt
//
// with angles in radians. Against the great-circle distance the error is
// bounded by roughly (d/R)²/24 plus the latitude-convergence term, which at
// a 30 km separation and mid latitudes stays below 0.1%, negligible next
// to the kilometer-scale thresholds the stitcher compares against. The
// approximation is only valid for datasets spanning a few hundred km; LMA
// networks cover far less.
type Projection struct {
	RefLat float64
	RefLon float64

	cosRefLat float64
}

// NewProjection anchors a projection at the given reference coordinate.
func NewProjection(refLat, refLon float64) Projection {
	return Projection{
		RefLat:    refLat,
		RefLon:    refLon,
		cosRefLat: math.Cos(refLat * math.Pi / 180),
	}
}

// Project converts a geodetic coordinate to local planar meters.
func (p Projection) Project(lat, lon, alt float64) (x, y, z float64) {
	x = earthRadiusMeters * p.cosRefLat * (lon - p.RefLon) * math.Pi / 180
	y = earthRadiusMeters * (lat - p.RefLat) * math.Pi / 180
	z = alt
	return x, y, z
}
