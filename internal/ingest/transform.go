package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// RawRecord is one unprocessed message from the source topic.
type RawRecord struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParsePointRecord deserializes a collector JSON record into a Point and
// enforces the range checks that keep malformed solutions out of the core.
func ParsePointRecord(value []byte) (domain.Point, error) {
	var p domain.Point
	if err := json.Unmarshal(value, &p); err != nil {
		return domain.Point{}, fmt.Errorf("parse point record: %w", err)
	}
	if err := validatePoint(p); err != nil {
		return domain.Point{}, err
	}
	return p, nil
}

// validatePoint rejects solutions outside physical or encoding bounds.
// Altitude admits slightly-below-sea-level network sites and tops out above
// any plausible VHF source height.
func validatePoint(p domain.Point) error {
	for name, v := range map[string]float64{
		"time_unix":    p.TimeUnix,
		"lat":          p.Lat,
		"lon":          p.Lon,
		"alt":          p.Alt,
		"power_db":     p.PowerDB,
		"reduced_chi2": p.ReducedChi2,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("point field %s is not finite", name)
		}
	}
	switch {
	case p.TimeUnix <= 0:
		return fmt.Errorf("point time_unix %v is not positive", p.TimeUnix)
	case p.Lat < -90 || p.Lat > 90:
		return fmt.Errorf("point lat %v out of range", p.Lat)
	case p.Lon < -180 || p.Lon > 180:
		return fmt.Errorf("point lon %v out of range", p.Lon)
	case p.Alt < -500 || p.Alt > 100000:
		return fmt.Errorf("point alt %v out of range", p.Alt)
	case p.ReducedChi2 < 0:
		return fmt.Errorf("point reduced_chi2 %v is negative", p.ReducedChi2)
	case p.NumStations < 1:
		return fmt.Errorf("point num_stations %d below 1", p.NumStations)
	}
	return nil
}
