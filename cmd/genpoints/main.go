// Command genpoints generates synthetic LMA point fixtures for the stitcher
// test suites and for seeding a local Kafka topic. Each simulated flash is a
// random walk in space and time tuned to stay inside the default stitching
// thresholds, with optional uniform background noise.
//
// Usage:
//
//	go run ./cmd/genpoints -flashes 5 -points 400 -noise 200 -out data/mock/points.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flashes := flag.Int("flashes", 5, "number of simulated flashes")
	points := flag.Int("points", 400, "points per flash")
	noise := flag.Int("noise", 0, "background noise points spread over the window")
	seed := flag.Int64("seed", 1, "random seed for reproducible fixtures")
	out := flag.String("out", "", "output path for the JSON fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	rng := rand.New(rand.NewSource(*seed))
	pts := generate(rng, *flashes, *points, *noise)

	sort.Slice(pts, func(i, j int) bool { return pts[i].TimeUnix < pts[j].TimeUnix })

	if err := writeJSON(*out, pts); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d points (%d flashes, %d noise) to %s", len(pts), *flashes, *noise, *out)
	return nil
}

// Simulation frame: a summer evening over the network center, flashes
// separated by well over the default one second time threshold.
const (
	baseTime  = 1718500000.0
	centerLat = 33.6
	centerLon = -101.8
)

func generate(rng *rand.Rand, flashes, pointsPerFlash, noise int) []domain.Point {
	pts := make([]domain.Point, 0, flashes*pointsPerFlash+noise)

	for f := 0; f < flashes; f++ {
		// 30 second spacing keeps flashes in separate partitions.
		start := baseTime + float64(f)*30
		lat := centerLat + rng.Float64()*0.5 - 0.25
		lon := centerLon + rng.Float64()*0.5 - 0.25
		alt := 6000 + rng.Float64()*3000
		t := start

		for i := 0; i < pointsPerFlash; i++ {
			// Leader steps: a few ms and a few hundred meters per step,
			// comfortably inside the default distance and speed bounds.
			t += 0.001 + rng.Float64()*0.02
			lat += (rng.Float64() - 0.5) * 0.004
			lon += (rng.Float64() - 0.5) * 0.004
			alt += (rng.Float64() - 0.5) * 400

			pts = append(pts, domain.Point{
				TimeUnix:    t,
				Lat:         lat,
				Lon:         lon,
				Alt:         alt,
				PowerDB:     -10 + rng.Float64()*40,
				ReducedChi2: rng.Float64() * 2,
				NumStations: 6 + rng.Intn(10),
			})
		}
	}

	window := float64(flashes) * 30
	for i := 0; i < noise; i++ {
		pts = append(pts, domain.Point{
			TimeUnix:    baseTime + rng.Float64()*window,
			Lat:         centerLat + rng.Float64()*2 - 1,
			Lon:         centerLon + rng.Float64()*2 - 1,
			Alt:         rng.Float64() * 15000,
			PowerDB:     -30 + rng.Float64()*20,
			ReducedChi2: 2 + rng.Float64()*48,
			NumStations: 5 + rng.Intn(3),
		})
	}

	return pts
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
