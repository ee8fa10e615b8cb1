package engine

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// ExportCSV writes each strike to its own CSV file under dir, one row per
// point in time order, named after the strike's start time. An existing
// file name gets a numeric suffix rather than being overwritten.
func (e *Engine) ExportCSV(ctx context.Context, strikes []domain.Strike, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	for _, s := range strikes {
		points, err := e.store.FetchBatch(ctx, s.Points)
		if err != nil {
			return fmt.Errorf("fetch strike points: %w", err)
		}

		name := time.Unix(int64(s.StartTime), 0).UTC().Format("2006-01-02 15-04-05 UTC")
		path := filepath.Join(dir, name+".csv")
		for n := 1; ; n++ {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				break
			}
			path = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", name, n))
		}

		if err := writeStrikeCSV(path, points); err != nil {
			return err
		}
		e.logger.Info("exported strike csv", "path", path, "points", len(points))
	}
	return nil
}

func writeStrikeCSV(path string, points []domain.Point) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close() //nolint:errcheck // flush errors surface via w.Error

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time_unix", "lat", "lon", "alt", "power_db", "reduced_chi2", "num_stations"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			strconv.FormatFloat(p.TimeUnix, 'f', -1, 64),
			strconv.FormatFloat(p.Lat, 'f', -1, 64),
			strconv.FormatFloat(p.Lon, 'f', -1, 64),
			strconv.FormatFloat(p.Alt, 'f', -1, 64),
			strconv.FormatFloat(p.PowerDB, 'f', -1, 64),
			strconv.FormatFloat(p.ReducedChi2, 'f', -1, 64),
			strconv.Itoa(p.NumStations),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}
