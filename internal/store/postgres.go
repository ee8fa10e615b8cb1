package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// PostgresStore is the durable PointStore. Every filterable field has a
// btree index so Query resolves through indexed retrieval rather than full
// scans, which keeps compute sub-linear in the size of the historical table.
type PostgresStore struct {
	db *sql.DB
}

// pointColumns maps predicate field names to their table columns. The
// mapping doubles as the allowlist that keeps predicate fields out of SQL
// string interpolation.
var pointColumns = map[string]string{
	"time_unix":    "time_unix",
	"lat":          "lat",
	"lon":          "lon",
	"alt":          "alt",
	"power_db":     "power_db",
	"reduced_chi2": "reduced_chi2",
	"num_stations": "num_stations",
}

const schema = `
CREATE TABLE IF NOT EXISTS lma_points (
	idx           BIGSERIAL PRIMARY KEY,
	time_unix     DOUBLE PRECISION NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	alt           DOUBLE PRECISION NOT NULL,
	power_db      DOUBLE PRECISION NOT NULL,
	reduced_chi2  DOUBLE PRECISION NOT NULL,
	num_stations  INTEGER NOT NULL,
	content_hash  TEXT NOT NULL UNIQUE
);
CREATE INDEX IF NOT EXISTS lma_points_time_idx ON lma_points (time_unix);
CREATE INDEX IF NOT EXISTS lma_points_lat_idx ON lma_points (lat);
CREATE INDEX IF NOT EXISTS lma_points_lon_idx ON lma_points (lon);
CREATE INDEX IF NOT EXISTS lma_points_alt_idx ON lma_points (alt);
CREATE INDEX IF NOT EXISTS lma_points_power_idx ON lma_points (power_db);
CREATE INDEX IF NOT EXISTS lma_points_chi2_idx ON lma_points (reduced_chi2);
CREATE INDEX IF NOT EXISTS lma_points_stations_idx ON lma_points (num_stations);
`

// NewPostgresStore connects to the database, applies the schema, and
// configures the connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

// Query translates the predicate conjunction to a WHERE clause over indexed
// columns and returns matching indices ordered by (time_unix, idx).
func (s *PostgresStore) Query(ctx context.Context, preds []domain.Predicate) ([]int, error) {
	if err := domain.ValidatePredicates(preds); err != nil {
		return nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT idx FROM lma_points")
	for i, p := range preds {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		col := pointColumns[p.Field]
		op := string(p.Op)
		if p.Op == domain.OpEQ {
			op = "="
		}
		args = append(args, p.Value)
		fmt.Fprintf(&sb, "%s %s $%d", col, op, len(args))
	}
	sb.WriteString(" ORDER BY time_unix, idx")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("scan point index: %w", err)
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

// Fetch returns the point at the given index.
func (s *PostgresStore) Fetch(ctx context.Context, index int) (domain.Point, error) {
	var p domain.Point
	err := s.db.QueryRowContext(ctx,
		`SELECT time_unix, lat, lon, alt, power_db, reduced_chi2, num_stations
		 FROM lma_points WHERE idx = $1`, index,
	).Scan(&p.TimeUnix, &p.Lat, &p.Lon, &p.Alt, &p.PowerDB, &p.ReducedChi2, &p.NumStations)
	if err != nil {
		return domain.Point{}, fmt.Errorf("fetch point %d: %w", index, err)
	}
	return p, nil
}

// FetchBatch returns the points at the given indices, in the given order.
func (s *PostgresStore) FetchBatch(ctx context.Context, indices []int) ([]domain.Point, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(indices))
	args := make([]any, len(indices))
	for i, idx := range indices {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = idx
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, time_unix, lat, lon, alt, power_db, reduced_chi2, num_stations
		 FROM lma_points WHERE idx IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch points: %w", err)
	}
	defer rows.Close()

	byIdx := make(map[int]domain.Point, len(indices))
	for rows.Next() {
		var (
			idx int
			p   domain.Point
		)
		if err := rows.Scan(&idx, &p.TimeUnix, &p.Lat, &p.Lon, &p.Alt, &p.PowerDB, &p.ReducedChi2, &p.NumStations); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		byIdx[idx] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Point, len(indices))
	for i, idx := range indices {
		p, ok := byIdx[idx]
		if !ok {
			return nil, fmt.Errorf("point index %d not found", idx)
		}
		out[i] = p
	}
	return out, nil
}

// InsertBatch inserts points inside one transaction, skipping records whose
// content hash is already present.
func (s *PostgresStore) InsertBatch(ctx context.Context, points []domain.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO lma_points (time_unix, lat, lon, alt, power_db, reduced_chi2, num_stations, content_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (content_hash) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range points {
		res, err := stmt.ExecContext(ctx, p.TimeUnix, p.Lat, p.Lon, p.Alt, p.PowerDB, p.ReducedChi2, p.NumStations, ContentHash(p))
		if err != nil {
			return 0, fmt.Errorf("insert point: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

// DataIdentity summarizes the stored dataset as (count, time extent). Any
// successful ingest moves at least one of the three, which is the same
// dataset-change signal the original research tooling keyed its cache on.
func (s *PostgresStore) DataIdentity(ctx context.Context) (string, error) {
	var (
		count            int
		minTime, maxTime sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), min(time_unix), max(time_unix) FROM lma_points`,
	).Scan(&count, &minTime, &maxTime)
	if err != nil {
		return "", fmt.Errorf("data identity: %w", err)
	}
	return identityString(count, minTime.Float64, maxTime.Float64), nil
}
