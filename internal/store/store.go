// Package store provides the durable point table behind the stitching core.
// The core never scans the table itself: it pushes filter predicates into
// Query and works with the returned index lists.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
)

// PointStore is the retrieval and ingest interface for LMA points.
//
// Query returns the indices of all points satisfying every predicate,
// ordered by time_unix with the index as the stable tiebreaker. Indices are
// stable for the lifetime of the store.
//
// InsertBatch deduplicates via the content hash of each record; re-ingesting
// the same records is a no-op and returns the number actually inserted.
//
// DataIdentity returns a marker that changes whenever the stored dataset
// changes, used as the dataset component of cache fingerprints.
type PointStore interface {
	Query(ctx context.Context, preds []domain.Predicate) ([]int, error)
	Fetch(ctx context.Context, index int) (domain.Point, error)
	FetchBatch(ctx context.Context, indices []int) ([]domain.Point, error)
	InsertBatch(ctx context.Context, points []domain.Point) (int, error)
	DataIdentity(ctx context.Context) (string, error)
}

// ContentHash returns the deduplication hash of a point record: a SHA-256
// over the canonical rendering of every field. Two records with identical
// field values always collide, which is exactly the dedup contract.
func ContentHash(p domain.Point) string {
	h := sha256.New()
	for _, v := range []float64{p.TimeUnix, p.Lat, p.Lon, p.Alt, p.PowerDB, p.ReducedChi2} {
		h.Write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
		h.Write([]byte{'|'})
	}
	h.Write([]byte(strconv.Itoa(p.NumStations)))
	return hex.EncodeToString(h.Sum(nil))
}

// identityString renders the dataset summary used by DataIdentity
// implementations: point count plus the time extent. Any ingest changes at
// least one of the three.
func identityString(count int, minTime, maxTime float64) string {
	s := fmt.Sprintf("%d_%s_%s",
		count,
		strconv.FormatFloat(minTime, 'g', -1, 64),
		strconv.FormatFloat(maxTime, 'g', -1, 64),
	)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
