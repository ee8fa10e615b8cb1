// Package cache memoizes strike computations per (filter, parameters,
// dataset) fingerprint. Entries persist in an embedded Badger database and
// are evicted only by explicit operator action, never by age. The original
// research tooling kept a mutable pickle file next to the process; the
// cache here is an injectable service with a defined concurrency contract
// so the at-most-once guarantee is testable in isolation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"

	"github.com/CorniiDog/lightning-research-application/internal/domain"
	"github.com/CorniiDog/lightning-research-application/internal/observability"
)

// Result is one finalized, immutable computation output.
type Result struct {
	Fingerprint string          `json:"fingerprint"`
	Strikes     []domain.Strike `json:"strikes"`
	PointCount  int             `json:"point_count"` // points across all strikes
	ComputedAt  time.Time       `json:"computed_at"`
}

// ComputeFunc produces the result for a fingerprint on a cache miss.
type ComputeFunc func(ctx context.Context) (*Result, error)

// ResultCache maps fingerprints to computed strike sets.
//
// GetOrCompute guarantees at most one computation per fingerprint even
// under concurrent callers: the first caller computes while later callers
// for the same fingerprint block until the result is published, then all
// receive the same value. Distinct fingerprints compute concurrently.
type ResultCache struct {
	db      *badger.DB
	flight  singleflight.Group
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Open opens (or creates) the Badger database backing the cache. An empty
// path selects in-memory mode, used by tests and cache-less deployments.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open result cache: %w", err)
	}
	return db, nil
}

// New creates a ResultCache over an open Badger database.
func New(db *badger.DB, logger *slog.Logger, metrics *observability.Metrics) *ResultCache {
	return &ResultCache{db: db, logger: logger, metrics: metrics}
}

// GetOrCompute returns the cached result for the fingerprint, or invokes
// compute exactly once, stores the result, and returns it. A persisted
// entry that fails to deserialize is treated as a miss: logged, recomputed,
// and overwritten.
func (c *ResultCache) GetOrCompute(ctx context.Context, fingerprint string, compute ComputeFunc) (*Result, error) {
	v, err, _ := c.flight.Do(fingerprint, func() (any, error) {
		if r := c.lookup(fingerprint); r != nil {
			c.metrics.CacheHits.Inc()
			return r, nil
		}
		c.metrics.CacheMisses.Inc()

		r, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.put(fingerprint, r); err != nil {
			// A failed write degrades the next call to a recompute; the
			// current result is still valid.
			c.logger.Warn("result cache write failed", "fingerprint", fingerprint, "error", err)
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// lookup returns the stored result, or nil on a miss or corrupt entry.
func (c *ResultCache) lookup(fingerprint string) *Result {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(fingerprint))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		c.metrics.CacheErrors.Inc()
		c.logger.Warn("result cache read failed, treating as miss", "fingerprint", fingerprint, "error", err)
		return nil
	}

	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		c.metrics.CacheErrors.Inc()
		c.logger.Warn("corrupt result cache entry, recomputing", "fingerprint", fingerprint, "error", err)
		return nil
	}
	return &r
}

func (c *ResultCache) put(fingerprint string, r *Result) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(fingerprint), raw)
	})
}

// Clear drops every cache entry. This is the only eviction path.
func (c *ResultCache) Clear(_ context.Context) error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("clear result cache: %w", err)
	}
	c.logger.Info("result cache cleared")
	return nil
}

// Close closes the underlying database.
func (c *ResultCache) Close() error { return c.db.Close() }

func entryKey(fingerprint string) []byte {
	return []byte("result/" + fingerprint)
}
