package domain

import (
	"fmt"
	"sort"
)

// Op is a comparison operator in a filter predicate.
type Op string

// Supported predicate operators. The comparison semantics are taken
// literally: OpGE and OpLE are closed bounds, OpGT and OpLT open bounds.
const (
	OpGE Op = ">="
	OpLE Op = "<="
	OpGT Op = ">"
	OpLT Op = "<"
	OpEQ Op = "=="
)

// Predicate is one (field, operator, value) filter condition. A predicate
// list is implicitly AND-combined.
type Predicate struct {
	Field string  `json:"field"`
	Op    Op      `json:"op"`
	Value float64 `json:"value"`
}

// InvalidPredicateError reports an unknown field or unsupported operator.
// The query is rejected before any retrieval runs.
type InvalidPredicateError struct {
	Field string
	Op    Op
}

func (e *InvalidPredicateError) Error() string {
	if _, ok := pointFields[e.Field]; !ok {
		return fmt.Sprintf("invalid predicate: unknown field %q", e.Field)
	}
	return fmt.Sprintf("invalid predicate on %s: unsupported operator %q", e.Field, e.Op)
}

// pointFields maps filterable field names to their Point accessors.
var pointFields = map[string]func(Point) float64{
	"time_unix":    func(p Point) float64 { return p.TimeUnix },
	"lat":          func(p Point) float64 { return p.Lat },
	"lon":          func(p Point) float64 { return p.Lon },
	"alt":          func(p Point) float64 { return p.Alt },
	"power_db":     func(p Point) float64 { return p.PowerDB },
	"reduced_chi2": func(p Point) float64 { return p.ReducedChi2 },
	"num_stations": func(p Point) float64 { return float64(p.NumStations) },
}

// PointFieldNames returns the filterable field names in sorted order.
func PointFieldNames() []string {
	names := make([]string, 0, len(pointFields))
	for name := range pointFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the field name and operator.
func (p Predicate) Validate() error {
	if _, ok := pointFields[p.Field]; !ok {
		return &InvalidPredicateError{Field: p.Field, Op: p.Op}
	}
	switch p.Op {
	case OpGE, OpLE, OpGT, OpLT, OpEQ:
		return nil
	default:
		return &InvalidPredicateError{Field: p.Field, Op: p.Op}
	}
}

// ValidatePredicates validates each predicate, returning the first failure.
func ValidatePredicates(preds []Predicate) error {
	for _, p := range preds {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Matches evaluates the predicate against a point. The predicate must have
// been validated first; an unknown field never matches.
func (p Predicate) Matches(pt Point) bool {
	accessor, ok := pointFields[p.Field]
	if !ok {
		return false
	}
	v := accessor(pt)
	switch p.Op {
	case OpGE:
		return v >= p.Value
	case OpLE:
		return v <= p.Value
	case OpGT:
		return v > p.Value
	case OpLT:
		return v < p.Value
	case OpEQ:
		return v == p.Value
	default:
		return false
	}
}

// NormalizePredicates returns a sorted copy of the predicate list so that
// reordered but equivalent filters produce identical cache fingerprints.
func NormalizePredicates(preds []Predicate) []Predicate {
	out := make([]Predicate, len(preds))
	copy(out, preds)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		if out[i].Op != out[j].Op {
			return out[i].Op < out[j].Op
		}
		return out[i].Value < out[j].Value
	})
	return out
}
