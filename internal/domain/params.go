package domain

import "fmt"

// Parameters is the immutable configuration for one stitching run. Field
// names mirror the research tooling this service replaced, so stored
// fingerprints and API payloads stay recognizable to operators.
type Parameters struct {
	// MaxLightningDist is the maximum distance in meters between a point
	// and an existing strike member (inclusive).
	MaxLightningDist float64 `json:"max_lightning_dist"`
	// MaxLightningSpeed and MinLightningSpeed bound the implied propagation
	// speed in m/s between a point and its temporally nearest qualifying
	// member (both inclusive).
	MaxLightningSpeed float64 `json:"max_lightning_speed"`
	MinLightningSpeed float64 `json:"min_lightning_speed"`
	// MinLightningPoints is the minimum member count for a strike to be
	// retained after closure.
	MinLightningPoints int `json:"min_lightning_points"`
	// MaxLightningTimeThreshold is the maximum gap in seconds between a
	// point and the most recent qualifying member (inclusive).
	MaxLightningTimeThreshold float64 `json:"max_lightning_time_threshold"`
	// MaxLightningDuration caps a single strike's temporal extent in seconds.
	MaxLightningDuration float64 `json:"max_lightning_duration"`

	// CombineStrikesWithInterceptingTimes enables the combiner pass that
	// merges strikes whose buffered time windows intersect and whose
	// footprints are close.
	CombineStrikesWithInterceptingTimes bool `json:"combine_strikes_with_intercepting_times"`
	// InterceptingTimesExtensionBuffer extends each strike's interval by
	// this many seconds on both ends before the intersection test.
	InterceptingTimesExtensionBuffer float64 `json:"intercepting_times_extension_buffer"`
	// InterceptingTimesExtensionMaxDistance is the maximum start-to-any-point
	// distance in meters for two intercepting strikes to merge.
	InterceptingTimesExtensionMaxDistance float64 `json:"intercepting_times_extension_max_distance"`
}

// speedOfLight is the hard physical ceiling for propagation speed, m/s.
const speedOfLight = 299792458.0

// DefaultParameters returns the operational defaults used by the research
// network this service was built for.
func DefaultParameters() Parameters {
	return Parameters{
		MaxLightningDist:                      50000,
		MaxLightningSpeed:                     speedOfLight / 1000, // km frame: 299792.458 m/s
		MinLightningSpeed:                     0,
		MinLightningPoints:                    300,
		MaxLightningTimeThreshold:             1,
		MaxLightningDuration:                  20,
		CombineStrikesWithInterceptingTimes:   true,
		InterceptingTimesExtensionBuffer:      10,
		InterceptingTimesExtensionMaxDistance: 15000,
	}
}

// InvalidParameterError reports a Parameters field that violates a required
// ordering or positivity invariant. Validation runs before any computation.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// Validate checks the ordering and positivity invariants. It returns the
// first violation as an *InvalidParameterError.
func (p Parameters) Validate() error {
	if p.MaxLightningDist <= 0 {
		return &InvalidParameterError{Field: "max_lightning_dist", Reason: "must be positive"}
	}
	if p.MinLightningSpeed < 0 {
		return &InvalidParameterError{Field: "min_lightning_speed", Reason: "must be non-negative"}
	}
	if p.MinLightningSpeed > p.MaxLightningSpeed {
		return &InvalidParameterError{Field: "min_lightning_speed", Reason: "exceeds max_lightning_speed"}
	}
	if p.MinLightningPoints < 1 {
		return &InvalidParameterError{Field: "min_lightning_points", Reason: "must be at least 1"}
	}
	if p.MaxLightningTimeThreshold <= 0 {
		return &InvalidParameterError{Field: "max_lightning_time_threshold", Reason: "must be positive"}
	}
	if p.MaxLightningDuration <= 0 {
		return &InvalidParameterError{Field: "max_lightning_duration", Reason: "must be positive"}
	}
	if p.MaxLightningDuration < p.MaxLightningTimeThreshold {
		return &InvalidParameterError{Field: "max_lightning_duration", Reason: "below max_lightning_time_threshold"}
	}
	if p.CombineStrikesWithInterceptingTimes {
		if p.InterceptingTimesExtensionBuffer < 0 {
			return &InvalidParameterError{Field: "intercepting_times_extension_buffer", Reason: "must be non-negative"}
		}
		if p.InterceptingTimesExtensionMaxDistance <= 0 {
			return &InvalidParameterError{Field: "intercepting_times_extension_max_distance", Reason: "must be positive"}
		}
	}
	return nil
}
