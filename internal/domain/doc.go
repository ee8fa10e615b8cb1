// Package domain models Lightning Mapping Array (LMA) point detections and
// the strike events stitched from them.
//
// # Data Source
//
// Point detections originate from a VHF lightning-mapping sensor network.
// Each station records impulsive RF sources; the network solution yields a
// time-of-arrival fix per source with a goodness-of-fit statistic. The
// upstream collector parses the station export files and publishes each
// solution as flat JSON to the Kafka source topic, one record per point:
//
//	time_unix     seconds since the Unix epoch (fractional, ~40 ns resolution)
//	lat, lon      WGS-84 degrees
//	alt           meters above mean sea level
//	power_db      source power in dBW
//	reduced_chi2  reduced chi-square of the station solution
//	num_stations  stations contributing to the solution
//
// Records that fail to parse or violate basic range checks are rejected at
// ingest and never reach the stitching core.
//
// # Stitching Conventions
//
// A strike is a set of points judged to originate from one physical
// lightning event. Points join a strike when they fall within
// MaxLightningDist meters and MaxLightningTimeThreshold seconds of an
// existing member, and the implied propagation speed between them lies in
// [MinLightningSpeed, MaxLightningSpeed]. All threshold comparisons are
// inclusive, and distances are compared squared against squared thresholds
// so the hot path never takes a square root.
//
// # Local Planar Projection
//
// Distances are measured in a local equirectangular projection anchored at
// the centroid of the filtered dataset, with altitude as a third Cartesian
// axis. The projection error relative to the great-circle distance is below
// 0.1% for separations up to 30 km at mid latitudes, well inside the
// tolerance of the distance thresholds it feeds. See [Projection].
package domain
