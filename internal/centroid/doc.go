// Package centroid finds a target's position relative to the ND filter.
//
// The target is either sitting on the filter, where it is attenuated and
// must be picked out of the filter's own glow, or off it, where it is
// bright and often saturated. Estimate decides which case applies from the
// saturated-pixel count and the summed intensity of "boosted" mask pixels,
// then takes an intensity-weighted center of mass of a background-
// subtracted working copy of the frame.
//
// The decision thresholds are calibration constants for one sensor. They
// should be re-derived for any other camera.
package centroid
