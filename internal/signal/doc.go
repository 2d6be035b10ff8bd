// Package signal provides the 1-D signal processing behind ND filter edge
// detection.
//
// A band profile (column sums over a strip of rows) is smoothed with a
// Savitzky-Golay filter, differentiated, and searched for peaks with a
// continuous wavelet transform peak finder. The filter edges show up as
// the two strongest peaks of the resulting edge signal.
//
// # Components
//
//   - SavgolFilter: local polynomial smoothing with interpolated edges
//   - Gradient: central differences with one-sided ends
//   - CWT and FindPeaksCWT: Ricker wavelet transform and ridge line peak search
//   - DetectEdges: the profile to edge-candidate pipeline for both modes
//   - Histogram: fixed-width intensity histogram used for background estimates
//
// # Thread Safety
//
// All functions are pure. They allocate their outputs and never modify
// their inputs, so they may be called concurrently.
//
// # Empty Results
//
// Finding no peak is a normal outcome on noisy or featureless profiles.
// FindPeaksCWT and DetectEdges return an empty slice rather than an error.
package signal
