// Package ndfilter locates the linear neutral-density filter that crosses a
// coronagraph frame.
//
// The filter is modelled as the strip between two nearly parallel lines.
// Each line is parameterised as x = intercept + slope*(y - RefY) in
// unbinned full-chip pixels, where RefY is the frame's central row.
//
// # Pipeline
//
//  1. EstimateBandEdges splits the frame into horizontal bands and finds the
//     left and right filter edge in each band's column profile.
//  2. EstimateGeometry fits one robust line per edge, checks that the lines
//     are parallel and a plausible distance apart, and writes the result
//     into the frame metadata (NDPAR00..NDPAR11).
//  3. NewMask enumerates the pixels between the lines, shrunk by a margin.
//
// # Modes
//
// Flat fields have strong edge contrast and are searched directly
// (ModeCalibration). Light frames usually do not, so when a prior geometry
// is available each row is shifted to straighten the prior's tilted edges
// and the summed sub-image is searched for the pair of edges whose
// separation best matches the prior width (ModeOperational).
//
// # Failures
//
// A band that yields no usable edge pair is skipped silently. A frame that
// yields fewer than two bands, or lines that fail validation, falls back to
// the prior geometry with a logged warning. Without a prior the estimator
// returns ErrGeometryNotFound, ErrGeometryNotParallel or ErrGeometryWidth.
package ndfilter
