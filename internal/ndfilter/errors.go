package ndfilter

import "errors"

var (
	// ErrGeometryNotFound reports fewer than two usable edge bands and no prior.
	ErrGeometryNotFound = errors.New("ND filter geometry not found")

	// ErrGeometryNotParallel reports fitted edges that diverge by more than
	// the parallelism tolerance, with no prior to fall back to.
	ErrGeometryNotParallel = errors.New("ND filter edges are not parallel")

	// ErrGeometryWidth reports a fitted filter width outside the allowed range,
	// with no prior to fall back to.
	ErrGeometryWidth = errors.New("ND filter width out of range")

	// ErrOutOfBounds reports mask coordinates outside the frame, which means
	// the geometry and the frame's binning or subframe disagree.
	ErrOutOfBounds = errors.New("ND filter mask out of frame bounds")
)
