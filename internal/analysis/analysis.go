// Package analysis ties the ND filter geometry, mask and target centroid of
// one frame together and computes each of them at most once.
package analysis

import (
	"sync"

	"github.com/ironsheep/ndfilter-mcp/internal/centroid"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

// Options configures an Analysis. Zero-valued configs select the package
// defaults.
type Options struct {
	// Prior is the geometry to search around and fall back to.
	Prior *ndfilter.Geometry

	NDFilter *ndfilter.Config
	Centroid *centroid.Config
}

// Analysis memoizes the derived quantities of a single frame.
//
// Each accessor runs its computation on first call and returns the same
// result, or the same error, on every later call. An Analysis is safe for
// concurrent use. There is no invalidation: analyze a new frame with a new
// Analysis.
type Analysis struct {
	frame *frame.Frame
	prior *ndfilter.Geometry
	nd    ndfilter.Config
	cen   centroid.Config

	geomOnce sync.Once
	geom     *ndfilter.Estimate
	geomErr  error

	maskOnce sync.Once
	mask     *ndfilter.Mask
	maskErr  error

	centOnce sync.Once
	cent     *centroid.Result
	centErr  error

	// replaced in tests to count computations
	estimateGeometry func(*frame.Frame, *ndfilter.Geometry, ndfilter.Config) (*ndfilter.Estimate, error)
	estimateCentroid func(*frame.Frame, ndfilter.Geometry, *ndfilter.Mask, centroid.Config) (*centroid.Result, error)
}

// New prepares an analysis of f. Nothing is computed until an accessor is
// called.
func New(f *frame.Frame, opts Options) *Analysis {
	a := &Analysis{
		frame:            f,
		prior:            opts.Prior,
		nd:               ndfilter.DefaultConfig(),
		cen:              centroid.DefaultConfig(),
		estimateGeometry: ndfilter.EstimateGeometry,
		estimateCentroid: centroid.Estimate,
	}
	if opts.NDFilter != nil {
		a.nd = *opts.NDFilter
	}
	if opts.Centroid != nil {
		a.cen = *opts.Centroid
	}
	return a
}

// Frame returns the analyzed frame.
func (a *Analysis) Frame() *frame.Frame {
	return a.frame
}

// Geometry returns the filter geometry. A geometry already cached in the
// frame metadata is used as is.
func (a *Analysis) Geometry() (*ndfilter.Estimate, error) {
	a.geomOnce.Do(func() {
		if g, ok := ndfilter.ReadKeys(a.frame.Meta, ndfilter.RefYFor(a.frame)); ok {
			a.geom = &ndfilter.Estimate{Geometry: *g, Mode: ndfilter.ModeFor(a.frame.Kind(), a.prior), Cached: true}
			return
		}
		a.geom, a.geomErr = a.estimateGeometry(a.frame, a.prior, a.nd)
	})
	return a.geom, a.geomErr
}

// Mask returns the pixels inside the filter, shrunk by the configured edge
// margin.
func (a *Analysis) Mask() (*ndfilter.Mask, error) {
	a.maskOnce.Do(func() {
		est, err := a.Geometry()
		if err != nil {
			a.maskErr = err
			return
		}
		a.mask, a.maskErr = ndfilter.NewMask(a.frame, est.Geometry, a.nd.EdgeMargin)
	})
	return a.mask, a.maskErr
}

// Centroid returns the target position, desired center, distance to the
// filter midline and filter tilt. Frames that hold no target fail before
// the mask is built.
func (a *Analysis) Centroid() (*centroid.Result, error) {
	a.centOnce.Do(func() {
		if err := centroid.CheckKind(a.frame); err != nil {
			a.centErr = err
			return
		}
		est, err := a.Geometry()
		if err != nil {
			a.centErr = err
			return
		}
		m, err := a.Mask()
		if err != nil {
			a.centErr = err
			return
		}
		a.cent, a.centErr = a.estimateCentroid(a.frame, est.Geometry, m, a.cen)
	})
	return a.cent, a.centErr
}

// ObjectCenter is the target centroid in unbinned chip pixels.
func (a *Analysis) ObjectCenter() (frame.Point, error) {
	c, err := a.Centroid()
	if err != nil {
		return frame.Point{}, err
	}
	return c.ObjectCenter, nil
}

// DesiredCenter is the midline point the target should be moved to. It
// needs only the geometry, so it is available for frames without a target.
func (a *Analysis) DesiredCenter() (frame.Point, error) {
	est, err := a.Geometry()
	if err != nil {
		return frame.Point{}, err
	}
	return centroid.DesiredCenter(a.frame, est.Geometry, a.cen.DesiredCenterY)
}

// Distance is the target's perpendicular distance from the filter midline.
func (a *Analysis) Distance() (float64, error) {
	c, err := a.Centroid()
	if err != nil {
		return 0, err
	}
	return c.Distance, nil
}

// TiltDegrees is the filter midline angle from vertical.
func (a *Analysis) TiltDegrees() (float64, error) {
	est, err := a.Geometry()
	if err != nil {
		return 0, err
	}
	return est.Geometry.TiltDegrees(), nil
}
