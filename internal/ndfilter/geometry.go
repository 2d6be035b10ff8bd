package ndfilter

import (
	"math"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
)

// Geometry is the pair of filter edge lines in unbinned chip pixels.
//
// Each line maps a row offset from RefY to a column:
// x = Intercept + Slope*(y - RefY).
type Geometry struct {
	Left  fit.Line `json:"left"`
	Right fit.Line `json:"right"`
	RefY  float64  `json:"ref_y"`
}

// RefYFor is the reference row of f in unbinned chip pixels: the middle of
// the area the frame covers.
func RefYFor(f *frame.Frame) float64 {
	b := f.Binning()
	return float64(f.UnbinnedHeight())/2 + float64(b.YOrigin)
}

// Edges returns the left and right edge columns at unbinned row y.
func (g Geometry) Edges(y float64) (left, right float64) {
	return g.Left.At(y - g.RefY), g.Right.At(y - g.RefY)
}

// Center returns the midline column at unbinned row y.
func (g Geometry) Center(y float64) float64 {
	l, r := g.Edges(y)
	return (l + r) / 2
}

// Midline averages the two edges.
func (g Geometry) Midline() fit.Line {
	return fit.Line{
		Slope:     (g.Left.Slope + g.Right.Slope) / 2,
		Intercept: (g.Left.Intercept + g.Right.Intercept) / 2,
	}
}

// Width is the edge separation at RefY.
func (g Geometry) Width() float64 {
	return g.Right.Intercept - g.Left.Intercept
}

// TiltDegrees is the midline angle from vertical. Positive when x grows
// with y.
func (g Geometry) TiltDegrees() float64 {
	return math.Atan(g.Midline().Slope) * 180 / math.Pi
}

// ParallelDelta is how far the edges drift apart, in pixels, between RefY
// and a row half of height away.
func (g Geometry) ParallelDelta(height float64) float64 {
	return math.Abs(g.Right.Slope-g.Left.Slope) * height / 2
}

// Rereference returns the same lines with intercepts measured at refY.
func (g Geometry) Rereference(refY float64) Geometry {
	d := refY - g.RefY
	return Geometry{
		Left:  fit.Line{Slope: g.Left.Slope, Intercept: g.Left.At(d)},
		Right: fit.Line{Slope: g.Right.Slope, Intercept: g.Right.At(d)},
		RefY:  refY,
	}
}

// Mode selects how band edges are searched.
type Mode int

const (
	// ModeCalibration searches raw band profiles for the two strongest edges.
	ModeCalibration Mode = iota

	// ModeOperational straightens rows along a prior geometry and matches
	// edge pairs to the prior width.
	ModeOperational
)

func (m Mode) String() string {
	if m == ModeOperational {
		return "operational"
	}
	return "calibration"
}

// ModeFor picks the search mode for a frame. Flat fields are always
// searched directly. Other frames use the prior when one is supplied.
func ModeFor(kind frame.Kind, prior *Geometry) Mode {
	if kind == frame.KindFlat || prior == nil {
		return ModeCalibration
	}
	return ModeOperational
}
