package centroid

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

var (
	// ErrNoTarget reports a calibration frame, which has no target to center.
	ErrNoTarget = errors.New("frame has no target")

	// ErrDesiredCenterOutOfBounds reports a desired center outside the
	// central half of the frame, which means the geometry does not match
	// the frame's binning or subframe.
	ErrDesiredCenterOutOfBounds = errors.New("desired center outside central region of frame")
)

// boostSigma is how many bias-noise units above the mask median a mask
// pixel must be to count as boosted.
const boostSigma = 5

// Result is the target position and its relation to the filter. Points are
// unbinned chip coordinates.
type Result struct {
	ObjectCenter  frame.Point `json:"object_center"`
	DesiredCenter frame.Point `json:"desired_center"`

	// Move is the offset from the object to the desired center.
	Move Offset `json:"move"`

	// Distance is the perpendicular distance from the object to the filter
	// midline.
	Distance    float64 `json:"obj_to_filter_distance"`
	TiltDegrees float64 `json:"filter_tilt_degrees"`

	OnFilter    bool `json:"on_filter"`
	TargetFound bool `json:"target_found"`

	Background      float64 `json:"background"`
	SaturatedPixels int     `json:"saturated_pixels"`
	BoostedPixels   int     `json:"boosted_pixels"`
	BoostedSum      float64 `json:"boosted_sum"`
	TotalIntensity  float64 `json:"total_intensity"`
}

// CheckKind reports whether f can hold a target. Flat fields return
// ErrNoTarget; darks and biases return frame.ErrUnsupportedKind.
func CheckKind(f *frame.Frame) error {
	switch f.Kind() {
	case frame.KindFlat:
		return fmt.Errorf("flat field: %w", ErrNoTarget)
	case frame.KindDark, frame.KindBias:
		return fmt.Errorf("%s frame: %w", f.Kind(), frame.ErrUnsupportedKind)
	}
	return nil
}

// Estimate locates the target in f and compares it with the point on the
// filter midline where it should sit.
//
// If many pixels are saturated, or the mask holds too little boosted
// signal, the target is taken to be off the filter and its centroid is
// the center of mass of all pixels above the bright-pixel floor. Too little
// light in that case is logged and reported through TargetFound, not as an
// error. Otherwise the target is on the filter: boosted mask pixels are
// amplified so they dominate the center of mass.
func Estimate(f *frame.Frame, g ndfilter.Geometry, m *ndfilter.Mask, cfg Config) (*Result, error) {
	if err := CheckKind(f); err != nil {
		return nil, err
	}

	res := &Result{TiltDegrees: g.TiltDegrees()}

	for _, v := range f.Pixels {
		if v > cfg.SaturationLevel {
			res.SaturatedPixels++
		}
	}
	res.Background = EstimateBackground(f.Pixels, cfg.ReadNoise)

	work := f.CopyPixels()
	for i := range work {
		work[i] -= res.Background
	}

	var boosted []int
	if vals := m.Values(work); len(vals) > 0 {
		sort.Float64s(vals)
		thresh := stat.Quantile(0.5, stat.Empirical, vals, nil) + boostSigma*cfg.BiasNoise
		for _, s := range m.Spans {
			for x := s.X0; x < s.X1; x++ {
				i := s.Y*f.Width + x
				if work[i] > thresh {
					boosted = append(boosted, i)
					res.BoostedSum += work[i]
				}
			}
		}
	}
	res.BoostedPixels = len(boosted)

	res.OnFilter = res.SaturatedPixels <= cfg.MaxSaturatedPixels && res.BoostedSum >= cfg.MinBoostedSum
	if res.OnFilter {
		for _, i := range boosted {
			work[i] *= cfg.BoostFactor
		}
	}
	for i, v := range work {
		if v < cfg.BrightPixelFloor {
			work[i] = 0
		}
	}

	center, total := CenterOfMass(work, f.Width, f.Height)
	res.TotalIntensity = total
	res.TargetFound = true
	if !res.OnFilter && total < cfg.MinTargetIntensity {
		log.Printf("[centroid] WARNING: target not found, total intensity %.3g below %.3g; returning best-effort center",
			total, cfg.MinTargetIntensity)
		res.TargetFound = false
	}

	bin := f.Binning()
	res.ObjectCenter = bin.Unbinned(center)

	desired, err := DesiredCenter(f, g, cfg.DesiredCenterY)
	if err != nil {
		return nil, err
	}
	res.DesiredCenter = desired
	res.Move = Measure(res.ObjectCenter, res.DesiredCenter)
	res.Distance = DistanceToLine(res.ObjectCenter, g.Midline(), g.RefY)
	return res, nil
}

// DesiredCenter is the midline point at unbinned row y, or at g.RefY when y
// is zero. It must land in the central half of the stored frame.
func DesiredCenter(f *frame.Frame, g ndfilter.Geometry, y float64) (frame.Point, error) {
	if y == 0 {
		y = g.RefY
	}
	p := frame.Point{Y: y, X: g.Center(y)}

	s := f.Binning().Binned(p)
	w, h := float64(f.Width), float64(f.Height)
	if s.X < w/4 || s.X > 3*w/4 || s.Y < h/4 || s.Y > 3*h/4 {
		return p, fmt.Errorf("desired center (y=%.1f, x=%.1f) is stored pixel (%.1f, %.1f) of %dx%d: %w",
			p.Y, p.X, s.Y, s.X, f.Width, f.Height, ErrDesiredCenterOutOfBounds)
	}
	return p, nil
}
