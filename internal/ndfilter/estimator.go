package ndfilter

import (
	"fmt"
	"log"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
)

// Estimate is the outcome of EstimateGeometry.
type Estimate struct {
	Geometry Geometry     `json:"geometry"`
	Mode     Mode         `json:"mode"`
	Samples  []EdgeSample `json:"samples,omitempty"`
	LeftFit  *fit.Result  `json:"left_fit,omitempty"`
	RightFit *fit.Result  `json:"right_fit,omitempty"`

	// Fallback is set when Geometry is the prior because the frame did not
	// yield a valid fit. Reason says why.
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`

	// Cached is set when Geometry was read back from the frame metadata.
	Cached bool `json:"cached"`
}

// MarshalText renders the mode name in JSON output.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// EstimateGeometry fits the filter edges of f.
//
// prior is optional. It selects operational mode for light frames and is
// returned, with a logged warning, when the frame's own fit fails. On
// success the geometry is written into f.Meta under the NDPAR keys; a
// fallback leaves the metadata untouched.
func EstimateGeometry(f *frame.Frame, prior *Geometry, cfg Config) (*Estimate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ND filter config: %w", err)
	}
	kind := f.Kind()
	if kind == frame.KindDark || kind == frame.KindBias {
		return nil, fmt.Errorf("%s frame has no filter to measure: %w", kind, frame.ErrUnsupportedKind)
	}

	refY := RefYFor(f)
	if prior != nil {
		p := prior.Rereference(refY)
		prior = &p
	}

	est := &Estimate{Mode: ModeFor(kind, prior)}
	fallback := func(cause error, detail string) (*Estimate, error) {
		if prior == nil {
			return nil, fmt.Errorf("%s: %w", detail, cause)
		}
		log.Printf("[ndfilter] WARNING: %s; using prior geometry", detail)
		est.Geometry = *prior
		est.Fallback = true
		est.Reason = detail
		return est, nil
	}

	samples, err := EstimateBandEdges(f, est.Mode, prior, cfg)
	if err != nil {
		return nil, err
	}
	est.Samples = samples
	if len(samples) < 2 {
		return fallback(ErrGeometryNotFound, fmt.Sprintf("only %d usable edge bands", len(samples)))
	}

	ys := make([]float64, len(samples))
	lefts := make([]float64, len(samples))
	rights := make([]float64, len(samples))
	for i, s := range samples {
		ys[i] = s.Y - refY
		lefts[i] = s.Left
		rights[i] = s.Right
	}

	opts := fit.Options{MaxResidual: cfg.MaxFitResidual}
	if est.LeftFit, err = fit.FitLine(ys, lefts, opts); err != nil {
		return fallback(ErrGeometryNotFound, fmt.Sprintf("left edge fit failed: %v", err))
	}
	if est.RightFit, err = fit.FitLine(ys, rights, opts); err != nil {
		return fallback(ErrGeometryNotFound, fmt.Sprintf("right edge fit failed: %v", err))
	}

	g := Geometry{Left: est.LeftFit.Line, Right: est.RightFit.Line, RefY: refY}
	if dp := g.ParallelDelta(float64(f.UnbinnedHeight())); dp > cfg.MaxParallelDelta {
		return fallback(ErrGeometryNotParallel, fmt.Sprintf("edges are off by %.1f pixels", dp))
	}
	if w := g.Width(); !cfg.widthOK(w) {
		return fallback(ErrGeometryWidth, fmt.Sprintf("filter width %.1f outside [%g, %g]", w, cfg.MinWidth, cfg.MaxWidth))
	}

	est.Geometry = g
	WriteKeys(f.Meta, g)
	return est, nil
}
