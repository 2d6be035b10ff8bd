package ndfilter

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/signal"
)

// EdgeSample is one band's edge pair in unbinned chip pixels.
type EdgeSample struct {
	Y     float64 `json:"y"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Width is the edge separation of the sample.
func (s EdgeSample) Width() float64 {
	return s.Right - s.Left
}

// band is a span of stored rows [y0, y1).
type band struct {
	y0, y1 int
}

func (b band) center() float64 {
	return float64(b.y0) + float64(b.y1-b.y0-1)/2
}

// bands splits the row-cropped frame into cfg.NBands equal bands.
func bands(f *frame.Frame, cfg Config) ([]band, error) {
	bin := f.Binning()
	crop := int(math.Ceil(float64(cfg.RowCrop) / float64(bin.YBin)))
	usable := f.Height - 2*crop
	h := 0
	if cfg.NBands > 0 {
		h = usable / cfg.NBands
	}
	if h < 1 {
		return nil, fmt.Errorf("%d rows cannot hold %d bands: %w", usable, cfg.NBands, frame.ErrInvalidRange)
	}
	out := make([]band, cfg.NBands)
	for i := range out {
		y0 := crop + i*h
		out[i] = band{y0: y0, y1: y0 + h}
	}
	return out, nil
}

// EstimateBandEdges returns one EdgeSample per band in which both filter
// edges were found. Bands that fail their checks are skipped.
//
// ModeOperational requires a prior. In ModeCalibration a prior, when
// given, limits the search to SearchMargin around it.
func EstimateBandEdges(f *frame.Frame, mode Mode, prior *Geometry, cfg Config) ([]EdgeSample, error) {
	if mode == ModeOperational && prior == nil {
		return nil, fmt.Errorf("operational edge search needs a prior geometry")
	}
	if prior != nil {
		p := prior.Rereference(RefYFor(f))
		prior = &p
	}

	bs, err := bands(f, cfg)
	if err != nil {
		return nil, err
	}

	var samples []EdgeSample
	for i, bd := range bs {
		var s *EdgeSample
		var err error
		if mode == ModeOperational {
			s, err = operationalBand(f, bd, prior, cfg)
		} else {
			s, err = calibrationBand(f, bd, prior, cfg)
		}
		if err != nil {
			return nil, err
		}
		if s == nil {
			debugf("[ndfilter] band %d rows [%d,%d): no edge pair", i, bd.y0, bd.y1)
			continue
		}
		debugf("[ndfilter] band %d y=%.1f left=%.1f right=%.1f", i, s.Y, s.Left, s.Right)
		samples = append(samples, *s)
	}
	return samples, nil
}

func calibrationBand(f *frame.Frame, bd band, prior *Geometry, cfg Config) (*EdgeSample, error) {
	bin := f.Binning()
	crop := int(math.Ceil(float64(cfg.ColumnCrop) / float64(bin.XBin)))
	x0, x1 := crop, f.Width-crop

	profile, err := f.Profile(bd.y0, bd.y1, x0, x1)
	if err != nil {
		return nil, err
	}
	e := signal.DetectEdges(profile, cfg.edgeParams(signal.FirstDerivative))
	y := bin.UnbinnedY(bd.center())

	peaks := e.Peaks
	if prior != nil {
		l, r := prior.Edges(y)
		lo, hi := l-cfg.SearchMargin, r+cfg.SearchMargin
		kept := peaks[:0:0]
		for _, p := range peaks {
			if x := bin.UnbinnedX(float64(x0 + p)); x > lo && x < hi {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}
	if len(peaks) < 2 {
		return nil, nil
	}

	sort.SliceStable(peaks, func(i, j int) bool { return e.Signal[peaks[i]] > e.Signal[peaks[j]] })
	_, noise := stat.PopMeanStdDev(signal.Diff(e.Signal), nil)
	if e.Signal[peaks[1]] <= noise {
		return nil, nil
	}

	i, j := peaks[0], peaks[1]
	if i > j {
		i, j = j, i
	}
	s := EdgeSample{
		Y:     y,
		Left:  bin.UnbinnedX(float64(x0 + i)),
		Right: bin.UnbinnedX(float64(x0 + j)),
	}
	if !cfg.widthOK(s.Width()) {
		return nil, nil
	}
	return &s, nil
}

func operationalBand(f *frame.Frame, bd band, prior *Geometry, cfg Config) (*EdgeSample, error) {
	bin := f.Binning()
	width := int(math.Round((prior.Width() + 2*cfg.SearchMargin) / float64(bin.XBin)))
	if width < 3 {
		return nil, nil
	}

	// start is the stored column where the straightened sub-image begins.
	start := func(y float64) int {
		l, _ := prior.Edges(y)
		return int(math.Round(bin.BinnedX(l - cfg.SearchMargin)))
	}

	profile := make([]float64, width)
	for r := bd.y0; r < bd.y1; r++ {
		s0 := start(bin.UnbinnedY(float64(r)))
		row := f.Row(r)
		for j := range profile {
			profile[j] += row[clampInt(s0+j, 0, f.Width-1)]
		}
	}

	e := signal.DetectEdges(profile, cfg.edgeParams(signal.SecondDerivative))
	i, j, ok := bestPair(e, prior.Width()/float64(bin.XBin), cfg.PairTolerance/float64(bin.XBin))
	if !ok {
		return nil, nil
	}

	y := bin.UnbinnedY(bd.center())
	sc := start(y)
	s := EdgeSample{
		Y:     y,
		Left:  bin.UnbinnedX(float64(sc + i)),
		Right: bin.UnbinnedX(float64(sc + j)),
	}
	if !cfg.widthOK(s.Width()) {
		return nil, nil
	}
	return &s, nil
}

// bestPair picks the peak pair whose separation is closest to want. Pairs
// within tol of the best separation are ranked by combined signal.
func bestPair(e signal.EdgeSignal, want, tol float64) (int, int, bool) {
	type pair struct {
		i, j     int
		diff     float64
		strength float64
	}
	var pairs []pair
	best := math.Inf(1)
	for a := 0; a < len(e.Peaks); a++ {
		for b := a + 1; b < len(e.Peaks); b++ {
			i, j := e.Peaks[a], e.Peaks[b]
			p := pair{i: i, j: j, diff: math.Abs(float64(j-i) - want), strength: e.Signal[i] + e.Signal[j]}
			pairs = append(pairs, p)
			best = math.Min(best, p.diff)
		}
	}
	if len(pairs) == 0 {
		return 0, 0, false
	}

	var pick *pair
	for k := range pairs {
		p := &pairs[k]
		if p.diff > best+tol {
			continue
		}
		if pick == nil || p.strength > pick.strength {
			pick = p
		}
	}
	return pick.i, pick.j, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
