package ndfilter

import (
	"fmt"

	"github.com/ironsheep/ndfilter-mcp/internal/frame"
)

// Coord is a stored (binned) pixel position.
type Coord struct {
	Y int `json:"y"`
	X int `json:"x"`
}

// Span is the masked column range [X0, X1) of stored row Y.
type Span struct {
	Y  int `json:"y"`
	X0 int `json:"x0"`
	X1 int `json:"x1"`
}

// Mask is the set of pixels strictly inside the filter, row by row.
type Mask struct {
	Spans   []Span
	Binning frame.BinningInfo
	Width   int
	Height  int
}

// NewMask evaluates g at every row of f and keeps the columns between the
// edges, each moved inward by margin unbinned pixels.
//
// Bounds are truncated to whole stored columns. A row whose shrunk interval
// is empty contributes nothing. Any span reaching outside the frame means
// the geometry does not belong to this frame's binning or subframe, and
// returns ErrOutOfBounds.
func NewMask(f *frame.Frame, g Geometry, margin float64) (*Mask, error) {
	b := f.Binning()
	m := &Mask{Binning: b, Width: f.Width, Height: f.Height}
	for y := 0; y < f.Height; y++ {
		l, r := g.Edges(b.UnbinnedY(float64(y)))
		x0 := int(b.BinnedX(l + margin))
		x1 := int(b.BinnedX(r - margin))
		if x1 <= x0 {
			continue
		}
		if x0 < 0 || x1 > f.Width {
			return nil, fmt.Errorf("row %d spans columns [%d,%d) of %d: %w", y, x0, x1, f.Width, ErrOutOfBounds)
		}
		m.Spans = append(m.Spans, Span{Y: y, X0: x0, X1: x1})
	}
	return m, nil
}

// Len is the number of masked pixels.
func (m *Mask) Len() int {
	n := 0
	for _, s := range m.Spans {
		n += s.X1 - s.X0
	}
	return n
}

// Coords enumerates the masked pixels in row-major order.
func (m *Mask) Coords() []Coord {
	out := make([]Coord, 0, m.Len())
	for _, s := range m.Spans {
		for x := s.X0; x < s.X1; x++ {
			out = append(out, Coord{Y: s.Y, X: x})
		}
	}
	return out
}

// UnbinnedCoords enumerates the masked pixels in chip coordinates.
func (m *Mask) UnbinnedCoords() []frame.Point {
	out := make([]frame.Point, 0, m.Len())
	for _, c := range m.Coords() {
		out = append(out, m.Binning.Unbinned(frame.Point{Y: float64(c.Y), X: float64(c.X)}))
	}
	return out
}

// Contains reports whether stored pixel (y, x) is masked.
func (m *Mask) Contains(y, x int) bool {
	for _, s := range m.Spans {
		if s.Y == y {
			return x >= s.X0 && x < s.X1
		}
		if s.Y > y {
			break
		}
	}
	return false
}

// Values gathers the masked pixels of a row-major buffer of the mask's shape.
func (m *Mask) Values(pixels []float64) []float64 {
	out := make([]float64, 0, m.Len())
	for _, s := range m.Spans {
		out = append(out, pixels[s.Y*m.Width+s.X0:s.Y*m.Width+s.X1]...)
	}
	return out
}
