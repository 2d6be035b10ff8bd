package frame

import "fmt"

// SampleResult is a pixel value with its position in both coordinate systems.
type SampleResult struct {
	Y         int     `json:"y"`
	X         int     `json:"x"`
	UnbinnedY float64 `json:"unbinned_y"`
	UnbinnedX float64 `json:"unbinned_x"`
	Value     float64 `json:"value"`
}

// Sample returns the stored intensity at row y, column x.
//
// Valid ranges are 0..Height-1 and 0..Width-1.
func (f *Frame) Sample(y, x int) (*SampleResult, error) {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return nil, fmt.Errorf("coordinates (y=%d,x=%d) outside frame %dx%d: %w", y, x, f.Width, f.Height, ErrInvalidRange)
	}
	b := f.Binning()
	return &SampleResult{
		Y:         y,
		X:         x,
		UnbinnedY: b.UnbinnedY(float64(y)),
		UnbinnedX: b.UnbinnedX(float64(x)),
		Value:     f.At(y, x),
	}, nil
}

// SampleUnbinned returns the stored pixel that covers the unbinned chip
// position (y, x).
func (f *Frame) SampleUnbinned(y, x float64) (*SampleResult, error) {
	b := f.Binning()
	return f.Sample(int(b.BinnedY(y)), int(b.BinnedX(x)))
}
