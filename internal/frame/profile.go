package frame

import "fmt"

// Profile sums rows [y0,y1) column by column over the column crop [x0,x1).
//
// The result has x1-x0 entries; entry i is the total intensity of column
// x0+i over the row band. Empty or out-of-bounds spans return an error
// wrapping ErrInvalidRange.
func (f *Frame) Profile(y0, y1, x0, x1 int) ([]float64, error) {
	if y0 < 0 || x0 < 0 || y1 > f.Height || x1 > f.Width {
		return nil, fmt.Errorf("profile rows [%d,%d) cols [%d,%d) outside frame %dx%d: %w",
			y0, y1, x0, x1, f.Width, f.Height, ErrInvalidRange)
	}
	if y0 >= y1 || x0 >= x1 {
		return nil, fmt.Errorf("empty profile rows [%d,%d) cols [%d,%d): %w", y0, y1, x0, x1, ErrInvalidRange)
	}

	profile := make([]float64, x1-x0)
	for y := y0; y < y1; y++ {
		row := f.Pixels[y*f.Width+x0 : y*f.Width+x1]
		for i, v := range row {
			profile[i] += v
		}
	}
	return profile, nil
}

// BandProfile sums rows [y0,y1) over the full frame width.
func (f *Frame) BandProfile(y0, y1 int) ([]float64, error) {
	return f.Profile(y0, y1, 0, f.Width)
}
