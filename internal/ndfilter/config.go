package ndfilter

import (
	"fmt"

	"github.com/ironsheep/ndfilter-mcp/internal/signal"
)

// Config tunes edge detection, fitting and masking. Lengths are in unbinned
// pixels unless noted.
type Config struct {
	// NBands is the number of row bands sampled for edges.
	NBands int `json:"n_bands"`

	// SmoothWidth is the profile smoothing window in stored columns.
	SmoothWidth int `json:"smooth_width"`

	// EdgeMargin shrinks the mask inward from each edge.
	EdgeMargin float64 `json:"edge_margin"`

	// SearchMargin is the slack around the prior's edges searched in
	// operational mode and in calibration mode when a prior exists.
	SearchMargin float64 `json:"search_margin"`

	MaxFitResidual   float64 `json:"max_fit_residual"`
	MaxParallelDelta float64 `json:"max_parallel_delta"`
	MinWidth         float64 `json:"min_width"`
	MaxWidth         float64 `json:"max_width"`

	// RowCrop and ColumnCrop trim the frame border before banding.
	RowCrop    int `json:"row_crop"`
	ColumnCrop int `json:"column_crop"`

	// CalibrationWidths and OperationalWidths are [lo, hi) wavelet scales.
	CalibrationWidths [2]int  `json:"calibration_widths"`
	OperationalWidths [2]int  `json:"operational_widths"`
	MinSNR            float64 `json:"min_snr"`

	// PairTolerance is the slack, in pixels, within which candidate edge
	// pairs count as equally close to the prior width.
	PairTolerance float64 `json:"pair_tolerance"`
}

// DefaultConfig returns the tuning used for the IoIO coronagraph.
func DefaultConfig() Config {
	return Config{
		NBands:            15,
		SmoothWidth:       25,
		EdgeMargin:        5,
		SearchMargin:      50,
		MaxFitResidual:    10,
		MaxParallelDelta:  10,
		MinWidth:          80,
		MaxWidth:          400,
		RowCrop:           10,
		ColumnCrop:        10,
		CalibrationWidths: [2]int{2, 60},
		OperationalWidths: [2]int{8, 80},
		MinSNR:            1,
		PairTolerance:     1,
	}
}

// Validate checks that the configuration can drive an estimate.
func (c Config) Validate() error {
	if c.NBands < 2 {
		return fmt.Errorf("n_bands must be at least 2, got %d", c.NBands)
	}
	if c.SmoothWidth < 1 {
		return fmt.Errorf("smooth_width must be positive, got %d", c.SmoothWidth)
	}
	if c.EdgeMargin < 0 || c.SearchMargin < 0 {
		return fmt.Errorf("margins must be non-negative")
	}
	if c.MinWidth <= 0 || c.MaxWidth <= c.MinWidth {
		return fmt.Errorf("width range [%g, %g] is empty", c.MinWidth, c.MaxWidth)
	}
	if c.RowCrop < 0 || c.ColumnCrop < 0 {
		return fmt.Errorf("crops must be non-negative")
	}
	for _, w := range [][2]int{c.CalibrationWidths, c.OperationalWidths} {
		if w[0] < 1 || w[1] <= w[0] {
			return fmt.Errorf("peak widths [%d, %d) are empty", w[0], w[1])
		}
	}
	return nil
}

func (c Config) edgeParams(d signal.Derivative) signal.EdgeParams {
	w := c.CalibrationWidths
	if d == signal.SecondDerivative {
		w = c.OperationalWidths
	}
	return signal.EdgeParams{
		SmoothWidth: c.SmoothWidth,
		Derivative:  d,
		Widths:      signal.Widths(w[0], w[1]),
		MinSNR:      c.MinSNR,
	}
}

func (c Config) widthOK(w float64) bool {
	return w >= c.MinWidth && w <= c.MaxWidth
}
