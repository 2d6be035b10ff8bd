// Package config loads the JSON tuning file shared by the command line
// tool and the MCP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ironsheep/ndfilter-mcp/internal/centroid"
	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

// DefaultConfigPath is the canonical tuning file, relative to the repository root.
const DefaultConfigPath = "config/tuning.defaults.json"

// InstrumentPrior is a known filter geometry for one instrument, with
// intercepts measured at RefY in unbinned chip pixels.
type InstrumentPrior struct {
	LeftSlope      float64 `json:"left_slope"`
	LeftIntercept  float64 `json:"left_intercept"`
	RightSlope     float64 `json:"right_slope"`
	RightIntercept float64 `json:"right_intercept"`
	RefY           float64 `json:"ref_y"`
}

// Geometry converts the table entry to a filter geometry.
func (p InstrumentPrior) Geometry() ndfilter.Geometry {
	return ndfilter.Geometry{
		Left:  fit.Line{Slope: p.LeftSlope, Intercept: p.LeftIntercept},
		Right: fit.Line{Slope: p.RightSlope, Intercept: p.RightIntercept},
		RefY:  p.RefY,
	}
}

// TuningConfig is the on-disk configuration. Every field is optional;
// the Get* methods supply defaults for fields the file leaves out.
type TuningConfig struct {
	// Band edge search and fitting
	NBands            *int     `json:"n_bands,omitempty"`
	SmoothWidth       *int     `json:"smooth_width,omitempty"`
	EdgeMargin        *float64 `json:"edge_margin,omitempty"`
	SearchMargin      *float64 `json:"search_margin,omitempty"`
	MaxFitResidual    *float64 `json:"max_fit_residual,omitempty"`
	MaxParallelDelta  *float64 `json:"max_parallel_delta,omitempty"`
	MinWidth          *float64 `json:"min_width,omitempty"`
	MaxWidth          *float64 `json:"max_width,omitempty"`
	RowCrop           *int     `json:"row_crop,omitempty"`
	ColumnCrop        *int     `json:"column_crop,omitempty"`
	CalibrationWidths *[2]int  `json:"calibration_widths,omitempty"`
	OperationalWidths *[2]int  `json:"operational_widths,omitempty"`
	MinSNR            *float64 `json:"min_snr,omitempty"`
	PairTolerance     *float64 `json:"pair_tolerance,omitempty"`

	// Centroiding. The on/off-filter thresholds are sensor specific.
	BiasNoise          *float64 `json:"bias_noise,omitempty"`
	ReadNoise          *float64 `json:"read_noise,omitempty"`
	SaturationLevel    *float64 `json:"saturation_level,omitempty"`
	MaxSaturatedPixels *int     `json:"max_saturated_pixels,omitempty"`
	MinBoostedSum      *float64 `json:"min_boosted_sum,omitempty"`
	BrightPixelFloor   *float64 `json:"bright_pixel_floor,omitempty"`
	BoostFactor        *float64 `json:"boost_factor,omitempty"`
	MinTargetIntensity *float64 `json:"min_target_intensity,omitempty"`
	DesiredCenterY     *float64 `json:"desired_center_y,omitempty"`

	// Instrument selects the prior geometry from Instruments.
	Instrument  *string                    `json:"instrument,omitempty"`
	Instruments map[string]InstrumentPrior `json:"instruments,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig reads a TuningConfig from a .json file of at most 1 MiB.
// Fields omitted from the file keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the resolved configuration.
func (c *TuningConfig) Validate() error {
	if err := c.ToNDFilter().Validate(); err != nil {
		return err
	}
	cen := c.ToCentroid()
	if cen.ReadNoise <= 0 {
		return fmt.Errorf("read_noise must be positive, got %g", cen.ReadNoise)
	}
	if cen.BiasNoise < 0 {
		return fmt.Errorf("bias_noise must be non-negative, got %g", cen.BiasNoise)
	}
	if cen.BoostFactor < 1 {
		return fmt.Errorf("boost_factor must be at least 1, got %g", cen.BoostFactor)
	}
	if name := c.GetInstrument(); name != "" {
		if _, ok := c.Instruments[name]; !ok {
			return fmt.Errorf("instrument %q not in instruments table (have %v)", name, c.InstrumentNames())
		}
	}
	return nil
}

// ToNDFilter resolves the geometry estimator configuration.
func (c *TuningConfig) ToNDFilter() ndfilter.Config {
	d := ndfilter.DefaultConfig()
	return ndfilter.Config{
		NBands:            getInt(c.NBands, d.NBands),
		SmoothWidth:       getInt(c.SmoothWidth, d.SmoothWidth),
		EdgeMargin:        getFloat(c.EdgeMargin, d.EdgeMargin),
		SearchMargin:      getFloat(c.SearchMargin, d.SearchMargin),
		MaxFitResidual:    getFloat(c.MaxFitResidual, d.MaxFitResidual),
		MaxParallelDelta:  getFloat(c.MaxParallelDelta, d.MaxParallelDelta),
		MinWidth:          getFloat(c.MinWidth, d.MinWidth),
		MaxWidth:          getFloat(c.MaxWidth, d.MaxWidth),
		RowCrop:           getInt(c.RowCrop, d.RowCrop),
		ColumnCrop:        getInt(c.ColumnCrop, d.ColumnCrop),
		CalibrationWidths: getPair(c.CalibrationWidths, d.CalibrationWidths),
		OperationalWidths: getPair(c.OperationalWidths, d.OperationalWidths),
		MinSNR:            getFloat(c.MinSNR, d.MinSNR),
		PairTolerance:     getFloat(c.PairTolerance, d.PairTolerance),
	}
}

// ToCentroid resolves the centroid estimator configuration.
func (c *TuningConfig) ToCentroid() centroid.Config {
	d := centroid.DefaultConfig()
	return centroid.Config{
		BiasNoise:          getFloat(c.BiasNoise, d.BiasNoise),
		ReadNoise:          getFloat(c.ReadNoise, d.ReadNoise),
		SaturationLevel:    getFloat(c.SaturationLevel, d.SaturationLevel),
		MaxSaturatedPixels: getInt(c.MaxSaturatedPixels, d.MaxSaturatedPixels),
		MinBoostedSum:      getFloat(c.MinBoostedSum, d.MinBoostedSum),
		BrightPixelFloor:   getFloat(c.BrightPixelFloor, d.BrightPixelFloor),
		BoostFactor:        getFloat(c.BoostFactor, d.BoostFactor),
		MinTargetIntensity: getFloat(c.MinTargetIntensity, d.MinTargetIntensity),
		DesiredCenterY:     getFloat(c.DesiredCenterY, d.DesiredCenterY),
	}
}

// GetInstrument returns the selected instrument name, or "".
func (c *TuningConfig) GetInstrument() string {
	if c.Instrument != nil {
		return *c.Instrument
	}
	return ""
}

// Prior returns the selected instrument's geometry, or nil when no
// instrument is selected.
func (c *TuningConfig) Prior() *ndfilter.Geometry {
	p, ok := c.Instruments[c.GetInstrument()]
	if !ok {
		return nil
	}
	g := p.Geometry()
	return &g
}

// InstrumentNames lists the instrument table keys in order.
func (c *TuningConfig) InstrumentNames() []string {
	names := make([]string, 0, len(c.Instruments))
	for k := range c.Instruments {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func getInt(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func getFloat(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func getPair(p *[2]int, def [2]int) [2]int {
	if p != nil {
		return *p
	}
	return def
}
