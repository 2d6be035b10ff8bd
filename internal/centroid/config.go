package centroid

// Config holds the photometric thresholds used by Estimate. Intensities
// are in ADU.
type Config struct {
	BiasNoise          float64 `json:"bias_noise"`
	ReadNoise          float64 `json:"read_noise"`
	SaturationLevel    float64 `json:"saturation_level"`
	MaxSaturatedPixels int     `json:"max_saturated_pixels"`
	MinBoostedSum      float64 `json:"min_boosted_sum"`
	BrightPixelFloor   float64 `json:"bright_pixel_floor"`
	BoostFactor        float64 `json:"boost_factor"`
	MinTargetIntensity float64 `json:"min_target_intensity"`

	// DesiredCenterY is the unbinned row of the desired center. Zero
	// selects the geometry's reference row.
	DesiredCenterY float64 `json:"desired_center_y"`
}

// DefaultConfig returns thresholds tuned for the IoIO camera.
func DefaultConfig() Config {
	return Config{
		BiasNoise:          20,
		ReadNoise:          5,
		SaturationLevel:    60000,
		MaxSaturatedPixels: 1000,
		MinBoostedSum:      1e6,
		BrightPixelFloor:   1000,
		BoostFactor:        1000,
		MinTargetIntensity: 1e5,
	}
}
