package ndfilter

import (
	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
)

// Metadata keys caching a computed geometry on its frame.
const (
	KeyLeftSlope      = "NDPAR00"
	KeyLeftIntercept  = "NDPAR01"
	KeyRightSlope     = "NDPAR10"
	KeyRightIntercept = "NDPAR11"
)

// WriteKeys stores g in meta. Intercepts are stored as measured at g.RefY,
// which for a computed geometry is the frame's own reference row.
func WriteKeys(meta *frame.Metadata, g Geometry) {
	meta.Set(KeyLeftSlope, g.Left.Slope, "ND filt left side slope at Y center of im")
	meta.Set(KeyLeftIntercept, g.Left.Intercept, "ND filt left side offset at Y center of im")
	meta.Set(KeyRightSlope, g.Right.Slope, "ND filt right side slope at Y center of im")
	meta.Set(KeyRightIntercept, g.Right.Intercept, "ND filt right side offset at Y center of im")
}

// ReadKeys returns the cached geometry when all four keys are present.
// The intercepts are taken to be measured at refY.
func ReadKeys(meta *frame.Metadata, refY float64) (*Geometry, bool) {
	var v [4]float64
	for i, k := range []string{KeyLeftSlope, KeyLeftIntercept, KeyRightSlope, KeyRightIntercept} {
		f, ok := meta.Float(k)
		if !ok {
			return nil, false
		}
		v[i] = f
	}
	return &Geometry{
		Left:  fit.Line{Slope: v[0], Intercept: v[1]},
		Right: fit.Line{Slope: v[2], Intercept: v[3]},
		RefY:  refY,
	}, true
}
