package centroid

import (
	"math"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
)

// Offset describes the move from one point to another.
type Offset struct {
	DistancePixels float64 `json:"distance_pixels"`
	DeltaX         float64 `json:"delta_x"`
	DeltaY         float64 `json:"delta_y"`

	// AngleDegrees is measured from +x towards +y.
	AngleDegrees float64 `json:"angle_degrees"`
}

// Measure returns the offset from a to b.
func Measure(a, b frame.Point) Offset {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return Offset{
		DistancePixels: math.Hypot(dx, dy),
		DeltaX:         dx,
		DeltaY:         dy,
		AngleDegrees:   math.Atan2(dy, dx) * 180 / math.Pi,
	}
}

// DistanceToLine is the perpendicular distance from p to the line
// x = l.Intercept + l.Slope*(y - refY).
func DistanceToLine(p frame.Point, l fit.Line, refY float64) float64 {
	c := l.Intercept - l.Slope*refY
	return math.Abs(p.X-l.Slope*p.Y-c) / math.Sqrt(1+l.Slope*l.Slope)
}

// CenterOfMass returns the intensity-weighted mean position of a row-major
// buffer and its total intensity. A zero total gives the geometric center.
func CenterOfMass(pixels []float64, width, height int) (frame.Point, float64) {
	var total, sy, sx float64
	for y := 0; y < height; y++ {
		row := pixels[y*width : (y+1)*width]
		var rowSum float64
		for x, v := range row {
			rowSum += v
			sx += v * float64(x)
		}
		sy += rowSum * float64(y)
		total += rowSum
	}
	if total == 0 {
		return frame.Point{Y: float64(height-1) / 2, X: float64(width-1) / 2}, 0
	}
	return frame.Point{Y: sy / total, X: sx / total}, total
}
