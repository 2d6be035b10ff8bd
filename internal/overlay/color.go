package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// falseColorStops run from black through blue, red and yellow to white.
var falseColorStops = []colorful.Color{
	{R: 0, G: 0, B: 0},
	{R: 0, G: 0, B: 0.5},
	{R: 0.8, G: 0, B: 0},
	{R: 1, G: 0.85, B: 0},
	{R: 1, G: 1, B: 1},
}

// falseColorLUT blends the stops in Lab space into 256 entries.
func falseColorLUT() [256]color.RGBA {
	var lut [256]color.RGBA
	segments := float64(len(falseColorStops) - 1)
	for i := range lut {
		t := float64(i) / 255 * segments
		k := int(t)
		if k >= len(falseColorStops)-1 {
			k = len(falseColorStops) - 2
		}
		c := falseColorStops[k].BlendLab(falseColorStops[k+1], t-float64(k)).Clamped()
		r, g, b := c.RGB255()
		lut[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return lut
}

// parseHexColor parses "#RRGGBB", "#RGB" or "#RRGGBBAA".
func parseHexColor(hex string) (color.NRGBA, error) {
	if hex == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	alpha := uint8(255)
	if len(hex) == 9 {
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = uint8(a)
		hex = hex[:7]
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

func colorOr(hex string, def color.NRGBA) color.NRGBA {
	c, err := parseHexColor(hex)
	if err != nil {
		return def
	}
	return c
}

// blend composites c over the pixel at (x, y). Points outside img are
// ignored so lines may run off the edge.
func blend(img *image.RGBA, x, y int, c color.NRGBA) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	if c.A == 255 {
		img.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		return
	}
	dst := img.RGBAAt(x, y)
	a := uint32(c.A)
	mix := func(s, d uint8) uint8 {
		return uint8((uint32(s)*a + uint32(d)*(255-a) + 127) / 255)
	}
	img.SetRGBA(x, y, color.RGBA{R: mix(c.R, dst.R), G: mix(c.G, dst.G), B: mix(c.B, dst.B), A: 255})
}
