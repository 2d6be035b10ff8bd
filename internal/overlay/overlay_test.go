package overlay

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

// testFrame returns a width x height frame whose value is its column.
// A flat frame renders black.
func testFrame(t *testing.T, width, height int, ramp bool, meta *frame.Metadata) *frame.Frame {
	t.Helper()
	pixels := make([]float64, width*height)
	if ramp {
		for i := range pixels {
			pixels[i] = float64(i % width)
		}
	}
	f, err := frame.New(width, height, pixels, meta)
	require.NoError(t, err)
	return f
}

func verticalGeometry() *ndfilter.Geometry {
	return &ndfilter.Geometry{
		Left:  fit.Line{Intercept: 30},
		Right: fit.Line{Intercept: 70},
		RefY:  40,
	}
}

func rgb(img *image.RGBA, x, y int) [3]uint8 {
	c := img.RGBAAt(x, y)
	return [3]uint8{c.R, c.G, c.B}
}

var (
	red   = [3]uint8{255, 0, 0}
	green = [3]uint8{0, 255, 0}
	black = [3]uint8{0, 0, 0}
)

func TestRenderEdgesAndMargins(t *testing.T) {
	f := testFrame(t, 100, 80, false, nil)
	opts := DefaultOptions()
	opts.MarginColor = "#00FF00"

	img, err := Render(f, Annotations{Geometry: verticalGeometry(), EdgeMargin: 5}, opts)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 80), img.Bounds())

	assert.Equal(t, red, rgb(img, 30, 10))
	assert.Equal(t, red, rgb(img, 70, 79))
	assert.Equal(t, black, rgb(img, 50, 10))

	// Margins are dashed in runs of four rows.
	assert.Equal(t, green, rgb(img, 35, 1))
	assert.Equal(t, green, rgb(img, 65, 2))
	assert.Equal(t, black, rgb(img, 35, 5))
}

func TestRenderMarkers(t *testing.T) {
	f := testFrame(t, 100, 80, false, nil)
	ann := Annotations{
		Object:  &frame.Point{Y: 40, X: 50},
		Desired: &frame.Point{Y: 20, X: 50},
	}
	img, err := Render(f, ann, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, green, rgb(img, 52, 40))
	assert.Equal(t, green, rgb(img, 50, 45))
	assert.Equal(t, black, rgb(img, 50, 40), "marker center is open")
	assert.Equal(t, [3]uint8{0, 191, 255}, rgb(img, 50, 22))
}

func TestRenderScalesAndCrops(t *testing.T) {
	f := testFrame(t, 100, 80, false, nil)
	g := verticalGeometry()

	opts := DefaultOptions()
	opts.MaxWidth = 50
	img, err := Render(f, Annotations{Geometry: g}, opts)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 40), img.Bounds())
	assert.Equal(t, red, rgb(img, 15, 10))
	assert.Equal(t, red, rgb(img, 35, 10))

	opts = DefaultOptions()
	region := image.Rect(20, 10, 60, 50)
	opts.Region = &region
	img, err = Render(f, Annotations{Geometry: g}, opts)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 40), img.Bounds())
	assert.Equal(t, red, rgb(img, 10, 0))
	assert.Equal(t, black, rgb(img, 30, 0))
}

func TestRenderBinned(t *testing.T) {
	meta := frame.NewMetadata()
	meta.Set(frame.KeyXBinning, 2, "")
	meta.Set(frame.KeyYBinning, 2, "")
	f := testFrame(t, 50, 40, false, meta)

	img, err := Render(f, Annotations{Geometry: verticalGeometry()}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, red, rgb(img, 15, 20))
	assert.Equal(t, red, rgb(img, 35, 20))
}

func TestRenderStretch(t *testing.T) {
	f := testFrame(t, 100, 10, true, nil)

	img, err := Render(f, Annotations{}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, black, rgb(img, 0, 0))
	assert.Equal(t, [3]uint8{255, 255, 255}, rgb(img, 99, 0))
	mid := rgb(img, 50, 0)
	assert.Equal(t, mid[0], mid[1], "grayscale stretch")

	opts := DefaultOptions()
	opts.Gamma = 2
	bright, err := Render(f, Annotations{}, opts)
	require.NoError(t, err)
	assert.Greater(t, bright.RGBAAt(50, 0).R, mid[0])
}

func TestRenderFalseColor(t *testing.T) {
	f := testFrame(t, 100, 10, true, nil)
	opts := DefaultOptions()
	opts.FalseColor = true

	img, err := Render(f, Annotations{}, opts)
	require.NoError(t, err)

	lo := img.RGBAAt(0, 0)
	assert.LessOrEqual(t, int(lo.R)+int(lo.G)+int(lo.B), 3)
	hi := img.RGBAAt(99, 0)
	assert.GreaterOrEqual(t, int(hi.R)+int(hi.G)+int(hi.B), 762)
	mid := img.RGBAAt(50, 0)
	assert.Greater(t, mid.R, mid.B, "midtones are warm")
}

func TestRenderErrors(t *testing.T) {
	f := testFrame(t, 20, 20, false, nil)

	opts := DefaultOptions()
	opts.LowPercentile, opts.HighPercentile = 0.9, 0.1
	_, err := Render(f, Annotations{}, opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	region := image.Rect(100, 100, 120, 120)
	opts.Region = &region
	_, err = Render(f, Annotations{}, opts)
	assert.Error(t, err)
}

func TestRenderBadColorFallsBack(t *testing.T) {
	f := testFrame(t, 100, 80, false, nil)
	opts := DefaultOptions()
	opts.EdgeColor = "not-a-color"

	img, err := Render(f, Annotations{Geometry: verticalGeometry()}, opts)
	require.NoError(t, err)
	assert.Equal(t, red, rgb(img, 30, 10))
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FF0000", color.NRGBA{R: 255, A: 255}, false},
		{"00FF00", color.NRGBA{G: 255, A: 255}, false},
		{"#fff", color.NRGBA{R: 255, G: 255, B: 255, A: 255}, false},
		{"#0000FF80", color.NRGBA{B: 255, A: 128}, false},
		{"", color.NRGBA{}, true},
		{"#GG0000", color.NRGBA{}, true},
		{"#FF0000ZZ", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBlend(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	blend(img, 0, 0, color.NRGBA{R: 255, A: 128})
	assert.Equal(t, uint8(128), img.RGBAAt(0, 0).R)

	// Out of bounds is a no-op.
	blend(img, 5, 5, color.NRGBA{R: 255, A: 255})
}

func TestEncode(t *testing.T) {
	f := testFrame(t, 30, 20, true, nil)
	img, err := Render(f, Annotations{}, DefaultOptions())
	require.NoError(t, err)

	res, err := Encode(img)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Width)
	assert.Equal(t, 20, res.Height)
	assert.Equal(t, "image/png", res.MimeType)

	raw, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 20), decoded.Bounds())
}

func TestSave(t *testing.T) {
	f := testFrame(t, 30, 20, true, nil)
	img, err := Render(f, Annotations{}, DefaultOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "overlay.png")
	require.NoError(t, Save(path, img))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	decoded, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 20), decoded.Bounds())
}

func TestPlotEdgeFit(t *testing.T) {
	est := &ndfilter.Estimate{
		Geometry: ndfilter.Geometry{
			Left:  fit.Line{Slope: 0.05, Intercept: 150},
			Right: fit.Line{Slope: 0.05, Intercept: 270},
			RefY:  150,
		},
		Samples: []ndfilter.EdgeSample{
			{Y: 20, Left: 143.5, Right: 263.5},
			{Y: 80, Left: 146.5, Right: 266.5},
			{Y: 140, Left: 170, Right: 269.5},
			{Y: 200, Left: 152.5, Right: 272.5},
			{Y: 260, Left: 155.5, Right: 275.5},
		},
		LeftFit:  &fit.Result{Rejected: []int{2}},
		RightFit: &fit.Result{},
	}

	path := filepath.Join(t.TempDir(), "plots", "edges.png")
	require.NoError(t, PlotEdgeFit(est, "edge fit", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlotEdgeFitNoSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.png")
	assert.ErrorIs(t, PlotEdgeFit(nil, "", path), ErrNoSamples)
	assert.ErrorIs(t, PlotEdgeFit(&ndfilter.Estimate{Cached: true}, "", path), ErrNoSamples)
}
