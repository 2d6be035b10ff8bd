package overlay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

// Options controls how a frame is rendered.
type Options struct {
	// LowPercentile and HighPercentile are the display black and white
	// points, as fractions of the pixel distribution.
	LowPercentile  float64 `json:"low_percentile"`
	HighPercentile float64 `json:"high_percentile"`

	// Gamma above 1 brightens the midtones. 0 and 1 leave them alone.
	Gamma      float64 `json:"gamma"`
	FalseColor bool    `json:"false_color"`

	// Region crops the stored frame before scaling. Nil keeps the whole frame.
	Region *image.Rectangle `json:"-"`

	// MaxWidth scales the output down to at most this many columns.
	MaxWidth int `json:"max_width"`

	EdgeColor    string `json:"edge_color"`
	MarginColor  string `json:"margin_color"`
	ObjectColor  string `json:"object_color"`
	DesiredColor string `json:"desired_color"`
}

// DefaultOptions returns a 1%-99.5% grayscale stretch with red edges,
// translucent yellow margins, a green object mark and a blue desired mark.
func DefaultOptions() Options {
	return Options{
		LowPercentile:  0.01,
		HighPercentile: 0.995,
		Gamma:          1,
		EdgeColor:      "#FF0000",
		MarginColor:    "#FFFF00A0",
		ObjectColor:    "#00FF00",
		DesiredColor:   "#00BFFF",
	}
}

// Annotations are the marks drawn over the frame, in unbinned chip pixels.
// Nil fields are skipped.
type Annotations struct {
	Geometry   *ndfilter.Geometry
	EdgeMargin float64
	Object     *frame.Point
	Desired    *frame.Point
}

// Result is an encoded overlay.
type Result struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

const (
	markerArm = 5
	dashRows  = 4
)

// Render draws f with ann marked on it.
func Render(f *frame.Frame, ann Annotations, opts Options) (*image.RGBA, error) {
	if opts.LowPercentile < 0 || opts.HighPercentile > 1 || opts.HighPercentile <= opts.LowPercentile {
		return nil, fmt.Errorf("invalid stretch percentiles [%g, %g]", opts.LowPercentile, opts.HighPercentile)
	}

	var img image.Image = stretch(f, opts)
	if opts.Gamma > 0 && opts.Gamma != 1 {
		img = adjust.Gamma(img, opts.Gamma)
	}

	var origin image.Point
	if opts.Region != nil {
		r := opts.Region.Intersect(img.Bounds())
		if r.Empty() {
			return nil, fmt.Errorf("region %v is outside the %dx%d frame", *opts.Region, f.Width, f.Height)
		}
		img = imaging.Crop(img, r)
		origin = r.Min
	}

	scale := 1.0
	if w := img.Bounds().Dx(); opts.MaxWidth > 0 && w > opts.MaxWidth {
		scale = float64(opts.MaxWidth) / float64(w)
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)

	c := canvas{img: out, binning: f.Binning(), origin: origin, scale: scale}
	if g := ann.Geometry; g != nil {
		edge := colorOr(opts.EdgeColor, color.NRGBA{R: 255, A: 255})
		c.line(g.Left, *g, 0, edge, false)
		c.line(g.Right, *g, 0, edge, false)
		if ann.EdgeMargin > 0 {
			margin := colorOr(opts.MarginColor, color.NRGBA{R: 255, G: 255, A: 160})
			c.line(g.Left, *g, ann.EdgeMargin, margin, true)
			c.line(g.Right, *g, -ann.EdgeMargin, margin, true)
		}
	}
	if ann.Desired != nil {
		c.marker(*ann.Desired, colorOr(opts.DesiredColor, color.NRGBA{B: 255, A: 255}))
	}
	if ann.Object != nil {
		c.marker(*ann.Object, colorOr(opts.ObjectColor, color.NRGBA{G: 255, A: 255}))
	}
	return out, nil
}

// stretch maps the pixel values between the two percentiles onto 0-255.
func stretch(f *frame.Frame, opts Options) *image.RGBA {
	sorted := f.CopyPixels()
	sort.Float64s(sorted)
	lo := stat.Quantile(opts.LowPercentile, stat.Empirical, sorted, nil)
	hi := stat.Quantile(opts.HighPercentile, stat.Empirical, sorted, nil)
	span := hi - lo

	var lut [256]color.RGBA
	if opts.FalseColor {
		lut = falseColorLUT()
	} else {
		for i := range lut {
			lut[i] = color.RGBA{R: uint8(i), G: uint8(i), B: uint8(i), A: 255}
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x, v := range f.Row(y) {
			t := 0.0
			if span > 0 {
				t = math.Min(math.Max((v-lo)/span, 0), 1)
			}
			img.SetRGBA(x, y, lut[int(t*255+0.5)])
		}
	}
	return img
}

// canvas maps unbinned chip coordinates onto the output image.
type canvas struct {
	img     *image.RGBA
	binning frame.BinningInfo
	origin  image.Point
	scale   float64
}

func (c canvas) toOutput(p frame.Point) (x, y int) {
	s := c.binning.Binned(p)
	x = int(math.Round((s.X - float64(c.origin.X)) * c.scale))
	y = int(math.Round((s.Y - float64(c.origin.Y)) * c.scale))
	return x, y
}

// line draws one edge, shifted right by offset unbinned pixels, one point
// per output row.
func (c canvas) line(edge fit.Line, g ndfilter.Geometry, offset float64, col color.NRGBA, dashed bool) {
	h := c.img.Bounds().Dy()
	for oy := 0; oy < h; oy++ {
		if dashed && (oy/dashRows)%2 == 1 {
			continue
		}
		sy := float64(oy)/c.scale + float64(c.origin.Y)
		uy := c.binning.UnbinnedY(sy)
		ux := edge.At(uy-g.RefY) + offset
		ox := int(math.Round((c.binning.BinnedX(ux) - float64(c.origin.X)) * c.scale))
		blend(c.img, ox, oy, col)
	}
}

// marker draws a cross with an open center.
func (c canvas) marker(p frame.Point, col color.NRGBA) {
	x, y := c.toOutput(p)
	for d := 2; d <= markerArm; d++ {
		blend(c.img, x-d, y, col)
		blend(c.img, x+d, y, col)
		blend(c.img, x, y-d, col)
		blend(c.img, x, y+d, col)
	}
}

// Encode returns img as a base64 PNG.
func Encode(img image.Image) (*Result, error) {
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	b := img.Bounds()
	return &Result{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Save writes img to path as PNG, creating the directory if needed.
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save overlay %s: %w", path, err)
	}
	return nil
}
