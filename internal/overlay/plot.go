package overlay

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

// ErrNoSamples is returned when an estimate carries no band samples, as
// for geometries read back from frame metadata.
var ErrNoSamples = errors.New("estimate has no edge samples")

type edgeSeries struct {
	name  string
	value func(ndfilter.EdgeSample) float64
	line  fit.Line
	res   *fit.Result
}

// PlotEdgeFit saves a PNG chart of est's band samples and fitted edges.
// Points the fitter pruned are drawn as crosses.
func PlotEdgeFit(est *ndfilter.Estimate, title, path string) error {
	if est == nil || len(est.Samples) == 0 {
		return ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Row (unbinned px)"
	p.Y.Label.Text = "Column (unbinned px)"

	g := est.Geometry
	series := []edgeSeries{
		{"left", func(s ndfilter.EdgeSample) float64 { return s.Left }, g.Left, est.LeftFit},
		{"right", func(s ndfilter.EdgeSample) float64 { return s.Right }, g.Right, est.RightFit},
	}

	yMin, yMax := est.Samples[0].Y, est.Samples[0].Y
	for _, s := range est.Samples {
		if s.Y < yMin {
			yMin = s.Y
		}
		if s.Y > yMax {
			yMax = s.Y
		}
	}

	colors := seriesColors(len(series))
	for i, se := range series {
		rejected := make(map[int]bool)
		if se.res != nil {
			for _, k := range se.res.Rejected {
				rejected[k] = true
			}
		}
		kept := make(plotter.XYs, 0, len(est.Samples))
		pruned := make(plotter.XYs, 0, len(rejected))
		for k, s := range est.Samples {
			pt := plotter.XY{X: s.Y, Y: se.value(s)}
			if rejected[k] {
				pruned = append(pruned, pt)
			} else {
				kept = append(kept, pt)
			}
		}

		sc, err := plotter.NewScatter(kept)
		if err != nil {
			return fmt.Errorf("%s samples: %w", se.name, err)
		}
		sc.GlyphStyle.Color = colors[i]
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add(se.name+" samples", sc)

		if len(pruned) > 0 {
			px, err := plotter.NewScatter(pruned)
			if err != nil {
				return fmt.Errorf("%s pruned samples: %w", se.name, err)
			}
			px.GlyphStyle.Color = colors[i]
			px.GlyphStyle.Shape = draw.CrossGlyph{}
			px.GlyphStyle.Radius = vg.Points(4)
			p.Add(px)
			p.Legend.Add(se.name+" pruned", px)
		}

		fitted := plotter.XYs{
			{X: yMin, Y: se.line.At(yMin - g.RefY)},
			{X: yMax, Y: se.line.At(yMax - g.RefY)},
		}
		ln, err := plotter.NewLine(fitted)
		if err != nil {
			return fmt.Errorf("%s fit: %w", se.name, err)
		}
		ln.Color = colors[i]
		ln.Width = vg.Points(1)
		p.Add(ln)
		p.Legend.Add(se.name+" fit", ln)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// seriesColors spaces n hues evenly around the wheel.
func seriesColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range colors {
		hue := math.Mod(200+360*float64(i)/float64(n), 360)
		colors[i] = colorful.Hsv(hue, 0.7, 0.8).Clamped()
	}
	return colors
}
