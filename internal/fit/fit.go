// Package fit provides robust straight-line fitting for noisy edge samples.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrTooFewPoints reports a fit requested on fewer than two points.
var ErrTooFewPoints = errors.New("at least two points are required")

// maxIterations caps the reweighting loop.
const maxIterations = 100

// convergence is the chi-square reduction below which reweighting stops.
var convergence = 10 * (math.Nextafter(1, 2) - 1)

// Line is y = Intercept + Slope*x.
type Line struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// At evaluates the line.
func (l Line) At(x float64) float64 {
	return l.Intercept + l.Slope*x
}

// Result is a fitted line with the bookkeeping of how it was obtained.
type Result struct {
	Line

	// Used is the number of points in the final fit.
	Used int `json:"used"`

	// Rejected holds the input indices dropped by the residual threshold.
	Rejected []int `json:"rejected,omitempty"`

	// Iterations counts reweighting passes of the final fit.
	Iterations int `json:"iterations"`
}

// Options controls FitLine.
type Options struct {
	// MaxResidual drops points whose residual from the first fit exceeds
	// it, then refits once. Zero disables pruning.
	MaxResidual float64
}

// FitLine fits y = a + b*x to the points, reducing the influence of outliers.
//
// The fit starts from ordinary least squares. With more than two points it
// is refined by iteratively reweighting each point by 1/(r²+1), where r is
// its residual, until the weighted chi-square stops improving. With a
// MaxResidual, points farther than that from the fitted line are dropped
// and, when at least two remain, the reduced set is fitted once more.
//
// Pruning residuals are measured from the reweighted line, not the
// ordinary least-squares start, so a single far outlier cannot drag good
// points past the threshold.
//
// Exactly two points give the exact line through them.
func FitLine(x, y []float64, opts Options) (*Result, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("fit: %d x values but %d y values", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("fit: %d points: %w", len(x), ErrTooFewPoints)
	}

	line, iters, err := irls(x, y)
	if err != nil {
		return nil, err
	}
	res := &Result{Line: line, Used: len(x), Iterations: iters}
	if opts.MaxResidual <= 0 {
		return res, nil
	}

	var keptX, keptY []float64
	var keptIdx []int
	for i := range x {
		if math.Abs(y[i]-line.At(x[i])) > opts.MaxResidual {
			res.Rejected = append(res.Rejected, i)
			continue
		}
		keptX = append(keptX, x[i])
		keptY = append(keptY, y[i])
		keptIdx = append(keptIdx, i)
	}
	if len(res.Rejected) == 0 || len(keptX) < 2 {
		res.Rejected = nil
		return res, nil
	}

	line, iters, err = irls(keptX, keptY)
	if err != nil {
		return nil, err
	}
	res.Line = line
	res.Used = len(keptX)
	res.Iterations = iters
	return res, nil
}

// irls runs least squares followed by iteratively reweighted refits.
func irls(x, y []float64) (Line, int, error) {
	if len(x) == 2 {
		if x[0] == x[1] {
			return Line{}, 0, fmt.Errorf("fit: two points share x=%g", x[0])
		}
		b := (y[1] - y[0]) / (x[1] - x[0])
		return Line{Slope: b, Intercept: y[0] - b*x[0]}, 0, nil
	}

	line := regress(x, y, nil)
	if !valid(line) {
		return Line{}, 0, fmt.Errorf("fit: degenerate x values")
	}

	w := make([]float64, len(x))
	chi2 := chiSquare(x, y, line, nil)
	if chi2 == 0 {
		return line, 0, nil
	}

	iters := 0
	for iters < maxIterations {
		for i := range x {
			r := y[i] - line.At(x[i])
			w[i] = 1 / (r*r + 1)
		}
		next := regress(x, y, w)
		if !valid(next) {
			break
		}
		iters++
		nextChi2 := chiSquare(x, y, next, w)
		reduction := chi2 - nextChi2
		line, chi2 = next, nextChi2
		if chi2 == 0 || reduction < convergence {
			break
		}
	}
	return line, iters, nil
}

func regress(x, y, w []float64) Line {
	alpha, beta := stat.LinearRegression(x, y, w, false)
	return Line{Slope: beta, Intercept: alpha}
}

func valid(l Line) bool {
	return !math.IsNaN(l.Slope) && !math.IsInf(l.Slope, 0) &&
		!math.IsNaN(l.Intercept) && !math.IsInf(l.Intercept, 0)
}

func chiSquare(x, y []float64, l Line, w []float64) float64 {
	var s float64
	for i := range x {
		r := y[i] - l.At(x[i])
		if w != nil {
			r *= math.Sqrt(w[i])
		}
		s += r * r
	}
	return s
}
