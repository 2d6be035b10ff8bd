package signal

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Ricker returns the Mexican hat wavelet of width a sampled at n points.
func Ricker(n int, a float64) []float64 {
	amp := 2 / (math.Sqrt(3*a) * math.Pow(math.Pi, 0.25))
	wsq := a * a
	out := make([]float64, n)
	for i := range out {
		t := float64(i) - float64(n-1)/2
		xsq := t * t
		out[i] = amp * (1 - xsq/wsq) * math.Exp(-xsq/(2*wsq))
	}
	return out
}

// CWT returns the Ricker wavelet transform of x, one row per width.
//
// Each row is the 'same'-length convolution of x with a wavelet of
// min(10*width, len(x)) points.
func CWT(x []float64, widths []float64) [][]float64 {
	out := make([][]float64, len(widths))
	for r, w := range widths {
		n := int(math.Min(10*w, float64(len(x))))
		out[r] = convolveSame(x, Ricker(n, w))
	}
	return out
}

// convolveSame returns the central len(x) samples of the full convolution.
func convolveSame(x, k []float64) []float64 {
	n, m := len(x), len(k)
	out := make([]float64, n)
	if m == 0 {
		return out
	}
	off := (m - 1) / 2
	for i := range out {
		// full index f = i + off; sum over j of x[j]*k[f-j]
		f := i + off
		lo := f - (m - 1)
		if lo < 0 {
			lo = 0
		}
		hi := f
		if hi > n-1 {
			hi = n - 1
		}
		var s float64
		for j := lo; j <= hi; j++ {
			s += x[j] * k[f-j]
		}
		out[i] = s
	}
	return out
}

// PeakOptions tunes FindPeaksCWT. Zero values select the usual defaults.
type PeakOptions struct {
	// MinSNR is the minimum ratio of ridge amplitude to local noise.
	MinSNR float64

	// NoisePercentile is the percentile (0-100) of the smallest-scale row
	// used as the local noise floor. Default 10.
	NoisePercentile float64

	// MinLength is the minimum ridge line length in rows.
	// Default ceil(len(widths)/4).
	MinLength int

	// WindowSize is the noise window in samples. Default ceil(len(x)/20).
	WindowSize int
}

type ridgeLine struct {
	rows []int
	cols []int
	gap  int
}

// FindPeaksCWT locates peaks in x by following relative maxima of its
// wavelet transform across scales.
//
// A ridge line starts at the largest scale with any maximum and is extended
// towards smaller scales, joining maxima within width/4 columns. A line that
// goes more than ceil(widths[0]) rows without a match is closed. Lines
// shorter than MinLength or below MinSNR are dropped. The returned indices
// are the smallest-scale positions of the surviving lines, sorted and
// without duplicates.
func FindPeaksCWT(x []float64, widths []float64, opts PeakOptions) []int {
	if len(x) < 3 || len(widths) == 0 {
		return nil
	}
	if opts.NoisePercentile <= 0 {
		opts.NoisePercentile = 10
	}
	if opts.MinLength <= 0 {
		opts.MinLength = int(math.Ceil(float64(len(widths)) / 4))
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = int(math.Ceil(float64(len(x)) / 20))
	}

	cwt := CWT(x, widths)
	maxDist := make([]float64, len(widths))
	for i, w := range widths {
		maxDist[i] = w / 4
	}
	lines := ridgeLines(cwt, maxDist, int(math.Ceil(widths[0])))

	noise := rowNoise(cwt[0], opts.WindowSize, opts.NoisePercentile/100)

	seen := make(map[int]bool)
	var peaks []int
	for _, l := range lines {
		if len(l.rows) < opts.MinLength {
			continue
		}
		r0, c0 := l.rows[0], l.cols[0]
		if nz := noise[c0]; nz != 0 {
			if math.Abs(cwt[r0][c0]/nz) < opts.MinSNR {
				continue
			}
		}
		if !seen[c0] {
			seen[c0] = true
			peaks = append(peaks, c0)
		}
	}
	sort.Ints(peaks)
	return peaks
}

// relativeMaxima returns the columns strictly greater than both neighbours.
// End points are never maxima.
func relativeMaxima(row []float64) []int {
	var cols []int
	for i := 1; i < len(row)-1; i++ {
		if row[i] > row[i-1] && row[i] > row[i+1] {
			cols = append(cols, i)
		}
	}
	return cols
}

func ridgeLines(cwt [][]float64, maxDist []float64, gapThresh int) []*ridgeLine {
	maxima := make([][]int, len(cwt))
	start := -1
	for r, row := range cwt {
		maxima[r] = relativeMaxima(row)
		if len(maxima[r]) > 0 {
			start = r
		}
	}
	if start < 0 {
		return nil
	}

	var active, closed []*ridgeLine
	for _, c := range maxima[start] {
		active = append(active, &ridgeLine{rows: []int{start}, cols: []int{c}})
	}

	for r := start - 1; r >= 0; r-- {
		for _, l := range active {
			l.gap++
		}
		prev := make([]int, len(active))
		for i, l := range active {
			prev[i] = l.cols[len(l.cols)-1]
		}

		for _, c := range maxima[r] {
			var line *ridgeLine
			if len(prev) > 0 {
				best, bestDiff := 0, math.MaxInt
				for i, p := range prev {
					d := c - p
					if d < 0 {
						d = -d
					}
					if d < bestDiff {
						best, bestDiff = i, d
					}
				}
				if float64(bestDiff) <= maxDist[r] {
					line = active[best]
				}
			}
			if line != nil {
				line.rows = append(line.rows, r)
				line.cols = append(line.cols, c)
				line.gap = 0
			} else {
				active = append(active, &ridgeLine{rows: []int{r}, cols: []int{c}})
			}
		}

		kept := active[:0]
		for _, l := range active {
			if l.gap > gapThresh {
				closed = append(closed, l)
			} else {
				kept = append(kept, l)
			}
		}
		active = kept
	}

	all := append(closed, active...)
	for _, l := range all {
		// rows were appended from large scale to small; flip to ascending.
		for i, j := 0, len(l.rows)-1; i < j; i, j = i+1, j-1 {
			l.rows[i], l.rows[j] = l.rows[j], l.rows[i]
			l.cols[i], l.cols[j] = l.cols[j], l.cols[i]
		}
	}
	return all
}

// rowNoise returns, per column, the p-quantile of row over a centered window.
func rowNoise(row []float64, window int, p float64) []float64 {
	half, odd := window/2, window%2
	n := len(row)
	out := make([]float64, n)
	buf := make([]float64, 0, window+1)
	for i := range row {
		lo := clamp(i-half, 0, n)
		hi := clamp(i+half+odd, 0, n)
		buf = append(buf[:0], row[lo:hi]...)
		if len(buf) == 0 {
			continue
		}
		sort.Float64s(buf)
		out[i] = stat.Quantile(p, stat.LinInterp, buf, nil)
	}
	return out
}
