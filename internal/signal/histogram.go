package signal

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Histogram bins values into fixed-width bins spanning [min, max].
//
// The bin count is int((max-min)/binWidth), at least one. counts[i] is the
// number of values in bin i and centers[i] is that bin's midpoint. The
// maximum value falls in the last bin.
func Histogram(values []float64, binWidth float64) (counts, centers []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	nbins := 1
	if binWidth > 0 {
		nbins = int((hi - lo) / binWidth)
	}
	if nbins < 1 {
		nbins = 1
	}

	step := (hi - lo) / float64(nbins)
	dividers := make([]float64, nbins+1)
	for i := range dividers {
		dividers[i] = lo + float64(i)*step
	}
	dividers[nbins] = math.Nextafter(hi, math.Inf(1))
	if dividers[nbins] <= dividers[0] {
		dividers[nbins] = dividers[0] + 1
	}

	counts = stat.Histogram(nil, dividers, sorted, nil)
	centers = make([]float64, nbins)
	for i := range centers {
		centers[i] = (dividers[i] + dividers[i+1]) / 2
	}
	if step > 0 {
		centers[nbins-1] = lo + (float64(nbins)-0.5)*step
	}
	return counts, centers
}
