package centroid

import (
	"github.com/ironsheep/ndfilter-mcp/internal/signal"
)

// histogramWidths are the wavelet scales, in bins, searched for the
// background peak.
var histogramWidths = signal.Widths(10, 50)

// refineBins is how far the first histogram peak may be nudged to the
// tallest nearby bin.
const refineBins = 10

// EstimateBackground returns the intensity of the lowest prominent peak of
// the pixel histogram, which on a coronagraph frame is the unilluminated
// margin. Bins are readNoise wide.
func EstimateBackground(pixels []float64, readNoise float64) float64 {
	counts, centers := signal.Histogram(pixels, readNoise)
	if len(counts) == 0 {
		return 0
	}

	peaks := signal.FindPeaksCWT(counts, histogramWidths, signal.PeakOptions{MinSNR: 1})
	if len(peaks) == 0 {
		return centers[argmax(counts, 0, len(counts))]
	}
	p := peaks[0]
	lo, hi := p-refineBins, p+refineBins+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(counts) {
		hi = len(counts)
	}
	return centers[argmax(counts, lo, hi)]
}

func argmax(v []float64, lo, hi int) int {
	best := lo
	for i := lo; i < hi; i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
