package signal

// Derivative selects the edge signal DetectEdges builds.
type Derivative int

const (
	// FirstDerivative is used on high-contrast calibration frames: the cubic
	// smoothed profile is differentiated once and weighted by the profile.
	FirstDerivative Derivative = 1

	// SecondDerivative is used on low-contrast operational frames: the
	// moving-average smoothed profile is differentiated twice.
	SecondDerivative Derivative = 2
)

// gradientSpacing is the sample spacing assumed when differentiating
// smoothed profiles. It scales the edge signal and the noise estimate alike.
const gradientSpacing = 3

// EdgeParams configures DetectEdges.
type EdgeParams struct {
	SmoothWidth int
	Derivative  Derivative

	// Widths are the wavelet scales searched for peaks.
	Widths []float64
	MinSNR float64
}

// EdgeSignal is the output of DetectEdges.
type EdgeSignal struct {
	// Signal is the non-negative edge strength per profile sample.
	Signal []float64

	// Peaks are candidate edge indices into the profile, ascending.
	Peaks []int
}

// DetectEdges smooths a band profile, derives its edge signal and finds
// candidate edge peaks.
//
// An empty Peaks slice is a normal result for featureless profiles.
func DetectEdges(profile []float64, p EdgeParams) EdgeSignal {
	var s []float64
	switch p.Derivative {
	case SecondDerivative:
		smoothed := SavgolFilter(profile, p.SmoothWidth, 0)
		s = Abs(Gradient(Gradient(smoothed, gradientSpacing), gradientSpacing))
	default:
		smoothed := SavgolFilter(profile, p.SmoothWidth, 3)
		s = Abs(Gradient(smoothed, gradientSpacing))
		for i := range s {
			s[i] *= profile[i]
		}
	}

	return EdgeSignal{
		Signal: s,
		Peaks:  FindPeaksCWT(s, p.Widths, PeakOptions{MinSNR: p.MinSNR}),
	}
}

// Widths returns the integer scales lo, lo+1, ..., hi-1.
func Widths(lo, hi int) []float64 {
	if hi <= lo {
		return nil
	}
	out := make([]float64, 0, hi-lo)
	for w := lo; w < hi; w++ {
		out = append(out, float64(w))
	}
	return out
}
