package signal

// Gradient returns the derivative of y sampled at the given spacing.
//
// Interior points use central differences, the two end points use
// one-sided first differences. Inputs shorter than two samples give zeros.
func Gradient(y []float64, spacing float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	if spacing == 0 {
		spacing = 1
	}
	out[0] = (y[1] - y[0]) / spacing
	out[n-1] = (y[n-1] - y[n-2]) / spacing
	for i := 1; i < n-1; i++ {
		out[i] = (y[i+1] - y[i-1]) / (2 * spacing)
	}
	return out
}

// Abs returns |v| element-wise.
func Abs(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x < 0 {
			x = -x
		}
		out[i] = x
	}
	return out
}

// Diff returns the first differences v[i+1]-v[i].
func Diff(v []float64) []float64 {
	if len(v) < 2 {
		return nil
	}
	out := make([]float64, len(v)-1)
	for i := range out {
		out[i] = v[i+1] - v[i]
	}
	return out
}

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
