package signal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SavgolFilter smooths x with a Savitzky-Golay filter of the given odd
// window length and polynomial degree.
//
// Interior samples use the centered least-squares polynomial. The first and
// last window/2 samples are taken from the polynomial fitted to the first or
// last full window, so edges are not padded with invented data.
//
// A window longer than x is shrunk to the largest odd length that still
// exceeds degree. If no such window exists, or the window's fit matrix
// cannot be inverted, a copy of x is returned.
func SavgolFilter(x []float64, window, degree int) []float64 {
	out := make([]float64, len(x))
	copy(out, x)

	if window%2 == 0 {
		window--
	}
	if window > len(x) {
		window = len(x)
		if window%2 == 0 {
			window--
		}
	}
	if degree < 0 || window <= degree || window < 1 {
		return out
	}

	h, err := projection(window, degree)
	if err != nil {
		return out
	}
	half := window / 2
	n := len(x)

	for i := half; i < n-half; i++ {
		out[i] = dotRow(h, half, x[i-half:i+half+1])
	}
	for i := 0; i < half; i++ {
		out[i] = dotRow(h, i, x[:window])
		out[n-half+i] = dotRow(h, half+1+i, x[n-window:])
	}
	return out
}

// projection returns the hat matrix A (AᵀA)⁻¹ Aᵀ of a polynomial fit over a
// window. Row i holds the weights that evaluate the fit at window position i.
func projection(window, degree int) (*mat.Dense, error) {
	half := float64(window / 2)
	a := mat.NewDense(window, degree+1, nil)
	for i := 0; i < window; i++ {
		t := float64(i) - half
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= t
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		// A finite Condition error still yields a usable inverse.
		c, ok := err.(mat.Condition)
		if !ok || math.IsInf(float64(c), 1) {
			return nil, fmt.Errorf("savgol window %d degree %d: %w", window, degree, err)
		}
	}

	var tmp, h mat.Dense
	tmp.Mul(a, &inv)
	h.Mul(&tmp, a.T())
	return &h, nil
}

func dotRow(h *mat.Dense, row int, x []float64) float64 {
	return mat.Dot(h.RowView(row), mat.NewVecDense(len(x), x))
}
