package fit

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanLine(n int, slope, intercept float64) (x, y []float64) {
	for i := 0; i < n; i++ {
		x = append(x, float64(i))
		y = append(y, intercept+slope*float64(i))
	}
	return x, y
}

func TestFitLineTwoPoints(t *testing.T) {
	res, err := FitLine([]float64{1, 3}, []float64{5, 9}, Options{MaxResidual: 10})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Slope, 1e-12)
	assert.InDelta(t, 3.0, res.Intercept, 1e-12)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 2, res.Used)
}

func TestFitLineExactData(t *testing.T) {
	x, y := cleanLine(10, -0.06, 1235.3)
	res, err := FitLine(x, y, Options{})
	require.NoError(t, err)
	assert.InDelta(t, -0.06, res.Slope, 1e-9)
	assert.InDelta(t, 1235.3, res.Intercept, 1e-9)
}

func TestFitLineZeroResidualsExitEarly(t *testing.T) {
	// y is exactly representable, so the least-squares residuals are all zero.
	res, err := FitLine([]float64{-1, 0, 1, 2}, []float64{1, 2, 3, 4}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, 1.0, res.Slope)
	assert.Equal(t, 2.0, res.Intercept)
}

func TestFitLineOutliers(t *testing.T) {
	x, y := cleanLine(20, 0.5, 2)
	y[3] += 50
	y[12] -= 40

	pruned, err := FitLine(x, y, Options{MaxResidual: 10})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, pruned.Slope, 1e-9)
	assert.InDelta(t, 2.0, pruned.Intercept, 1e-9)
	assert.Equal(t, []int{3, 12}, pruned.Rejected)
	assert.Equal(t, 18, pruned.Used)

	robust, err := FitLine(x, y, Options{})
	require.NoError(t, err)
	pull := math.Abs(robust.Slope-0.5) + math.Abs(robust.Intercept-2)
	assert.Greater(t, pull, 1e-4, "unpruned fit should be pulled by outliers")
	assert.Less(t, pull, 0.1, "reweighting should still damp the outliers")
	assert.Empty(t, robust.Rejected)
}

func TestFitLinePrunesFromReweightedLine(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	y := []float64{1, 3, 5, 7, 40, 11, 13, 15}

	// The outlier pulls the plain least-squares line more than 2 away from
	// the first point.
	ols := regress(x, y, nil)
	require.Greater(t, math.Abs(y[0]-ols.At(x[0])), 2.0)

	res, err := FitLine(x, y, Options{MaxResidual: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, res.Rejected)
	assert.Equal(t, 7, res.Used)
	assert.InDelta(t, 2.0, res.Slope, 1e-9)
	assert.InDelta(t, 1.0, res.Intercept, 1e-9)
}

func TestFitLineNoisy(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x, y := cleanLine(15, -0.0578, 1341.8)
	for i := range y {
		y[i] += rng.NormFloat64() * 0.5
	}
	y[5] += 30

	res, err := FitLine(x, y, Options{MaxResidual: 10})
	require.NoError(t, err)
	assert.InDelta(t, -0.0578, res.Slope, 0.1)
	assert.InDelta(t, 1341.8, res.Intercept, 1.5)
	assert.Contains(t, res.Rejected, 5)
}

func TestFitLineErrors(t *testing.T) {
	_, err := FitLine([]float64{1}, []float64{1}, Options{})
	assert.True(t, errors.Is(err, ErrTooFewPoints))

	_, err = FitLine([]float64{1, 2}, []float64{1}, Options{})
	assert.Error(t, err)

	_, err = FitLine([]float64{2, 2}, []float64{1, 5}, Options{})
	assert.Error(t, err)

	_, err = FitLine([]float64{2, 2, 2}, []float64{1, 5, 3}, Options{})
	assert.Error(t, err)
}

func TestLineAt(t *testing.T) {
	l := Line{Slope: 2, Intercept: -1}
	assert.Equal(t, 5.0, l.At(3))
}
