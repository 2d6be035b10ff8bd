package batch

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ndfilter-mcp/internal/fit"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
	"github.com/ironsheep/ndfilter-mcp/internal/store"
)

const (
	testWidth  = 400
	testHeight = 300
)

func truth() ndfilter.Geometry {
	return ndfilter.Geometry{
		Left:  fit.Line{Slope: 0.05, Intercept: 150},
		Right: fit.Line{Slope: 0.05, Intercept: 270},
		RefY:  testHeight / 2,
	}
}

func coverage(x int, a, b float64) float64 {
	lo := math.Max(float64(x), a)
	hi := math.Min(float64(x+1), b)
	return math.Min(1, math.Max(0, hi-lo))
}

// writeFlat saves a flat field with a dimmer filter strip as FITS.
func writeFlat(t *testing.T, path string, seed int64) {
	t.Helper()
	g := truth()
	rng := rand.New(rand.NewSource(seed))
	pixels := make([]float64, testWidth*testHeight)
	for y := 0; y < testHeight; y++ {
		l, r := g.Edges(float64(y) + 0.5)
		for x := 0; x < testWidth; x++ {
			pixels[y*testWidth+x] = 2000 - 300*coverage(x, l, r) + rng.NormFloat64()*10
		}
	}
	writeFrame(t, path, "FLAT", pixels)
}

func writeFrame(t *testing.T, path, kind string, pixels []float64) {
	t.Helper()
	meta := frame.NewMetadata()
	meta.Set(frame.KeyImageType, kind, "Type of image")
	f, err := frame.New(testWidth, testHeight, pixels, meta)
	require.NoError(t, err)
	require.NoError(t, frame.SaveFITS(path, f))
}

// writeNight fills dir with a measurable flat, a dark, a second flat, an
// unreadable file and a featureless flat, in that name order.
func writeNight(t *testing.T, dir string) {
	t.Helper()
	writeFlat(t, filepath.Join(dir, "a_flat.fits"), 1)
	writeFrame(t, filepath.Join(dir, "b_dark.fits"), "DARK", make([]float64, testWidth*testHeight))
	writeFlat(t, filepath.Join(dir, "c_flat.fits"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d_bad.fits"), []byte("not a fits file"), 0644))
	writeFrame(t, filepath.Join(dir, "e_blank.fits"), "FLAT", make([]float64, testWidth*testHeight))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
}

func assertNearTruth(t *testing.T, g ndfilter.Geometry) {
	t.Helper()
	want := truth()
	assert.InDelta(t, want.Left.Slope, g.Left.Slope, 0.01)
	assert.InDelta(t, want.Right.Slope, g.Right.Slope, 0.01)
	assert.InDelta(t, want.Left.Intercept, g.Left.Intercept, 2)
	assert.InDelta(t, want.Right.Intercept, g.Right.Intercept, 2)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.fts", "a.fits", "b.FIT", "d.png", "e.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.fits"), 0755))

	paths, err := Scan(dir)
	require.NoError(t, err)
	want := []string{
		filepath.Join(dir, "a.fits"),
		filepath.Join(dir, "b.FIT"),
		filepath.Join(dir, "c.fts"),
	}
	assert.Equal(t, want, paths)

	_, err = Scan(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestRunSequentialCarriesPrior(t *testing.T) {
	dir := t.TempDir()
	writeNight(t, dir)

	sum, err := Run(context.Background(), dir, Options{Workers: 1})
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 5)

	statuses := make([]string, len(sum.Outcomes))
	for i, o := range sum.Outcomes {
		statuses[i] = o.Status
	}
	assert.Equal(t, []string{
		store.StatusOK, store.StatusSkipped, store.StatusOK, store.StatusFailed, store.StatusFallback,
	}, statuses)

	a, c, e := sum.Outcomes[0], sum.Outcomes[2], sum.Outcomes[4]
	assert.Equal(t, ndfilter.ModeCalibration, a.Estimate.Mode)
	assertNearTruth(t, a.Estimate.Geometry)
	assertNearTruth(t, c.Estimate.Geometry)
	assert.Nil(t, a.Centroid, "flats have no target")
	require.NotNil(t, a.Desired)

	// The blank flat falls back to the previous frame's geometry.
	assert.True(t, e.Estimate.Fallback)
	assert.InDelta(t, c.Estimate.Geometry.Left.Intercept, e.Estimate.Geometry.Left.Intercept, 1e-9)
	assert.InDelta(t, c.Estimate.Geometry.Right.Slope, e.Estimate.Geometry.Right.Slope, 1e-12)

	assert.Error(t, sum.Outcomes[3].Err)
	assert.NotEmpty(t, sum.Outcomes[3].Error)
	assert.Equal(t, "dark", sum.Outcomes[1].Kind)

	assert.Equal(t, 5, sum.Frames)
	assert.Equal(t, 3, sum.OK)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Fallbacks)
	assert.InDelta(t, math.Atan(0.05)*180/math.Pi, sum.TiltMean, 0.6)
	assert.Less(t, sum.TiltStdDev, 0.5)
	assert.Zero(t, sum.DistanceMean)
}

func TestRunParallelUsesFixedPrior(t *testing.T) {
	dir := t.TempDir()
	writeNight(t, dir)

	sum, err := Run(context.Background(), dir, Options{Workers: 3})
	require.NoError(t, err)
	require.Len(t, sum.Outcomes, 5)

	for i, name := range []string{"a_flat.fits", "b_dark.fits", "c_flat.fits", "d_bad.fits", "e_blank.fits"} {
		assert.Equal(t, filepath.Join(dir, name), sum.Outcomes[i].Path)
	}
	assert.Equal(t, store.StatusOK, sum.Outcomes[0].Status)
	assert.Equal(t, store.StatusOK, sum.Outcomes[2].Status)
	// Without a prior to fall back to the blank flat fails.
	assert.Equal(t, store.StatusFailed, sum.Outcomes[4].Status)
	assert.ErrorIs(t, sum.Outcomes[4].Err, ndfilter.ErrGeometryNotFound)

	assert.Equal(t, 2, sum.OK)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Fallbacks)
}

func TestRunRecordsToStore(t *testing.T) {
	dir := t.TempDir()
	writeNight(t, dir)

	s, err := store.Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer s.Close()

	sum, err := Run(context.Background(), dir, Options{Store: s})
	require.NoError(t, err)
	require.NotEmpty(t, sum.RunID)

	run, err := s.GetRun(sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.FramesOK)
	assert.Equal(t, 1, run.FramesFailed)
	assert.NotZero(t, run.FinishedAt)

	results, err := s.Results(sum.RunID)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, store.StatusFailed, results[3].Status)
	assert.NotEmpty(t, results[3].Error)

	latest, err := s.LatestGeometry()
	require.NoError(t, err)
	assertNearTruth(t, *latest)
}

func TestRunWritesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	writeNight(t, dir)
	out := t.TempDir()

	opts := Options{
		PlotDir:    filepath.Join(out, "plots"),
		OverlayDir: filepath.Join(out, "overlays"),
		FITSDir:    filepath.Join(out, "fits"),
	}
	_, err := Run(context.Background(), dir, opts)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "plots", "a_flat_edges.png"))
	assert.FileExists(t, filepath.Join(out, "overlays", "a_flat_overlay.png"))
	assert.FileExists(t, filepath.Join(out, "overlays", "e_blank_overlay.png"))
	assert.NoFileExists(t, filepath.Join(out, "plots", "e_blank_edges.png"), "fallback has no samples")
	assert.NoFileExists(t, filepath.Join(out, "fits", "e_blank.fits"), "fallback geometry is not written back")

	f, err := frame.LoadFITS(filepath.Join(out, "fits", "a_flat.fits"))
	require.NoError(t, err)
	g, ok := ndfilter.ReadKeys(f.Meta, ndfilter.RefYFor(f))
	require.True(t, ok)
	assertNearTruth(t, *g)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFlat(t, filepath.Join(dir, "a.fits"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = Run(ctx, dir, Options{Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMeanStdDev(t *testing.T) {
	m, s := meanStdDev(nil)
	assert.Zero(t, m)
	assert.Zero(t, s)

	m, s = meanStdDev([]float64{4})
	assert.Equal(t, 4.0, m)
	assert.Zero(t, s)

	m, s = meanStdDev([]float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, m, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3), s, 1e-12)
}
