// Package batch runs the ND filter and centroid analysis over a directory
// of frames.
//
// Frames are processed in name order. With one worker each frame's
// measured geometry becomes the prior for the next frame, so a night's
// sequence tracks slow filter drift. With several workers every frame
// shares the starting prior and frames run concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/ndfilter-mcp/internal/analysis"
	"github.com/ironsheep/ndfilter-mcp/internal/centroid"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
	"github.com/ironsheep/ndfilter-mcp/internal/overlay"
	"github.com/ironsheep/ndfilter-mcp/internal/store"
)

// Options configures a batch run.
type Options struct {
	// Workers above 1 process frames concurrently with a fixed prior.
	Workers int

	// Prior seeds the first frame, or every frame when Workers > 1.
	Prior *ndfilter.Geometry

	NDFilter ndfilter.Config
	Centroid centroid.Config

	// Store receives the run and every frame result when non-nil.
	Store *store.Store

	// PlotDir, OverlayDir and FITSDir enable per-frame diagnostic output.
	PlotDir    string
	OverlayDir string
	FITSDir    string
}

// Outcome is the result of one frame.
type Outcome struct {
	Path     string             `json:"path"`
	Kind     string             `json:"kind"`
	Status   string             `json:"status"`
	Err      error              `json:"-"`
	Error    string             `json:"error,omitempty"`
	Estimate *ndfilter.Estimate `json:"estimate,omitempty"`
	Centroid *centroid.Result   `json:"centroid,omitempty"`
	Desired  *frame.Point       `json:"desired,omitempty"`
}

// Summary aggregates a run.
type Summary struct {
	RunID     string `json:"run_id,omitempty"`
	Frames    int    `json:"frames"`
	OK        int    `json:"frames_ok"`
	Failed    int    `json:"frames_failed"`
	Skipped   int    `json:"frames_skipped"`
	Fallbacks int    `json:"fallbacks"`

	// Distance statistics cover frames with a located target; tilt
	// statistics cover frames with a measured geometry.
	DistanceMean   float64 `json:"distance_mean"`
	DistanceStdDev float64 `json:"distance_stddev"`
	TiltMean       float64 `json:"tilt_mean"`
	TiltStdDev     float64 `json:"tilt_stddev"`

	Outcomes []Outcome `json:"outcomes"`
}

// Scan lists the FITS frames directly inside dir, sorted by name.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".fits", ".fit", ".fts":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Run processes every frame in dir. Per-frame failures are logged and
// recorded in the summary; only a scan, store or context error stops the
// run.
func Run(ctx context.Context, dir string, opts Options) (*Summary, error) {
	opts = opts.withDefaults()
	paths, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	log.Printf("[batch] %d frames in %s", len(paths), dir)

	sum := &Summary{Frames: len(paths)}
	var runID string
	if opts.Store != nil {
		run, err := opts.Store.StartRun(dir)
		if err != nil {
			return nil, err
		}
		runID = run.RunID
		sum.RunID = runID
	}

	var outcomes []Outcome
	if opts.Workers > 1 {
		outcomes, err = runParallel(ctx, paths, opts)
	} else {
		outcomes, err = runSequential(ctx, paths, opts)
	}
	sum.Outcomes = outcomes
	if err != nil {
		return sum, err
	}

	summarize(sum)

	if opts.Store != nil {
		for i := range outcomes {
			if err := opts.Store.RecordResult(record(runID, &outcomes[i])); err != nil {
				return sum, err
			}
		}
		if err := opts.Store.FinishRun(runID, sum.OK, sum.Failed); err != nil {
			return sum, err
		}
	}

	log.Printf("[batch] done: %d ok (%d fallback), %d failed, %d skipped", sum.OK, sum.Fallbacks, sum.Failed, sum.Skipped)
	return sum, nil
}

func runSequential(ctx context.Context, paths []string, opts Options) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(paths))
	prior := opts.Prior
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o := Process(p, prior, opts)
		if o.Status == store.StatusOK {
			g := o.Estimate.Geometry
			prior = &g
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func runParallel(ctx context.Context, paths []string, opts Options) ([]Outcome, error) {
	outcomes := make([]Outcome, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = Process(p, opts.Prior, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// withDefaults fills zero-valued estimator configs with the package defaults.
func (o Options) withDefaults() Options {
	if o.NDFilter == (ndfilter.Config{}) {
		o.NDFilter = ndfilter.DefaultConfig()
	}
	if o.Centroid == (centroid.Config{}) {
		o.Centroid = centroid.DefaultConfig()
	}
	return o
}

// Process analyzes a single frame with the given prior.
func Process(path string, prior *ndfilter.Geometry, opts Options) Outcome {
	opts = opts.withDefaults()
	o := Outcome{Path: path}
	fail := func(err error) Outcome {
		log.Printf("[batch] WARNING: %s: %v", filepath.Base(path), err)
		o.Status = store.StatusFailed
		o.Err = err
		o.Error = err.Error()
		return o
	}

	f, err := frame.Load(path)
	if err != nil {
		return fail(err)
	}
	kind := f.Kind()
	o.Kind = kind.String()
	if kind == frame.KindDark || kind == frame.KindBias {
		o.Status = store.StatusSkipped
		return o
	}

	a := analysis.New(f, analysis.Options{Prior: prior, NDFilter: &opts.NDFilter, Centroid: &opts.Centroid})
	est, err := a.Geometry()
	if err != nil {
		return fail(err)
	}
	o.Estimate = est
	o.Status = store.StatusOK
	if est.Fallback {
		o.Status = store.StatusFallback
	}

	if d, err := a.DesiredCenter(); err == nil {
		o.Desired = &d
	}
	cent, err := a.Centroid()
	switch {
	case errors.Is(err, centroid.ErrNoTarget):
	case err != nil:
		return fail(err)
	default:
		o.Centroid = cent
	}

	writeDiagnostics(f, &o, opts)
	return o
}

func writeDiagnostics(f *frame.Frame, o *Outcome, opts Options) {
	base := strings.TrimSuffix(filepath.Base(o.Path), filepath.Ext(o.Path))

	if opts.PlotDir != "" && len(o.Estimate.Samples) > 0 {
		path := filepath.Join(opts.PlotDir, base+"_edges.png")
		if err := overlay.PlotEdgeFit(o.Estimate, base, path); err != nil {
			log.Printf("[batch] WARNING: edge plot for %s: %v", base, err)
		}
	}

	if opts.OverlayDir != "" {
		g := o.Estimate.Geometry
		ann := overlay.Annotations{Geometry: &g, EdgeMargin: opts.NDFilter.EdgeMargin, Desired: o.Desired}
		if o.Centroid != nil && o.Centroid.TargetFound {
			obj := o.Centroid.ObjectCenter
			ann.Object = &obj
		}
		img, err := overlay.Render(f, ann, overlay.DefaultOptions())
		if err == nil {
			err = overlay.Save(filepath.Join(opts.OverlayDir, base+"_overlay.png"), img)
		}
		if err != nil {
			log.Printf("[batch] WARNING: overlay for %s: %v", base, err)
		}
	}

	if opts.FITSDir != "" && o.Status == store.StatusOK {
		if err := os.MkdirAll(opts.FITSDir, 0755); err != nil {
			log.Printf("[batch] WARNING: %v", err)
			return
		}
		if err := frame.SaveFITS(filepath.Join(opts.FITSDir, filepath.Base(o.Path)), f); err != nil {
			log.Printf("[batch] WARNING: write-back for %s: %v", base, err)
		}
	}
}

func summarize(sum *Summary) {
	var dists, tilts []float64
	for _, o := range sum.Outcomes {
		switch o.Status {
		case store.StatusOK:
			sum.OK++
			tilts = append(tilts, o.Estimate.Geometry.TiltDegrees())
		case store.StatusFallback:
			sum.OK++
			sum.Fallbacks++
		case store.StatusFailed:
			sum.Failed++
		case store.StatusSkipped:
			sum.Skipped++
		}
		if o.Centroid != nil && o.Centroid.TargetFound {
			dists = append(dists, o.Centroid.Distance)
		}
	}
	sum.DistanceMean, sum.DistanceStdDev = meanStdDev(dists)
	sum.TiltMean, sum.TiltStdDev = meanStdDev(tilts)
}

// meanStdDev returns zeros for an empty sample and a zero deviation for a
// single value.
func meanStdDev(x []float64) (mean, std float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	mean, std = stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

func record(runID string, o *Outcome) *store.FrameResult {
	r := &store.FrameResult{RunID: runID, Path: o.Path, Kind: o.Kind, Status: o.Status, Desired: o.Desired}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	if o.Estimate != nil {
		g := o.Estimate.Geometry
		r.Geometry = &g
		r.Tilt = g.TiltDegrees()
	}
	if c := o.Centroid; c != nil && c.TargetFound {
		obj := c.ObjectCenter
		r.Object = &obj
		r.Distance = c.Distance
		r.OnFilter = c.OnFilter
	}
	return r
}
