package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/ironsheep/ndfilter-mcp/internal/analysis"
	"github.com/ironsheep/ndfilter-mcp/internal/batch"
	"github.com/ironsheep/ndfilter-mcp/internal/config"
	"github.com/ironsheep/ndfilter-mcp/internal/frame"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
	"github.com/ironsheep/ndfilter-mcp/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("ndfilter - ND-filter geometry and target centroiding for coronagraph frames")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ndfilter geometry [-config file] <frame>")
	fmt.Println("  ndfilter center   [-config file] <frame>")
	fmt.Println("  ndfilter batch    [options] <dir>")
	fmt.Println()
	fmt.Println("Batch options:")
	fmt.Println("  -config file       JSON tuning file")
	fmt.Println("  -workers n         Frames processed concurrently (1 carries geometry forward)")
	fmt.Println("  -db file           SQLite results database")
	fmt.Println("  -plot-dir dir      Write edge-fit plots")
	fmt.Println("  -overlay-dir dir   Write annotated overlays")
	fmt.Println("  -write-fits dir    Write frames with the geometry in their header")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  NDFILTER_LOG_LEVEL=debug    Enable debug logging")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if os.Getenv("NDFILTER_LOG_LEVEL") == "debug" {
		ndfilter.SetDebugLogger(os.Stderr)
	}

	var err error
	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("ndfilter %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		usage()
		return
	case "geometry":
		err = runGeometry(os.Args[2:])
	case "center":
		err = runCenter(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// frameAnalysis parses the single-frame flags and prepares the analysis.
func frameAnalysis(name string, args []string) (*analysis.Analysis, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", "", "JSON tuning file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected one frame, got %d arguments", fs.NArg())
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return nil, err
	}
	f, err := frame.Load(fs.Arg(0))
	if err != nil {
		return nil, err
	}
	nd := cfg.ToNDFilter()
	cen := cfg.ToCentroid()
	return analysis.New(f, analysis.Options{Prior: cfg.Prior(), NDFilter: &nd, Centroid: &cen}), nil
}

func runGeometry(args []string) error {
	a, err := frameAnalysis("geometry", args)
	if err != nil {
		return err
	}
	est, err := a.Geometry()
	if err != nil {
		return err
	}
	g := est.Geometry
	return printJSON(struct {
		*ndfilter.Estimate
		Width         float64 `json:"width"`
		TiltDegrees   float64 `json:"tilt_degrees"`
		ParallelDelta float64 `json:"parallel_delta"`
	}{est, g.Width(), g.TiltDegrees(), g.ParallelDelta(float64(a.Frame().UnbinnedHeight()))})
}

func runCenter(args []string) error {
	a, err := frameAnalysis("center", args)
	if err != nil {
		return err
	}
	res, err := a.Centroid()
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	cfgPath := fs.String("config", "", "JSON tuning file")
	workers := fs.Int("workers", 1, "frames processed concurrently")
	dbPath := fs.String("db", "", "SQLite results database")
	plotDir := fs.String("plot-dir", "", "directory for edge-fit plots")
	overlayDir := fs.String("overlay-dir", "", "directory for annotated overlays")
	fitsDir := fs.String("write-fits", "", "directory for frames with geometry keys")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected one directory, got %d arguments", fs.NArg())
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	opts := batch.Options{
		Workers:    *workers,
		Prior:      cfg.Prior(),
		NDFilter:   cfg.ToNDFilter(),
		Centroid:   cfg.ToCentroid(),
		PlotDir:    *plotDir,
		OverlayDir: *overlayDir,
		FITSDir:    *fitsDir,
	}

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		opts.Store = st

		// Without an instrument prior, start from the last measured geometry.
		if opts.Prior == nil {
			g, err := st.LatestGeometry()
			switch {
			case err == nil:
				log.Printf("[batch] using last measured geometry as prior")
				opts.Prior = g
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := batch.Run(ctx, fs.Arg(0), opts)
	if err != nil {
		return err
	}
	return printJSON(summary)
}
