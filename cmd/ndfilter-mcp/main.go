package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/ndfilter-mcp/internal/config"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
	"github.com/ironsheep/ndfilter-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("ndfilter-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("ndfilter-mcp - MCP server for ND-filter geometry and target centroiding")
			fmt.Println()
			fmt.Println("Usage: ndfilter-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  NDFILTER_LOG_LEVEL=debug    Enable debug logging")
			fmt.Println("  NDFILTER_CONFIG=<file>      JSON tuning file (instrument prior, thresholds)")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("NDFILTER_LOG_LEVEL") == "debug" {
		log.Printf("ND filter MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		ndfilter.SetDebugLogger(os.Stderr)
	}

	cfg := config.EmptyTuningConfig()
	if path := os.Getenv("NDFILTER_CONFIG"); path != "" {
		loaded, err := config.LoadTuningConfig(path)
		if err != nil {
			log.Fatalf("Config error: %v", err)
		}
		cfg = loaded
		log.Printf("Loaded tuning from %s (instrument %q)", path, cfg.GetInstrument())
	}

	server.Version = Version
	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
