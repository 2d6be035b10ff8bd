package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/ndfilter-mcp/internal/centroid"
	"github.com/ironsheep/ndfilter-mcp/internal/ndfilter"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestEmptyTuningConfigUsesDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got, want := cfg.ToNDFilter(), ndfilter.DefaultConfig(); got != want {
		t.Errorf("ToNDFilter() = %+v, want %+v", got, want)
	}
	if got, want := cfg.ToCentroid(), centroid.DefaultConfig(); got != want {
		t.Errorf("ToCentroid() = %+v, want %+v", got, want)
	}
	if cfg.Prior() != nil {
		t.Error("expected no prior without an instrument")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"n_bands": 9,
		"search_margin": 30,
		"operational_widths": [4, 40],
		"read_noise": 7.5
	}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	nd := cfg.ToNDFilter()
	if nd.NBands != 9 {
		t.Errorf("NBands = %d, want 9", nd.NBands)
	}
	if nd.SearchMargin != 30 {
		t.Errorf("SearchMargin = %g, want 30", nd.SearchMargin)
	}
	if nd.OperationalWidths != [2]int{4, 40} {
		t.Errorf("OperationalWidths = %v, want [4 40]", nd.OperationalWidths)
	}
	if nd.SmoothWidth != ndfilter.DefaultConfig().SmoothWidth {
		t.Errorf("SmoothWidth = %d, want default", nd.SmoothWidth)
	}
	if got := cfg.ToCentroid().ReadNoise; got != 7.5 {
		t.Errorf("ReadNoise = %g, want 7.5", got)
	}
	if got := cfg.ToCentroid().SaturationLevel; got != 60000 {
		t.Errorf("SaturationLevel = %g, want default 60000", got)
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "tuning.yaml", `{}`, ".json extension"},
		{"bad json", "tuning.json", `{"n_bands": `, "parse config JSON"},
		{"invalid bands", "tuning.json", `{"n_bands": 1}`, "n_bands"},
		{"empty width range", "tuning.json", `{"min_width": 300, "max_width": 200}`, "width range"},
		{"bad read noise", "tuning.json", `{"read_noise": 0}`, "read_noise"},
		{"unknown instrument", "tuning.json", `{"instrument": "nope"}`, "not in instruments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	body := `{"n_bands": 15` + strings.Repeat(" ", 1024*1024) + `}`
	path := writeConfig(t, "big.json", body)
	_, err := LoadTuningConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestInstrumentPrior(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"instrument": "bench",
		"instruments": {
			"bench": {"left_slope": 0.01, "left_intercept": 100, "right_slope": 0.02, "right_intercept": 300, "ref_y": 512},
			"alt": {"left_slope": 0, "left_intercept": 1, "right_slope": 0, "right_intercept": 2, "ref_y": 0}
		}
	}`)
	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	p := cfg.Prior()
	if p == nil {
		t.Fatal("expected prior")
	}
	if p.Left.Slope != 0.01 || p.Left.Intercept != 100 || p.Right.Intercept != 300 || p.RefY != 512 {
		t.Errorf("unexpected prior %+v", *p)
	}
	names := cfg.InstrumentNames()
	if len(names) != 2 || names[0] != "alt" || names[1] != "bench" {
		t.Errorf("InstrumentNames() = %v", names)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg, err := LoadTuningConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("failed to load %s: %v", DefaultConfigPath, err)
	}
	if got, want := cfg.ToNDFilter(), ndfilter.DefaultConfig(); got != want {
		t.Errorf("defaults file ToNDFilter() = %+v, want %+v", got, want)
	}
	if got, want := cfg.ToCentroid(), centroid.DefaultConfig(); got != want {
		t.Errorf("defaults file ToCentroid() = %+v, want %+v", got, want)
	}
	p := cfg.Prior()
	if p == nil {
		t.Fatal("defaults file should select an instrument")
	}
	if p.RefY != 1024 || p.Left.Intercept != 1235.32221 {
		t.Errorf("unexpected IoIO prior %+v", *p)
	}
}
