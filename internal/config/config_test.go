package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"catcluster/internal/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catcluster.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	config := Default()

	if config.Sweep.KMin != 2 || config.Sweep.KMax != 19 {
		t.Errorf("Expected k range [2,19], got [%d,%d]", config.Sweep.KMin, config.Sweep.KMax)
	}
	if config.KMeans.MaxIterations != 300 {
		t.Errorf("Expected 300 kmeans iterations, got %d", config.KMeans.MaxIterations)
	}
	if len(config.Sweep.DataSizes) != len(DefaultDataSizes) {
		t.Errorf("Expected %d data sizes, got %d", len(DefaultDataSizes), len(config.Sweep.DataSizes))
	}
	if got := config.Sweep.SizeCeilings["spectral"]; got != 5000 {
		t.Errorf("Expected spectral ceiling 5000, got %d", got)
	}
	if _, ok := config.Sweep.SizeCeilings["covertree"]; ok {
		t.Error("covertree should be unbounded")
	}
	if config.Embedding.Sigma != nil || config.DBSCAN.Eps != nil {
		t.Error("Optional settings should be absent by default")
	}
	if err := validateConfig(config); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
data:
  category_file: /data/categories.csv
embedding:
  sigma: 0.5
dbscan:
  eps: 0
  min_samples: 4
covertree:
  vec_top_level: 3
sweep:
  k_min: 3
  k_max: 5
  datasets:
    - name: testdata1000
      valid_uid_file: /data/testdata1000
      truth_file: /data/testtruth
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Data.CategoryFile != "/data/categories.csv" {
		t.Errorf("Unexpected category file %q", config.Data.CategoryFile)
	}
	if sigma, ok := Float(config.Embedding.Sigma); !ok || sigma != 0.5 {
		t.Errorf("Expected sigma 0.5, got %v (%v)", sigma, ok)
	}
	// an explicit zero is present, not absent
	if eps, ok := Float(config.DBSCAN.Eps); !ok || eps != 0 {
		t.Errorf("Expected eps present with value 0, got %v (%v)", eps, ok)
	}
	if top, ok := Int(config.CoverTree.VecTopLevel); !ok || top != 3 {
		t.Errorf("Expected vec top level 3, got %v (%v)", top, ok)
	}
	if _, ok := Int(config.CoverTree.EditTopLevel); ok {
		t.Error("edit top level should be absent")
	}
	if len(config.Sweep.Datasets) != 1 || config.Sweep.Datasets[0].TruthFile != "/data/testtruth" {
		t.Errorf("Unexpected datasets %+v", config.Sweep.Datasets)
	}
}

func TestLoadEnvironment(t *testing.T) {
	path := writeConfig(t, "kernel:\n  rbf_sigma: 1.0\n")
	t.Setenv("CATCLUSTER_KERNEL_RBF_SIGMA", "2.5")
	t.Setenv("CATCLUSTER_DBSCAN_MIN_SAMPLES", "7")

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if sigma, _ := Float(config.Kernel.RBFSigma); sigma != 2.5 {
		t.Errorf("Environment should override file, got rbf sigma %v", sigma)
	}
	if n, ok := Int(config.DBSCAN.MinSamples); !ok || n != 7 {
		t.Errorf("Expected min samples 7 from environment, got %v (%v)", n, ok)
	}
}

func TestLoadLegacyMatchDiscard(t *testing.T) {
	path := writeConfig(t, "embedding:\n  sigma: 1.0\n")
	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Embedding.LegacyMatchDiscard {
		t.Errorf("Legacy scoring should be off by default")
	}

	t.Setenv("CATCLUSTER_EMBEDDING_LEGACY_MATCH_DISCARD", "true")
	config, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !config.Embedding.LegacyMatchDiscard {
		t.Errorf("Expected legacy scoring from environment")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted k range", "sweep:\n  k_min: 5\n  k_max: 2\n"},
		{"unknown algorithm", "sweep:\n  algorithms: [kmeans, hierarichical]\n"},
		{"unknown log level", "logging:\n  level: loud\n"},
		{"unknown log format", "logging:\n  format: xml\n"},
		{"dataset without ids", "sweep:\n  datasets:\n    - name: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, core.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/data/users.json"); got != filepath.Join(home, "data/users.json") {
		t.Errorf("Unexpected expansion %q", got)
	}
	t.Setenv("CATCLUSTER_TEST_DIR", "/tmp/cc")
	if got := expandPath("$CATCLUSTER_TEST_DIR/users.json"); got != "/tmp/cc/users.json" {
		t.Errorf("Unexpected expansion %q", got)
	}
}

func TestValidateStructNamesOptions(t *testing.T) {
	type params struct {
		K int `mapstructure:"k" validate:"required,gt=0"`
	}
	err := ValidateStruct(params{})
	if !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("Expected ErrConfiguration, got %v", err)
	}
	if want := "configuration error: k is required"; err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
