package appconfig_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/plandes/dltools/pkg/appconfig"
	"github.com/plandes/dltools/pkg/dlerrors"
)

func TestLoadDefaultsWithoutPath(t *testing.T) {
	cfg, err := appconfig.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Training.Epochs != 20 || cfg.Batch.Mode != "cpu" {
		t.Fatalf("unexpected defaults: epochs=%d mode=%q", cfg.Training.Epochs, cfg.Batch.Mode)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	doc := "name: exp\ntraining:\n  epochs: 3\n  reduction: softmax\nbatch:\n  mode: gpu\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := appconfig.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "exp" || cfg.Training.Epochs != 3 || cfg.Training.Reduction != "softmax" || cfg.Batch.Mode != "gpu" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	// fields the document omits keep their defaults
	if cfg.Checkpoint.Dir != "checkpoints" {
		t.Fatalf("checkpoint.dir = %q, want default", cfg.Checkpoint.Dir)
	}
}

func TestEnvOverridesBeatDefaults(t *testing.T) {
	t.Setenv("DLTOOLS_EPOCHS", "7")
	t.Setenv("DLTOOLS_BATCH_MODE", "buffered")

	cfg, err := appconfig.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Training.Epochs != 7 {
		t.Fatalf("epochs = %d, want env override 7", cfg.Training.Epochs)
	}
	if cfg.Batch.Mode != "buffered" {
		t.Fatalf("batch mode = %q, want env override buffered", cfg.Batch.Mode)
	}
}

func TestValidateRejectsBufferedWithCacheBatches(t *testing.T) {
	cfg := appconfig.Default()
	cfg.Batch.Mode = "buffered"
	cfg.Batch.CacheBatches = true
	err := cfg.Validate()
	if !errors.Is(err, dlerrors.Sentinel(dlerrors.KindConfig)) {
		t.Fatalf("want Config error, got %v", err)
	}
}

func TestValidateRejectsUnknownReduction(t *testing.T) {
	cfg := appconfig.Default()
	cfg.Training.Reduction = "median"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a Config error for an unknown reduction")
	}
}

func TestValidateRejectsOutOfRangeDebugLevel(t *testing.T) {
	cfg := appconfig.Default()
	cfg.Training.DebugLevel = 9
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a Config error for an out-of-range debug level")
	}
}
