// Package appconfig loads the executor's application configuration
// with a YAML/JSON-with-env-overrides pattern
// (Load/applyEnvOverrides/Validate) covering the executor-specific
// sections a production run needs: checkpoint/result directories,
// batch-iteration mode, reduction, debug level, epoch cap, and the
// metrics/websocket listen addresses. Environment overrides use the
// DLTOOLS_ prefix.
package appconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/plandes/dltools/pkg/batchpolicy"
	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/executor"
	"github.com/plandes/dltools/pkg/numeric"
)

// CheckpointConfig locates the five-file checkpoint quintuple.
type CheckpointConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// ResultConfig locates the ResultManager's output directory.
type ResultConfig struct {
	Dir       string `yaml:"dir" json:"dir"`
	WriteText bool   `yaml:"write_text" json:"write_text"`
}

// BatchConfig mirrors batchpolicy.Config in config-document form.
type BatchConfig struct {
	Mode         string `yaml:"mode" json:"mode"`
	BatchLimit   int    `yaml:"batch_limit" json:"batch_limit"`
	CacheBatches bool   `yaml:"cache_batches" json:"cache_batches"`
	CacheSize    int    `yaml:"cache_size" json:"cache_size"`
}

// MetricsConfig controls the opt-in prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// ProgressConfig controls the opt-in websocket broadcaster.
type ProgressConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
	Path    string `yaml:"path" json:"path"`
}

// LifecycleConfig locates the cooperative update-file path.
type LifecycleConfig struct {
	UpdatePath string `yaml:"update_path" json:"update_path"`
}

// TrainingConfig carries the run-shape knobs: epoch cap, reduction,
// criterion/optimizer/scheduler names (resolved via pkg/registry),
// nominal-label flag, and the reproducibility seed.
type TrainingConfig struct {
	Epochs       int     `yaml:"epochs" json:"epochs"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Criterion    string  `yaml:"criterion" json:"criterion"`
	Optimizer    string  `yaml:"optimizer" json:"optimizer"`
	Scheduler    string  `yaml:"scheduler" json:"scheduler"`
	Reduction    string  `yaml:"reduction" json:"reduction"`
	Nominal      bool    `yaml:"nominal" json:"nominal"`
	Seed         int64   `yaml:"seed" json:"seed"`
	DebugLevel   int     `yaml:"debug_level" json:"debug_level"`
}

// AppConfig is the top-level executor configuration document.
type AppConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint"`
	Result     ResultConfig     `yaml:"result" json:"result"`
	Batch      BatchConfig      `yaml:"batch" json:"batch"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Progress   ProgressConfig   `yaml:"progress" json:"progress"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle" json:"lifecycle"`
	Training   TrainingConfig   `yaml:"training" json:"training"`
}

// Default returns a conservative, fully-populated AppConfig.
func Default() *AppConfig {
	return &AppConfig{
		Name:        "dltools-run",
		Description: "",
		Checkpoint:  CheckpointConfig{Dir: "checkpoints", Prefix: "model"},
		Result:      ResultConfig{Dir: "results", WriteText: true},
		Batch:       BatchConfig{Mode: "cpu", BatchLimit: 0, CacheBatches: false, CacheSize: 8},
		Metrics:     MetricsConfig{Enabled: false, Listen: ":9090"},
		Progress:    ProgressConfig{Enabled: false, Listen: ":8090", Path: "/progress"},
		Lifecycle:   LifecycleConfig{UpdatePath: ".dltools-update.json"},
		Training: TrainingConfig{
			Epochs:       20,
			LearningRate: 0.001,
			Criterion:    "cross_entropy",
			Optimizer:    "adam",
			Scheduler:    "",
			Reduction:    "argmax",
			Nominal:      true,
			Seed:         0,
			DebugLevel:   0,
		},
	}
}

// Load reads path (YAML by default, JSON when the extension is .json),
// applies DLTOOLS_* env overrides, and validates the result.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, dlerrors.Wrap(dlerrors.KindIO, "read config file", err)
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, dlerrors.Wrap(dlerrors.KindConfig, "parse json config", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, dlerrors.Wrap(dlerrors.KindConfig, "parse yaml config", err)
			}
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(c *AppConfig) {
	if v := os.Getenv("DLTOOLS_CHECKPOINT_DIR"); v != "" {
		c.Checkpoint.Dir = v
	}
	if v := os.Getenv("DLTOOLS_RESULT_DIR"); v != "" {
		c.Result.Dir = v
	}
	if v := os.Getenv("DLTOOLS_BATCH_MODE"); v != "" {
		c.Batch.Mode = v
	}
	if v := os.Getenv("DLTOOLS_BATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Batch.BatchLimit = n
		}
	}
	if v := os.Getenv("DLTOOLS_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Training.Epochs = n
		}
	}
	if v := os.Getenv("DLTOOLS_LR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Training.LearningRate = f
		}
	}
	if v := os.Getenv("DLTOOLS_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Training.Seed = n
		}
	}
	if v := os.Getenv("DLTOOLS_CRITERION"); v != "" {
		c.Training.Criterion = v
	}
	if v := os.Getenv("DLTOOLS_REDUCTION"); v != "" {
		c.Training.Reduction = v
	}
	if v := os.Getenv("DLTOOLS_METRICS_LISTEN"); v != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = v
	}
	if v := os.Getenv("DLTOOLS_PROGRESS_LISTEN"); v != "" {
		c.Progress.Enabled = true
		c.Progress.Listen = v
	}
}

// Validate enforces the Config-kind errors, including the
// buffered+cache_batches conflict, before any batch is drawn.
func (c *AppConfig) Validate() error {
	if c.Training.Epochs <= 0 {
		return dlerrors.New(dlerrors.KindConfig, "training.epochs must be positive")
	}
	if c.Training.LearningRate <= 0 {
		return dlerrors.New(dlerrors.KindConfig, "training.learning_rate must be positive")
	}
	if c.Checkpoint.Dir == "" {
		return dlerrors.New(dlerrors.KindConfig, "checkpoint.dir is required")
	}
	if c.Result.Dir == "" {
		return dlerrors.New(dlerrors.KindConfig, "result.dir is required")
	}
	mode, err := batchpolicy.ParseMode(c.Batch.Mode)
	if err != nil {
		return err
	}
	if c.Batch.CacheBatches && mode == batchpolicy.ModeBuffered {
		return dlerrors.New(dlerrors.KindConfig, "cache_batches is incompatible with buffered mode")
	}
	if c.Batch.BatchLimit < 0 {
		return dlerrors.New(dlerrors.KindConfig, "batch.batch_limit must not be negative")
	}
	if _, err := numeric.ParseReduction(c.Training.Reduction); err != nil {
		return err
	}
	if c.Training.DebugLevel < 0 || c.Training.DebugLevel > int(executor.DebugBailWithDump) {
		return dlerrors.New(dlerrors.KindConfig, "training.debug_level out of range")
	}
	return nil
}

// DebugLevel converts the config's integer debug level into the
// executor's enum.
func (c *AppConfig) DebugLevel() executor.DebugLevel {
	return executor.DebugLevel(c.Training.DebugLevel)
}
