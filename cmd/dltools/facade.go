package main

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/plandes/dltools/pkg/appconfig"
	"github.com/plandes/dltools/pkg/batchpolicy"
	"github.com/plandes/dltools/pkg/checkpoint"
	"github.com/plandes/dltools/pkg/dataloader"
	"github.com/plandes/dltools/pkg/dllog"
	"github.com/plandes/dltools/pkg/dlmetrics"
	"github.com/plandes/dltools/pkg/executor"
	"github.com/plandes/dltools/pkg/layers"
	"github.com/plandes/dltools/pkg/lifecycle"
	"github.com/plandes/dltools/pkg/numeric"
	"github.com/plandes/dltools/pkg/progress"
	"github.com/plandes/dltools/pkg/registry"
	"github.com/plandes/dltools/pkg/result"
	"github.com/plandes/dltools/pkg/resultmgr"
)

// Facade collects the one instance of each subsystem a CLI invocation
// needs, mirroring the role the original's ModelFacade plays in front of
// a cached ModelExecutor: callers ask the facade for train/test/etc
// rather than assembling an executor.Config by hand each time.
type Facade struct {
	cfg *appconfig.AppConfig
	log *zap.Logger
	reg *registry.Registry

	checkpoint  *checkpoint.Manager
	resultMgr   *resultmgr.Manager
	lifecycle   *lifecycle.Monitor
	metrics     *dlmetrics.TrainingMetrics
	broadcaster *progress.Broadcaster
	batchPolicy *batchpolicy.Policy

	model       layers.Module
	trainLoader *dataloader.DataLoader
	validLoader *dataloader.DataLoader
	testLoader  *dataloader.DataLoader

	runCounter *result.RunCounter
}

// newFacade wires every subsystem a run needs from cfg, using the
// demo dataset/model in place of the external vectorizer+network
// pipeline the original wires through dependency injection.
func newFacade(cfg *appconfig.AppConfig, useProgressBar bool) (*Facade, error) {
	log, err := dllog.New(dllog.Config{Development: true, Level: "info"})
	if err != nil {
		return nil, err
	}

	var broadcaster *progress.Broadcaster
	if cfg.Progress.Enabled || useProgressBar {
		broadcaster = progress.New(log)
	}

	mode, err := batchpolicy.ParseMode(cfg.Batch.Mode)
	if err != nil {
		return nil, err
	}
	policy, err := batchpolicy.New(batchpolicy.Config{
		Mode:         mode,
		BatchLimit:   cfg.Batch.BatchLimit,
		CacheBatches: cfg.Batch.CacheBatches,
		CacheSize:    cfg.Batch.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	var metrics *dlmetrics.TrainingMetrics
	if cfg.Metrics.Enabled {
		metrics = dlmetrics.New()
	}

	trainLoader, validLoader, testLoader := newDemoDatasets(cfg.Training.Seed)

	f := &Facade{
		cfg:         cfg,
		log:         log,
		reg:         registry.New(),
		checkpoint:  checkpoint.New(cfg.Checkpoint.Dir, cfg.Checkpoint.Prefix),
		resultMgr:   resultmgr.New(cfg.Result.Dir, cfg.Name),
		lifecycle:   lifecycle.New(cfg.Lifecycle.UpdatePath, log, broadcaster),
		metrics:     metrics,
		broadcaster: broadcaster,
		batchPolicy: policy,
		model:       newDemoModel(cfg.Training.Seed),
		trainLoader: trainLoader,
		validLoader: validLoader,
		testLoader:  testLoader,
		runCounter:  result.NewRunCounter(),
	}
	return f, nil
}

// buildConfig resolves criterion/optimizer/scheduler through the
// registry and assembles an executor.Config shared by every verb.
func (f *Facade) buildConfig() (executor.Config, error) {
	criterion, err := f.reg.Criterion(f.cfg.Training.Criterion)
	if err != nil {
		return executor.Config{}, err
	}
	optimizer, err := f.reg.Optimizer(f.cfg.Training.Optimizer, f.cfg.Training.LearningRate, nil)
	if err != nil {
		return executor.Config{}, err
	}
	var scheduler executor.Scheduler
	if f.cfg.Training.Scheduler != "" {
		scheduler, err = f.reg.Scheduler(f.cfg.Training.Scheduler, f.cfg.Training.LearningRate, nil)
		if err != nil {
			return executor.Config{}, err
		}
	}
	reduction, err := numeric.ParseReduction(f.cfg.Training.Reduction)
	if err != nil {
		return executor.Config{}, err
	}

	return executor.Config{
		Name:             f.cfg.Name,
		Description:      f.cfg.Description,
		Model:            f.model,
		Optimizer:        optimizer,
		Scheduler:        scheduler,
		Criterion:        criterion,
		Reduction:        reduction,
		Nominal:          f.cfg.Training.Nominal,
		TrainLoader:      f.trainLoader,
		ValidationLoader: f.validLoader,
		TestLoader:       f.testLoader,
		BatchPolicy:      f.batchPolicy,
		Checkpoint:       f.checkpoint,
		ResultMgr:        f.resultMgr,
		Lifecycle:        f.lifecycle,
		Metrics:          f.metrics,
		Broadcaster:      f.broadcaster,
		Logger:           f.log,
		RunCounter:       f.runCounter,
		NumEpochs:        f.cfg.Training.Epochs,
		Debug:            f.cfg.DebugLevel(),
		Seed:             f.cfg.Training.Seed,
		ModelSettings: map[string]string{
			"batch_iteration": f.cfg.Batch.Mode,
			"batch_limit":     strconv.Itoa(f.cfg.Batch.BatchLimit),
			"cache_batches":   strconv.FormatBool(f.cfg.Batch.CacheBatches),
		},
		NetworkSettings: map[string]string{
			"criterion":     f.cfg.Training.Criterion,
			"optimizer":     f.cfg.Training.Optimizer,
			"scheduler":     f.cfg.Training.Scheduler,
			"learning_rate": strconv.FormatFloat(f.cfg.Training.LearningRate, 'g', -1, 64),
		},
	}, nil
}

// newExecutor builds a fresh Executor over a freshly-initialized model,
// the path used by train/traintest/trainprod/debug.
func (f *Facade) newExecutor() (*executor.Executor, error) {
	cfg, err := f.buildConfig()
	if err != nil {
		return nil, err
	}
	return executor.New(cfg)
}

// loadExecutor restores a previously checkpointed run in place, the
// path used by test (mirrors the original's ModelManager.load_executor).
func (f *Facade) loadExecutor() (*executor.Executor, error) {
	cfg, err := f.buildConfig()
	if err != nil {
		return nil, err
	}
	return executor.LoadExecutor(f.checkpoint, cfg)
}

// persistResult dumps mr through the result manager, honoring the
// configured write-text sidecar toggle.
func (f *Facade) persistResult(mr *result.ModelResult) (int, error) {
	return f.resultMgr.Dump(mr, f.cfg.Result.WriteText)
}
