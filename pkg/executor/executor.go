// Package executor implements the training/evaluation state machine:
// epoch-structured train/validation/test loops, checkpoint-on-improve,
// cooperative early stop, and debug-mode early bail. Its per-batch step
// follows the usual zero-grad -> forward -> loss -> backward ->
// optimizer-step sequence, wired into the result/lifecycle/checkpoint/
// metrics machinery that drives a full run.
package executor

import (
	"context"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/plandes/dltools/pkg/autograd"
	"github.com/plandes/dltools/pkg/batchpolicy"
	"github.com/plandes/dltools/pkg/checkpoint"
	"github.com/plandes/dltools/pkg/dataloader"
	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/dlmetrics"
	"github.com/plandes/dltools/pkg/gnn"
	"github.com/plandes/dltools/pkg/layers"
	"github.com/plandes/dltools/pkg/lifecycle"
	"github.com/plandes/dltools/pkg/loss"
	"github.com/plandes/dltools/pkg/numeric"
	"github.com/plandes/dltools/pkg/optimizers"
	"github.com/plandes/dltools/pkg/profiling"
	"github.com/plandes/dltools/pkg/progress"
	"github.com/plandes/dltools/pkg/result"
	"github.com/plandes/dltools/pkg/resultmgr"
	"github.com/plandes/dltools/pkg/tensor"
	"github.com/plandes/dltools/pkg/tensor/graph"
)

// DebugLevel collapses the original's inconsistent boolean/int debug
// flag into a single enum.
type DebugLevel int

const (
	DebugOff DebugLevel = iota
	DebugBail
	DebugBailWithDump
)

// Scheduler is satisfied by any pkg/optimizers scheduler.
type Scheduler interface {
	Step() float64
}

// LossObserver is the optional scheduler extension for plateau-style
// schedulers that key off the per-epoch validation loss. When the
// configured Scheduler also implements this, Observe is called with the
// epoch's average loss before Step.
type LossObserver interface {
	Observe(loss float64)
}

// Config holds everything an Executor needs to run, assembled by the
// caller (typically cmd/dltools) from a loaded AppConfig plus a
// registry.Registry lookup.
type Config struct {
	Name        string
	Description string

	Model     layers.Module
	Optimizer optimizers.Optimizer
	Scheduler Scheduler // nil disables the post-validation step() call
	Criterion loss.Func
	Reduction numeric.Reduction
	Nominal   bool // true when labels are class indices, not continuous targets

	TrainLoader      *dataloader.DataLoader
	ValidationLoader *dataloader.DataLoader
	TestLoader       *dataloader.DataLoader

	BatchPolicy *batchpolicy.Policy
	Checkpoint  *checkpoint.Manager
	ResultMgr   *resultmgr.Manager // optional: lets Test pick up the last dumped run
	Lifecycle   *lifecycle.Monitor
	Metrics     *dlmetrics.TrainingMetrics
	Broadcaster *progress.Broadcaster
	Logger      *zap.Logger
	RunCounter  *result.RunCounter
	Profiler    *profiling.Profiler // nil disables per-step operation tracing

	NumEpochs int
	Debug     DebugLevel
	Seed      int64

	// ModelSettings and NetworkSettings are frozen onto each ModelResult
	// at construction, alongside the scalar run settings the executor
	// records itself. The caller fills them with whatever describes the
	// run (criterion/optimizer/scheduler names, architecture shape).
	ModelSettings   map[string]string
	NetworkSettings map[string]string
}

// Executor drives one model through the train/validation/test state
// machine.
type Executor struct {
	cfg    Config
	logger *zap.Logger

	modelResult *result.ModelResult
	bestLoss    float64
}

func New(cfg Config) (*Executor, error) {
	if cfg.Model == nil {
		return nil, dlerrors.New(dlerrors.KindModelContract, "executor requires a model")
	}
	if cfg.RunCounter == nil {
		cfg.RunCounter = result.NewRunCounter()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:      cfg,
		logger:   logger,
		bestLoss: math.Inf(1),
	}, nil
}

// Reset discards the in-progress ModelResult and the best-loss marker,
// matching the contract debug-mode EarlyBail relies on: after a
// bail the executor is reset and returns an empty ModelResult.
func (e *Executor) Reset() {
	e.modelResult = nil
	e.bestLoss = math.Inf(1)
}

// restoreResult installs a ModelResult loaded from a checkpoint as the
// executor's in-progress result, so a resumed run keeps appending to the
// same container instead of starting a fresh one.
func (e *Executor) restoreResult(mr *result.ModelResult) {
	e.modelResult = mr
}

// persistableConfig is the scalar subset of Config that CheckpointManager
// writes to the .config file: everything else (Model, Optimizer,
// Scheduler, loaders, BatchPolicy, Lifecycle, Metrics, Broadcaster,
// Logger) is a live Go object the caller must supply again when resuming,
// not something JSON can reconstruct.
type persistableConfig struct {
	Name        string
	Description string
	Reduction   string
	Nominal     bool
	NumEpochs   int
	Debug       DebugLevel
	Seed        int64
}

func (e *Executor) persistableConfig() persistableConfig {
	return persistableConfig{
		Name:        e.cfg.Name,
		Description: e.cfg.Description,
		Reduction:   string(e.cfg.Reduction),
		Nominal:     e.cfg.Nominal,
		NumEpochs:   e.cfg.NumEpochs,
		Debug:       e.cfg.Debug,
		Seed:        e.cfg.Seed,
	}
}

// LoadExecutor reinstantiates an Executor from the checkpoint quintuple
// written by saveCheckpoint. base must carry the live
// objects a config document cannot encode — Model, Optimizer, and
// anything else the caller wants wired in (Scheduler, loaders,
// BatchPolicy, Lifecycle, Metrics, Broadcaster, Logger) — plus the
// Checkpoint manager pointed at the run to resume. Scalar fields
// (Name, Description, Reduction, Nominal, NumEpochs, Debug, Seed) are
// overwritten from the persisted config. Weights and optimizer state are
// loaded into base.Model and base.Optimizer in place, and the ModelResult
// snapshot saved with the checkpoint (the .result file, not the
// .final.result one), if present, is restored so training can continue
// appending to it.
func LoadExecutor(cm *checkpoint.Manager, base Config) (*Executor, error) {
	if cm == nil {
		return nil, dlerrors.New(dlerrors.KindConfig, "LoadExecutor requires a checkpoint manager")
	}
	base.Checkpoint = cm

	var pc persistableConfig
	if err := cm.LoadConfig(&pc); err != nil {
		return nil, err
	}
	base.Name = pc.Name
	base.Description = pc.Description
	base.Nominal = pc.Nominal
	base.NumEpochs = pc.NumEpochs
	base.Debug = pc.Debug
	base.Seed = pc.Seed
	if pc.Reduction != "" {
		reduction, err := numeric.ParseReduction(pc.Reduction)
		if err != nil {
			return nil, err
		}
		base.Reduction = reduction
	}

	if base.Model == nil {
		return nil, dlerrors.New(dlerrors.KindModelContract, "LoadExecutor requires base.Model to load weights into")
	}
	if err := cm.LoadWeights(base.Model); err != nil {
		return nil, err
	}

	if base.Optimizer != nil {
		optimState, err := cm.LoadOptim()
		if err != nil {
			return nil, err
		}
		base.Optimizer.SetLearningRate(optimState.LearningRate)
	}

	seed, _, err := cm.LoadSeed()
	if err != nil {
		return nil, err
	}
	base.Seed = seed

	e, err := New(base)
	if err != nil {
		return nil, err
	}

	var mr result.ModelResult
	if loadErr := cm.LoadResult(&mr); loadErr == nil {
		e.restoreResult(&mr)
	}

	return e, nil
}

func (e *Executor) ensureResult() *result.ModelResult {
	if e.modelResult == nil {
		e.modelResult = e.newModelResult()
	}
	return e.modelResult
}

// newModelResult mints a fresh ModelResult with the run's settings
// frozen in: the caller-supplied maps plus the scalar settings the
// executor owns.
func (e *Executor) newModelResult() *result.ModelResult {
	ms := map[string]string{
		"epochs":    strconv.Itoa(e.cfg.NumEpochs),
		"reduction": string(e.cfg.Reduction),
		"nominal":   strconv.FormatBool(e.cfg.Nominal),
		"debug":     strconv.Itoa(int(e.cfg.Debug)),
		"seed":      strconv.FormatInt(e.cfg.Seed, 10),
	}
	for k, v := range e.cfg.ModelSettings {
		ms[k] = v
	}
	return result.NewModelResult(e.cfg.RunCounter, e.cfg.Name, e.cfg.Description, ms, e.cfg.NetworkSettings)
}

// Train runs the train/validation loop until NumEpochs, a lifecycle STOP,
// or (in debug mode) an EarlyBail. It returns the accumulated
// ModelResult; on EarlyBail the result is empty. Normal completion also
// persists the completed ModelResult as the final-results snapshot,
// separate from the best-validation checkpoint written mid-loop.
func (e *Executor) Train(ctx context.Context) (*result.ModelResult, error) {
	return e.train(ctx, false)
}

// train is the shared loop behind Train and TrainProduction. In
// production mode the training set is the union of the train and
// validation splits, no validation loop runs, and checkpoint-on-improve
// keys off the train epoch's loss instead.
func (e *Executor) train(ctx context.Context, production bool) (*result.ModelResult, error) {
	// batchpolicy.New already rejects an invalid cache_batches/buffered
	// combination at construction time, before Train ever sees a
	// Policy to call here.
	if e.cfg.Profiler != nil {
		ctx = profiling.WithProfiler(ctx, e.cfg.Profiler)
	}
	mr := e.ensureResult()
	mr.TrainResult.Start(time.Now())
	if !production {
		mr.ValidationResult.Start(time.Now())
	}

	if e.cfg.Lifecycle != nil {
		e.cfg.Lifecycle.Reset()
	}

	// Both splits are materialized once, before the first epoch, and the
	// same batch lists are replayed every epoch; any shuffle the loader
	// applies happens here, not per epoch.
	trainBatches, err := e.drainLoader(ctx, e.cfg.TrainLoader, "train")
	if err != nil {
		return nil, err
	}
	var validBatches []*dataloader.Batch
	if production {
		unioned, err := e.drainLoader(ctx, e.cfg.ValidationLoader, "validation")
		if err != nil {
			return nil, err
		}
		trainBatches = append(trainBatches, unioned...)
	} else {
		validBatches, err = e.drainLoader(ctx, e.cfg.ValidationLoader, "validation")
		if err != nil {
			return nil, err
		}
	}

	epoch := 0
	for epoch < e.cfg.NumEpochs {
		select {
		case <-ctx.Done():
			return mr, ctx.Err()
		default:
		}

		e.cfg.Model.Train()
		trainEpoch := result.NewEpochResult(epoch, result.Train)

		for i, b := range trainBatches {
			batch, first := b, epoch == 0 && i == 0
			err := profiling.TraceOperation(ctx, "train_step", func() error {
				return e.step(trainEpoch, batch, true, first)
			})
			if err != nil {
				if bail, ok := err.(*dlerrors.EarlyBail); ok {
					e.logger.Warn("early bail during training", zap.String("reason", bail.Reason))
					e.Reset()
					return e.newModelResult(), nil
				}
				return nil, err
			}
		}
		mr.TrainResult.AppendEpoch(trainEpoch)

		epochLoss, lossErr := trainEpoch.AveLoss()
		accEpoch := trainEpoch
		if !production {
			e.cfg.Model.Eval()
			validEpoch := result.NewEpochResult(epoch, result.Validation)
			var stepErr error
			gnn.NoGrad(func() {
				for _, b := range validBatches {
					batch := b
					if err := profiling.TraceOperation(ctx, "validation_step", func() error {
						return e.step(validEpoch, batch, false, false)
					}); err != nil {
						stepErr = err
						return
					}
				}
			})
			if stepErr != nil {
				return nil, stepErr
			}
			mr.ValidationResult.AppendEpoch(validEpoch)
			epochLoss, lossErr = validEpoch.AveLoss()
			accEpoch = validEpoch
		}

		if lossErr == nil {
			if e.cfg.Scheduler != nil {
				if obs, ok := e.cfg.Scheduler.(LossObserver); ok {
					obs.Observe(epochLoss)
				}
				newLR := e.cfg.Scheduler.Step()
				e.cfg.Optimizer.SetLearningRate(newLR)
			}
			if epochLoss < e.bestLoss {
				e.bestLoss = epochLoss
				if e.cfg.Checkpoint != nil {
					if err := e.saveCheckpoint(mr); err != nil {
						e.logger.Error("checkpoint save failed", zap.Error(err))
						return nil, err
					}
					if e.cfg.Metrics != nil {
						e.cfg.Metrics.CheckpointsTotal.Inc()
					}
				}
			}
			e.updateMetrics(epoch, epochLoss, trainEpoch, accEpoch)
		}

		if e.cfg.Lifecycle != nil {
			status := e.cfg.Lifecycle.GetStatus()
			epoch = status.Epoch
			if status.Action == lifecycle.ActionStop {
				if e.cfg.Metrics != nil {
					e.cfg.Metrics.EarlyStopsTotal.Inc()
				}
				break
			}
			continue
		}
		epoch++
	}

	mr.TrainResult.End(time.Now())
	if !production {
		mr.ValidationResult.End(time.Now())
	}
	if e.cfg.Checkpoint != nil {
		if err := e.cfg.Checkpoint.SaveFinalTrainedResults(mr); err != nil {
			return nil, err
		}
	}
	return mr, nil
}

// Test runs the evaluation loop once, always under no-grad, writing to a
// single EpochResult tagged TEST. When no ModelResult is in progress (a
// fresh executor testing a previously trained model), the last run dumped
// through the result manager is picked up so the test epochs land on the
// run they belong to.
func (e *Executor) Test(ctx context.Context) (*result.ModelResult, error) {
	if e.cfg.Profiler != nil {
		ctx = profiling.WithProfiler(ctx, e.cfg.Profiler)
	}
	if e.modelResult == nil && e.cfg.ResultMgr != nil {
		if last, err := e.cfg.ResultMgr.LoadLast(); err == nil {
			e.modelResult = last
		}
	}
	mr := e.ensureResult()
	mr.TestResult.Start(time.Now())

	e.cfg.Model.Eval()
	testEpoch := result.NewEpochResult(0, result.Test)
	batches, err := e.drainLoader(ctx, e.cfg.TestLoader, "test")
	if err != nil {
		return nil, err
	}

	var bailed error
	gnn.NoGrad(func() {
		for i, b := range batches {
			batch, debugFirst := b, i == 0 && e.cfg.Debug != DebugOff
			err := profiling.TraceOperation(ctx, "test_step", func() error {
				return e.step(testEpoch, batch, false, debugFirst)
			})
			if err != nil {
				bailed = err
				return
			}
		}
	})
	if bailed != nil {
		if bail, ok := bailed.(*dlerrors.EarlyBail); ok {
			e.logger.Warn("early bail during test", zap.String("reason", bail.Reason))
			e.Reset()
			return e.newModelResult(), nil
		}
		return nil, bailed
	}

	mr.TestResult.AppendEpoch(testEpoch)
	mr.TestResult.End(time.Now())
	return mr, nil
}

// TrainTest runs Train followed by Test, returning the combined result.
func (e *Executor) TrainTest(ctx context.Context) (*result.ModelResult, error) {
	if _, err := e.Train(ctx); err != nil {
		return nil, err
	}
	return e.Test(ctx)
}

// TrainProduction trains on the union of the train and validation splits
// with no validation loop, the shape used when the model is being fit one
// last time on all available labeled data before deployment.
func (e *Executor) TrainProduction(ctx context.Context) (*result.ModelResult, error) {
	return e.train(ctx, true)
}

// DeallocateBatches releases every batch the policy cache retains. The
// cache is the one structure that legitimately holds batches across
// phases and resets, so this is its explicit teardown.
func (e *Executor) DeallocateBatches() {
	if e.cfg.BatchPolicy != nil {
		e.cfg.BatchPolicy.DeallocateBatches()
	}
}

// Stop requests a cooperative stop via the lifecycle monitor's update
// file, observed at the next epoch boundary.
func (e *Executor) Stop() (bool, error) {
	if e.cfg.Lifecycle == nil {
		return false, dlerrors.New(dlerrors.KindConfig, "no lifecycle monitor configured")
	}
	return e.cfg.Lifecycle.Stop()
}

func (e *Executor) drainLoader(ctx context.Context, loader *dataloader.DataLoader, phase string) ([]*dataloader.Batch, error) {
	if loader == nil {
		return nil, nil
	}
	if e.cfg.BatchPolicy != nil {
		return e.cfg.BatchPolicy.Iterate(ctx, loader, phase)
	}
	loader.Reset()
	var batches []*dataloader.Batch
	for loader.HasNext() {
		batches = append(batches, loader.Next())
	}
	return batches, nil
}

// step implements the per-step contract: zero-grad (if
// training) -> forward -> loss -> backward + optimizer-step (if
// training) -> decode -> append.
func (e *Executor) step(epoch *result.EpochResult, raw *dataloader.Batch, training bool, debugFirstStep bool) error {
	b := newLoaderBatch(raw)
	defer b.Release()

	if err := b.ToDevice("cpu"); err != nil {
		return dlerrors.Wrap(dlerrors.KindIO, "relocate batch", err)
	}
	labels := b.Labels()

	var ctx *autograd.GraphContext
	if training {
		for _, p := range e.cfg.Model.Params() {
			p.ZeroGrad()
		}
		// A fresh grad-enabled GraphContext must be current before the
		// forward pass runs: layers.Dense.Forward only attaches its
		// backward Operation to the output node when
		// autograd.GradEnabled() reports true.
		ctx = autograd.NewGraph()
		autograd.SetGraph(ctx)
		defer autograd.ClearGraph()
	}

	input := graph.NewNode(raw.Features, nil, nil)
	pred := e.cfg.Model.Forward(input)
	if pred == nil || pred.Value == nil {
		return dlerrors.New(dlerrors.KindModelContract, "model forward returned a null output")
	}

	if debugFirstStep && e.cfg.Debug != DebugOff {
		e.logger.Warn("debug bail", zap.String("batch", b.Describe()))
		if e.cfg.Debug == DebugBailWithDump {
			e.logger.Warn("debug dump",
				zap.Any("output", pred.Value.Data),
				zap.Any("labels", labelData(labels)))
		}
		return &dlerrors.EarlyBail{Reason: "debug mode"}
	}

	// loss ops panic when predictions and labels do not line up; report
	// that as a ModelContract violation rather than crashing the run.
	lossNode, err := func() (n *graph.Node, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = dlerrors.New(dlerrors.KindModelContract, "loss: model output and label shapes do not match")
			}
		}()
		return loss.Build(e.cfg.Criterion, pred, labels)
	}()
	if err != nil {
		return err
	}
	lossScalar := meanOf(lossNode.Value.Data)

	if training {
		// GraphContext.Backward walks the Parents chain from lossNode
		// down to the model's leaf parameters, calling each Operation's
		// Backward in reverse topological order, then releases ctx.
		ctx.Backward(lossNode)
		e.cfg.Optimizer.Step(e.cfg.Model.Params())
	}

	rows, cols := rowsCols(pred.Value.Shape)
	predictions := numeric.Reduce(e.cfg.Reduction, pred.Value.Data, rows, cols)
	var decodedLabels []float64
	if labels != nil {
		if e.cfg.Nominal {
			lrows, lcols := rowsCols(labels.Shape)
			decodedLabels = numeric.Reduce(e.cfg.Reduction, labels.Data, lrows, lcols)
		} else {
			decodedLabels = append([]float64(nil), labels.Data...)
		}
	}

	epoch.Append(lossScalar*float64(b.Size()), b.Size(), b.ID(), result.Outcome{
		Predictions: predictions,
		Labels:      decodedLabels,
	})
	return nil
}

func rowsCols(shape []int) (rows, cols int) {
	if len(shape) == 0 {
		return 0, 0
	}
	rows = shape[0]
	cols = 1
	for _, d := range shape[1:] {
		cols *= d
	}
	return rows, cols
}

func meanOf(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func (e *Executor) saveCheckpoint(mr *result.ModelResult) error {
	return e.cfg.Checkpoint.Save(checkpoint.ExecutorState{
		Module:    e.cfg.Model,
		Optimizer: e.cfg.Optimizer,
		Result:    mr,
		Config:    e.persistableConfig(),
		Seed:      e.cfg.Seed,
	})
}

func (e *Executor) updateMetrics(epoch int, epochLoss float64, trainEpoch, evalEpoch *result.EpochResult) {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.Epoch.Set(float64(epoch))
		if evalEpoch != trainEpoch {
			e.cfg.Metrics.ValidationLoss.Set(epochLoss)
		}
		if trainLoss, err := trainEpoch.AveLoss(); err == nil {
			e.cfg.Metrics.TrainLoss.Set(trainLoss)
		}
		if acc, err := evalEpoch.Accuracy(); err == nil {
			e.cfg.Metrics.Accuracy.Set(acc)
		}
	}
	if e.cfg.Broadcaster != nil {
		e.cfg.Broadcaster.Publish(progress.Event{Kind: "epoch_end", Epoch: epoch, Split: evalEpoch.Split.String(), Loss: epochLoss})
	}
}

func labelData(t *tensor.Tensor) []float64 {
	if t == nil {
		return nil
	}
	return t.Data
}
