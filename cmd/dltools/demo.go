package main

import (
	"math/rand"

	"github.com/plandes/dltools/pkg/dataloader"
	"github.com/plandes/dltools/pkg/layers"
	"github.com/plandes/dltools/pkg/tensor"
	"github.com/plandes/dltools/pkg/tensor/graph"
)

// The real neural-network module and vectorizer pipeline are external
// collaborators the executor only calls through interfaces. This file
// supplies the smallest concrete stand-in the CLI needs to exercise that
// contract end to end: a one-layer classifier over a synthetic
// Gaussian-blob dataset.
const (
	demoInputDim   = 16
	demoNumClasses = 4
	demoTrainSize  = 480
	demoEvalSize   = 120
	demoBatchSize  = 32
)

// demoModel wraps a single Dense layer so it satisfies layers.Module.
// Dense itself carries no train/eval-dependent behavior (unlike Dropout
// or BatchNorm), so the mode toggle here only exists to honor the
// contract the executor calls through (Model.Train/Model.Eval around
// each phase).
type demoModel struct {
	dense    *layers.Dense
	training bool
}

func newDemoModel(seed int64) *demoModel {
	rng := rand.New(rand.NewSource(seed))
	return &demoModel{
		dense: layers.NewDense(demoInputDim, demoNumClasses, func(w []float64) {
			for i := range w {
				w[i] = rng.NormFloat64() * 0.05
			}
		}),
	}
}

func (m *demoModel) Layers() []layers.Layer         { return nil }
func (m *demoModel) Forward(x *graph.Node) *graph.Node { return m.dense.Forward(x) }
func (m *demoModel) Params() []*graph.Node          { return m.dense.Params() }
func (m *demoModel) Train()                         { m.training = true }
func (m *demoModel) Eval()                          { m.training = false }

// newDemoDatasets builds train/validation/test loaders drawn from the
// same class centers (so the splits are comparable) but independent
// per-split sampling streams.
func newDemoDatasets(seed int64) (train, valid, test *dataloader.DataLoader) {
	centerRNG := rand.New(rand.NewSource(seed))
	centers := make([][]float64, demoNumClasses)
	for c := range centers {
		center := make([]float64, demoInputDim)
		for i := range center {
			center[i] = centerRNG.NormFloat64() * 3
		}
		centers[c] = center
	}

	build := func(samples int, splitSeed int64) *dataloader.DataLoader {
		rng := rand.New(rand.NewSource(splitSeed))
		x := tensor.Zeros(samples, demoInputDim)
		y := tensor.Zeros(samples, demoNumClasses)
		for i := 0; i < samples; i++ {
			label := rng.Intn(demoNumClasses)
			for j := 0; j < demoInputDim; j++ {
				x.Data[i*demoInputDim+j] = centers[label][j] + rng.NormFloat64()*0.8
			}
			y.Data[i*demoNumClasses+label] = 1.0
		}
		ds := dataloader.NewSimpleDataset(x, y)
		return dataloader.NewDataLoader(ds, dataloader.DataLoaderConfig{
			BatchSize: demoBatchSize,
			Shuffle:   true,
			Seed:      splitSeed,
		})
	}

	return build(demoTrainSize, seed+1), build(demoEvalSize, seed+2), build(demoEvalSize, seed+3)
}
