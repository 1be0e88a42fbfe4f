package optimizers

import "github.com/plandes/dltools/pkg/tensor/graph"

// Optimizer - интерфейс для различных оптимизаторов модели
type Optimizer interface {
	Step(params []*graph.Node)
	SetLearningRate(lr float64)
	ZeroGrad(params []*graph.Node)
}

// LearningRateAdjustable is the narrower interface scheduler.Step's
// caller needs: every Optimizer satisfies it, but naming it separately
// lets registry/scheduler code depend on just the LR knob.
type LearningRateAdjustable interface {
	SetLearningRate(lr float64)
}
