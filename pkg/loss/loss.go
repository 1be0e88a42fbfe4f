// Package loss provides the Executor's pluggable loss functions,
// following the same Operation-struct shape as autograd's ReLUOp and
// SoftmaxCrossEntropyOp: a Forward method that also stashes whatever
// Backward needs, plus a Backward that writes into the input node's
// Grad. CrossEntropy delegates straight to autograd's working
// implementation; MSE is new, grounded on the same pattern.
package loss

import (
	"github.com/plandes/dltools/pkg/autograd"
	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/tensor"
	"github.com/plandes/dltools/pkg/tensor/graph"
)

// Func names one of the criteria the registry can resolve by string
// (mirroring the registry's criterion lookup).
type Func string

const (
	MSE          Func = "mse"
	CrossEntropy Func = "cross_entropy"
)

// Op is the minimal contract a loss needs to plug into the executor's
// step: compute a per-row loss tensor and, on Backward, populate the
// prediction node's gradient.
type Op interface {
	graph.Operation
	Forward() *tensor.Tensor
}

// MSEOp computes per-row mean squared error: mean_j (pred_ij - target_ij)^2.
type MSEOp struct {
	input  *graph.Node
	target *tensor.Tensor
}

func NewMSEOp(input *graph.Node, target *tensor.Tensor) *MSEOp {
	return &MSEOp{input: input, target: target}
}

func (op *MSEOp) Forward() *tensor.Tensor {
	shape := op.input.Value.Shape
	rows := shape[0]
	cols := 1
	for _, d := range shape[1:] {
		cols *= d
	}
	out := tensor.Zeros(rows, 1)
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			idx := i*cols + j
			diff := op.input.Value.Data[idx] - op.target.Data[idx]
			sum += diff * diff
		}
		out.Data[i] = sum / float64(cols)
	}
	return out
}

func (op *MSEOp) Backward(grad *tensor.Tensor) {
	shape := op.input.Value.Shape
	rows := shape[0]
	cols := 1
	for _, d := range shape[1:] {
		cols *= d
	}
	gradInput := tensor.Zeros(shape...)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			idx := i*cols + j
			diff := op.input.Value.Data[idx] - op.target.Data[idx]
			gradInput.Data[idx] = 2 * diff / float64(cols) * grad.Data[i]
		}
	}
	if op.input.Grad == nil {
		op.input.Grad = tensor.Zeros(shape...)
	}
	op.input.Grad = gradInput
}

// Build constructs and forward-passes the named loss, returning the
// resulting node wired into the graph so the engine's Backward call
// reaches it. Forward panics on shape mismatches exactly as the
// underlying ops do (autograd.SoftmaxCrossEntropyOp), which the caller
// is expected to recover from as a ModelContract violation.
func Build(name Func, pred *graph.Node, target *tensor.Tensor) (*graph.Node, error) {
	var op Op
	switch name {
	case MSE:
		op = NewMSEOp(pred, target)
	case CrossEntropy:
		op = autograd.NewSoftmaxCrossEntropyOp(pred, target)
	default:
		return nil, unknownLoss(name)
	}
	result := op.Forward()
	return graph.NewNode(result, []*graph.Node{pred}, op), nil
}

func unknownLoss(name Func) error {
	return dlerrors.New(dlerrors.KindConfig, "unknown loss function: "+string(name))
}
