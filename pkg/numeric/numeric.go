// Package numeric backs the executor's per-batch output reduction
// (argmax / softmax / none) with gonum rather than hand-rolled loops,
// per this module's NumericSupport component: row-wise reductions over
// a batch's [rows, cols] output matrix.
package numeric

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/plandes/dltools/pkg/dlerrors"
)

// Reduction selects how raw model output rows are turned into the
// predictions a DatasetResult stores.
type Reduction string

const (
	ReductionArgmax  Reduction = "argmax"
	ReductionSoftmax Reduction = "softmax"
	ReductionNone    Reduction = "none"
)

func ParseReduction(s string) (Reduction, error) {
	switch Reduction(s) {
	case ReductionArgmax, ReductionSoftmax, ReductionNone:
		return Reduction(s), nil
	default:
		return "", dlerrors.New(dlerrors.KindConfig, "unknown reduction: "+s)
	}
}

// Reduce applies r to each row of a flat [rows*cols] buffer, returning a
// flat result: one value per row for argmax, rows*cols values for
// softmax and none.
func Reduce(r Reduction, data []float64, rows, cols int) []float64 {
	switch r {
	case ReductionArgmax:
		out := make([]float64, rows)
		for i := 0; i < rows; i++ {
			row := data[i*cols : (i+1)*cols]
			out[i] = float64(floats.MaxIdx(row))
		}
		return out
	case ReductionSoftmax:
		out := make([]float64, len(data))
		copy(out, data)
		for i := 0; i < rows; i++ {
			row := out[i*cols : (i+1)*cols]
			softmaxInPlace(row)
		}
		return out
	default: // ReductionNone
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}
}

// softmaxInPlace normalizes row into a probability distribution using
// gonum's numerically-stable LogSumExp, mirroring the stabilized-softmax
// approach autograd.SoftmaxCrossEntropyOp uses manually.
func softmaxInPlace(row []float64) {
	logSumExp := floats.LogSumExp(row)
	for i, v := range row {
		row[i] = math.Exp(v - logSumExp)
	}
}
