package graph

import (
	"github.com/plandes/dltools/pkg/tensor"
)

type Node struct {
	Value *tensor.Tensor

	Grad *tensor.Tensor

	Parents []*Node

	Operation Operation

	ID string
}

type BackwardFunc func(grad *tensor.Tensor)

type Operation interface {
	Backward(grad *tensor.Tensor)
}

// noGradDepth tracks nesting of NoGrad regions. Not safe for concurrent
// goroutines (see pkg/gnn.NoGrad).
var noGradDepth int

// EnterNoGrad increments the no-grad nesting depth.
func EnterNoGrad() {
	noGradDepth++
}

// ExitNoGrad decrements the no-grad nesting depth.
func ExitNoGrad() {
	if noGradDepth > 0 {
		noGradDepth--
	}
}

// IsNoGrad reports whether a NewNode call is currently inside a NoGrad region.
func IsNoGrad() bool {
	return noGradDepth > 0
}

func NewNode(value *tensor.Tensor, parents []*Node, op Operation) *Node {
	if IsNoGrad() {
		return &Node{Value: value}
	}
	return &Node{
		Value:     value,
		Grad:      value.ZeroGrad(),
		Parents:   parents,
		Operation: op,
	}
}

func (n *Node) IsLeaf() bool {
	return len(n.Parents) == 0
}

func (n *Node) ZeroGrad() {
	n.Grad = n.Value.ZeroGrad()
}
