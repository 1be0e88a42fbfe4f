package executor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/plandes/dltools/pkg/dataloader"
	"github.com/plandes/dltools/pkg/tensor"
)

// Batch is the opaque contract the executor needs from one mini-batch:
// a stable identifier, a size, a device-relocation hook, a release hook,
// its label tensor, and a descriptive record — everything else about the
// batch's contents is the module's business, not the executor's.
type Batch interface {
	ID() string
	Size() int
	ToDevice(device string) error
	Release()
	Labels() *tensor.Tensor
	Describe() string
}

// loaderBatch adapts dataloader.Batch (a plain Features/Targets struct)
// to the Batch contract. This module is CPU-only (device placement beyond
// distributed/accelerator training), so ToDevice and Release are no-ops
// that exist to satisfy the contract and give debug-mode output
// something concrete to call.
type loaderBatch struct {
	id  string
	src *dataloader.Batch
}

func newLoaderBatch(src *dataloader.Batch) *loaderBatch {
	return &loaderBatch{id: uuid.NewString(), src: src}
}

func (b *loaderBatch) ID() string { return b.id }

func (b *loaderBatch) Size() int {
	if b.src == nil || b.src.Features == nil || len(b.src.Features.Shape) == 0 {
		return 0
	}
	return b.src.Features.Shape[0]
}

func (b *loaderBatch) ToDevice(string) error { return nil }

func (b *loaderBatch) Release() {
	b.src = nil
}

func (b *loaderBatch) Labels() *tensor.Tensor {
	if b.src == nil {
		return nil
	}
	return b.src.Targets
}

func (b *loaderBatch) Describe() string {
	if b.src == nil || b.src.Features == nil {
		return fmt.Sprintf("batch %s (released)", b.id)
	}
	return fmt.Sprintf("batch %s: features=%v targets=%v", b.id, b.src.Features.Shape, b.src.Targets.Shape)
}
