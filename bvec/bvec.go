// Package bvec describes the distributed vector contract interp applies
// against: contiguous local storage over a block-structured partition,
// plus the two mutating operations interp needs (zero, copy).
package bvec

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/interp/varmap"
)

// Vector is the contract interp.Operator borrows for the duration of a
// single apply. Implementations own contiguous scalar storage laid out
// as B consecutive scalars per locally-owned entry, matching
// partitions.PartitionedArray's stride convention.
type Vector interface {
	// Local returns the local scalar storage, length B*(hi-lo) for this
	// rank's [lo,hi) ownership range.
	Local() []float64

	// ZeroEntries sets every local scalar to 0.
	ZeroEntries()

	// CopyValues overwrites this vector's local storage with src's.
	// Preconditions: identical shape (same length).
	CopyValues(src Vector) error
}

// Block is a reference Vector implementation over a flat slice, grounded
// on partitions.PartitionedArray's single contiguous-storage-with-offset
// layout, specialized to one partition's local slice.
type Block struct {
	data []float64
}

// NewBlock allocates a Block sized for the given partition's local
// ownership range and block size.
func NewBlock(p varmap.Partition) *Block {
	lo, hi := p.Bounds(p.Rank())
	n := int(hi-lo) * p.BlockSize()
	return &Block{data: make([]float64, n)}
}

// NewBlockFrom wraps an existing slice without copying.
func NewBlockFrom(data []float64) *Block {
	return &Block{data: data}
}

func (b *Block) Local() []float64 { return b.data }

func (b *Block) ZeroEntries() {
	for i := range b.data {
		b.data[i] = 0
	}
}

func (b *Block) CopyValues(src Vector) error {
	s := src.Local()
	if len(s) != len(b.data) {
		return fmt.Errorf("bvec: shape mismatch: dst has %d entries, src has %d", len(b.data), len(s))
	}
	copy(b.data, s)
	return nil
}

// Same reports whether two Vector values reference the same backing
// object, used by interp to implement the multAdd/multTransposeAdd
// aliasing rule: if out and add are the same object, the add-copy step
// is skipped.
func Same(a, b Vector) bool {
	ap, aok := a.(*Block)
	bp, bok := b.(*Block)
	if aok && bok {
		return ap == bp
	}
	return a == b
}

// Dot computes the Euclidean inner product of two vectors' local
// storage, used only by tests exercising the adjoint law. Not used on
// any apply path.
func Dot(a, b Vector) float64 {
	return floats.Dot(a.Local(), b.Local())
}
