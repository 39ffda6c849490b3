// Package varmap describes the ownership-partition contract the interp
// package expects of a distributed vector space: a contiguous range of
// global indices owned by each rank in a process group.
package varmap

import "fmt"

// Partition reports the ownership layout of one distributed vector
// space. Implementations are borrowed by interp for the lifetime of an
// Assembler or Operator; interp never mutates a Partition.
type Partition interface {
	// Bounds returns the [lo, hi) global range owned by rank p, for
	// p in [0, Size()).
	Bounds(p int) (lo, hi int64)

	// Rank is this process's own rank within the group.
	Rank() int

	// Size is the number of ranks in the group.
	Size() int

	// GlobalSize is the total number of entries across all ranks.
	GlobalSize() int64

	// BlockSize is the number of scalar unknowns per entry. Two
	// partitions used together in one interp.Operator must report the
	// same BlockSize.
	BlockSize() int

	// GroupID identifies the process group backing this partition.
	// Two partitions used together in one interp.Operator must report
	// congruent GroupID values.
	GroupID() string
}

// Static is a reference Partition implementation over a precomputed
// boundary array, the shape partitions.PartitionLayout uses for
// per-element ownership generalized here to per-global-index ownership.
type Static struct {
	bounds  []int64 // length Size()+1; bounds[p], bounds[p+1] is rank p's range
	rank    int
	block   int
	groupID string
}

// NewStatic builds a Static partition from an ascending boundary array
// of length nranks+1 (bounds[0] == 0, bounds[nranks] == global size).
func NewStatic(bounds []int64, rank, block int, groupID string) (*Static, error) {
	if len(bounds) < 2 {
		return nil, fmt.Errorf("varmap: boundary array needs at least 2 entries, got %d", len(bounds))
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] < bounds[i-1] {
			return nil, fmt.Errorf("varmap: boundary array not ascending at index %d", i)
		}
	}
	if rank < 0 || rank >= len(bounds)-1 {
		return nil, fmt.Errorf("varmap: rank %d out of range [0,%d)", rank, len(bounds)-1)
	}
	if block < 1 {
		return nil, fmt.Errorf("varmap: block size must be >= 1, got %d", block)
	}
	return &Static{bounds: append([]int64(nil), bounds...), rank: rank, block: block, groupID: groupID}, nil
}

// EvenSplit builds a Static partition splitting [0, n) as evenly as
// possible across nranks ranks.
func EvenSplit(n int64, nranks, rank, block int, groupID string) (*Static, error) {
	if nranks < 1 {
		return nil, fmt.Errorf("varmap: nranks must be >= 1, got %d", nranks)
	}
	bounds := make([]int64, nranks+1)
	base := n / int64(nranks)
	rem := n % int64(nranks)
	var cur int64
	for p := 0; p < nranks; p++ {
		sz := base
		if int64(p) < rem {
			sz++
		}
		bounds[p] = cur
		cur += sz
	}
	bounds[nranks] = cur
	return NewStatic(bounds, rank, block, groupID)
}

func (s *Static) Bounds(p int) (int64, int64) {
	if p < 0 || p >= s.Size() {
		return 0, 0
	}
	return s.bounds[p], s.bounds[p+1]
}

func (s *Static) Rank() int          { return s.rank }
func (s *Static) Size() int          { return len(s.bounds) - 1 }
func (s *Static) GlobalSize() int64  { return s.bounds[len(s.bounds)-1] }
func (s *Static) BlockSize() int     { return s.block }
func (s *Static) GroupID() string    { return s.groupID }

// OwnerOf binary-searches the boundary array to find the rank owning
// global index g. Returns -1 if g is outside [0, GlobalSize()).
func OwnerOf(p Partition, g int64) int {
	if g < 0 || g >= p.GlobalSize() {
		return -1
	}
	lo, hi := 0, p.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		_, mhi := p.Bounds(mid)
		if g < mhi {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// Congruent reports whether two partitions share a process group: same
// rank count, same rank, same block size, same group identity. This is
// the check performed at Assembler/Operator construction.
func Congruent(a, b Partition) error {
	if a.Size() != b.Size() {
		return fmt.Errorf("varmap: group size mismatch: %d vs %d", a.Size(), b.Size())
	}
	if a.Rank() != b.Rank() {
		return fmt.Errorf("varmap: rank mismatch: %d vs %d", a.Rank(), b.Rank())
	}
	if a.BlockSize() != b.BlockSize() {
		return fmt.Errorf("varmap: block size mismatch: %d vs %d", a.BlockSize(), b.BlockSize())
	}
	if a.GroupID() != b.GroupID() {
		return fmt.Errorf("varmap: communicator mismatch: %q vs %q", a.GroupID(), b.GroupID())
	}
	return nil
}
