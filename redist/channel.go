package redist

import (
	"fmt"

	"github.com/notargets/interp/bvec"
	"github.com/notargets/interp/comm"
	"github.com/notargets/interp/varmap"
)

// run is a contiguous span of a rank's external-index table owned by a
// single remote rank, generalizing the send/recv element lists of
// other_examples/Notargets-gocca__halo_exchange.go from per-partition
// face lists to per-rank global-input-index runs.
type run struct {
	owner  int
	lo, hi int // [lo,hi) into extVars/buf
}

// Channel is a reference Redistributor built on comm.Group. Construction
// is collective: every rank in the group must call NewChannel with its
// own (possibly empty) extVars against the same input partition.
type Channel struct {
	group   *comm.Group
	inPart  varmap.Partition
	extVars []int64
	block   int

	runs []run // ext_vars grouped into contiguous owner runs

	// sendPlan[r] holds the local (owner-relative) indices rank r asked
	// this rank -- acting as owner -- to supply during forward, and the
	// same indices this rank must add reverse contributions into.
	sendPlan map[int][]int64

	pendingFwd chan fwdResult
	pendingRev chan revResult
}

type fwdResult struct {
	recv [][]float64
	err  error
}

type revResult struct {
	recv [][]float64
	err  error
}

// NewChannel builds a Channel for one rank's external-index table.
// extVars must be sorted-unique and disjoint from this rank's own input
// ownership range.
func NewChannel(g *comm.Group, inPart varmap.Partition, extVars []int64, block int) (*Channel, error) {
	if block < 1 {
		return nil, fmt.Errorf("redist: block size must be >= 1, got %d", block)
	}
	c := &Channel{group: g, inPart: inPart, extVars: extVars, block: block}

	// Group extVars into contiguous owner runs.
	runs := make([]run, 0)
	for i := 0; i < len(extVars); {
		owner := varmap.OwnerOf(inPart, extVars[i])
		if owner < 0 {
			return nil, fmt.Errorf("redist: external index %d has no owner in input partition", extVars[i])
		}
		j := i + 1
		for j < len(extVars) && varmap.OwnerOf(inPart, extVars[j]) == owner {
			j++
		}
		runs = append(runs, run{owner: owner, lo: i, hi: j})
		i = j
	}
	c.runs = runs

	// Request phase: tell each owner which of its local indices we need.
	requests := make([][]int64, g.Size())
	for _, r := range runs {
		lo, _ := inPart.Bounds(r.owner)
		idx := make([]int64, 0, r.hi-r.lo)
		for k := r.lo; k < r.hi; k++ {
			idx = append(idx, extVars[k]-lo)
		}
		requests[r.owner] = idx
	}
	received, err := comm.AllToAllV(g, requests)
	if err != nil {
		return nil, fmt.Errorf("redist: request exchange: %w", err)
	}
	c.sendPlan = make(map[int][]int64)
	for r, idx := range received {
		if len(idx) > 0 {
			c.sendPlan[r] = idx
		}
	}
	return c, nil
}

func packBlock(local []float64, indices []int64, block int) []float64 {
	out := make([]float64, len(indices)*block)
	for i, idx := range indices {
		copy(out[i*block:(i+1)*block], local[int(idx)*block:int(idx)*block+block])
	}
	return out
}

// BeginForward launches the gather in the background; the caller may do
// local computation before calling EndForward.
func (c *Channel) BeginForward(in bvec.Vector, buf []float64) error {
	if c.pendingFwd != nil {
		return fmt.Errorf("redist: BeginForward called with a forward exchange already in flight")
	}
	local := in.Local()
	send := make([][]float64, c.group.Size())
	for r, idx := range c.sendPlan {
		send[r] = packBlock(local, idx, c.block)
	}
	done := make(chan fwdResult, 1)
	c.pendingFwd = done
	go func() {
		recv, err := comm.AllToAllV(c.group, send)
		done <- fwdResult{recv: recv, err: err}
	}()
	return nil
}

// EndForward blocks until the gather posted by BeginForward completes
// and unpacks the result into buf.
func (c *Channel) EndForward(in bvec.Vector, buf []float64) error {
	if c.pendingFwd == nil {
		return fmt.Errorf("redist: EndForward called with no forward exchange in flight")
	}
	res := <-c.pendingFwd
	c.pendingFwd = nil
	if res.err != nil {
		return fmt.Errorf("redist: forward exchange: %w", res.err)
	}
	for _, r := range c.runs {
		got := res.recv[r.owner]
		want := (r.hi - r.lo) * c.block
		if len(got) != want {
			return fmt.Errorf("redist: forward exchange: expected %d scalars from rank %d, got %d", want, r.owner, len(got))
		}
		copy(buf[r.lo*c.block:r.hi*c.block], got)
	}
	return nil
}

// BeginReverse launches the network side of the scatter in the
// background. The local element-wise add into out happens synchronously
// inside EndReverse, on the caller's goroutine, so it can never race
// with a concurrently running local transpose kernel writing into the
// same out.Local() slice between BeginReverse and EndReverse.
func (c *Channel) BeginReverse(buf []float64, out bvec.Vector) error {
	if c.pendingRev != nil {
		return fmt.Errorf("redist: BeginReverse called with a reverse exchange already in flight")
	}
	send := make([][]float64, c.group.Size())
	for _, r := range c.runs {
		send[r.owner] = buf[r.lo*c.block : r.hi*c.block]
	}
	done := make(chan revResult, 1)
	c.pendingRev = done
	go func() {
		recv, err := comm.AllToAllV(c.group, send)
		done <- revResult{recv: recv, err: err}
	}()
	return nil
}

// EndReverse blocks until the network exchange posted by BeginReverse
// completes, then applies the received contributions to out with
// element-wise addition.
func (c *Channel) EndReverse(buf []float64, out bvec.Vector) error {
	if c.pendingRev == nil {
		return fmt.Errorf("redist: EndReverse called with no reverse exchange in flight")
	}
	res := <-c.pendingRev
	c.pendingRev = nil
	if res.err != nil {
		return fmt.Errorf("redist: reverse exchange: %w", res.err)
	}
	local := out.Local()
	for r, idx := range c.sendPlan {
		got := res.recv[r]
		want := len(idx) * c.block
		if len(got) != want {
			return fmt.Errorf("redist: reverse exchange: expected %d scalars from rank %d, got %d", want, r, len(got))
		}
		for i, ix := range idx {
			base := int(ix) * c.block
			for k := 0; k < c.block; k++ {
				local[base+k] += got[i*c.block+k]
			}
		}
	}
	return nil
}
