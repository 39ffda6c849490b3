package interp

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/notargets/interp/blockkernel"
	"github.com/notargets/interp/comm"
	"github.com/notargets/interp/diag"
	"github.com/notargets/interp/redist"
	"github.com/notargets/interp/varmap"
)

// Assembler is the growable scratch state contributions accumulate into
// before finalization: it accepts row contributions in any order,
// buffers those destined for non-owning ranks, and on Finalize
// exchanges, dedups, normalizes, and hands off two finalized CSR
// structures to a new Operator.
type Assembler struct {
	id     uuid.UUID
	diag   *diag.Sink
	inPart varmap.Partition
	outPart varmap.Partition
	block  int
	policy UnroutablePolicy

	state state // stateAssembling until Finalize is called

	// inert is set at construction when the partitions are mismatched:
	// AddContribution and Finalize become no-ops.
	inert bool

	on  *growable // contributions whose out_num this rank owns
	off *growable // everything else
}

// NewAssembler constructs an Assembler for one rank. inPart and outPart
// must share a process group and block size; a mismatch is reported to
// standard error and leaves the returned Assembler inert rather than
// returning an error, so a caller that only checks the returned pointer
// for nil still gets a usable, if inert, object.
func NewAssembler(inPart, outPart varmap.Partition, policy UnroutablePolicy) *Assembler {
	id := newID()
	sink := diag.NewSink(outPart.Rank())
	a := &Assembler{id: id, diag: sink, inPart: inPart, outPart: outPart, block: outPart.BlockSize(), policy: policy}

	if err := varmap.Congruent(inPart, outPart); err != nil {
		sink.Warnf("op=%s assembler construction: %v", id, err)
		a.inert = true
		return a
	}

	lo, hi := outPart.Bounds(outPart.Rank())
	n := int(hi - lo)
	offCap := 100
	if n/10 > offCap {
		offCap = n / 10
	}
	a.on = newGrowable(n, 27*n)
	a.off = newGrowable(offCap, 27*offCap)
	return a
}

// AddContribution appends one row contribution. outNum need not be
// locally owned; the input index list may be any length, in any order,
// with duplicates.
func (a *Assembler) AddContribution(outNum int64, w []float64, in []int64) error {
	if a.inert {
		return nil
	}
	if a.state != stateAssembling {
		return fmt.Errorf("interp: AddContribution called after Finalize")
	}
	if len(w) != len(in) {
		return fmt.Errorf("interp: AddContribution: %d weights but %d input indices", len(w), len(in))
	}
	owner := varmap.OwnerOf(a.outPart, outNum)
	if owner == a.outPart.Rank() {
		a.on.add(outNum, in, w)
	} else {
		a.off.add(outNum, in, w)
	}
	return nil
}

// absorbed is the merged view of "on" contributions plus everything
// received during routing, consumed by the rest of Finalize.
type absorbed struct {
	outNum  []int64
	k       []int
	insFlat []int64
	wFlat   []float64
}

func (ab *absorbed) append(outNum []int64, k []int, ins []int64, w []float64) {
	ab.outNum = append(ab.outNum, outNum...)
	ab.k = append(ab.k, k...)
	ab.insFlat = append(ab.insFlat, ins...)
	ab.wFlat = append(ab.wFlat, w...)
}

// Finalize is collective on group: every rank must call it, and group
// must enumerate the same ranks as inPart/outPart's partitions. It
// routes off-rank contributions, builds the local and external CSR
// structures, deduplicates and normalizes them, and returns the
// finalized Operator.
func (a *Assembler) Finalize(group *comm.Group) (*Operator, error) {
	if a.inert {
		a.diag.Warnf("op=%s Finalize called on inert assembler; no work performed", a.id)
		return nil, fmt.Errorf("interp: Finalize called on an inert assembler (construction-time partition mismatch)")
	}
	if a.state != stateAssembling {
		return nil, fmt.Errorf("interp: Finalize called twice")
	}
	a.state = stateDestroyed

	ab, err := a.route(group)
	if err != nil {
		return nil, err
	}

	lo, hi := a.outPart.Bounds(a.outPart.Rank())
	N := int(hi - lo)
	loIn, hiIn := a.inPart.Bounds(a.inPart.Rank())

	rowp, extRowp, cursor, extCursor := a.countAndPrefix(ab, N)
	cols, extCols := a.populate(ab, N, loIn, hiIn, rowp, extRowp, cursor, extCursor)
	cols, rowp = dedupRows(cols, rowp, N)
	extCols, extRowp = dedupRows(extCols, extRowp, N)

	weights := make([]float64, len(cols))
	extWeights := make([]float64, len(extCols))
	a.scatterAddWeights(ab, N, loIn, hiIn, rowp, cols, weights, extRowp, extCols, extWeights)

	extVars, extColsCompact := compactify(extCols)
	for i := range cols {
		cols[i] -= loIn
	}

	normalize(N, rowp, weights, extRowp, extWeights)

	colsInt := int64ToInt(cols)
	extColsInt := int64ToInt(extColsCompact)

	redistributor, err := redist.NewChannel(group, a.inPart, extVars, a.block)
	if err != nil {
		return nil, fmt.Errorf("interp: building redistributor: %w", err)
	}
	xExt := make([]float64, a.block*len(extVars))

	kernels := blockkernel.Select(a.block)

	op := &Operator{
		id:          a.id,
		diag:        a.diag,
		inPart:      a.inPart,
		outPart:     a.outPart,
		group:       group,
		block:       a.block,
		n:           N,
		rowp:        rowp,
		cols:        colsInt,
		weights:     weights,
		extRowp:     extRowp,
		extCols:     extColsInt,
		extWeights:  extWeights,
		extVars:     extVars,
		xExt:        xExt,
		redist:      redistributor,
		kernels:     kernels,
		state:       stateReady,
	}
	return op, nil
}

// route determines the owning rank for each "off" contribution and
// exchanges the four payload streams with the group via AllToAllV (the
// slices carry their own lengths, so no separate size exchange is made),
// returning the merged local-plus-received contribution list.
func (a *Assembler) route(group *comm.Group) (*absorbed, error) {
	nranks := group.Size()
	destOutNum := make([][]int64, nranks)
	destK := make([][]int, nranks)
	destIns := make([][]int64, nranks)
	destW := make([][]float64, nranks)

	for c := 0; c < a.off.count(); c++ {
		lo, hi := a.off.span(c)
		outNum := a.off.outNum[c]
		owner := varmap.OwnerOf(a.outPart, outNum)
		if owner < 0 {
			switch a.policy {
			case FailStop:
				return nil, fmt.Errorf("interp: unroutable contribution: out_num %d belongs to no ownership range", outNum)
			default:
				a.diag.Warnf("op=%s dropping unroutable contribution out_num=%d", a.id, outNum)
				continue
			}
		}
		destOutNum[owner] = append(destOutNum[owner], outNum)
		destK[owner] = append(destK[owner], hi-lo)
		destIns[owner] = append(destIns[owner], a.off.cols[lo:hi]...)
		destW[owner] = append(destW[owner], a.off.weights[lo:hi]...)
	}

	recvOutNum, err := comm.AllToAllV(group, destOutNum)
	if err != nil {
		return nil, fmt.Errorf("interp: routing out_num stream: %w", err)
	}
	recvK, err := comm.AllToAllV(group, destK)
	if err != nil {
		return nil, fmt.Errorf("interp: routing per-row weight-count stream: %w", err)
	}
	recvIns, err := comm.AllToAllV(group, destIns)
	if err != nil {
		return nil, fmt.Errorf("interp: routing flat input-index stream: %w", err)
	}
	recvW, err := comm.AllToAllV(group, destW)
	if err != nil {
		return nil, fmt.Errorf("interp: routing flat weight stream: %w", err)
	}

	ab := &absorbed{}
	for c := 0; c < a.on.count(); c++ {
		lo, hi := a.on.span(c)
		ab.append([]int64{a.on.outNum[c]}, []int{hi - lo}, a.on.cols[lo:hi], a.on.weights[lo:hi])
	}
	for r := 0; r < nranks; r++ {
		ab.append(recvOutNum[r], recvK[r], recvIns[r], recvW[r])
	}
	return ab, nil
}

// countAndPrefix classifies each column of each absorbed contribution
// as local- or external-input, accumulates per-row counts, then
// prefix-sums into CSR offsets. It returns the cursor arrays (a copy of
// the pre-shift offsets) populate mutates while inserting columns.
func (a *Assembler) countAndPrefix(ab *absorbed, N int) (rowp, extRowp, cursor, extCursor []int) {
	loIn, hiIn := a.inPart.Bounds(a.inPart.Rank())
	loOut, _ := a.outPart.Bounds(a.outPart.Rank())

	rowp = make([]int, N+1)
	extRowp = make([]int, N+1)

	off := 0
	for c := 0; c < len(ab.outNum); c++ {
		i := int(ab.outNum[c] - loOut)
		k := ab.k[c]
		for t := 0; t < k; t++ {
			g := ab.insFlat[off+t]
			if g >= loIn && g < hiIn {
				rowp[i+1]++
			} else {
				extRowp[i+1]++
			}
		}
		off += k
	}
	for i := 0; i < N; i++ {
		rowp[i+1] += rowp[i]
		extRowp[i+1] += extRowp[i]
	}
	cursor = append([]int(nil), rowp[:N]...)
	extCursor = append([]int(nil), extRowp[:N]...)
	return
}

// populate places raw global input indices into cols/extCols, using
// explicit cursor index arrays rather than pointer arithmetic.
func (a *Assembler) populate(ab *absorbed, N int, loIn, hiIn int64, rowp, extRowp, cursor, extCursor []int) (cols, extCols []int64) {
	loOut, _ := a.outPart.Bounds(a.outPart.Rank())
	cols = make([]int64, rowp[N])
	extCols = make([]int64, extRowp[N])

	off := 0
	for c := 0; c < len(ab.outNum); c++ {
		i := int(ab.outNum[c] - loOut)
		k := ab.k[c]
		for t := 0; t < k; t++ {
			g := ab.insFlat[off+t]
			if g >= loIn && g < hiIn {
				cols[cursor[i]] = g
				cursor[i]++
			} else {
				extCols[extCursor[i]] = g
				extCursor[i]++
			}
		}
		off += k
	}
	return
}

// dedupRows sorts and merges duplicate columns within each row,
// shrinking the row. Diagonal entries are retained.
func dedupRows(cols []int64, rowp []int, N int) ([]int64, []int) {
	out := make([]int64, 0, len(cols))
	newRowp := make([]int, N+1)
	for i := 0; i < N; i++ {
		row := cols[rowp[i]:rowp[i+1]]
		sort.Slice(row, func(a, b int) bool { return row[a] < row[b] })
		start := len(out)
		for j, v := range row {
			if j == 0 || v != row[j-1] {
				out = append(out, v)
			}
		}
		newRowp[i] = start
		newRowp[i+1] = len(out)
	}
	return out, newRowp
}

// scatterAddWeights walks every absorbed contribution once more and
// binary-searches each (row,column) pair into the now-sorted-unique
// cols/extCols to accumulate its weight. A missed hit is a structural
// bug and is reported but not fatal.
func (a *Assembler) scatterAddWeights(ab *absorbed, N int, loIn, hiIn int64, rowp []int, cols []int64, weights []float64,
	extRowp []int, extCols []int64, extWeights []float64) {
	loOut, _ := a.outPart.Bounds(a.outPart.Rank())
	off := 0
	for c := 0; c < len(ab.outNum); c++ {
		i := int(ab.outNum[c] - loOut)
		k := ab.k[c]
		for t := 0; t < k; t++ {
			g := ab.insFlat[off+t]
			w := ab.wFlat[off+t]
			if g >= loIn && g < hiIn {
				pos := binarySearchInt64(cols[rowp[i]:rowp[i+1]], g)
				if pos < 0 {
					a.diag.Warnf("op=%s scatter-add: missing weight slot for row %d col %d (local)", a.id, i, g)
					continue
				}
				weights[rowp[i]+pos] += w
			} else {
				pos := binarySearchInt64(extCols[extRowp[i]:extRowp[i+1]], g)
				if pos < 0 {
					a.diag.Warnf("op=%s scatter-add: missing weight slot for row %d col %d (external)", a.id, i, g)
					continue
				}
				extWeights[extRowp[i]+pos] += w
			}
		}
		off += k
	}
}

// binarySearchInt64 returns the index of target within the ascending
// slice s, or -1 if absent.
func binarySearchInt64(s []int64, target int64) int {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		if s[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s) && s[lo] == target {
		return lo
	}
	return -1
}

func int64ToInt(v []int64) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
