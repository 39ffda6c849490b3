package interp

import (
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/notargets/gocca"

	"github.com/notargets/interp/blockkernel"
	"github.com/notargets/interp/bvec"
	"github.com/notargets/interp/comm"
	"github.com/notargets/interp/diag"
	"github.com/notargets/interp/redist"
	"github.com/notargets/interp/varmap"
)

// Operator is the finalized apply-side object: it owns the
// local/external CSR arrays, the external-index buffer, and the kernel
// dispatch pointers, and provides the four public apply operations. The
// CSR arrays, extVars, and kernel pair are set once by
// Assembler.Finalize and never changed again; WithDevice may later
// attach the GPU kernels, and Destroy moves state to DESTROYED.
type Operator struct {
	id      uuid.UUID
	diag    *diag.Sink
	inPart  varmap.Partition
	outPart varmap.Partition
	group   *comm.Group
	block   int
	n       int

	rowp, cols       []int
	weights          []float64
	extRowp, extCols []int
	extWeights       []float64
	extVars          []int64
	xExt             []float64

	redist  redist.Redistributor
	kernels blockkernel.Pair

	gpuLocal, gpuExternal *blockkernel.GPUKernels

	state state
}

// WithDevice compiles GPU-backed kernels for op's finalized CSR arrays
// (blockkernel.GPUKernels) and makes them the preferred apply path,
// falling back to the CPU dispatch table if compilation fails. Grounded
// on builder.Builder's device-then-kernel construction order: the
// Operator must already be READY (its CSR arrays fixed) before device
// kernels can be built from them.
func (op *Operator) WithDevice(device *gocca.OCCADevice) error {
	if op.state != stateReady {
		return fmt.Errorf("interp: WithDevice called on an Operator that is not READY")
	}
	local, err := blockkernel.NewGPUKernels(device, op.block, op.rowp, op.cols, op.weights)
	if err != nil {
		return fmt.Errorf("interp: compiling local GPU kernel: %w", err)
	}
	ext, err := blockkernel.NewGPUKernels(device, op.block, op.extRowp, op.extCols, op.extWeights)
	if err != nil {
		local.Free()
		return fmt.Errorf("interp: compiling external GPU kernel: %w", err)
	}
	op.gpuLocal, op.gpuExternal = local, ext
	return nil
}

func (op *Operator) ready() error {
	if op.state != stateReady {
		return fmt.Errorf("interp: apply called on an Operator that is not READY (state=%d)", op.state)
	}
	return nil
}

func (op *Operator) forwardLocal(x, y []float64) error {
	if op.gpuLocal != nil {
		return op.gpuLocal.Forward(x, y)
	}
	op.kernels.Forward(op.n, op.rowp, op.cols, op.weights, x, y)
	return nil
}

func (op *Operator) forwardExternal(x, y []float64) error {
	if op.gpuExternal != nil {
		return op.gpuExternal.Forward(x, y)
	}
	op.kernels.Forward(op.n, op.extRowp, op.extCols, op.extWeights, x, y)
	return nil
}

func (op *Operator) transposeLocal(x, y []float64) error {
	if op.gpuLocal != nil {
		return op.gpuLocal.Transpose(x, y)
	}
	op.kernels.Transpose(op.n, op.rowp, op.cols, op.weights, x, y)
	return nil
}

func (op *Operator) transposeExternal(x, y []float64) error {
	if op.gpuExternal != nil {
		return op.gpuExternal.Transpose(x, y)
	}
	op.kernels.Transpose(op.n, op.extRowp, op.extCols, op.extWeights, x, y)
	return nil
}

// Mult computes out = P*in.
func (op *Operator) Mult(in, out bvec.Vector) error {
	if err := op.ready(); err != nil {
		op.diag.Warnf("op=%s Mult: %v", op.id, err)
		return err
	}
	out.ZeroEntries()
	return op.applyForward(in, out)
}

// MultAdd computes out = add + P*in. If out and add are the same
// object the add-copy step is skipped.
func (op *Operator) MultAdd(in, add, out bvec.Vector) error {
	if err := op.ready(); err != nil {
		op.diag.Warnf("op=%s MultAdd: %v", op.id, err)
		return err
	}
	if !bvec.Same(out, add) {
		if err := out.CopyValues(add); err != nil {
			return fmt.Errorf("interp: MultAdd: %w", err)
		}
	}
	return op.applyForward(in, out)
}

// applyForward overlaps the external-input gather with the local
// kernel, then runs the external kernel once the gather completes.
func (op *Operator) applyForward(in, out bvec.Vector) error {
	if err := op.redist.BeginForward(in, op.xExt); err != nil {
		return fmt.Errorf("interp: forward gather: %w", err)
	}
	if err := op.forwardLocal(in.Local(), out.Local()); err != nil {
		return fmt.Errorf("interp: local forward kernel: %w", err)
	}
	if err := op.redist.EndForward(in, op.xExt); err != nil {
		return fmt.Errorf("interp: forward gather: %w", err)
	}
	if err := op.forwardExternal(op.xExt, out.Local()); err != nil {
		return fmt.Errorf("interp: external forward kernel: %w", err)
	}
	return nil
}

// MultTranspose computes out = Pᵀ*in.
func (op *Operator) MultTranspose(in, out bvec.Vector) error {
	if err := op.ready(); err != nil {
		op.diag.Warnf("op=%s MultTranspose: %v", op.id, err)
		return err
	}
	out.ZeroEntries()
	return op.applyTranspose(in, out)
}

// MultTransposeAdd computes out = add + Pᵀ*in with the same aliasing rule as MultAdd.
func (op *Operator) MultTransposeAdd(in, add, out bvec.Vector) error {
	if err := op.ready(); err != nil {
		op.diag.Warnf("op=%s MultTransposeAdd: %v", op.id, err)
		return err
	}
	if !bvec.Same(out, add) {
		if err := out.CopyValues(add); err != nil {
			return fmt.Errorf("interp: MultTransposeAdd: %w", err)
		}
	}
	return op.applyTranspose(in, out)
}

// applyTranspose runs the external transpose kernel into xExt before
// opening the reverse exchange; the ordering is mandatory because the
// reverse collective reads xExt.
func (op *Operator) applyTranspose(in, out bvec.Vector) error {
	for i := range op.xExt {
		op.xExt[i] = 0
	}
	if err := op.transposeExternal(in.Local(), op.xExt); err != nil {
		return fmt.Errorf("interp: external transpose kernel: %w", err)
	}
	if err := op.redist.BeginReverse(op.xExt, out); err != nil {
		return fmt.Errorf("interp: reverse scatter: %w", err)
	}
	if err := op.transposeLocal(in.Local(), out.Local()); err != nil {
		return fmt.Errorf("interp: local transpose kernel: %w", err)
	}
	if err := op.redist.EndReverse(op.xExt, out); err != nil {
		return fmt.Errorf("interp: reverse scatter: %w", err)
	}
	return nil
}

// ZeroSumRows returns the local row indices whose raw weights summed to
// zero and were therefore left un-normalized.
func (op *Operator) ZeroSumRows() []int {
	var rows []int
	for i := 0; i < op.n; i++ {
		var sum float64
		for j := op.rowp[i]; j < op.rowp[i+1]; j++ {
			sum += op.weights[j]
		}
		for j := op.extRowp[i]; j < op.extRowp[i+1]; j++ {
			sum += op.extWeights[j]
		}
		if sum == 0 {
			rows = append(rows, i)
		}
	}
	return rows
}

// N is the number of locally owned output rows.
func (op *Operator) N() int { return op.n }

// E is the number of distinct external input indices referenced by
// local rows.
func (op *Operator) E() int { return len(op.extVars) }

// Destroy releases device-backed resources, if any, and transitions the
// Operator to DESTROYED. No partial teardown: the object is destroyed
// as a whole.
func (op *Operator) Destroy() {
	if op.state == stateDestroyed {
		return
	}
	if op.gpuLocal != nil {
		op.gpuLocal.Free()
	}
	if op.gpuExternal != nil {
		op.gpuExternal.Free()
	}
	op.state = stateDestroyed
}

// PrintInterp writes a debug dump: a header line, then for each local
// row a "Row: i" line followed by space-separated "(col,weight)" pairs
// whose |weight| > 1e-12; external entries are written as
// "(ext:c,weight)" with c the compact index into extVars. The format is
// advisory, not a compatibility surface.
func (op *Operator) PrintInterp(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "interpolation operator op=%s rank=%d N=%d E=%d B=%d\n",
		op.id, op.outPart.Rank(), op.n, len(op.extVars), op.block); err != nil {
		return err
	}
	for i := 0; i < op.n; i++ {
		if _, err := fmt.Fprintf(w, "Row: %d", i); err != nil {
			return err
		}
		for j := op.rowp[i]; j < op.rowp[i+1]; j++ {
			if math.Abs(op.weights[j]) > 1e-12 {
				if _, err := fmt.Fprintf(w, " (%d,%g)", op.cols[j], op.weights[j]); err != nil {
					return err
				}
			}
		}
		for j := op.extRowp[i]; j < op.extRowp[i+1]; j++ {
			if math.Abs(op.extWeights[j]) > 1e-12 {
				if _, err := fmt.Fprintf(w, " (ext:%d,%g)", op.extCols[j], op.extWeights[j]); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintf(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
