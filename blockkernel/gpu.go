package blockkernel

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// GPUKernels is an optional device-backed specialization of Pair,
// attached to an already READY interp.Operator via Operator.WithDevice. It
// compiles one OCCA kernel per (forward, transpose) direction from the
// finalized CSR arrays, following the same
// Malloc/BuildKernelFromString/RunWithArgs sequence
// builder.Builder.BuildKernel uses to stand up a kernel from bound Go
// arrays.
//
// GPUKernels owns device memory for rowp/cols/w and must be released
// with Free when the owning Operator is destroyed.
type GPUKernels struct {
	device *gocca.OCCADevice
	block  int
	n      int

	rowpMem *gocca.OCCAMemory
	colsMem *gocca.OCCAMemory
	wMem    *gocca.OCCAMemory

	forwardKernel   *gocca.OCCAKernel
	transposeKernel *gocca.OCCAKernel
}

const spmvSource = `
@kernel void spmvForward(const int N, const int B,
                          const int *rowp, const int *cols, const double *w,
                          const double *x, double *y) {
  for (int i = 0; i < N; ++i; @outer) {
    for (int k = 0; k < B; ++k; @inner) {
      double acc = 0.0;
      for (int j = rowp[i]; j < rowp[i+1]; ++j) {
        acc += w[j] * x[B*cols[j] + k];
      }
      y[B*i + k] += acc;
    }
  }
}

@kernel void spmvTranspose(const int N, const int B,
                            const int *rowp, const int *cols, const double *w,
                            const double *x, double *y) {
  for (int i = 0; i < N; ++i; @outer) {
    for (int k = 0; k < B; ++k; @inner) {
      const double xi = x[B*i + k];
      for (int j = rowp[i]; j < rowp[i+1]; ++j) {
        y[B*cols[j] + k] += w[j] * xi;
      }
    }
  }
}
`

// NewGPUKernels compiles device kernels for one finalized CSR structure
// (either the local or the external one -- an Operator using GPU
// dispatch builds two GPUKernels instances, mirroring the local/external
// forward-transpose pair used on the CPU path).
func NewGPUKernels(device *gocca.OCCADevice, block int, rowp, cols []int, w []float64) (*GPUKernels, error) {
	n := len(rowp) - 1
	if n < 0 {
		return nil, fmt.Errorf("blockkernel: rowp must have at least 1 entry, got %d", len(rowp))
	}

	rowp32 := toInt32(rowp)
	cols32 := toInt32(cols)

	var fk, tk *gocca.OCCAKernel
	var err error
	if device.Mode() == "OpenMP" {
		// Workaround for an OCCA bug: OpenMP doesn't pick up the default
		// -O3 flag, matching builder.Builder.BuildKernel's fix.
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		fk, err = device.BuildKernelFromString(spmvSource, "spmvForward", props)
		if err == nil {
			tk, err = device.BuildKernelFromString(spmvSource, "spmvTranspose", props)
		}
	} else {
		fk, err = device.BuildKernelFromString(spmvSource, "spmvForward", nil)
		if err == nil {
			tk, err = device.BuildKernelFromString(spmvSource, "spmvTranspose", nil)
		}
	}
	if err != nil {
		if fk != nil {
			fk.Free()
		}
		return nil, fmt.Errorf("blockkernel: build kernel: %w", err)
	}

	rowpMem := device.Malloc(int64(len(rowp32)*4), unsafe.Pointer(&rowp32[0]), nil)
	var colsMem *gocca.OCCAMemory
	if len(cols32) > 0 {
		colsMem = device.Malloc(int64(len(cols32)*4), unsafe.Pointer(&cols32[0]), nil)
	} else {
		colsMem = device.Malloc(4, nil, nil)
	}
	var wMem *gocca.OCCAMemory
	if len(w) > 0 {
		wMem = device.Malloc(int64(len(w)*8), unsafe.Pointer(&w[0]), nil)
	} else {
		wMem = device.Malloc(8, nil, nil)
	}

	return &GPUKernels{
		device:          device,
		block:           block,
		n:               n,
		rowpMem:         rowpMem,
		colsMem:         colsMem,
		wMem:            wMem,
		forwardKernel:   fk,
		transposeKernel: tk,
	}, nil
}

func toInt32(v []int) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}

// Forward runs the compiled forward kernel: x and y are host slices,
// copied to and from device memory around the kernel launch.
func (g *GPUKernels) Forward(x, y []float64) error {
	return g.run(g.forwardKernel, x, y)
}

// Transpose runs the compiled transpose kernel.
func (g *GPUKernels) Transpose(x, y []float64) error {
	return g.run(g.transposeKernel, x, y)
}

func (g *GPUKernels) run(k *gocca.OCCAKernel, x, y []float64) error {
	xMem := g.device.Malloc(int64(len(x)*8), unsafe.Pointer(&x[0]), nil)
	defer xMem.Free()
	yMem := g.device.Malloc(int64(len(y)*8), unsafe.Pointer(&y[0]), nil)
	defer yMem.Free()

	if err := k.RunWithArgs(g.n, g.block, g.rowpMem, g.colsMem, g.wMem, xMem, yMem); err != nil {
		return fmt.Errorf("blockkernel: kernel launch: %w", err)
	}
	yMem.CopyTo(unsafe.Pointer(&y[0]), int64(len(y)*8))
	return nil
}

// Free releases device memory and compiled kernels.
func (g *GPUKernels) Free() {
	g.rowpMem.Free()
	g.colsMem.Free()
	g.wMem.Free()
	g.forwardKernel.Free()
	g.transposeKernel.Free()
}
