// Package blockkernel provides pure, side-effect-free kernels: forward
// (y += A*x) and transpose (y += Aᵀ*x) on a compressed-row block-sparse
// structure, specialized by block size.
//
// Kernels never allocate and never check bounds beyond what Go's slice
// indexing does implicitly; they assume rowp/cols/w describe a
// structurally valid CSR (interp.Operator only ever calls them with
// structures produced by a successful Assembler.Finalize).
package blockkernel

// Forward computes y[B*i+k] += w[j]*x[B*cols[j]+k] for i in [0,N), j in
// [rowp[i],rowp[i+1]), k in [0,B). Row-major over rows, column-major
// within a row.
type Forward func(N int, rowp, cols []int, w, x, y []float64)

// Transpose computes y[B*cols[j]+k] += w[j]*x[B*i+k] under the same
// iteration order.
type Transpose func(N int, rowp, cols []int, w, x, y []float64)

// Pair is a resolved (forward, transpose) kernel pair for one block
// size, stored once by the Operator at construction.
type Pair struct {
	Forward   Forward
	Transpose Transpose
}

// Select resolves the kernel pair for block size B. Specializations
// exist for B in {1,2,3,5,6}; every other B uses the generic path. The
// choice is purely an optimization -- every path accumulates into y in
// the same row-major, column-major-within-row order, so all paths
// compute bit-identical results for the same (B, rowp, cols, w, x, y).
func Select(B int) Pair {
	switch B {
	case 1:
		return Pair{forward1, transpose1}
	case 2:
		return Pair{forward2, transpose2}
	case 3:
		return Pair{forward3, transpose3}
	case 5:
		return Pair{forward5, transpose5}
	case 6:
		return Pair{forward6, transpose6}
	default:
		return Pair{
			Forward:   func(N int, rowp, cols []int, w, x, y []float64) { forwardGeneric(B, N, rowp, cols, w, x, y) },
			Transpose: func(N int, rowp, cols []int, w, x, y []float64) { transposeGeneric(B, N, rowp, cols, w, x, y) },
		}
	}
}

func forwardGeneric(B, N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		yi := y[B*i : B*i+B]
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			xj := x[B*cols[j] : B*cols[j]+B]
			for k := 0; k < B; k++ {
				yi[k] += wj * xj[k]
			}
		}
	}
}

func transposeGeneric(B, N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		xi := x[B*i : B*i+B]
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			yj := y[B*cols[j] : B*cols[j]+B]
			for k := 0; k < B; k++ {
				yj[k] += wj * xi[k]
			}
		}
	}
}
