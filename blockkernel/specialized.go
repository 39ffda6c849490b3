package blockkernel

// Unrolled specializations for the block sizes trilinear finite-element
// stencils exercise most often (1 = scalar, 2/3 = 2D/3D vector fields, 5
// = compressible flow state, 6 = elasticity with rotational dofs).

func forward1(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		for j := rowp[i]; j < rowp[i+1]; j++ {
			y[i] += w[j] * x[cols[j]]
		}
	}
}

func transpose1(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		xi := x[i]
		for j := rowp[i]; j < rowp[i+1]; j++ {
			y[cols[j]] += w[j] * xi
		}
	}
}

func forward2(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		o := 2 * i
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 2 * cols[j]
			y[o] += wj * x[c]
			y[o+1] += wj * x[c+1]
		}
	}
}

func transpose2(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		x0, x1 := x[2*i], x[2*i+1]
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 2 * cols[j]
			y[c] += wj * x0
			y[c+1] += wj * x1
		}
	}
}

func forward3(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		o := 3 * i
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 3 * cols[j]
			y[o] += wj * x[c]
			y[o+1] += wj * x[c+1]
			y[o+2] += wj * x[c+2]
		}
	}
}

func transpose3(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		x0, x1, x2 := x[3*i], x[3*i+1], x[3*i+2]
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 3 * cols[j]
			y[c] += wj * x0
			y[c+1] += wj * x1
			y[c+2] += wj * x2
		}
	}
}

func forward5(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		o := 5 * i
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 5 * cols[j]
			y[o] += wj * x[c]
			y[o+1] += wj * x[c+1]
			y[o+2] += wj * x[c+2]
			y[o+3] += wj * x[c+3]
			y[o+4] += wj * x[c+4]
		}
	}
}

func transpose5(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		o := 5 * i
		x0, x1, x2, x3, x4 := x[o], x[o+1], x[o+2], x[o+3], x[o+4]
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 5 * cols[j]
			y[c] += wj * x0
			y[c+1] += wj * x1
			y[c+2] += wj * x2
			y[c+3] += wj * x3
			y[c+4] += wj * x4
		}
	}
}

func forward6(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		o := 6 * i
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 6 * cols[j]
			y[o] += wj * x[c]
			y[o+1] += wj * x[c+1]
			y[o+2] += wj * x[c+2]
			y[o+3] += wj * x[c+3]
			y[o+4] += wj * x[c+4]
			y[o+5] += wj * x[c+5]
		}
	}
}

func transpose6(N int, rowp, cols []int, w, x, y []float64) {
	for i := 0; i < N; i++ {
		o := 6 * i
		x0, x1, x2, x3, x4, x5 := x[o], x[o+1], x[o+2], x[o+3], x[o+4], x[o+5]
		for j := rowp[i]; j < rowp[i+1]; j++ {
			wj := w[j]
			c := 6 * cols[j]
			y[c] += wj * x0
			y[c+1] += wj * x1
			y[c+2] += wj * x2
			y[c+3] += wj * x3
			y[c+4] += wj * x4
			y[c+5] += wj * x5
		}
	}
}
