package interp

// growable is the append-only scratch buffer contributions accumulate
// into during assembly: an ordered list of outNum values, a row-pointer
// array giving the column/weight span of each contribution, a flat
// column-index array, and a flat weight array. It uses Go's native
// append rather than manual doubling-plus-copy, but keeps a similar
// initial-capacity heuristic so large meshes still avoid repeated
// reallocation.
type growable struct {
	outNum []int64
	rowp   []int // length count+1, rowp[0] == 0
	cols   []int64
	weights []float64
}

func newGrowable(rowCap, weightCap int) *growable {
	if rowCap < 1 {
		rowCap = 1
	}
	if weightCap < 1 {
		weightCap = 1
	}
	g := &growable{
		outNum: make([]int64, 0, rowCap),
		rowp:   make([]int, 1, rowCap+1),
		cols:   make([]int64, 0, weightCap),
		weights: make([]float64, 0, weightCap),
	}
	g.rowp[0] = 0
	return g
}

func (g *growable) count() int { return len(g.outNum) }

// add appends one contribution: the tuple (outNum, in[], w[]).
func (g *growable) add(outNum int64, in []int64, w []float64) {
	g.outNum = append(g.outNum, outNum)
	g.cols = append(g.cols, in...)
	g.weights = append(g.weights, w...)
	g.rowp = append(g.rowp, len(g.cols))
}

// span returns the [lo,hi) index range into cols/weights for contribution c.
func (g *growable) span(c int) (int, int) {
	return g.rowp[c], g.rowp[c+1]
}
