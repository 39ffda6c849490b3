package interp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notargets/interp/bvec"
	"github.com/notargets/interp/comm"
	"github.com/notargets/interp/varmap"
)

// TestScenarioIdentityTwoRanks mirrors a 4-entry identity map split
// across two ranks of two rows each, block size 1.
func TestScenarioIdentityTwoRanks(t *testing.T) {
	groups := comm.NewWorld(2)
	parts := make([]varmap.Partition, 2)
	for r := 0; r < 2; r++ {
		p, err := varmap.EvenSplit(4, 2, r, 1, "g")
		require.NoError(t, err)
		parts[r] = p
	}

	assemblers := make([]*Assembler, 2)
	for r := 0; r < 2; r++ {
		assemblers[r] = NewAssembler(parts[r], parts[r], DropAndWarn)
	}
	require.NoError(t, assemblers[0].AddContribution(0, []float64{1}, []int64{0}))
	require.NoError(t, assemblers[0].AddContribution(1, []float64{1}, []int64{1}))
	require.NoError(t, assemblers[1].AddContribution(2, []float64{1}, []int64{2}))
	require.NoError(t, assemblers[1].AddContribution(3, []float64{1}, []int64{3}))

	ops := make([]*Operator, 2)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for r := 0; r < 2; r++ {
		go func(r int) {
			defer wg.Done()
			op, err := assemblers[r].Finalize(groups[r])
			ops[r] = op
			errs[r] = err
		}(r)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	x0 := bvec.NewBlockFrom([]float64{10, 20})
	x1 := bvec.NewBlockFrom([]float64{30, 40})
	y0 := bvec.NewBlock(parts[0])
	y1 := bvec.NewBlock(parts[1])
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = ops[0].Mult(x0, y0) }()
	go func() { defer wg.Done(); errs[1] = ops[1].Mult(x1, y1) }()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.Equal(t, []float64{10, 20}, y0.Local())
	require.Equal(t, []float64{30, 40}, y1.Local())
}

// TestScenarioSimpleAverageExactValues reproduces the two-output/
// four-input averaging example with its exact expected result.
func TestScenarioSimpleAverageExactValues(t *testing.T) {
	in, err := varmap.EvenSplit(4, 1, 0, 1, "g")
	require.NoError(t, err)
	out, err := varmap.EvenSplit(2, 1, 0, 1, "g")
	require.NoError(t, err)

	a := NewAssembler(in, out, DropAndWarn)
	require.NoError(t, a.AddContribution(0, []float64{1, 1}, []int64{0, 1}))
	require.NoError(t, a.AddContribution(1, []float64{1, 1}, []int64{2, 3}))
	groups := comm.NewWorld(1)
	op, err := a.Finalize(groups[0])
	require.NoError(t, err)

	x := bvec.NewBlockFrom([]float64{2, 4, 6, 10})
	y := bvec.NewBlock(out)
	require.NoError(t, op.Mult(x, y))
	require.InDeltaSlice(t, []float64{3, 8}, y.Local(), 1e-12)
}

// TestScenarioExactDuplicateAccumulation reproduces the two-partial-
// weight duplicate example: 0.4 + 0.6 must merge into a single column
// with weight 1.0 after normalization.
func TestScenarioExactDuplicateAccumulation(t *testing.T) {
	in, err := varmap.EvenSplit(1, 1, 0, 1, "g")
	require.NoError(t, err)
	out, err := varmap.EvenSplit(1, 1, 0, 1, "g")
	require.NoError(t, err)

	a := NewAssembler(in, out, DropAndWarn)
	require.NoError(t, a.AddContribution(0, []float64{0.4}, []int64{0}))
	require.NoError(t, a.AddContribution(0, []float64{0.6}, []int64{0}))
	groups := comm.NewWorld(1)
	op, err := a.Finalize(groups[0])
	require.NoError(t, err)

	x := bvec.NewBlockFrom([]float64{5})
	y := bvec.NewBlock(out)
	require.NoError(t, op.Mult(x, y))
	require.InDelta(t, 5.0, y.Local()[0], 1e-12)
}

// TestScenarioExternalLocalSplit reproduces the two-rank, block-size-2
// example where a single row has one local and one external column.
func TestScenarioExternalLocalSplit(t *testing.T) {
	groups := comm.NewWorld(2)
	parts := make([]varmap.Partition, 2)
	for r := 0; r < 2; r++ {
		p, err := varmap.EvenSplit(4, 2, r, 2, "g")
		require.NoError(t, err)
		parts[r] = p
	}

	assemblers := make([]*Assembler, 2)
	assemblers[0] = NewAssembler(parts[0], parts[0], DropAndWarn)
	assemblers[1] = NewAssembler(parts[1], parts[1], DropAndWarn)
	// Rank 0 contributes to its own row 0: half from local input row 0,
	// half from input row 2, which rank 1 owns.
	require.NoError(t, assemblers[0].AddContribution(0, []float64{0.5, 0.5}, []int64{0, 2}))
	require.NoError(t, assemblers[1].AddContribution(2, []float64{1}, []int64{2}))
	require.NoError(t, assemblers[1].AddContribution(3, []float64{1}, []int64{3}))

	ops := make([]*Operator, 2)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for r := 0; r < 2; r++ {
		go func(r int) {
			defer wg.Done()
			op, err := assemblers[r].Finalize(groups[r])
			ops[r] = op
			errs[r] = err
		}(r)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, 1, ops[0].E()) // one distinct external index: global input row 2

	x0 := bvec.NewBlockFrom([]float64{1, 1, 2, 2}) // rows 0,1
	x1 := bvec.NewBlockFrom([]float64{3, 3, 4, 4}) // rows 2,3
	y0 := bvec.NewBlock(parts[0])
	y1 := bvec.NewBlock(parts[1])
	wg.Add(2)
	go func() { defer wg.Done(); errs[0] = ops[0].Mult(x0, y0) }()
	go func() { defer wg.Done(); errs[1] = ops[1].Mult(x1, y1) }()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.InDeltaSlice(t, []float64{2, 2}, y0.Local()[:2], 1e-12) // 0.5*[1,1] + 0.5*[3,3]
}
