package redist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notargets/interp/bvec"
	"github.com/notargets/interp/comm"
	"github.com/notargets/interp/varmap"
)

// buildChannels constructs one Channel per rank, collectively, for a
// 2-rank world where rank 0 owns global indices [0,4) and rank 1 owns
// [4,8), block size 1.
func buildChannels(t *testing.T, extVarsByRank [][]int64) ([]*Channel, []varmap.Partition) {
	t.Helper()
	groups := comm.NewWorld(2)
	parts := make([]varmap.Partition, 2)
	for r := 0; r < 2; r++ {
		p, err := varmap.EvenSplit(8, 2, r, 1, "g")
		require.NoError(t, err)
		parts[r] = p
	}

	channels := make([]*Channel, 2)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for r := 0; r < 2; r++ {
		go func(r int) {
			defer wg.Done()
			c, err := NewChannel(groups[r], parts[r], extVarsByRank[r], 1)
			channels[r] = c
			errs[r] = err
		}(r)
	}
	wg.Wait()
	for _, e := range errs {
		require.NoError(t, e)
	}
	return channels, parts
}

func TestChannelForwardGather(t *testing.T) {
	// Rank 0 needs global index 5 (owned by rank 1); rank 1 needs nothing.
	channels, parts := buildChannels(t, [][]int64{{5}, {}})

	in0 := bvec.NewBlockFrom([]float64{10, 20, 30, 40})
	in1 := bvec.NewBlockFrom([]float64{50, 60, 70, 80})
	_ = parts

	buf0 := make([]float64, 1)
	buf1 := make([]float64, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)
	go func() {
		defer wg.Done()
		if err := channels[0].BeginForward(in0, buf0); err != nil {
			errs[0] = err
			return
		}
		errs[0] = channels[0].EndForward(in0, buf0)
	}()
	go func() {
		defer wg.Done()
		if err := channels[1].BeginForward(in1, buf1); err != nil {
			errs[1] = err
			return
		}
		errs[1] = channels[1].EndForward(in1, buf1)
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.Equal(t, 60.0, buf0[0]) // global index 5 is local index 1 on rank 1 -> value 60
}

func TestChannelReverseScatterAdd(t *testing.T) {
	// Rank 0 needs global index 5; rank 1's out.Local() starts nonzero to
	// verify the reverse exchange adds rather than overwrites.
	channels, _ := buildChannels(t, [][]int64{{5}, {}})

	out0 := bvec.NewBlockFrom([]float64{0, 0, 0, 0})
	out1 := bvec.NewBlockFrom([]float64{1, 2, 3, 4})

	buf0 := []float64{7} // rank 0's contribution destined for global index 5
	buf1 := make([]float64, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)
	go func() {
		defer wg.Done()
		if err := channels[0].BeginReverse(buf0, out0); err != nil {
			errs[0] = err
			return
		}
		errs[0] = channels[0].EndReverse(buf0, out0)
	}()
	go func() {
		defer wg.Done()
		if err := channels[1].BeginReverse(buf1, out1); err != nil {
			errs[1] = err
			return
		}
		errs[1] = channels[1].EndReverse(buf1, out1)
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Global index 5 is local index 1 on rank 1: 2 + 7 = 9.
	require.Equal(t, []float64{1, 9, 3, 4}, out1.Local())
}

func TestChannelRejectsUnownedIndex(t *testing.T) {
	groups := comm.NewWorld(1)
	p, err := varmap.EvenSplit(4, 1, 0, 1, "g")
	require.NoError(t, err)
	_, err = NewChannel(groups[0], p, []int64{99}, 1)
	require.Error(t, err)
}
