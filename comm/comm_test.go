package comm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllToAllScalar(t *testing.T) {
	groups := NewWorld(3)
	results := make([][]int, 3)
	var wg sync.WaitGroup
	wg.Add(3)
	for r := 0; r < 3; r++ {
		go func(r int) {
			defer wg.Done()
			send := []int{r * 10, r*10 + 1, r*10 + 2}
			recv, err := groups[r].AllToAll(send)
			require.NoError(t, err)
			results[r] = recv
		}(r)
	}
	wg.Wait()

	for r := 0; r < 3; r++ {
		for src := 0; src < 3; src++ {
			require.Equal(t, src*10+r, results[r][src])
		}
	}
}

func TestAllToAllVVariablePayload(t *testing.T) {
	groups := NewWorld(2)
	var wg sync.WaitGroup
	wg.Add(2)
	results := make([][][]string, 2)
	for r := 0; r < 2; r++ {
		go func(r int) {
			defer wg.Done()
			send := make([][]string, 2)
			for dst := 0; dst < 2; dst++ {
				send[dst] = []string{"from", string(rune('0' + r)), "to", string(rune('0' + dst))}
			}
			recv, err := AllToAllV(groups[r], send)
			require.NoError(t, err)
			results[r] = recv
		}(r)
	}
	wg.Wait()

	require.Equal(t, "0", results[1][0][1]) // rank 1 received from rank 0
}

func TestBarrierReusable(t *testing.T) {
	groups := NewWorld(4)
	var wg sync.WaitGroup
	wg.Add(4)
	for r := 0; r < 4; r++ {
		go func(r int) {
			defer wg.Done()
			groups[r].Barrier()
			groups[r].Barrier()
			groups[r].Barrier()
		}(r)
	}
	wg.Wait()
}
