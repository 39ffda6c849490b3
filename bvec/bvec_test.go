package bvec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notargets/interp/varmap"
)

func TestBlockZeroAndCopy(t *testing.T) {
	p, err := varmap.EvenSplit(4, 2, 0, 2, "g")
	require.NoError(t, err)
	b := NewBlock(p)
	require.Len(t, b.Local(), 4) // 2 owned entries * block size 2

	src := NewBlockFrom([]float64{1, 2, 3, 4})
	require.NoError(t, b.CopyValues(src))
	require.Equal(t, []float64{1, 2, 3, 4}, b.Local())

	b.ZeroEntries()
	require.Equal(t, []float64{0, 0, 0, 0}, b.Local())
}

func TestBlockCopyShapeMismatch(t *testing.T) {
	dst := NewBlockFrom(make([]float64, 3))
	src := NewBlockFrom(make([]float64, 4))
	require.Error(t, dst.CopyValues(src))
}

func TestSame(t *testing.T) {
	a := NewBlockFrom([]float64{1})
	b := NewBlockFrom([]float64{1})
	require.True(t, Same(a, a))
	require.False(t, Same(a, b))
}

func TestDot(t *testing.T) {
	a := NewBlockFrom([]float64{1, 2, 3})
	b := NewBlockFrom([]float64{4, 5, 6})
	require.InDelta(t, 32.0, Dot(a, b), 1e-12)
}
