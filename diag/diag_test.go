package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWarnfPrefixesRank(t *testing.T) {
	var sb strings.Builder
	s := NewSink(3)
	s.SetWriter(&sb)
	s.Warnf("dropped %d contributions", 2)
	require.Equal(t, "[rank 3] dropped 2 contributions\n", sb.String())
}
