package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSearchFindsMates exercises the two end-to-end seeded mating
// scenarios called out by §8 property 9: the searcher must find a
// mate score and a principal variation starting with the right move.
func TestSearchFindsMates(t *testing.T) {
	cases := []struct {
		fen      string
		depth    int
		firstPV  string
	}{
		{"8/3k4/6R1/7R/8/4K3/8/8 w - - 2 2", 4, "h5h7"},
		{"8/8/2k5/7R/6R1/4K3/8/8 w - - 0 1", 6, "g4g6"},
	}

	for _, tc := range cases {
		pos, err := PositionFromFEN(tc.fen)
		require.NoError(t, err)

		s := NewSearcher(pos, Options{HashMB: 16})
		res := s.Search(context.Background(), tc.depth)

		require.NotEmpty(t, res.PV)
		require.Equal(t, tc.firstPV, res.PV[0].UCI())
		require.Greaterf(t, res.Score, MateThreshold, "expected a mate score for %s", tc.fen)
	}
}
