package corvid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/nnue"
)

// TestBenchRuns exercises the bench harness end to end; with the
// zero-initialized embedded weights the exact node counts aren't
// meaningful the way they are against a trained checkpoint, so this
// only checks that every game produces a positive node count and that
// RunBench itself completes without error.
func TestBenchRuns(t *testing.T) {
	model := nnue.NewValueModel()
	require.NoError(t, model.LoadEmbedded())

	results, nps, err := RunBench(2, model)
	require.NoError(t, err)
	require.Len(t, results, len(benchGames))
	require.Greater(t, nps, 0.0)
	for _, r := range results {
		require.Greater(t, r.Nodes, uint64(0), r.Description)
	}
}
