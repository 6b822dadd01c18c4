package mcts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/engine"
	"github.com/corvidchess/corvid/nnue"
)

func newTestSearcher(t *testing.T, fen string, nodes int) (*engine.Position, *Searcher) {
	model := nnue.NewPolicyModel()
	require.NoError(t, model.LoadEmbedded())
	eval := nnue.NewPolicyEvaluator(model)

	pos, err := engine.PositionFromFEN(fen)
	require.NoError(t, err)
	pos.AttachEvaluator(eval)

	return pos, NewSearcher(pos, eval, Options{Nodes: nodes})
}

// TestSearchReturnsLegalMove exercises the basic contract: given a
// budget of simulations, Search terminates and returns a move the
// position actually allows.
func TestSearchReturnsLegalMove(t *testing.T) {
	pos, s := newTestSearcher(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 2000)

	res := s.Search(context.Background())
	require.False(t, res.BestMove.IsNull())

	found := false
	for _, m := range pos.LegalMoves() {
		if m == res.BestMove {
			found = true
			break
		}
	}
	require.True(t, found, "bestmove %s not in legal move list", res.BestMove)
}

// TestSearchDetectsStalemate exercises the "no legal moves" terminal
// path through initializeEdges without a legal reply to search.
func TestSearchDetectsStalemate(t *testing.T) {
	// Black to move, no legal moves, not in check: classic stalemate.
	pos, s := newTestSearcher(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1", 100)
	require.Empty(t, pos.LegalMoves())

	res := s.Search(context.Background())
	require.True(t, res.BestMove.IsNull())
}

// TestTreeCapacityMargin exercises the arena's graceful-degradation
// contract: a tiny tree reports exhaustion well before its raw slices
// are literally full.
func TestTreeCapacityMargin(t *testing.T) {
	tr := NewTree(200, 200*40)
	tr.Reset()
	require.True(t, tr.checkLimit())

	// 101 of 200 nodes in use: 99 free, inside the 100-node margin.
	for i := 0; i < 100; i++ {
		tr.emplaceNode()
	}
	require.False(t, tr.checkLimit())
}

// TestRewardRoundTrip exercises the cp<->reward conversions used for
// MCTS value backup and reporting.
func TestRewardRoundTrip(t *testing.T) {
	for _, cp := range []int32{-1000, -100, 0, 37, 9999} {
		r := cp2reward(cp)
		require.GreaterOrEqual(t, r, float32(-1))
		require.LessOrEqual(t, r, float32(1))
		got := reward2cp(r)
		require.InDelta(t, cp, got, 2)
	}
}
