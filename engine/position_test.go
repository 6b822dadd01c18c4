package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMakeUnmakeRoundTrip exercises §8 property 1: applying and then
// unmaking any legal move restores every observable field.
func TestMakeUnmakeRoundTrip(t *testing.T) {
	for _, tc := range perftCases {
		pos, err := PositionFromFEN(tc.fen)
		require.NoError(t, err)
		before := pos.String()
		beforeKey := pos.Key()

		for _, m := range pos.LegalMoves() {
			pos.DoMove(m)
			pos.UndoMove()
			require.Equal(t, before, pos.String(), "move %s on %s", m, tc.fen)
			require.Equal(t, beforeKey, pos.Key(), "move %s on %s", m, tc.fen)
		}
	}
}

// TestKeyConsistency exercises §8 property 2: the incrementally
// maintained key matches a from-scratch recomputation at every node
// reached while walking a few plies deep.
func TestKeyConsistency(t *testing.T) {
	pos, err := PositionFromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	require.NoError(t, err)
	var walk func(depth int)
	walk = func(depth int) {
		require.Equal(t, pos.recomputeKey(), pos.Key())
		if depth == 0 {
			return
		}
		for _, m := range pos.LegalMoves() {
			pos.DoMove(m)
			walk(depth - 1)
			pos.UndoMove()
		}
	}
	walk(3)
}

// TestPseudoLegalSupersetsLegal exercises §8 property 3: every legal
// move generated at a node is also reported pseudo-legal.
func TestPseudoLegalSupersetsLegal(t *testing.T) {
	for _, tc := range perftCases {
		pos, err := PositionFromFEN(tc.fen)
		require.NoError(t, err)
		for _, m := range pos.LegalMoves() {
			require.True(t, pos.IsPseudoLegal(m), "move %s on %s", m, tc.fen)
			require.True(t, pos.IsLegal(m), "move %s on %s", m, tc.fen)
		}
	}
}
