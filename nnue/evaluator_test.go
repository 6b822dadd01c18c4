package nnue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corvidchess/corvid/engine"
)

func newTestValueModel(t *testing.T) *ValueModel {
	m := NewValueModel()
	require.NoError(t, m.LoadEmbedded())
	return m
}

// TestEvaluatorSanity exercises §8 property 11: with the embedded
// (zero-initialized) weights, the initial position's evaluation is
// within +/-70 centipawns of zero.
func TestEvaluatorSanity(t *testing.T) {
	model := newTestValueModel(t)
	pos, err := engine.PositionFromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	require.NoError(t, err)

	pos.AttachEvaluator(NewEvaluator(model))
	require.LessOrEqual(t, abs32i(pos.StaticEval()), int32(70))
}

func abs32i(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// TestIncrementalMatchesFromScratch exercises §8 property 12: rebuilding
// the accumulator incrementally after a move equals rebuilding it from
// scratch at the resulting position.
func TestIncrementalMatchesFromScratch(t *testing.T) {
	model := newTestValueModel(t)
	pos, err := engine.PositionFromFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	require.NoError(t, err)

	eval := NewEvaluator(model)
	pos.AttachEvaluator(eval)

	for _, m := range pos.LegalMoves() {
		pos.DoMove(m)
		incremental := eval.acc

		fresh := NewEvaluator(model)
		fresh.Reinit(pos)

		require.Equal(t, fresh.acc, incremental, "move %s", m)
		require.Equal(t, fresh.kings, eval.kings, "move %s", m)
		pos.UndoMove()
	}
}
