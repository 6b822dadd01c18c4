package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// perftCase is one of the standard Chess Programming Wiki perft
// positions (§8 property 5); counts[i] is the node count at depth i+1.
type perftCase struct {
	name   string
	fen    string
	counts []uint64
}

var perftCases = []perftCase{
	{
		name:   "startpos",
		fen:    "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		counts: []uint64{20, 400, 8902, 197281, 4865609},
	},
	{
		name:   "kiwipete",
		fen:    "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		counts: []uint64{48, 2039, 97862, 4085603},
	},
	{
		name:   "endgame",
		fen:    "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		counts: []uint64{14, 191, 2812, 43238, 674624},
	},
	{
		name:   "talkchess",
		fen:    "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
		counts: []uint64{6, 264, 9467, 422333},
	},
	{
		name:   "steven",
		fen:    "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
		counts: []uint64{44, 1486, 62379, 2103487},
	},
}

func TestPerft(t *testing.T) {
	for _, tc := range perftCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			pos, err := PositionFromFEN(tc.fen)
			require.NoError(t, err)
			for i, want := range tc.counts {
				depth := i + 1
				if testing.Short() && want > 3000000 {
					break
				}
				got := pos.Perft(depth)
				require.Equalf(t, want, got, "%s depth %d", tc.name, depth)
			}
		})
	}
}

func TestDivideStartposDepth3(t *testing.T) {
	pos, err := PositionFromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	require.NoError(t, err)
	divide := pos.Divide(3)

	want := map[string]uint64{
		"a2a3": 380,
		"a2a4": 420,
		"b1c3": 440,
		"e2e4": 600,
		"g1f3": 440,
	}
	for move, count := range want {
		require.Equalf(t, count, divide[move], "move %s", move)
	}
}

func TestFENRoundTrip(t *testing.T) {
	for _, tc := range perftCases {
		pos, err := PositionFromFEN(tc.fen)
		require.NoError(t, err)
		require.Equal(t, tc.fen, pos.String())
	}
}
