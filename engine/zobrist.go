package engine

import "math/rand"

// Zobrist seed tables. Built once at process init from a fixed seed so
// the key space is reproducible across runs; never mutated afterwards.
var (
	zobristPiece     [ColorArraySize][FigureArraySize][64]uint64
	zobristCastle    [4]uint64 // one seed per right: WhiteOO, WhiteOOO, BlackOO, BlackOOO
	zobristEnPassant [8]uint64 // keyed by file only, per the spec's invariant
	zobristColor     uint64
)

func rand64(r *rand.Rand) uint64 {
	return uint64(r.Int63())<<32 ^ uint64(r.Int63())
}

func init() {
	r := rand.New(rand.NewSource(1))
	for c := White; c < ColorArraySize; c++ {
		for f := Pawn; f <= King; f++ {
			for sq := 0; sq < 64; sq++ {
				zobristPiece[c][f][sq] = rand64(r)
			}
		}
	}
	for i := range zobristCastle {
		zobristCastle[i] = rand64(r)
	}
	for i := range zobristEnPassant {
		zobristEnPassant[i] = rand64(r)
	}
	zobristColor = rand64(r)
}

func zobristPieceKey(p Piece, sq Square) uint64 {
	return zobristPiece[p.Color()][p.Figure()][sq]
}

// zobristCastleKey returns the XOR of the seeds of every right set in c.
func zobristCastleKey(c Castle) uint64 {
	var key uint64
	for i := 0; i < 4; i++ {
		if c&(1<<uint(i)) != 0 {
			key ^= zobristCastle[i]
		}
	}
	return key
}
