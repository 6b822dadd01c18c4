package engine

// GenKind selects which pseudo-legal moves GenerateMoves emits.
type GenKind uint8

const (
	// GenCaptures yields captures, en-passant, and promotions to queen
	// or knight (including capturing promotions).
	GenCaptures GenKind = 1 << iota
	// GenQuiets yields quiet moves, castling, and promotions to rook
	// or bishop.
	GenQuiets
	GenAll = GenCaptures | GenQuiets
)

// MaxMoves bounds the pseudo-legal move list capacity for one position.
const MaxMoves = 256

// GenerateMoves appends every pseudo-legal move of the requested kind
// to *moves. Under double check only king moves are emitted (per §4.2);
// otherwise full legality (including single-check evasion) is left to
// IsLegal, which every caller must apply before using a generated move.
func (p *Position) GenerateMoves(kind GenKind, moves *[]Move) {
	us := p.sideToMove
	if popcount(p.curr().checkers) > 1 {
		p.genKingMoves(kind, us, moves)
		return
	}
	p.genPawnMoves(kind, us, moves)
	p.genPieceMoves(kind, us, Knight, moves)
	p.genPieceMoves(kind, us, Bishop, moves)
	p.genPieceMoves(kind, us, Rook, moves)
	p.genPieceMoves(kind, us, Queen, moves)
	p.genKingMoves(kind, us, moves)
	if kind&GenQuiets != 0 {
		p.genCastling(us, moves)
	}
}

func (p *Position) genPieceMoves(kind GenKind, us Color, f Figure, moves *[]Move) {
	occAll := p.OccAll()
	bb := p.pieces[us][f]
	for bb != 0 {
		from := bb.Pop()
		var attacks Bitboard
		switch f {
		case Knight:
			attacks = KnightAttack(from)
		case Bishop:
			attacks = BishopAttack(from, occAll)
		case Rook:
			attacks = RookAttack(from, occAll)
		case Queen:
			attacks = QueenAttack(from, occAll)
		}
		attacks &^= p.occ[us]
		if kind&GenCaptures == 0 {
			attacks &^= p.occ[us.Opposite()]
		}
		if kind&GenQuiets == 0 {
			attacks &= p.occ[us.Opposite()]
		}
		for attacks != 0 {
			to := attacks.Pop()
			*moves = append(*moves, NewMove(from, to, TagNormal))
		}
	}
}

func (p *Position) genKingMoves(kind GenKind, us Color, moves *[]Move) {
	from := p.KingSquare(us)
	attacks := KingAttack(from) &^ p.occ[us]
	if kind&GenCaptures == 0 {
		attacks &^= p.occ[us.Opposite()]
	}
	if kind&GenQuiets == 0 {
		attacks &= p.occ[us.Opposite()]
	}
	for attacks != 0 {
		to := attacks.Pop()
		*moves = append(*moves, NewMove(from, to, TagNormal))
	}
}

func (p *Position) genCastling(us Color, moves *[]Move) {
	for _, side := range [2]CastleSide{KingSide, QueenSide} {
		right := Right(us, side)
		if !p.curr().castle.Has(right) {
			continue
		}
		king := p.KingSquare(us)
		rookFrom, _ := castleRookSquares(us, side)
		path := Between(king, rookFrom)
		if path&p.OccAll() != 0 {
			continue
		}
		to := castleKingDestination(us, side)
		*moves = append(*moves, NewMove(king, to, TagCastling))
	}
}

func (p *Position) genPawnMoves(kind GenKind, us Color, moves *[]Move) {
	occAll := p.OccAll()
	them := us.Opposite()
	dir := 1
	startRank, promoRank := 1, 7
	if us == Black {
		dir, startRank, promoRank = -1, 6, 0
	}

	bb := p.pieces[us][Pawn]
	for bb != 0 {
		from := bb.Pop()

		push := RankFile(from.Rank()+dir, from.File())
		if p.board[push] == NoPiece {
			if push.Rank() == promoRank {
				p.emitPromotions(kind, from, push, moves)
			} else if kind&GenQuiets != 0 {
				*moves = append(*moves, NewMove(from, push, TagNormal))
				if from.Rank() == startRank {
					dbl := RankFile(from.Rank()+2*dir, from.File())
					if p.board[dbl] == NoPiece {
						*moves = append(*moves, NewMove(from, dbl, TagNormal))
					}
				}
			}
		}

		if kind&GenCaptures != 0 {
			caps := PawnAttack(from, us)
			targets := caps & p.occ[them]
			for targets != 0 {
				to := targets.Pop()
				if to.Rank() == promoRank {
					p.emitPromotions(kind, from, to, moves)
				} else {
					*moves = append(*moves, NewMove(from, to, TagNormal))
				}
			}
			if ep := p.curr().epSquare; ep != NoSquare && caps.Has(ep) {
				*moves = append(*moves, NewMove(from, ep, TagEnPassant))
			}
		}
	}
	_ = occAll
}

func (p *Position) emitPromotions(kind GenKind, from, to Square, moves *[]Move) {
	if kind&GenCaptures != 0 {
		*moves = append(*moves, NewMove(from, to, TagPromoQueen))
		*moves = append(*moves, NewMove(from, to, TagPromoKnight))
	}
	if kind&GenQuiets != 0 {
		*moves = append(*moves, NewMove(from, to, TagPromoRook))
		*moves = append(*moves, NewMove(from, to, TagPromoBishop))
	}
}

// LegalMoves returns every legal move in the position, for tests and
// for the controller's "position ... moves ..." disambiguation.
func (p *Position) LegalMoves() []Move {
	moves := make([]Move, 0, MaxMoves)
	p.GenerateMoves(GenAll, &moves)
	out := moves[:0]
	for _, m := range moves {
		if p.IsLegal(m) {
			out = append(out, m)
		}
	}
	return out
}
