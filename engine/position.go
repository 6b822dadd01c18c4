package engine

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Evaluator is the contract a neural evaluator must satisfy to be
// attached to a Position. Position mutations call back into it so the
// accumulators stay coherent with the board; the evaluator never holds
// a reference back to the Position (see SPEC_FULL.md, cyclic ownership).
type Evaluator interface {
	AddPiece(c Color, f Figure, sq Square)
	RemovePiece(c Color, f Figure, sq Square)
	Reinit(p *Position)
	Evaluate() int32
}

// state is one irreversible frame, pushed on DoMove and popped on
// UndoMove. move is the move that produced this frame (NullMove for the
// position's initial frame).
type state struct {
	move     Move
	castle   Castle
	epSquare Square
	rule50   int16
	captured Figure
	key      uint64
	checkers Bitboard
	blockers Bitboard
}

// Position is the mutable board: piece bitboards, mailbox, occupancy,
// side to move, and a stack of irreversible state frames. It may be
// mutated only through Put/Remove (setup) or DoMove/UndoMove (play).
type Position struct {
	pieces     [ColorArraySize][FigureArraySize]Bitboard
	board      [64]Piece
	occ        [ColorArraySize]Bitboard
	sideToMove Color
	fullMove   int
	states     []state
	eval       Evaluator
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	p, err := PositionFromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		panic(err)
	}
	return p
}

// AttachEvaluator attaches e and reinitializes it from the current
// board. A nil evaluator detaches; move generation and perft still work
// without one, but the searcher requires one.
func (p *Position) AttachEvaluator(e Evaluator) {
	p.eval = e
	if e != nil {
		e.Reinit(p)
	}
}

// StaticEval returns the attached evaluator's score from the side to
// move's perspective (0 if no evaluator is attached). The evaluator
// itself always scores from White's perspective; the side-to-move sign
// flip is the Position's job, not the Evaluator's.
func (p *Position) StaticEval() int32 {
	if p.eval == nil {
		return 0
	}
	v := p.eval.Evaluate()
	if p.sideToMove == Black {
		v = -v
	}
	return v
}

func (p *Position) curr() *state     { return &p.states[len(p.states)-1] }
func (p *Position) SideToMove() Color { return p.sideToMove }
func (p *Position) Ply() int          { return len(p.states) - 1 }
func (p *Position) Key() uint64       { return p.curr().key }
func (p *Position) Rule50() int       { return int(p.curr().rule50) }
func (p *Position) CastleRights() Castle { return p.curr().castle }
func (p *Position) EnPassantSquare() Square { return p.curr().epSquare }
func (p *Position) Checkers() Bitboard { return p.curr().checkers }
func (p *Position) Blockers() Bitboard { return p.curr().blockers }
func (p *Position) IsChecked() bool    { return p.curr().checkers != 0 }
func (p *Position) LastMove() Move     { return p.curr().move }

func (p *Position) Get(sq Square) Piece { return p.board[sq] }
func (p *Position) ByColor(c Color) Bitboard { return p.occ[c] }
func (p *Position) OccAll() Bitboard         { return p.occ[White] | p.occ[Black] }
func (p *Position) ByPiece(c Color, f Figure) Bitboard { return p.pieces[c][f] }

func (p *Position) KingSquare(c Color) Square {
	return p.pieces[c][King].LSB().AsSquare()
}

// Put places piece ColorFigure(c,f) on sq. Setup-only; does not touch
// the Zobrist key, rule50, or the evaluator -- callers that mutate a
// live position must go through DoMove.
func (p *Position) Put(c Color, f Figure, sq Square) {
	p.board[sq] = ColorFigure(c, f)
	p.pieces[c][f] |= sq.Bitboard()
	p.occ[c] |= sq.Bitboard()
}

// Remove clears sq, which must currently hold ColorFigure(c,f).
func (p *Position) Remove(c Color, f Figure, sq Square) {
	p.board[sq] = NoPiece
	p.pieces[c][f] &^= sq.Bitboard()
	p.occ[c] &^= sq.Bitboard()
}

func (p *Position) movePiece(c Color, f Figure, from, to Square) {
	p.Remove(c, f, from)
	p.Put(c, f, to)
}

// recomputeKey rebuilds the Zobrist key from scratch; used by FEN setup
// and by the key-consistency test property, never on the hot path.
func (p *Position) recomputeKey() uint64 {
	var key uint64
	for sq := Square(0); sq < 64; sq++ {
		if pc := p.board[sq]; pc != NoPiece {
			key ^= zobristPieceKey(pc, sq)
		}
	}
	if p.sideToMove == Black {
		key ^= zobristColor
	}
	if ep := p.curr().epSquare; ep != NoSquare {
		key ^= zobristEnPassant[ep.File()]
	}
	key ^= zobristCastleKey(p.curr().castle)
	return key
}

// lostCastleRights maps a square to the castling rights forfeited the
// moment any piece leaves from, or is captured on, that square.
var lostCastleRights = buildLostCastleRights()

func buildLostCastleRights() [64]Castle {
	var t [64]Castle
	t[RankFile(0, 4)] = WhiteOO | WhiteOOO
	t[RankFile(0, 0)] = WhiteOOO
	t[RankFile(0, 7)] = WhiteOO
	t[RankFile(7, 4)] = BlackOO | BlackOOO
	t[RankFile(7, 0)] = BlackOOO
	t[RankFile(7, 7)] = BlackOO
	return t
}

func castleKingDestination(c Color, side CastleSide) Square {
	rank := 0
	if c == Black {
		rank = 7
	}
	if side == KingSide {
		return RankFile(rank, 6)
	}
	return RankFile(rank, 2)
}

func castleRookSquares(c Color, side CastleSide) (from, to Square) {
	rank := 0
	if c == Black {
		rank = 7
	}
	if side == KingSide {
		return RankFile(rank, 7), RankFile(rank, 5)
	}
	return RankFile(rank, 0), RankFile(rank, 3)
}

// DoMove applies m, which must be pseudo-legal and legal in the current
// position, pushing a new irreversible state frame.
func (p *Position) DoMove(m Move) {
	prev := p.curr()
	us := p.sideToMove
	them := us.Opposite()
	from, to := m.From(), m.To()
	moving := p.board[from]
	figure := moving.Figure()

	next := state{
		move:     m,
		castle:   prev.castle,
		epSquare: NoSquare,
		rule50:   prev.rule50,
		captured: NoFigure,
		key:      prev.key,
	}
	if prev.epSquare != NoSquare {
		next.key ^= zobristEnPassant[prev.epSquare.File()]
	}

	switch m.Tag() {
	case TagCastling:
		side := m.CastleSide()
		p.movePiece(us, King, from, to)
		rookFrom, rookTo := castleRookSquares(us, side)
		p.movePiece(us, Rook, rookFrom, rookTo)
		next.key ^= zobristPieceKey(ColorFigure(us, King), from) ^ zobristPieceKey(ColorFigure(us, King), to)
		next.key ^= zobristPieceKey(ColorFigure(us, Rook), rookFrom) ^ zobristPieceKey(ColorFigure(us, Rook), rookTo)
		if p.eval != nil {
			p.eval.RemovePiece(us, Rook, rookFrom)
			p.eval.AddPiece(us, Rook, rookTo)
		}

	case TagEnPassant:
		capSq := m.EnPassantCaptureSquare()
		next.captured = Pawn
		p.Remove(them, Pawn, capSq)
		next.key ^= zobristPieceKey(ColorFigure(them, Pawn), capSq)
		p.movePiece(us, Pawn, from, to)
		next.key ^= zobristPieceKey(ColorFigure(us, Pawn), from) ^ zobristPieceKey(ColorFigure(us, Pawn), to)
		if p.eval != nil {
			p.eval.RemovePiece(them, Pawn, capSq)
			p.eval.RemovePiece(us, Pawn, from)
			p.eval.AddPiece(us, Pawn, to)
		}

	case TagPromoQueen, TagPromoRook, TagPromoBishop, TagPromoKnight:
		if captured := p.board[to]; captured != NoPiece {
			next.captured = captured.Figure()
			p.Remove(them, next.captured, to)
			next.key ^= zobristPieceKey(captured, to)
			if p.eval != nil {
				p.eval.RemovePiece(them, next.captured, to)
			}
		}
		p.Remove(us, Pawn, from)
		next.key ^= zobristPieceKey(ColorFigure(us, Pawn), from)
		promo := m.PromotionFigure()
		p.Put(us, promo, to)
		next.key ^= zobristPieceKey(ColorFigure(us, promo), to)
		if p.eval != nil {
			p.eval.RemovePiece(us, Pawn, from)
			p.eval.AddPiece(us, promo, to)
		}

	default: // TagNormal
		if captured := p.board[to]; captured != NoPiece {
			next.captured = captured.Figure()
			p.Remove(them, next.captured, to)
			next.key ^= zobristPieceKey(captured, to)
			if p.eval != nil {
				p.eval.RemovePiece(them, next.captured, to)
			}
		}
		p.movePiece(us, figure, from, to)
		next.key ^= zobristPieceKey(moving, from) ^ zobristPieceKey(ColorFigure(us, figure), to)
		if figure != King && p.eval != nil {
			p.eval.RemovePiece(us, figure, from)
			p.eval.AddPiece(us, figure, to)
		}
	}

	// Castling rights lost because a king/rook left, or a rook was
	// captured on, its home square.
	if lost := (lostCastleRights[from] | lostCastleRights[to]) & next.castle; lost != 0 {
		next.key ^= zobristCastleKey(lost)
		next.castle &^= lost
	}

	// En-passant target for a double pawn push.
	if figure == Pawn && absInt(to.Rank()-from.Rank()) == 2 {
		epSq := RankFile((from.Rank()+to.Rank())/2, from.File())
		next.epSquare = epSq
		next.key ^= zobristEnPassant[epSq.File()]
	}

	if figure == Pawn || next.captured != NoFigure || m.Tag() != TagNormal {
		next.rule50 = 0
	} else {
		next.rule50++
	}

	next.key ^= zobristColor
	p.sideToMove = them
	if us == Black {
		p.fullMove++
	}
	p.states = append(p.states, next)
	p.recomputeCheckersAndBlockers()

	if figure == King && p.eval != nil {
		p.eval.Reinit(p)
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// UndoMove reverses the most recent DoMove.
func (p *Position) UndoMove() {
	top := p.curr()
	m := top.move
	mover := p.sideToMove.Opposite()
	opp := p.sideToMove
	from, to := m.From(), m.To()
	wasKingMove := false

	switch m.Tag() {
	case TagCastling:
		wasKingMove = true
		side := m.CastleSide()
		p.movePiece(mover, King, to, from)
		rookFrom, rookTo := castleRookSquares(mover, side)
		p.movePiece(mover, Rook, rookTo, rookFrom)
		if p.eval != nil {
			p.eval.RemovePiece(mover, Rook, rookTo)
			p.eval.AddPiece(mover, Rook, rookFrom)
		}

	case TagEnPassant:
		capSq := m.EnPassantCaptureSquare()
		p.movePiece(mover, Pawn, to, from)
		p.Put(opp, Pawn, capSq)
		if p.eval != nil {
			p.eval.RemovePiece(mover, Pawn, to)
			p.eval.AddPiece(mover, Pawn, from)
			p.eval.AddPiece(opp, Pawn, capSq)
		}

	case TagPromoQueen, TagPromoRook, TagPromoBishop, TagPromoKnight:
		promo := m.PromotionFigure()
		p.Remove(mover, promo, to)
		p.Put(mover, Pawn, from)
		if top.captured != NoFigure {
			p.Put(opp, top.captured, to)
		}
		if p.eval != nil {
			p.eval.RemovePiece(mover, promo, to)
			p.eval.AddPiece(mover, Pawn, from)
			if top.captured != NoFigure {
				p.eval.AddPiece(opp, top.captured, to)
			}
		}

	default: // TagNormal
		figure := p.board[to].Figure()
		wasKingMove = figure == King
		p.movePiece(mover, figure, to, from)
		if top.captured != NoFigure {
			p.Put(opp, top.captured, to)
		}
		if !wasKingMove && p.eval != nil {
			p.eval.RemovePiece(mover, figure, to)
			p.eval.AddPiece(mover, figure, from)
			if top.captured != NoFigure {
				p.eval.AddPiece(opp, top.captured, to)
			}
		}
	}

	p.sideToMove = mover
	if mover == Black {
		p.fullMove--
	}
	p.states = p.states[:len(p.states)-1]

	if wasKingMove && p.eval != nil {
		p.eval.Reinit(p)
	}
}

// recomputeCheckersAndBlockers fills in curr().checkers/blockers for the
// current side to move, per the invariants in §3.
func (p *Position) recomputeCheckersAndBlockers() {
	us := p.sideToMove
	them := us.Opposite()
	king := p.KingSquare(us)
	occAll := p.OccAll()

	checkers := KnightAttack(king) & p.pieces[them][Knight]
	checkers |= PawnAttack(king, us) & p.pieces[them][Pawn]
	checkers |= RookAttack(king, occAll) & (p.pieces[them][Rook] | p.pieces[them][Queen])
	checkers |= BishopAttack(king, occAll) & (p.pieces[them][Bishop] | p.pieces[them][Queen])

	var blockers Bitboard
	snipers := RookAttack(king, 0) & (p.pieces[them][Rook] | p.pieces[them][Queen])
	snipers |= BishopAttack(king, 0) & (p.pieces[them][Bishop] | p.pieces[them][Queen])
	for snipers != 0 {
		s := snipers.Pop()
		between := Between(king, s) & occAll
		if between != 0 && (between&(between-1)) == 0 {
			blockers |= between & p.occ[us]
		}
	}

	curr := p.curr()
	curr.checkers = checkers
	curr.blockers = blockers
}

// GivesCheck cheaply reports whether playing the pseudo-legal move m
// would put the opponent in check, without actually making the move:
// either the mover's destination attacks the opposing king directly, or
// vacating `from` opens a discovered check from one of the mover's own
// sliders.
func (p *Position) GivesCheck(m Move) bool {
	us := p.sideToMove
	them := us.Opposite()
	theirKing := p.KingSquare(them)
	from, to := m.From(), m.To()

	figure := p.board[from].Figure()
	if promo := m.PromotionFigure(); promo != NoFigure {
		figure = promo
	}

	occAfter := (p.OccAll() &^ from.Bitboard()) | to.Bitboard()
	if m.Tag() == TagEnPassant {
		occAfter &^= m.EnPassantCaptureSquare().Bitboard()
	}

	switch figure {
	case Pawn:
		if PawnAttack(to, us).Has(theirKing) {
			return true
		}
	case Knight:
		if KnightAttack(to).Has(theirKing) {
			return true
		}
	case Bishop:
		if BishopAttack(to, occAfter).Has(theirKing) {
			return true
		}
	case Rook:
		if RookAttack(to, occAfter).Has(theirKing) {
			return true
		}
	case Queen:
		if QueenAttack(to, occAfter).Has(theirKing) {
			return true
		}
	}

	snipers := RookAttack(theirKing, 0) & (p.pieces[us][Rook] | p.pieces[us][Queen])
	snipers |= BishopAttack(theirKing, 0) & (p.pieces[us][Bishop] | p.pieces[us][Queen])
	snipers &^= to.Bitboard()
	for snipers != 0 {
		s := snipers.Pop()
		between := Between(theirKing, s)
		if between.Has(from) && between&occAfter == 0 {
			return true
		}
	}
	return false
}

// IsPseudoLegal reports whether m could be generated in the current
// position: the mover exists, matches the move's implied figure, and
// the destination is reachable under basic geometry and occupancy. Used
// to validate a transposition-table move before any other use.
func (p *Position) IsPseudoLegal(m Move) bool {
	if m.IsNull() {
		return false
	}
	us := p.sideToMove
	from, to := m.From(), m.To()
	piece := p.board[from]
	if piece == NoPiece || piece.Color() != us {
		return false
	}
	figure := piece.Figure()
	occAll := p.OccAll()

	switch m.Tag() {
	case TagCastling:
		if figure != King {
			return false
		}
		side := m.CastleSide()
		right := Right(us, side)
		if !p.curr().castle.Has(right) {
			return false
		}
		rookFrom, _ := castleRookSquares(us, side)
		path := Between(from, rookFrom)
		if path&occAll != 0 {
			return false
		}
		return to == castleKingDestination(us, side)

	case TagEnPassant:
		if figure != Pawn {
			return false
		}
		ep := p.curr().epSquare
		return ep != NoSquare && to == ep && PawnAttack(from, us).Has(to)

	case TagPromoQueen, TagPromoRook, TagPromoBishop, TagPromoKnight:
		if figure != Pawn || to.Rank() != promotionRank(us) {
			return false
		}
		return pawnDestinationOK(p, us, from, to, occAll)

	default: // TagNormal
		if figure == Pawn && to.Rank() == promotionRank(us) {
			return false // promotions must carry a promotion tag
		}
		target := p.board[to]
		if target != NoPiece && target.Color() == us {
			return false
		}
		switch figure {
		case Pawn:
			return pawnDestinationOK(p, us, from, to, occAll)
		case Knight:
			return KnightAttack(from).Has(to)
		case Bishop:
			return BishopAttack(from, occAll).Has(to)
		case Rook:
			return RookAttack(from, occAll).Has(to)
		case Queen:
			return QueenAttack(from, occAll).Has(to)
		case King:
			return KingAttack(from).Has(to)
		}
		return false
	}
}

func promotionRank(c Color) int {
	if c == White {
		return 7
	}
	return 0
}

func pawnDestinationOK(p *Position, us Color, from, to Square, occAll Bitboard) bool {
	if PawnAttack(from, us).Has(to) {
		target := p.board[to]
		return target != NoPiece && target.Color() != us
	}
	dir := 1
	if us == Black {
		dir = -1
	}
	if from.File() != to.File() {
		return false
	}
	if to.Rank()-from.Rank() == dir {
		return p.board[to] == NoPiece
	}
	startRank := 1
	if us == Black {
		startRank = 6
	}
	if from.Rank() == startRank && to.Rank()-from.Rank() == 2*dir {
		mid := RankFile(from.Rank()+dir, from.File())
		return p.board[mid] == NoPiece && p.board[to] == NoPiece
	}
	return false
}

// IsLegal reports whether pseudo-legal move m is fully legal: it
// resolves check (if any) correctly and does not expose the own king.
func (p *Position) IsLegal(m Move) bool {
	us := p.sideToMove
	king := p.KingSquare(us)
	from, to := m.From(), m.To()
	checkers := p.curr().checkers

	if m.Tag() == TagCastling {
		return checkers == 0 && p.castlePathIsSafe(m)
	}

	if checkers != 0 {
		if popcount(checkers) > 1 {
			return from == king && p.kingMoveIsSafe(m)
		}
		checkerSq := checkers.AsSquare()
		if from == king {
			return p.kingMoveIsSafe(m)
		}
		if m.Tag() == TagEnPassant {
			if to != checkerSq && m.EnPassantCaptureSquare() != checkerSq {
				return false
			}
			return !p.enPassantExposesKing(m)
		}
		allowed := checkerSq.Bitboard() | Between(king, checkerSq)
		if !allowed.Has(to) {
			return false
		}
		return !p.isPinnedAway(from, to)
	}

	if from == king {
		return p.kingMoveIsSafe(m)
	}
	if m.Tag() == TagEnPassant {
		return !p.enPassantExposesKing(m)
	}
	return !p.isPinnedAway(from, to)
}

// isPinnedAway reports whether the piece on `from` is pinned and `to`
// leaves the pinning ray. `to` stays on the ray iff king, from and to
// are collinear (the standard grid cross-product collinearity test);
// blockers is only ever populated with pieces already aligned with the
// king on a rook/bishop ray, so this is exactly the pin-line test.
func (p *Position) isPinnedAway(from, to Square) bool {
	if !p.curr().blockers.Has(from) {
		return false
	}
	king := p.KingSquare(p.sideToMove)
	dr1, df1 := from.Rank()-king.Rank(), from.File()-king.File()
	dr2, df2 := to.Rank()-king.Rank(), to.File()-king.File()
	return dr1*df2 != df1*dr2
}

// castlePathIsSafe reports that none of the king's start, transit, or
// destination squares are attacked (the "not in check, not through
// check, not into check" castling rule; the caller already verified
// the side is not currently in check).
func (p *Position) castlePathIsSafe(m Move) bool {
	us := p.sideToMove
	them := us.Opposite()
	from, to := m.From(), m.To()
	occAll := p.OccAll()
	step := 1
	if to < from {
		step = -1
	}
	for s := from; ; s += Square(step) {
		if p.isAttackedBy(s, them, occAll) {
			return false
		}
		if s == to {
			break
		}
	}
	return true
}

func (p *Position) kingMoveIsSafe(m Move) bool {
	us := p.sideToMove
	them := us.Opposite()
	from := p.KingSquare(us)
	to := m.To()
	occAll := p.OccAll()
	occAll &^= from.Bitboard()
	occAll |= to.Bitboard()
	return !p.isAttackedBy(to, them, occAll)
}

// isAttackedBy reports whether sq is attacked by color `by` given
// occupancy occAll (occAll is passed explicitly so king-move legality
// checks can exclude the king's own square from blocking its own ray).
func (p *Position) isAttackedBy(sq Square, by Color, occAll Bitboard) bool {
	if KnightAttack(sq)&p.pieces[by][Knight] != 0 {
		return true
	}
	if PawnAttack(sq, by.Opposite())&p.pieces[by][Pawn] != 0 {
		return true
	}
	if KingAttack(sq)&p.pieces[by][King] != 0 {
		return true
	}
	if RookAttack(sq, occAll)&(p.pieces[by][Rook]|p.pieces[by][Queen]) != 0 {
		return true
	}
	if BishopAttack(sq, occAll)&(p.pieces[by][Bishop]|p.pieces[by][Queen]) != 0 {
		return true
	}
	return false
}

func (p *Position) enPassantExposesKing(m Move) bool {
	us := p.sideToMove
	them := us.Opposite()
	from, to := m.From(), m.To()
	capSq := m.EnPassantCaptureSquare()
	occAll := p.OccAll()
	occAll &^= from.Bitboard()
	occAll &^= capSq.Bitboard()
	occAll |= to.Bitboard()
	king := p.KingSquare(us)
	// Only sliders can newly reach the king; the captured pawn is still
	// in p.pieces, so isAttackedBy would count its (removed) attack.
	if RookAttack(king, occAll)&(p.pieces[them][Rook]|p.pieces[them][Queen]) != 0 {
		return true
	}
	return BishopAttack(king, occAll)&(p.pieces[them][Bishop]|p.pieces[them][Queen]) != 0
}

// FEN

func PositionFromFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, errors.Errorf("engine: invalid FEN %q: too few fields", fen)
	}
	p := &Position{states: make([]state, 1, 1024)}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, errors.Errorf("engine: invalid FEN %q: expected 8 ranks", fen)
	}
	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0
		for _, ch := range rankStr {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			c, f, err := pieceFromFENByte(byte(ch))
			if err != nil {
				return nil, errors.Wrapf(err, "engine: invalid FEN %q", fen)
			}
			if file > 7 {
				return nil, errors.Errorf("engine: invalid FEN %q: rank overflow", fen)
			}
			p.Put(c, f, RankFile(rank, file))
			file++
		}
	}

	switch fields[1] {
	case "w":
		p.sideToMove = White
	case "b":
		p.sideToMove = Black
	default:
		return nil, errors.Errorf("engine: invalid FEN %q: bad side to move", fen)
	}

	var castle Castle
	if fields[2] != "-" {
		for _, ch := range fields[2] {
			switch ch {
			case 'K':
				castle |= WhiteOO
			case 'Q':
				castle |= WhiteOOO
			case 'k':
				castle |= BlackOO
			case 'q':
				castle |= BlackOOO
			default:
				return nil, errors.Errorf("engine: invalid FEN %q: bad castling field", fen)
			}
		}
	}

	ep := NoSquare
	if fields[3] != "-" {
		s, err := SquareFromString(fields[3])
		if err != nil {
			return nil, errors.Wrapf(err, "engine: invalid FEN %q", fen)
		}
		ep = s
	}

	rule50 := 0
	if len(fields) > 4 {
		if v, err := strconv.Atoi(fields[4]); err == nil {
			rule50 = v
		}
	}
	fullMove := 1
	if len(fields) > 5 {
		if v, err := strconv.Atoi(fields[5]); err == nil {
			fullMove = v
		}
	}

	p.states[0] = state{move: NullMove, castle: castle, epSquare: ep, rule50: int16(rule50)}
	p.fullMove = fullMove
	p.states[0].key = p.recomputeKey()
	p.recomputeCheckersAndBlockers()
	return p, nil
}

func pieceFromFENByte(ch byte) (Color, Figure, error) {
	c := White
	lower := ch
	if ch >= 'a' && ch <= 'z' {
		c = Black
	} else {
		lower = ch + 32
	}
	var f Figure
	switch lower {
	case 'p':
		f = Pawn
	case 'n':
		f = Knight
	case 'b':
		f = Bishop
	case 'r':
		f = Rook
	case 'q':
		f = Queen
	case 'k':
		f = King
	default:
		return 0, 0, errors.Errorf("unknown piece byte %q", string(ch))
	}
	return c, f, nil
}

// String renders the position as a FEN string.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			pc := p.board[RankFile(rank, file)]
			if pc == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteString(pc.String())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	sb.WriteByte(' ')
	if p.sideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}
	sb.WriteByte(' ')
	sb.WriteString(p.curr().castle.String())
	sb.WriteByte(' ')
	sb.WriteString(p.curr().epSquare.String())
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(int(p.curr().rule50)))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.fullMove))
	return sb.String()
}

// IsThreeFoldRepetition walks the state history back to the last
// irreversible ply (rule50 reset to 0), looking for two earlier frames
// with the same key and the same side to move.
func (p *Position) IsThreeFoldRepetition() bool {
	key := p.curr().key
	count := 1
	last := len(p.states) - 1
	for i := last - 2; i >= 0; i -= 2 {
		if p.states[i].key == key {
			count++
			if count >= 3 {
				return true
			}
		}
		if p.states[i].rule50 == 0 {
			break
		}
	}
	return false
}
