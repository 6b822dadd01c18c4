package engine

import (
	"context"
	"time"
)

// MateScore is returned for "mate in 0" at the mating ply; scores within
// MateThreshold of it encode "mate in N" by counting down from it.
const (
	MateScore     int32 = 30000
	MateThreshold int32 = MateScore - int32(maxPly)
	infScore      int32 = MateScore + 1
)

// quiescenceFutilityMargin is the tight delta-pruning margin applied to
// each quiescence capture per §4.8: a capture whose best case (its SEE
// gain plus this margin) still can't reach alpha is skipped.
const quiescenceFutilityMargin int32 = 100

// futilityHistoryThreshold is the "small negative threshold" of §4.7
// step 7: a quiet move whose history score falls below this is presumed
// unlikely to help and becomes a futility-pruning candidate.
const futilityHistoryThreshold int32 = -100

// Options configures one Searcher. Zero value is a usable default.
type Options struct {
	// HashMB sizes the transposition table.
	HashMB int
	// MultiPV is accepted but not read by the searcher: Search always
	// reports a single best line.
	MultiPV int
}

// Stats accumulates counters a UCI-style controller reports mid-search.
type Stats struct {
	Nodes     uint64
	TTHits    uint64
	Depth     int
	SelDepth  int
	BestMove  Move
	BestScore int32
	PV        []Move
}

// Logger receives periodic progress reports during iterative deepening.
// The controller package supplies an implementation that renders "info"
// lines; tests can supply nil.
type Logger interface {
	Report(s Stats, elapsed time.Duration)
}

// Searcher runs iterative-deepening alpha-beta over a Position shared
// with its caller. It owns the transposition table and history tables;
// it does not own the Position or the Evaluator attached to it.
type Searcher struct {
	pos     *Position
	tt      *TranspositionTable
	hist    *History
	opts    Options
	logger  Logger
	stats   Stats
	stop    <-chan structEmpty
	deadline time.Time
	haveDeadline bool
}

type structEmpty = struct{}

// NewSearcher builds a Searcher over pos, which must already have an
// Evaluator attached.
func NewSearcher(pos *Position, opts Options) *Searcher {
	mb := opts.HashMB
	if mb <= 0 {
		mb = 64
	}
	return &Searcher{
		pos:  pos,
		tt:   NewTranspositionTable(mb),
		hist: NewHistory(),
		opts: opts,
	}
}

func (s *Searcher) SetLogger(l Logger) { s.logger = l }

// Stats returns the accumulated counters from the most recent Search
// call, for callers (bench harnesses, tests) that need the node count
// without implementing a Logger.
func (s *Searcher) Stats() Stats { return s.stats }

// SearchResult is the outcome of one top-level Search call.
type SearchResult struct {
	BestMove Move
	Score    int32
	Depth    int
	PV       []Move
}

// Search runs iterative deepening from depth 1 up to maxDepth (or until
// ctx is done), returning the best result found. maxDepth <= 0 means
// "until time runs out", bounded by maxPly.
func (s *Searcher) Search(ctx context.Context, maxDepth int) SearchResult {
	s.tt.NewSearch()
	s.hist.Clear()
	s.stats = Stats{}

	if maxDepth <= 0 || maxDepth > maxPly {
		maxDepth = maxPly
	}

	start := time.Now()
	var best SearchResult
	var prevScore int32

	for depth := 1; depth <= maxDepth; depth++ {
		if ctx.Err() != nil {
			break
		}
		score, pv, ok := s.aspirationSearch(ctx, depth, prevScore)
		if !ok {
			break // ran out of time mid-iteration; keep the previous result
		}
		prevScore = score
		best = SearchResult{BestMove: pvMove(pv), Score: score, Depth: depth, PV: pv}
		s.stats.Depth = depth
		s.stats.BestScore = score
		s.stats.BestMove = best.BestMove
		s.stats.PV = pv
		if s.logger != nil {
			s.logger.Report(s.stats, time.Since(start))
		}
		if score >= MateThreshold || score <= -MateThreshold {
			break // found a forced mate; deeper iterations can't improve on it
		}
	}
	return best
}

func pvMove(pv []Move) Move {
	if len(pv) == 0 {
		return NullMove
	}
	return pv[0]
}

// aspirationSearch runs one iterative-deepening iteration with a
// progressively widening window around the previous iteration's score,
// per the standard aspiration-window technique (initial half-width 25,
// doubling on each fail).
func (s *Searcher) aspirationSearch(ctx context.Context, depth int, prevScore int32) (int32, []Move, bool) {
	if depth < 4 {
		pv := make([]Move, 0, depth)
		score, ok := s.rootSearch(ctx, depth, -infScore, infScore, &pv)
		return score, pv, ok
	}

	window := int32(25)
	alpha, beta := prevScore-window, prevScore+window
	for {
		pv := make([]Move, 0, depth)
		score, ok := s.rootSearch(ctx, depth, alpha, beta, &pv)
		if !ok {
			return 0, nil, false
		}
		if score <= alpha {
			alpha -= window
			window *= 2
		} else if score >= beta {
			beta += window
			window *= 2
		} else {
			return score, pv, true
		}
		if window > 2000 {
			alpha, beta = -infScore, infScore
		}
	}
}

func (s *Searcher) timeUp() bool {
	return s.haveDeadline && time.Now().After(s.deadline)
}

func (s *Searcher) rootSearch(ctx context.Context, depth int, alpha, beta int32, pv *[]Move) (int32, bool) {
	moves := s.pos.LegalMoves()
	if len(moves) == 0 {
		if s.pos.IsChecked() {
			return -MateScore, true
		}
		return 0, true
	}

	ttMove := NullMove
	if m, _, _, _, ok := s.tt.Probe(s.pos.Key()); ok {
		ttMove = m
	}
	picker := NewMovePicker(s.pos, s.hist, 0, ttMove)

	best := -infScore
	var bestMove Move
	var childPV []Move
	legalCount := 0
	for {
		m := picker.Next()
		if m.IsNull() {
			break
		}
		legalCount++
		s.pos.DoMove(m)
		s.stats.Nodes++
		line := make([]Move, 0, depth)
		score, ok := s.negamax(ctx, depth-1, 1, -beta, -alpha, &line)
		score = -score
		s.pos.UndoMove()
		if !ok {
			return 0, false
		}
		if score > best {
			best = score
			bestMove = m
			childPV = line
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			break
		}
	}
	_ = legalCount

	*pv = append((*pv)[:0], bestMove)
	*pv = append(*pv, childPV...)
	bound := BoundExact
	if best <= alpha && best != alpha {
		bound = BoundUpper
	}
	s.tt.Store(s.pos.Key(), bestMove, ScoreToTT(best, 0), 0, depth, bound)
	return best, true
}

// negamax is the recursive alpha-beta core, ply counted from the search
// root (used for mate-distance adjustment and killer-table indexing).
func (s *Searcher) negamax(ctx context.Context, depth, ply int, alpha, beta int32, pv *[]Move) (int32, bool) {
	if s.stats.Nodes&1023 == 0 {
		if ctx.Err() != nil || s.timeUp() {
			return 0, false
		}
	}

	if s.pos.Rule50() >= 100 || s.pos.IsThreeFoldRepetition() {
		return 0, true
	}

	alphaOrig := alpha
	key := s.pos.Key()
	if ttMove, score, ttDepth, bound, ok := s.tt.Probe(key); ok {
		s.stats.TTHits++
		if ttDepth >= depth {
			adj := ScoreFromTT(score, ply)
			switch bound {
			case BoundExact:
				return adj, true
			case BoundLower:
				if adj > alpha {
					alpha = adj
				}
			case BoundUpper:
				if adj < beta {
					beta = adj
				}
			}
			if alpha >= beta {
				return adj, true
			}
		}
		_ = ttMove
	}

	if depth <= 0 {
		score, ok := s.quiescence(ctx, ply, alpha, beta)
		return score, ok
	}

	checkers := s.pos.IsChecked()

	// Mate-distance pruning: a mate score any number of plies shallower
	// than the current ply can't beat what's already guaranteed.
	if matingValue := MateScore - int32(ply); matingValue < beta {
		beta = matingValue
		if alpha >= beta {
			return beta, true
		}
	}
	if matedValue := -MateScore + int32(ply); matedValue > alpha {
		alpha = matedValue
		if alpha >= beta {
			return alpha, true
		}
	}

	staticEval := s.pos.StaticEval()

	// Futility pruning: skip quiets at shallow depth when even the
	// largest plausible swing can't reach alpha, the move doesn't give
	// check, and its history score marks it as a move that rarely helps.
	futileNode := !checkers && depth <= 3 && staticEval+200*int32(depth) < alpha

	ttMove := NullMove
	if m, _, _, _, ok := s.tt.Probe(key); ok {
		ttMove = m
	}

	var picker *MovePicker
	if checkers {
		picker = NewEvasionPicker(s.pos, s.hist, ply, ttMove)
	} else {
		picker = NewMovePicker(s.pos, s.hist, ply, ttMove)
	}

	best := -infScore
	var bestMove Move
	var childPV []Move
	moveCount := 0
	var triedQuiets []Move
	var triedCaptures []Move

	for {
		m := picker.Next()
		if m.IsNull() {
			break
		}
		isCapture := s.pos.board[m.To()] != NoPiece || m.Tag() == TagEnPassant
		isQuiet := !isCapture && !m.IsPromotion()

		var quietHist int32
		if isQuiet {
			quietHist = s.hist.QuietScore(s.pos.sideToMove, m)
		}

		if futileNode && isQuiet && moveCount > 0 && !s.pos.GivesCheck(m) &&
			quietHist < futilityHistoryThreshold {
			moveCount++
			continue
		}

		s.pos.DoMove(m)
		s.stats.Nodes++
		moveCount++

		line := make([]Move, 0, depth)
		childDepth := depth - 1

		// Late move reduction: quiet moves tried late in a deep,
		// non-check node are searched at a depth reduced by 1..depth-2,
		// scaled by how poorly the move's history rates it (a move with
		// very negative history is reduced the most), and re-searched at
		// full depth only if it beats alpha.
		reduced := false
		if depth >= 3 && isQuiet && moveCount > 4 && !checkers {
			maxReduction := depth - 2
			reduction := 1
			if quietHist < 0 {
				frac := float64(-quietHist) / float64(historyMax)
				if frac > 1 {
					frac = 1
				}
				reduction = 1 + int(frac*float64(maxReduction-1))
			}
			if reduction > maxReduction {
				reduction = maxReduction
			}
			if reduction < 1 {
				reduction = 1
			}
			childDepth -= reduction
			reduced = true
		}

		score, ok := s.negamax(ctx, childDepth, ply+1, -alpha-1, -alpha, &line)
		score = -score
		if ok && reduced && score > alpha {
			line = line[:0]
			score, ok = s.negamax(ctx, depth-1, ply+1, -beta, -alpha, &line)
			score = -score
		} else if ok && !reduced && moveCount > 1 && score > alpha && score < beta {
			line = line[:0]
			score, ok = s.negamax(ctx, depth-1, ply+1, -beta, -alpha, &line)
			score = -score
		}
		s.pos.UndoMove()
		if !ok {
			return 0, false
		}

		if isQuiet {
			triedQuiets = append(triedQuiets, m)
		} else if isCapture {
			triedCaptures = append(triedCaptures, m)
		}

		if score > best {
			best = score
			bestMove = m
			childPV = append(childPV[:0], line...)
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			if isQuiet {
				s.hist.BonusQuiet(s.pos.sideToMove, m, depth, triedQuiets)
				s.hist.AddKiller(ply, m)
			} else if isCapture {
				s.hist.BonusCapture(s.pos, s.pos.sideToMove, m, depth, triedCaptures)
			}
			break
		}
	}

	if moveCount == 0 {
		if checkers {
			return -MateScore + int32(ply), true
		}
		return 0, true
	}

	*pv = append((*pv)[:0], bestMove)
	*pv = append(*pv, childPV...)

	bound := BoundExact
	if best <= alphaOrig {
		bound = BoundUpper
	} else if best >= beta {
		bound = BoundLower
	}
	s.tt.Store(key, bestMove, ScoreToTT(best, ply), staticEval, depth, bound)
	return best, true
}

// quiescence extends the search through captures and check evasions
// until the position is quiet, per §4.8: stand-pat is allowed unless in
// check, and only tactically forcing moves are considered.
func (s *Searcher) quiescence(ctx context.Context, ply int, alpha, beta int32) (int32, bool) {
	if s.stats.Nodes&1023 == 0 && (ctx.Err() != nil || s.timeUp()) {
		return 0, false
	}

	checkers := s.pos.IsChecked()
	var standPat int32
	if !checkers {
		standPat = s.pos.StaticEval()
		if standPat >= beta {
			return standPat, true
		}
		if standPat > alpha {
			alpha = standPat
		}
	}

	ttMove := NullMove
	if m, _, _, _, ok := s.tt.Probe(s.pos.Key()); ok {
		ttMove = m
	}

	var picker *MovePicker
	if checkers {
		picker = NewEvasionPicker(s.pos, nil, ply, ttMove)
	} else {
		picker = NewQuiescencePicker(s.pos, nil, ttMove)
	}

	best := standPat
	if checkers {
		best = -infScore
	}
	moveCount := 0
	for {
		m := picker.Next()
		if m.IsNull() {
			break
		}

		// Futility pruning: a capture that can't possibly recover
		// enough material to reach alpha isn't worth searching.
		if !checkers && !m.IsPromotion() {
			see := s.pos.SEE(m)
			if standPat+quiescenceFutilityMargin+see < alpha && !s.pos.GivesCheck(m) {
				continue
			}
		}

		moveCount++
		s.pos.DoMove(m)
		s.stats.Nodes++
		score, ok := s.quiescence(ctx, ply+1, -beta, -alpha)
		score = -score
		s.pos.UndoMove()
		if !ok {
			return 0, false
		}
		if score > best {
			best = score
		}
		if best > alpha {
			alpha = best
		}
		if alpha >= beta {
			break
		}
	}

	if checkers && moveCount == 0 {
		return -MateScore + int32(ply), true
	}
	return best, true
}
