package engine

// MovePicker yields moves from a position one at a time, generating
// each stage lazily so a beta cutoff early in the list skips the cost
// of generating and scoring the rest. Stage order: transposition-table
// move, good captures (SEE >= 0) and queen/knight promotions, killers,
// quiet moves ordered by history, bad captures (SEE < 0).
type MovePicker struct {
	pos     *Position
	hist    *History
	ply     int
	ttMove  Move
	mode    pickerMode
	stage   pickerStage
	list    []scoredMove
	idx     int
	badList []scoredMove
	badIdx  int
	skip    Move // the ttMove already returned, not to repeat
}

type scoredMove struct {
	m     Move
	score int32
}

type pickerStage int

const (
	stageTT pickerStage = iota
	stageGenCaptures
	stageGoodCaptures
	stageKiller1
	stageKiller2
	stageGenQuiets
	stageQuiets
	stageBadCaptures
	stageEvasionGen
	stageEvasion
	stageDone
)

// pickerMode selects which of the three linear chains described in §4.6
// Next() drives: the full main-search stage machine, the quiescence
// chain (TT, good captures, end), or the check-evasion chain (TT, then
// a flat history sort over every evasion).
type pickerMode int

const (
	modeMain pickerMode = iota
	modeQuiescence
	modeEvasion
)

// NewMovePicker builds a picker for the main search: every legal move,
// staged for best-first ordering.
func NewMovePicker(pos *Position, hist *History, ply int, ttMove Move) *MovePicker {
	return &MovePicker{pos: pos, hist: hist, ply: ply, ttMove: ttMove, mode: modeMain, stage: stageTT}
}

// NewQuiescencePicker builds a picker for the quiescence search's
// distinct linear chain: TT move, then good captures/promotions, then
// done -- no killers, no quiets, no bad captures.
func NewQuiescencePicker(pos *Position, hist *History, ttMove Move) *MovePicker {
	return &MovePicker{pos: pos, hist: hist, ttMove: ttMove, mode: modeQuiescence, stage: stageTT}
}

// NewEvasionPicker builds a picker for a position in check: the TT move,
// then every legal evasion in one flat history-sorted pass, per §4.6's
// "TT, then a flat sort by history over all evasive moves".
func NewEvasionPicker(pos *Position, hist *History, ply int, ttMove Move) *MovePicker {
	return &MovePicker{pos: pos, hist: hist, ply: ply, ttMove: ttMove, mode: modeEvasion, stage: stageTT}
}

func (mp *MovePicker) isUsable(m Move) bool {
	return mp.pos.IsPseudoLegal(m) && mp.pos.IsLegal(m)
}

// Next returns the next move to try, or NullMove when exhausted.
func (mp *MovePicker) Next() Move {
	for {
		switch mp.stage {
		case stageTT:
			if mp.mode == modeEvasion {
				mp.stage = stageEvasionGen
			} else {
				mp.stage = stageGenCaptures
			}
			if !mp.ttMove.IsNull() && mp.isUsable(mp.ttMove) {
				if mp.mode == modeQuiescence && mp.pos.board[mp.ttMove.To()] == NoPiece &&
					mp.ttMove.Tag() != TagEnPassant && !mp.ttMove.IsPromotion() {
					continue // quiet TT moves are not searched in quiescence
				}
				mp.skip = mp.ttMove
				return mp.ttMove
			}

		case stageEvasionGen:
			var raw []Move
			mp.pos.GenerateMoves(GenAll, &raw)
			mp.list = mp.list[:0]
			for _, m := range raw {
				if m == mp.skip || !mp.pos.IsLegal(m) {
					continue
				}
				mp.list = append(mp.list, scoredMove{m, mp.evasionOrderScore(m)})
			}
			sortScoredMoves(mp.list)
			mp.idx = 0
			mp.stage = stageEvasion

		case stageEvasion:
			if mp.idx < len(mp.list) {
				sm := mp.list[mp.idx]
				mp.idx++
				return sm.m
			}
			mp.stage = stageDone

		case stageGenCaptures:
			var raw []Move
			mp.pos.GenerateMoves(GenCaptures, &raw)
			mp.list = mp.list[:0]
			for _, m := range raw {
				if m == mp.skip || !mp.pos.IsLegal(m) {
					continue
				}
				see := mp.pos.SEE(m)
				sm := scoredMove{m, mp.captureOrderScore(m, see)}
				if see < 0 {
					mp.badList = append(mp.badList, sm)
				} else {
					mp.list = append(mp.list, sm)
				}
			}
			sortScoredMoves(mp.list)
			sortScoredMoves(mp.badList)
			mp.idx = 0
			mp.stage = stageGoodCaptures

		case stageGoodCaptures:
			if mp.idx < len(mp.list) {
				sm := mp.list[mp.idx]
				mp.idx++
				return sm.m
			}
			if mp.mode == modeQuiescence {
				mp.stage = stageDone
			} else {
				mp.stage = stageKiller1
			}

		case stageKiller1:
			mp.stage = stageKiller2
			k1, _ := mp.hist.Killers(mp.ply)
			if !k1.IsNull() && k1 != mp.skip && mp.isUsable(k1) && mp.pos.board[k1.To()] == NoPiece {
				return k1
			}

		case stageKiller2:
			mp.stage = stageGenQuiets
			_, k2 := mp.hist.Killers(mp.ply)
			if !k2.IsNull() && k2 != mp.skip && mp.isUsable(k2) && mp.pos.board[k2.To()] == NoPiece {
				return k2
			}

		case stageGenQuiets:
			var raw []Move
			mp.pos.GenerateMoves(GenQuiets, &raw)
			k1, k2 := NullMove, NullMove
			if mp.hist != nil {
				k1, k2 = mp.hist.Killers(mp.ply)
			}
			quiets := mp.list[:0]
			for _, m := range raw {
				if m == mp.skip || m == k1 || m == k2 || !mp.pos.IsLegal(m) {
					continue
				}
				var score int32
				if mp.hist != nil {
					score = mp.hist.QuietScore(mp.pos.sideToMove, m)
				}
				quiets = append(quiets, scoredMove{m, score})
			}
			mp.list = quiets
			sortScoredMoves(mp.list)
			mp.idx = 0
			mp.stage = stageQuiets

		case stageQuiets:
			if mp.idx < len(mp.list) {
				sm := mp.list[mp.idx]
				mp.idx++
				return sm.m
			}
			mp.stage = stageBadCaptures

		case stageBadCaptures:
			if mp.badIdx < len(mp.badList) {
				sm := mp.badList[mp.badIdx]
				mp.badIdx++
				return sm.m
			}
			mp.stage = stageDone

		case stageDone:
			return NullMove
		}
	}
}

// captureOrderScore ranks a capture given its precomputed SEE plus the
// capture-history table, per §4.6 step 2 ("score with history plus a
// static-exchange value"), minus the attacker's value as a tiebreaker
// (the cheaper attacker first among equal SEE).
func (mp *MovePicker) captureOrderScore(m Move, see int32) int32 {
	attacker := mp.pos.board[m.From()].Figure()
	captured := mp.pos.board[m.To()].Figure()
	var hist int32
	if mp.hist != nil {
		hist = mp.hist.CaptureScore(mp.pos.sideToMove, attacker, m.To(), captured)
	}
	return see*64 - FigureValue[attacker] + hist
}

// evasionOrderScore ranks a check evasion by history alone, per §4.6's
// "flat sort by history over all evasive moves": quiet evasions consult
// the quiet table, captures the capture table.
func (mp *MovePicker) evasionOrderScore(m Move) int32 {
	if mp.hist == nil {
		return 0
	}
	us := mp.pos.sideToMove
	if mp.pos.board[m.To()] != NoPiece || m.Tag() == TagEnPassant {
		attacker := mp.pos.board[m.From()].Figure()
		captured := mp.pos.board[m.To()].Figure()
		return mp.hist.CaptureScore(us, attacker, m.To(), captured)
	}
	return mp.hist.QuietScore(us, m)
}

func sortScoredMoves(list []scoredMove) {
	for i := 1; i < len(list); i++ {
		sm := list[i]
		j := i - 1
		for j >= 0 && list[j].score < sm.score {
			list[j+1] = list[j]
			j--
		}
		list[j+1] = sm
	}
}
