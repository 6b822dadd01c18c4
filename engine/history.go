package engine

// History and killer-move heuristics used to order quiet moves when no
// hash move or winning capture is available. Both are cleared at the
// start of each search (Searcher.Search) and persist across iterative-deepening
// iterations within one search, the same lifetime zurichess gives them.

const historyMax = 2000

// History holds the quiet-move and capture-history tables plus the
// 2-slot killer pair per ply.
type History struct {
	quiet   [ColorArraySize][64][64]int32
	capture [ColorArraySize][FigureArraySize][64][FigureArraySize]int32
	killers [maxPly][2]Move
}

// maxPly bounds the killer table; searches deeper than this simply stop
// recording killers for the excess plies.
const maxPly = 128

func NewHistory() *History {
	return &History{}
}

// Clear resets every table to zero, as at the start of a new search.
func (h *History) Clear() {
	*h = History{}
}

func clamp32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BonusQuiet rewards the quiet move that caused a beta cutoff and
// penalizes the quiet moves tried before it at the same depth, both
// scaled by depth^2 and clamped to keep the table bounded.
func (h *History) BonusQuiet(us Color, m Move, depth int, tried []Move) {
	bonus := int32(depth * depth)
	from, to := m.From(), m.To()
	h.quiet[us][from][to] = clamp32(h.quiet[us][from][to]+bonus, -historyMax, historyMax)
	for _, t := range tried {
		if t == m {
			continue
		}
		tf, tt := t.From(), t.To()
		h.quiet[us][tf][tt] = clamp32(h.quiet[us][tf][tt]-bonus, -historyMax, historyMax)
	}
}

// BonusCapture is the same idea for the capture-history table, indexed
// by attacker figure, destination square, and captured figure: it
// rewards the cutting capture and penalizes the other captures tried
// before it at the same depth, mirroring BonusQuiet.
func (h *History) BonusCapture(pos *Position, us Color, m Move, depth int, tried []Move) {
	bonus := int32(depth * depth)
	attacker, to, captured := pos.board[m.From()].Figure(), m.To(), pos.board[m.To()].Figure()
	h.capture[us][attacker][to][captured] = clamp32(h.capture[us][attacker][to][captured]+bonus, -historyMax, historyMax)
	for _, t := range tried {
		if t == m {
			continue
		}
		ta, tTo, tc := pos.board[t.From()].Figure(), t.To(), pos.board[t.To()].Figure()
		h.capture[us][ta][tTo][tc] = clamp32(h.capture[us][ta][tTo][tc]-bonus, -historyMax, historyMax)
	}
}

func (h *History) QuietScore(us Color, m Move) int32 {
	return h.quiet[us][m.From()][m.To()]
}

func (h *History) CaptureScore(us Color, attacker Figure, to Square, captured Figure) int32 {
	return h.capture[us][attacker][to][captured]
}

// Killers returns the killer pair recorded for ply.
func (h *History) Killers(ply int) (Move, Move) {
	if ply < 0 || ply >= maxPly {
		return NullMove, NullMove
	}
	return h.killers[ply][0], h.killers[ply][1]
}

// AddKiller records m as the newest killer at ply, evicting the older
// slot; a move already present is not duplicated.
func (h *History) AddKiller(ply int, m Move) {
	if ply < 0 || ply >= maxPly {
		return
	}
	if h.killers[ply][0] == m {
		return
	}
	h.killers[ply][1] = h.killers[ply][0]
	h.killers[ply][0] = m
}
