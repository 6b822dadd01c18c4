package mcts

import (
	"context"
	"math"
	"time"

	"github.com/corvidchess/corvid/engine"
	"github.com/corvidchess/corvid/nnue"
)

// DefaultCPUCT is the exploration constant used when Options.CPUCT is
// left at zero.
const DefaultCPUCT = 1.4

// Options configures one Searcher.
type Options struct {
	// CPUCT scales the exploration bonus in the PUCT selection rule.
	CPUCT float32
	// Nodes caps the tree arena: at most Nodes positions and 40*Nodes
	// edges (a legal position has at most ~218 moves; 40 is a generous
	// average branching factor budget) are ever allocated per search.
	Nodes int
}

// Stats is reported periodically (and once at search end) so a
// controller can render progress.
type Stats struct {
	Visits   int64
	Depth    int
	BestMove engine.Move
	ScoreCP  int32
	PV       []engine.Move
}

// Logger receives progress reports during a search, mirroring
// engine.Logger's role for the alpha-beta searcher.
type Logger interface {
	Report(s Stats, elapsed time.Duration)
}

// Result is the outcome of one Search call.
type Result struct {
	BestMove engine.Move
	ScoreCP  int32
	Visits   int64
	PV       []engine.Move
}

// Searcher runs PUCT-guided Monte Carlo tree search over a Position
// shared with its caller, using a value+policy network in place of the
// alpha-beta searcher's static evaluator. It does not own the Position
// or the evaluator attached to it.
type Searcher struct {
	pos  *engine.Position
	eval *nnue.PolicyEvaluator
	tree *Tree
	opts Options

	logger       Logger
	deadline     time.Time
	haveDeadline bool
}

// NewSearcher builds a Searcher over pos, which must already have eval
// attached via pos.AttachEvaluator.
func NewSearcher(pos *engine.Position, eval *nnue.PolicyEvaluator, opts Options) *Searcher {
	if opts.CPUCT == 0 {
		opts.CPUCT = DefaultCPUCT
	}
	nodeCap := opts.Nodes
	if nodeCap <= 0 {
		nodeCap = 1 << 16
	}
	return &Searcher{
		pos:  pos,
		eval: eval,
		tree: NewTree(nodeCap, nodeCap*40),
		opts: opts,
	}
}

func (s *Searcher) SetLogger(l Logger) { s.logger = l }

// SetDeadline bounds the search by wall-clock time; a zero value
// (the default) means "search until ctx is done or the tree fills up".
func (s *Searcher) SetDeadline(d time.Time) {
	s.deadline = d
	s.haveDeadline = !d.IsZero()
}

func (s *Searcher) timeUp() bool {
	return s.haveDeadline && time.Now().After(s.deadline)
}

const reportInterval = 500 * time.Millisecond

// maxSearchDepth guards against descending indefinitely through a long
// non-terminal sequence; the tree's node-count limit almost always
// bites first in practice.
const maxSearchDepth = 512

// Search runs MCTS until ctx is cancelled, the deadline passes, or the
// tree's arena is exhausted, then returns the root's most-visited
// child as the best move.
func (s *Searcher) Search(ctx context.Context) Result {
	s.tree.Reset()
	start := time.Now()
	lastReport := start

	// The root's first visit only evaluates it and its second expands
	// its edges (and descends once); search it twice up front so every
	// subsequent visit finds edges to select from.
	s.search(rootIdx, 0)
	s.search(rootIdx, 0)

	var visits int64
	for !s.tree.node(rootIdx).Terminal && s.tree.checkLimit() && ctx.Err() == nil && !s.timeUp() {
		s.search(rootIdx, 0)
		visits++
		if s.logger != nil && time.Since(lastReport) >= reportInterval {
			s.logger.Report(s.makeStats(visits), time.Since(start))
			lastReport = time.Now()
		}
	}

	res := s.makeResult(visits)
	if s.logger != nil {
		s.logger.Report(s.makeStats(visits), time.Since(start))
	}
	return res
}

// search descends from nodeIdx, evaluating or expanding it on its
// first two visits and otherwise selecting a child by PUCT, and
// returns the reward from nodeIdx's side to move's perspective.
func (s *Searcher) search(nodeIdx int32, depth int) float32 {
	node := s.tree.node(nodeIdx)
	node.N++

	if node.Terminal {
		return node.Q
	}

	if depth >= maxSearchDepth || s.pos.Rule50() >= 100 || s.pos.IsThreeFoldRepetition() {
		node.Terminal = true
		node.Q = 0
		return 0
	}

	if node.N == 1 {
		node.Q = s.eval.Value(s.pos.SideToMove())
		return node.Q
	}

	if node.N == 2 {
		if !s.initializeEdges(node) {
			// no legal moves: checkmate or stalemate.
			node.Terminal = true
			if s.pos.IsChecked() {
				node.Q = -1
			} else {
				node.Q = 0
			}
			return node.Q
		}
	}

	edges := s.tree.edges(node)
	best := selectEdge(s.tree, node, edges, s.opts.CPUCT)
	e := &edges[best]

	if e.To < 0 {
		e.To = s.tree.emplaceNode()
	}

	s.pos.DoMove(e.Move)
	q := -s.search(e.To, depth+1)
	s.pos.UndoMove()

	node.Q = (float32(node.N-1)*node.Q + q) / float32(node.N)
	return q
}

// selectEdge picks the child maximizing the PUCT score
// -childQ + cpuct*prior*sqrt(parentN)/(childN+eps).
func selectEdge(t *Tree, parent *Node, edges []Edge, cpuct float32) int {
	const eps = 1e-3
	sqrtN := float32(math.Sqrt(float64(parent.N)))
	best, bestScore := 0, float32(math.Inf(-1))
	for i := range edges {
		e := &edges[i]
		var childQ float32
		var childN int32
		if e.To >= 0 {
			child := t.node(e.To)
			childQ, childN = child.Q, child.N
		}
		score := -childQ + cpuct*e.P*sqrtN/(float32(childN)+eps)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// initializeEdges expands node with one edge per legal move, skipping
// bishop/rook underpromotions, and assigns softmax-normalized priors
// from the policy head. Reports false when there are no legal moves.
func (s *Searcher) initializeEdges(node *Node) bool {
	stm := s.pos.SideToMove()
	moves := s.pos.LegalMoves()

	kept := moves[:0:0]
	for _, m := range moves {
		if m.Tag() == engine.TagPromoBishop || m.Tag() == engine.TagPromoRook {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return false
	}

	begin := s.tree.emplaceEdges(len(kept))
	node.EdgeBegin = begin
	node.NumEdges = int32(len(kept))

	var sum float32
	logits := make([]float32, len(kept))
	for i, m := range kept {
		logits[i] = s.eval.Policy(stm, m.From(), m.To())
	}
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}
	exps := make([]float32, len(kept))
	for i, l := range logits {
		exps[i] = float32(math.Exp(float64(l - maxLogit)))
		sum += exps[i]
	}
	for i, m := range kept {
		s.tree.Edges[begin+int32(i)] = Edge{To: -1, Move: m, P: exps[i] / sum}
	}
	return true
}

func (s *Searcher) makeStats(visits int64) Stats {
	root := s.tree.node(rootIdx)
	return Stats{
		Visits:   visits,
		BestMove: s.bestMove(),
		ScoreCP:  reward2cp(root.Q),
		PV:       s.pv(),
	}
}

func (s *Searcher) makeResult(visits int64) Result {
	root := s.tree.node(rootIdx)
	return Result{
		BestMove: s.bestMove(),
		ScoreCP:  reward2cp(root.Q),
		Visits:   visits,
		PV:       s.pv(),
	}
}

// bestMove returns the root's most-visited child's move, the standard
// MCTS policy-improvement readout (more robust to value-head noise
// than the highest-Q child).
func (s *Searcher) bestMove() engine.Move {
	root := s.tree.node(rootIdx)
	if root.NumEdges == 0 {
		return engine.NullMove
	}
	edges := s.tree.edges(root)
	best, bestN := -1, int32(-1)
	for i, e := range edges {
		if e.To < 0 {
			continue
		}
		if n := s.tree.node(e.To).N; n > bestN {
			best, bestN = i, n
		}
	}
	if best < 0 {
		return edges[0].Move
	}
	return edges[best].Move
}

// pv follows the max-visit child at each node down to a leaf, mirroring
// original_source/src/mcts/engine.cpp's Node::getPV.
func (s *Searcher) pv() []engine.Move {
	var out []engine.Move
	idx := int32(rootIdx)
	for {
		node := s.tree.node(idx)
		if node.NumEdges == 0 {
			return out
		}
		edges := s.tree.edges(node)
		best, bestN := -1, int32(-1)
		for i, e := range edges {
			if e.To < 0 {
				continue
			}
			if n := s.tree.node(e.To).N; n > bestN {
				best, bestN = i, n
			}
		}
		if best < 0 {
			return out
		}
		out = append(out, edges[best].Move)
		idx = edges[best].To
		if len(out) > 256 {
			return out
		}
	}
}
