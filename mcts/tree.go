// Package mcts implements a PUCT-style Monte Carlo tree search over
// engine.Position, driven by a value/policy network in place of
// alpha-beta's static evaluator.
//
// Grounded on original_source/src/mcts/engine.hpp and .cpp: a tree is a
// pair of preallocated Node/Edge arenas addressed by index rather than
// pointer (indices are the Go-idiomatic analogue of the C++ raw
// pointers into std::vector storage, and survive slice growth-free
// once capacity is reserved up front).
package mcts

import "github.com/corvidchess/corvid/engine"

// Node is one position in the search tree. Edges [EdgeBegin,
// EdgeBegin+NumEdges) in the owning Tree's Edges slice are its
// children. A freshly allocated node has NumEdges == 0 until its
// second visit expands it (see Searcher.search).
type Node struct {
	N        int32
	Q        float32
	EdgeBegin int32
	NumEdges  int32
	Terminal  bool
}

// Edge is one move out of a Node, carrying the child it leads to and
// the prior probability assigned by the policy head.
type Edge struct {
	To   int32
	Move engine.Move
	P    float32
}

// Tree is a bump-allocated arena of Nodes and Edges. It is reset (not
// reallocated) between searches so steady-state search allocates zero
// garbage.
type Tree struct {
	Nodes []Node
	Edges []Edge

	nodeCnt int
	edgeCnt int

	// margin is the number of free slots, below which checkLimit
	// reports exhaustion so an in-flight expansion never has to bail
	// out partway through.
	margin int
}

// NewTree preallocates a tree with room for nodeCap nodes and edgeCap
// edges.
func NewTree(nodeCap, edgeCap int) *Tree {
	if nodeCap < 1 {
		nodeCap = 1
	}
	if edgeCap < 1 {
		edgeCap = 1
	}
	// 200 matches the original's fixed safety margin; for a deliberately
	// tiny arena (as in tests) it's scaled down so a fresh tree still
	// reports room to grow.
	margin := 200
	if margin >= nodeCap {
		margin = nodeCap / 2
	}
	return &Tree{
		Nodes:  make([]Node, nodeCap),
		Edges:  make([]Edge, edgeCap),
		margin: margin,
	}
}

// Reset discards all nodes and edges and reinstalls an empty root.
func (t *Tree) Reset() {
	t.nodeCnt = 0
	t.edgeCnt = 0
	t.emplaceNode()
}

const rootIdx = 0

func (t *Tree) emplaceNode() int32 {
	idx := t.nodeCnt
	t.Nodes[idx] = Node{}
	t.nodeCnt++
	return int32(idx)
}

// emplaceEdges reserves n contiguous edge slots and returns the index
// of the first one.
func (t *Tree) emplaceEdges(n int) int32 {
	idx := t.edgeCnt
	t.edgeCnt += n
	return int32(idx)
}

// checkLimit reports whether the tree still has room for another
// expansion, holding back a safety margin so a search that is mid-way
// through initializing one node's edges never runs off the end of the
// arena.
func (t *Tree) checkLimit() bool {
	free := len(t.Nodes) - t.nodeCnt
	if e := len(t.Edges) - t.edgeCnt; e < free {
		free = e
	}
	return free > t.margin
}

func (t *Tree) node(i int32) *Node { return &t.Nodes[i] }
func (t *Tree) edge(i int32) *Edge { return &t.Edges[i] }

func (t *Tree) edges(n *Node) []Edge {
	return t.Edges[n.EdgeBegin : n.EdgeBegin+n.NumEdges]
}
