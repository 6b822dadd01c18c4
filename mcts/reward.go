package mcts

import "math"

// cp2win and win2cp convert between centipawn scores and a [0, 1] win
// probability using the standard logistic mapping, grounded on
// original_source/src/mcts/utils.hpp.
func cp2win(cp int32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(cp)/100.0)))
}

func win2cp(p float32) int32 {
	cp := -math.Log(1.0/float64(p)-1.0) * 100
	if cp < -10000 {
		cp = -10000
	}
	if cp > 10000 {
		cp = 10000
	}
	return int32(cp)
}

// cp2reward and reward2cp convert between centipawns and the [-1, 1]
// reward MCTS backs up through the tree.
func cp2reward(cp int32) float32 { return 2.0*cp2win(cp) - 1.0 }

func reward2cp(q float32) int32 { return win2cp((q + 1.0) / 2.0) }
