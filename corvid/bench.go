package corvid

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/engine"
	"github.com/corvidchess/corvid/nnue"
)

// benchGame is one fixed game replayed move by move, re-searching from
// scratch at each ply; grounded on zurichess's internal/bench games
// list (openings drawn from historical grandmaster games).
type benchGame struct {
	description string
	moves       []string
}

var benchGames = []benchGame{
	{
		description: "Garry Kasparov - Veselin Topalov, Wijk aan Zee 1999",
		moves: strings.Fields(
			"e2e4 d7d6 d2d4 g8f6 b1c3 g7g6 c1e3 f8g7 d1d2 c7c6 f2f3 b7b5 " +
				"g1e2 b8d7 e3h6 g7h6 d2h6 c8b7 a2a3 e7e5 e1c1 d8e7 c1b1 a7a6 " +
				"e2c1 e8c8 c1b3 e5d4 d1d4 c6c5 d4d1 d7b6 g2g3 c8b8 b3a5 b7a8",
		),
	},
	{
		description: "Vladimir Kramnik - Alexey Shirov, Linares 1994",
		moves: strings.Fields(
			"g1f3 d7d5 d2d4 c8f5 c2c4 e7e6 b1c3 c7c6 d1b3 d8b6 c4c5 b6c7 " +
				"c1f4 c7c8 e2e3 g8f6 b3a4 b8d7 b2b4 a7a6 h2h3 f8e7 a4b3 e8g8 " +
				"f1e2 f5e4 e1g1 e4f3 e2f3 e7d8 a2a4 d8c7 f4g5 h7h6 g5f6 d7f6",
		),
	},
	{
		description: "Mikhail Tal - Boris Spassky, Leningrad 1954",
		moves: strings.Fields(
			"c2c4 g8f6 b1c3 e7e6 d2d4 c7c5 d4d5 e6d5 c4d5 g7g6 g1f3 f8g7 " +
				"c1f4 d7d6 h2h3 e8g8 e2e3 f6e8 f1e2 b8d7 e1g1 d7e5 f4e5 d6e5 " +
				"f3d2 f7f5 d1b3 e8d6 d2c4 e5e4 c3b5 d6b5 b3b5 b7b6 d5d6 c8d7",
		),
	},
}

// BenchResult is the outcome of replaying one benchGame.
type BenchResult struct {
	Description string
	Nodes       uint64
}

// RunBench runs the alpha-beta searcher to depth over every embedded
// game, re-searching from scratch at each played ply, and returns the
// per-game node counts and the aggregate nodes-per-second. This is a
// regression gate on search-shape changes, not a tuning tool: a
// non-functional change to the searcher should leave these counts
// unchanged.
func RunBench(depth int, model *nnue.ValueModel) ([]BenchResult, float64, error) {
	start := time.Now()
	var results []BenchResult
	var total uint64

	for _, g := range benchGames {
		nodes, err := evalGame(g, depth, model)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "bench: %s", g.description)
		}
		results = append(results, BenchResult{Description: g.description, Nodes: nodes})
		total += nodes
	}

	elapsed := time.Since(start)
	nps := float64(total) / elapsed.Seconds()
	return results, nps, nil
}

func evalGame(g benchGame, depth int, model *nnue.ValueModel) (uint64, error) {
	pos, err := engine.PositionFromFEN(startFEN)
	if err != nil {
		return 0, err
	}
	pos.AttachEvaluator(nnue.NewEvaluator(model))

	var nodes uint64
	for _, token := range g.moves {
		s := engine.NewSearcher(pos, engine.Options{HashMB: 2})
		s.Search(context.Background(), depth)
		nodes += s.Stats().Nodes

		m, err := matchUCIMove(pos, token)
		if err != nil {
			return 0, err
		}
		pos.DoMove(m)
	}
	return nodes, nil
}
