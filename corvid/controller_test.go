package corvid

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) (*Controller, *bytes.Buffer) {
	var buf bytes.Buffer
	ctrl, err := NewController(DefaultConfig(), &buf)
	require.NoError(t, err)
	return ctrl, &buf
}

// TestControllerSmokeTest exercises §8 property 10: feeding uci, then
// isready, then a position/go sequence yields the expected bestmove
// line.
func TestControllerSmokeTest(t *testing.T) {
	ctrl, buf := newTestController(t)

	require.NoError(t, ctrl.Execute("uci"))
	require.Contains(t, buf.String(), "uciok")

	require.NoError(t, ctrl.Execute("isready"))
	require.Contains(t, buf.String(), "readyok")

	require.NoError(t, ctrl.Execute("position fen 8/2k5/7R/6R1/8/4K3/8/8 w - - 0 1"))
	require.NoError(t, ctrl.Execute("go depth 4"))
	ctrl.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	require.Equal(t, "bestmove g5g7", last)
}

// TestControllerPositionMoves exercises the position command's move
// replay, including disambiguating a move's tag via the legal move
// list rather than reconstructing it blind.
func TestControllerPositionMoves(t *testing.T) {
	ctrl, _ := newTestController(t)
	require.NoError(t, ctrl.Execute("position startpos moves e2e4 e7e5 g1f3"))
	require.Equal(t, "rnbqkbnr/pppp1ppp/8/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 1 2", ctrl.pos.String())
}

// TestControllerStopEmitsBestMove exercises the "stop cancels the
// search but it must still emit a bestmove within a small bounded
// delay" requirement.
func TestControllerStopEmitsBestMove(t *testing.T) {
	ctrl, buf := newTestController(t)
	require.NoError(t, ctrl.Execute("position startpos"))
	require.NoError(t, ctrl.Execute("go infinite"))
	require.NoError(t, ctrl.Execute("stop"))
	require.Contains(t, buf.String(), "bestmove")
}

func TestParseEPD(t *testing.T) {
	c, err := ParseEPD(`8/2k5/7R/6R1/8/4K3/8/8 w - - bm g5g7; id "mate-in-2";`)
	require.NoError(t, err)
	require.Equal(t, "8/2k5/7R/6R1/8/4K3/8/8 w - -", c.FEN)
	require.Equal(t, []string{"g5g7"}, c.BestMove)
	require.Equal(t, "mate-in-2", c.ID)
}
