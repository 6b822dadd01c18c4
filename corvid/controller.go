package corvid

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/corvidchess/corvid/engine"
	"github.com/corvidchess/corvid/mcts"
	"github.com/corvidchess/corvid/nnue"
)

// ErrQuit is returned by Execute for the "quit" command; Run treats it
// as a clean exit rather than a protocol error.
var ErrQuit = errors.New("quit")

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Controller drives one engine instance against the text protocol
// described in the spec's external interfaces section. It owns the
// position, the loaded weight models, and the in-flight search task.
type Controller struct {
	out io.Writer
	cfg Config

	pos *engine.Position

	valueModel  *nnue.ValueModel
	policyModel *nnue.PolicyModel
	valueEval   *nnue.Evaluator
	policyEval  *nnue.PolicyEvaluator

	useMCTS bool
	cpuct   float32

	mu      sync.Mutex
	group   *errgroup.Group
	cancel  context.CancelFunc
	pending bool
}

// NewController builds a Controller with both weight models loaded
// (from cfg.WeightFile, or the embedded placeholder if empty) and the
// initial position set to the standard start position.
func NewController(cfg Config, out io.Writer) (*Controller, error) {
	vm := nnue.NewValueModel()
	if err := vm.LoadFile(cfg.WeightFile); err != nil {
		return nil, errors.Wrap(err, "corvid: load value weights")
	}
	pm := nnue.NewPolicyModel()
	if err := pm.LoadFile(cfg.WeightFile); err != nil {
		return nil, errors.Wrap(err, "corvid: load policy weights")
	}

	c := &Controller{
		out:         out,
		cfg:         cfg,
		valueModel:  vm,
		policyModel: pm,
		useMCTS:     cfg.Searcher == "mcts",
		cpuct:       float32(cfg.CPUCT),
	}
	if err := c.resetPosition(startFEN); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) resetPosition(fen string) error {
	pos, err := engine.PositionFromFEN(fen)
	if err != nil {
		return errors.Wrapf(err, "corvid: invalid FEN %q", fen)
	}
	c.pos = pos
	c.attachEvaluator()
	return nil
}

// attachEvaluator (re)attaches the evaluator matching the current
// searcher mode to c.pos, reinitializing its accumulators from the
// board as it goes.
func (c *Controller) attachEvaluator() {
	if c.useMCTS {
		c.policyEval = nnue.NewPolicyEvaluator(c.policyModel)
		c.pos.AttachEvaluator(c.policyEval)
	} else {
		c.valueEval = nnue.NewEvaluator(c.valueModel)
		c.pos.AttachEvaluator(c.valueEval)
	}
}

// Run reads lines from in until EOF, quit, or a read error, writing
// protocol output to c.out.
func (c *Controller) Run(in io.Reader) error {
	bio := bufio.NewScanner(in)
	bio.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for bio.Scan() {
		if err := c.Execute(bio.Text()); err != nil {
			if err == ErrQuit {
				return nil
			}
			c.infoString(err.Error())
		}
	}
	return bio.Err()
}

// Execute parses and dispatches a single protocol line.
func (c *Controller) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "isready":
		return c.cmdIsReady()
	case "stop":
		return c.cmdStop()
	case "quit":
		c.cmdStop()
		return ErrQuit
	case "uci":
		return c.cmdUCI()
	case "ucinewgame":
		return c.cmdNewGame()
	case "position":
		return c.cmdPosition(args)
	case "go":
		return c.cmdGo(args)
	case "setoption":
		return c.cmdSetOption(line)
	default:
		return errors.Errorf("unhandled command %q", cmd)
	}
}

func (c *Controller) infoString(msg string) {
	fmt.Fprintf(c.out, "info string %s\n", msg)
}

func (c *Controller) cmdUCI() error {
	fmt.Fprintln(c.out, "id name corvid")
	fmt.Fprintln(c.out, "id author corvid contributors")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "option name Hash type spin default 64 min 1 max 65536")
	fmt.Fprintln(c.out, "option name WeightFile type string default <empty>")
	fmt.Fprintln(c.out, "option name MCTS type check default false")
	fmt.Fprintln(c.out, "option name cpuct type string default 1.4")
	fmt.Fprintln(c.out, "option name Debug type check default false")
	fmt.Fprintln(c.out, "uciok")
	return nil
}

// cmdIsReady stops any running search before replying, per the spec's
// explicit departure from the teacher's UCI (which replies immediately).
func (c *Controller) cmdIsReady() error {
	c.cmdStop()
	fmt.Fprintln(c.out, "readyok")
	return nil
}

func (c *Controller) cmdNewGame() error {
	c.cmdStop()
	return c.resetPosition(startFEN)
}

func (c *Controller) cmdPosition(args []string) error {
	c.cmdStop()
	if len(args) == 0 {
		return errors.New("expected argument for 'position'")
	}

	var fen string
	i := 0
	switch args[0] {
	case "startpos":
		fen = startFEN
		i = 1
	case "fen":
		i = 1
		for i < len(args) && args[i] != "moves" {
			i++
		}
		fen = strings.Join(args[1:i], " ")
	default:
		return errors.Errorf("unknown position command: %s", args[0])
	}

	if err := c.resetPosition(fen); err != nil {
		return err
	}

	if i < len(args) {
		if args[i] != "moves" {
			return errors.Errorf("expected 'moves', got %q", args[i])
		}
		for _, token := range args[i+1:] {
			m, err := matchUCIMove(c.pos, token)
			if err != nil {
				return err
			}
			c.pos.DoMove(m)
		}
	}
	return nil
}

// matchUCIMove resolves a UCI move string against pos's legal moves so
// the returned Move carries the right tag (promotion figure, castle,
// en-passant) rather than being reconstructed blind.
func matchUCIMove(pos *engine.Position, token string) (engine.Move, error) {
	for _, m := range pos.LegalMoves() {
		if m.UCI() == token {
			return m, nil
		}
	}
	return engine.NullMove, errors.Errorf("illegal move in position command: %s", token)
}

func (c *Controller) cmdSetOption(line string) error {
	c.cmdStop()
	const prefix = "setoption name "
	rest := line
	if idx := strings.Index(line, prefix); idx >= 0 {
		rest = line[idx+len(prefix):]
	}
	name, value, hasValue := strings.Cut(rest, " value ")
	name = strings.TrimSpace(name)

	switch name {
	case "Hash":
		mb, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return errors.Wrap(err, "corvid: setoption Hash")
		}
		c.cfg.HashMB = mb
	case "WeightFile":
		path := strings.TrimSpace(value)
		vm := nnue.NewValueModel()
		if err := vm.LoadFile(path); err != nil {
			return errors.Wrap(err, "corvid: setoption WeightFile")
		}
		pm := nnue.NewPolicyModel()
		if err := pm.LoadFile(path); err != nil {
			return errors.Wrap(err, "corvid: setoption WeightFile")
		}
		c.valueModel, c.policyModel = vm, pm
		c.cfg.WeightFile = path
		c.attachEvaluator()
	case "MCTS":
		on, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return errors.Wrap(err, "corvid: setoption MCTS")
		}
		c.useMCTS = on
		c.attachEvaluator()
	case "cpuct":
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
		if err != nil {
			return errors.Wrap(err, "corvid: setoption cpuct")
		}
		c.cpuct = float32(f)
	case "Debug":
		on, _ := strconv.ParseBool(strings.TrimSpace(value))
		if on {
			logging.SetLevel(logging.DEBUG, "")
		}
	default:
		if !hasValue {
			return errors.Errorf("unhandled option %q", name)
		}
		return errors.Errorf("unhandled option %q", name)
	}
	return nil
}

// Wait blocks until any in-flight search task has emitted its
// bestmove, without cancelling it. Intended for tests and embedders
// driving the controller synchronously; a real protocol client simply
// reads stdout until it sees the bestmove line.
func (c *Controller) Wait() {
	c.mu.Lock()
	group, pending := c.group, c.pending
	c.mu.Unlock()
	if pending && group != nil {
		group.Wait()
	}
}

// cmdStop cancels any in-flight search task and waits for it to emit
// its bestmove before returning, so the controller is provably idle
// once stop/isready/quit return.
func (c *Controller) cmdStop() error {
	c.mu.Lock()
	cancel, group, pending := c.cancel, c.group, c.pending
	c.mu.Unlock()

	if !pending {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	if group != nil {
		group.Wait()
	}
	return nil
}

var goFlagArgs = map[string]bool{
	"searchmoves": true, "ponder": true, "wtime": true, "btime": true,
	"binc": true, "winc": true, "movestogo": true, "depth": true,
	"nodes": true, "mate": true, "movetime": true, "infinite": true,
}

type goParams struct {
	depth        int
	movetime     time.Duration
	wtime, btime time.Duration
	winc, binc   time.Duration
	movestogo    int
	infinite     bool
}

func parseGo(args []string) (goParams, error) {
	var p goParams
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "infinite":
			p.infinite = true
		case "searchmoves":
			for i+1 < len(args) && !goFlagArgs[args[i+1]] {
				i++
			}
		case "depth", "wtime", "btime", "winc", "binc", "movestogo", "movetime":
			i++
			if i >= len(args) {
				return p, errors.Errorf("go %s: missing value", args[i-1])
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return p, errors.Wrapf(err, "go %s", args[i-1])
			}
			switch args[i-1] {
			case "depth":
				p.depth = n
			case "wtime":
				p.wtime = time.Duration(n) * time.Millisecond
			case "btime":
				p.btime = time.Duration(n) * time.Millisecond
			case "winc":
				p.winc = time.Duration(n) * time.Millisecond
			case "binc":
				p.binc = time.Duration(n) * time.Millisecond
			case "movestogo":
				p.movestogo = n
			case "movetime":
				p.movetime = time.Duration(n) * time.Millisecond
			}
		case "nodes", "mate", "ponder":
			log.Debugf("go %s: not implemented, ignoring", args[i])
			if args[i] != "ponder" {
				i++
			}
		default:
			return p, errors.Errorf("invalid go argument %q", args[i])
		}
	}
	return p, nil
}

// timeControlSafetyFactor scales the raw per-move allotment down so the
// engine reliably returns before the clock actually expires, per §4.7.
const timeControlSafetyFactor = 0.9

// searchBudget derives a deadline and "has deadline" flag from p, the
// side to move, and the game ply, applying §4.7's movestogo policy
// ("movestogo if > 0 else max(10, 32 - ply/2)") and 0.9 safety factor
// when no fixed movetime is given.
func searchBudget(p goParams, stm engine.Color, ply int) (time.Duration, bool) {
	if p.infinite {
		return 0, false
	}
	if p.movetime > 0 {
		return p.movetime, true
	}
	remaining, inc := p.wtime, p.winc
	if stm == engine.Black {
		remaining, inc = p.btime, p.binc
	}
	if remaining <= 0 {
		return 0, false
	}
	movesToGo := p.movestogo
	if movesToGo <= 0 {
		movesToGo = 32 - ply/2
		if movesToGo < 10 {
			movesToGo = 10
		}
	}
	raw := remaining/time.Duration(movesToGo) + inc/2
	budget := time.Duration(float64(raw) * timeControlSafetyFactor)
	if budget > remaining-100*time.Millisecond {
		budget = remaining - 100*time.Millisecond
	}
	if budget < 10*time.Millisecond {
		budget = 10 * time.Millisecond
	}
	return budget, true
}

// cmdGo dispatches a non-blocking search task; the caller observes its
// completion only via stop/isready/quit or by waiting for bestmove on
// c.out.
func (c *Controller) cmdGo(args []string) error {
	c.cmdStop()
	p, err := parseGo(args)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	if budget, ok := searchBudget(p, c.pos.SideToMove(), c.pos.Ply()); ok {
		ctx, cancel = context.WithTimeout(ctx, budget)
	}
	group := new(errgroup.Group)
	c.cancel = cancel
	c.group = group
	c.pending = true
	c.mu.Unlock()

	group.Go(func() error {
		defer func() {
			c.mu.Lock()
			c.pending = false
			c.mu.Unlock()
			cancel()
		}()
		if c.useMCTS {
			c.runMCTS(ctx, p)
		} else {
			c.runAlphaBeta(ctx, p)
		}
		return nil
	})
	return nil
}

func (c *Controller) runAlphaBeta(ctx context.Context, p goParams) {
	opts := engine.Options{HashMB: c.cfg.HashMB}
	s := engine.NewSearcher(c.pos, opts)
	s.SetLogger(alphaBetaLogger{out: c.out})

	depth := p.depth
	if depth <= 0 {
		depth = 0 // "until time runs out"
	}
	res := s.Search(ctx, depth)
	c.emitBestMove(res.BestMove)
}

func (c *Controller) runMCTS(ctx context.Context, p goParams) {
	opts := mcts.Options{CPUCT: c.cpuct, Nodes: 1 << 18}
	s := mcts.NewSearcher(c.pos, c.policyEval, opts)
	s.SetLogger(mctsLogger{out: c.out})
	if deadline, ok := ctx.Deadline(); ok {
		s.SetDeadline(deadline)
	}
	res := s.Search(ctx)
	c.emitBestMove(res.BestMove)
}

func (c *Controller) emitBestMove(m engine.Move) {
	if m.IsNull() {
		fmt.Fprintln(c.out, "bestmove NONE")
		return
	}
	fmt.Fprintf(c.out, "bestmove %s\n", m.UCI())
}

// alphaBetaLogger renders engine.Stats as "info depth ..." lines.
type alphaBetaLogger struct{ out io.Writer }

func (l alphaBetaLogger) Report(s engine.Stats, elapsed time.Duration) {
	nps := nodesPerSecond(s.Nodes, elapsed)
	fmt.Fprintf(l.out, "info depth %d score cp %d time %d nodes %d nps %d pv%s\n",
		s.Depth, s.BestScore, elapsed.Milliseconds(), s.Nodes, nps, pvString(s.PV))
}

// mctsLogger renders mcts.Stats the same way, using visit count where
// alpha-beta would report node count.
type mctsLogger struct{ out io.Writer }

func (l mctsLogger) Report(s mcts.Stats, elapsed time.Duration) {
	nps := nodesPerSecond(uint64(s.Visits), elapsed)
	fmt.Fprintf(l.out, "info depth %d score cp %d time %d nodes %d nps %d pv%s\n",
		s.Depth, s.ScoreCP, elapsed.Milliseconds(), s.Visits, nps, pvString(s.PV))
}

func nodesPerSecond(nodes uint64, elapsed time.Duration) uint64 {
	micros := elapsed.Microseconds()
	if micros <= 0 {
		micros = 1
	}
	return nodes * 1_000_000 / uint64(micros)
}

func pvString(pv []engine.Move) string {
	var b strings.Builder
	for _, m := range pv {
		b.WriteByte(' ')
		b.WriteString(m.UCI())
	}
	return b.String()
}
