package corvid

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/engine"
	"github.com/corvidchess/corvid/nnue"
)

// EPDCase is one parsed Extended Position Description line: a FEN plus
// a best-move or avoid-move operator.
type EPDCase struct {
	FEN       string
	ID        string
	BestMove  []string // "bm" operator: search must pick one of these
	AvoidMove []string // "am" operator: search must not pick any of these
}

// ParseEPD parses one EPD line of the form
// "<FEN fields> bm <move list>; id \"<name>\";" (operators and order
// are flexible; only bm/am/id are recognized, matching zurichess's
// notation.EPD shape without pulling in its yacc-generated lexer).
func ParseEPD(line string) (*EPDCase, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, errors.Errorf("epd: line too short: %q", line)
	}
	fen := strings.Join(fields[:4], " ")
	rest := strings.TrimSpace(strings.Join(fields[4:], " "))

	c := &EPDCase{FEN: fen}
	for _, op := range strings.Split(rest, ";") {
		op = strings.TrimSpace(op)
		if op == "" {
			continue
		}
		name, vals, ok := strings.Cut(op, " ")
		if !ok {
			continue
		}
		switch name {
		case "bm":
			c.BestMove = strings.Fields(vals)
		case "am":
			c.AvoidMove = strings.Fields(vals)
		case "id":
			c.ID = strings.Trim(strings.TrimSpace(vals), `"`)
		}
	}
	return c, nil
}

// EPDResult is the outcome of running one EPDCase.
type EPDResult struct {
	Case   EPDCase
	Played engine.Move
	Pass   bool
}

// RunEPDSuite runs every case in r (one EPD line per non-blank,
// non-comment line) to a fixed depth and reports pass/fail against its
// bm/am operator. Used as a regression gate, not a tuning tool.
func RunEPDSuite(r io.Reader, model *nnue.ValueModel, depth int) ([]EPDResult, error) {
	var results []EPDResult
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, err := ParseEPD(line)
		if err != nil {
			return results, err
		}
		res, err := runEPDCase(*c, model, depth)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	if err := scanner.Err(); err != nil {
		return results, errors.Wrap(err, "epd: scan")
	}
	return results, nil
}

func runEPDCase(c EPDCase, model *nnue.ValueModel, depth int) (EPDResult, error) {
	pos, err := engine.PositionFromFEN(c.FEN)
	if err != nil {
		return EPDResult{}, errors.Wrapf(err, "epd: case %s", c.ID)
	}
	pos.AttachEvaluator(nnue.NewEvaluator(model))

	s := engine.NewSearcher(pos, engine.Options{HashMB: 16})
	res := s.Search(context.Background(), depth)

	played := res.BestMove
	pass := len(c.BestMove) == 0
	for _, want := range c.BestMove {
		if played.UCI() == want {
			pass = true
		}
	}
	for _, avoid := range c.AvoidMove {
		if played.UCI() == avoid {
			pass = false
		}
	}
	return EPDResult{Case: c, Played: played, Pass: pass}, nil
}

// SummarizeEPD writes a one-line-per-case report followed by a totals
// line, in the format a CI log or terminal expects.
func SummarizeEPD(w io.Writer, results []EPDResult) {
	passed := 0
	for _, r := range results {
		status := "FAIL"
		if r.Pass {
			status = "PASS"
			passed++
		}
		fmt.Fprintf(w, "%s %-20s played=%s bm=%v am=%v\n", status, r.Case.ID, r.Played.UCI(), r.Case.BestMove, r.Case.AvoidMove)
	}
	fmt.Fprintf(w, "%d/%d passed\n", passed, len(results))
}
