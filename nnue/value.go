package nnue

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/engine"
)

// Dense stack widths for the value-only network used by the alpha-beta
// searcher: a 128-wide per-perspective accumulator feeding 32/32/1.
const (
	valueAccWidth = 128
	valueHidden2  = 32
	valueHidden3  = 32
)

//go:embed weights/value.bin
var embeddedValueWeights []byte

// EmbeddedWeightFile is the setoption/CLI sentinel value selecting the
// binary's built-in weights instead of an on-disk path.
const EmbeddedWeightFile = "<embedded>"

// ValueModel holds the value-only network's weights.
type ValueModel struct {
	input *inputLayer
	l2    *linear
	l3    *linear
	l4    *linear
}

// NewValueModel allocates a value-only model with zeroed weights; call
// Load or LoadEmbedded before attaching an Evaluator built from it.
func NewValueModel() *ValueModel {
	return &ValueModel{
		input: newInputLayer(valueAccWidth),
		l2:    newLinear(2*valueAccWidth, valueHidden2),
		l3:    newLinear(valueHidden2, valueHidden3),
		l4:    newLinear(valueHidden3, 1),
	}
}

// Load reads weights in declared order: input layer (weight then bias),
// then each dense layer (weight then bias). Trailing bytes are rejected.
func (m *ValueModel) Load(r io.Reader) error {
	if err := m.input.load(r); err != nil {
		return err
	}
	if err := m.l2.load(r); err != nil {
		return err
	}
	if err := m.l3.load(r); err != nil {
		return err
	}
	if err := m.l4.load(r); err != nil {
		return err
	}
	return checkExhausted(r)
}

// LoadEmbedded loads the weight blob built into the binary.
func (m *ValueModel) LoadEmbedded() error {
	return errors.Wrap(m.Load(bytes.NewReader(embeddedValueWeights)), "nnue: embedded value weights")
}

// LoadFile loads weights from an on-disk path, or the embedded blob
// when path is EmbeddedWeightFile.
func (m *ValueModel) LoadFile(path string) error {
	if path == "" || path == EmbeddedWeightFile {
		return m.LoadEmbedded()
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "nnue: open weight file %s", path)
	}
	defer f.Close()
	return errors.Wrapf(m.Load(f), "nnue: load weight file %s", path)
}

// Evaluator is the HalfKP accumulator pair plus dense stack attached to
// one Position via engine.Position.AttachEvaluator. It never holds a
// reference back to the Position (see SPEC_FULL.md, cyclic ownership).
type Evaluator struct {
	model *ValueModel
	acc   [2][valueAccWidth]float32
	kings [2]engine.Square

	tmp2 [2 * valueAccWidth]float32
	tmp3 [valueHidden2]float32
	tmp4 [valueHidden3]float32
}

// NewEvaluator builds an Evaluator over model, zero-initialized until
// Reinit is called (AttachEvaluator does this for the caller).
func NewEvaluator(model *ValueModel) *Evaluator {
	return &Evaluator{model: model}
}

var _ engine.Evaluator = (*Evaluator)(nil)

func (e *Evaluator) update(c engine.Color, f engine.Figure, sq engine.Square, sign float32) {
	if f == engine.King {
		return
	}
	idx0 := featureIndex(engine.White, c, f, sq, e.kings[0])
	idx1 := featureIndex(engine.Black, c, f, sq, e.kings[1])
	addRow(e.acc[0][:], e.model.input.row(idx0), sign)
	addRow(e.acc[1][:], e.model.input.row(idx1), sign)
}

// AddPiece incorporates a piece added to the board into both accumulators.
func (e *Evaluator) AddPiece(c engine.Color, f engine.Figure, sq engine.Square) {
	e.update(c, f, sq, 1)
}

// RemovePiece removes a piece's contribution from both accumulators.
func (e *Evaluator) RemovePiece(c engine.Color, f engine.Figure, sq engine.Square) {
	e.update(c, f, sq, -1)
}

// Reinit rebuilds both accumulators from scratch by walking the board,
// re-keying on the (possibly just-moved) king squares. Called on
// AttachEvaluator and on every king move.
func (e *Evaluator) Reinit(p *engine.Position) {
	copy(e.acc[0][:], e.model.input.bias)
	copy(e.acc[1][:], e.model.input.bias)
	e.kings[0] = p.KingSquare(engine.White)
	e.kings[1] = flipRank(p.KingSquare(engine.Black))

	for c := engine.White; c <= engine.Black; c++ {
		for f := engine.Pawn; f <= engine.Queen; f++ {
			bb := p.ByPiece(c, f)
			for bb != 0 {
				sq := bb.Pop()
				e.update(c, f, sq, 1)
			}
		}
	}
}

// Evaluate returns the network's white-perspective centipawn score,
// scaled x100 and clamped to [-10000, 10000]. Position.StaticEval
// applies the side-to-move sign flip; this method never does.
func (e *Evaluator) Evaluate() int32 {
	relu(e.acc[0][:], e.tmp2[:valueAccWidth])
	relu(e.acc[1][:], e.tmp2[valueAccWidth:])
	e.model.l2.forward(e.tmp2[:], e.tmp3[:])
	relu(e.tmp3[:], e.tmp3[:])
	e.model.l3.forward(e.tmp3[:], e.tmp4[:])
	relu(e.tmp4[:], e.tmp4[:])
	var out [1]float32
	e.model.l4.forward(e.tmp4[:], out[:])

	score := int32(out[0]*100 + sign32(out[0])*0.5) // round half away from zero
	const maxScore = 10000
	if score > maxScore {
		score = maxScore
	}
	if score < -maxScore {
		score = -maxScore
	}
	return score
}

func sign32(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}
