// Package nnue implements the HalfKP-style neural evaluator shared by
// the alpha-beta and MCTS searchers: a sparse king-relative input layer
// with incrementally-updated accumulators feeding a small dense stack.
package nnue

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/engine"
)

// InputWidth is the HalfKP feature count: 10 piece-color-perspectives
// times 64 piece squares times 64 own-king squares.
const InputWidth = 10 * 64 * 64

// inputLayer is the sparse HalfKP embedding: one row of width floats per
// feature index, plus a bias vector added to every accumulator.
type inputLayer struct {
	width  int
	bias   []float32
	weight []float32 // InputWidth*width, row-major over feature index
}

func newInputLayer(width int) *inputLayer {
	return &inputLayer{
		width:  width,
		bias:   make([]float32, width),
		weight: make([]float32, InputWidth*width),
	}
}

func (l *inputLayer) load(r io.Reader) error {
	if err := readFloats(r, l.weight); err != nil {
		return errors.Wrap(err, "nnue: input layer weight")
	}
	if err := readFloats(r, l.bias); err != nil {
		return errors.Wrap(err, "nnue: input layer bias")
	}
	return nil
}

// row returns the weight row for feature index idx.
func (l *inputLayer) row(idx int) []float32 {
	return l.weight[idx*l.width : idx*l.width+l.width]
}

// linear is a dense out x in layer with row-major weight (one row of
// length in per output).
type linear struct {
	in, out int
	weight  []float32
	bias    []float32
}

func newLinear(in, out int) *linear {
	return &linear{in: in, out: out, weight: make([]float32, out*in), bias: make([]float32, out)}
}

func (l *linear) load(r io.Reader) error {
	if err := readFloats(r, l.weight); err != nil {
		return errors.Wrap(err, "nnue: linear weight")
	}
	if err := readFloats(r, l.bias); err != nil {
		return errors.Wrap(err, "nnue: linear bias")
	}
	return nil
}

// forward computes out = weight*in + bias. out must have length l.out.
func (l *linear) forward(in, out []float32) {
	for o := 0; o < l.out; o++ {
		out[o] = l.bias[o] + dot(l.weight[o*l.in:o*l.in+l.in], in)
	}
}

// forwardOne computes a single output neuron's activation, for heads
// (like the policy head) too wide to evaluate in full every call.
func (l *linear) forwardOne(idx int, in []float32) float32 {
	return l.bias[idx] + dot(l.weight[idx*l.in:idx*l.in+l.in], in)
}

func readFloats(r io.Reader, dst []float32) error {
	buf := make([]byte, 4*len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.Wrap(err, "short read")
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return nil
}

// checkExhausted rejects a weight stream that has trailing bytes past
// the last tensor the loader expects.
func checkExhausted(r io.Reader) error {
	var b [1]byte
	if _, err := r.Read(b[:]); err != io.EOF {
		return errors.New("nnue: trailing bytes after last layer")
	}
	return nil
}

// dot is the hot-path dot product; unrolled by 8 as the SIMD-equivalent
// fast path (float add/FMA), falling back to a scalar remainder loop.
func dot(a, b []float32) float32 {
	n := len(a)
	var s0, s1, s2, s3, s4, s5, s6, s7 float32
	i := 0
	for ; i+8 <= n; i += 8 {
		s0 += a[i+0] * b[i+0]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
		s4 += a[i+4] * b[i+4]
		s5 += a[i+5] * b[i+5]
		s6 += a[i+6] * b[i+6]
		s7 += a[i+7] * b[i+7]
	}
	sum := s0 + s1 + s2 + s3 + s4 + s5 + s6 + s7
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// addRow adds (sign=+1) or subtracts (sign=-1) weight row `row` into acc,
// unrolled by 8 the same way as dot.
func addRow(acc []float32, row []float32, sign float32) {
	n := len(acc)
	i := 0
	for ; i+8 <= n; i += 8 {
		acc[i+0] += sign * row[i+0]
		acc[i+1] += sign * row[i+1]
		acc[i+2] += sign * row[i+2]
		acc[i+3] += sign * row[i+3]
		acc[i+4] += sign * row[i+4]
		acc[i+5] += sign * row[i+5]
		acc[i+6] += sign * row[i+6]
		acc[i+7] += sign * row[i+7]
	}
	for ; i < n; i++ {
		acc[i] += sign * row[i]
	}
}

func relu(in, out []float32) {
	for i, v := range in {
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
}

// figureIndex maps a non-king figure to its 0..4 HalfKP piece-type slot.
func figureIndex(f engine.Figure) int { return int(f) - 1 }

// flipRank mirrors a square vertically, used to express the black
// perspective's own-king-relative features.
func flipRank(sq engine.Square) engine.Square { return sq ^ 56 }

// featureIndex computes the HalfKP row for a piece of color pieceColor
// and figure f on sq, as seen from perspective (whose king sits on
// ownKingSq in perspective-relative coordinates).
func featureIndex(perspective, pieceColor engine.Color, f engine.Figure, sq, ownKingSq engine.Square) int {
	typ := figureIndex(f)
	if pieceColor != perspective {
		typ += 5
	}
	s := sq
	if perspective == engine.Black {
		s = flipRank(sq)
	}
	return (typ*64+int(s))*64 + int(ownKingSq)
}
