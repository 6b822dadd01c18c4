package engine

import "testing"

func TestSEEFreeCapture(t *testing.T) {
	p, err := PositionFromFEN("4k3/8/8/4q3/8/8/4R3/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := NewMove(SquareFromStringMust(t, "e2"), SquareFromStringMust(t, "e5"), TagNormal)
	if got := p.SEE(m); got != FigureValue[Queen] {
		t.Fatalf("SEE(RxQ undefended) = %d, want %d", got, FigureValue[Queen])
	}
}

func TestSEELosingCapture(t *testing.T) {
	// White rook takes a pawn defended by a black rook behind it: losing the
	// exchange should be reflected as a negative SEE.
	p, err := PositionFromFEN("4k3/8/8/4r3/8/4p3/4R3/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := NewMove(SquareFromStringMust(t, "e2"), SquareFromStringMust(t, "e3"), TagNormal)
	got := p.SEE(m)
	if got >= 0 {
		t.Fatalf("SEE(RxP defended by R) = %d, want negative", got)
	}
}

func TestSEEUndefendedRook(t *testing.T) {
	// Rook takes a rook that nothing defends (the black king on e8 is
	// two squares away): SEE is the full rook value.
	p, err := PositionFromFEN("4k3/8/4r3/8/8/8/4R3/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	m := NewMove(SquareFromStringMust(t, "e2"), SquareFromStringMust(t, "e6"), TagNormal)
	if got := p.SEE(m); got != FigureValue[Rook] {
		t.Fatalf("SEE(RxR undefended) = %d, want %d", got, FigureValue[Rook])
	}
}

func SquareFromStringMust(t *testing.T, s string) Square {
	t.Helper()
	sq, err := SquareFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return sq
}
