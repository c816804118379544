package scalar

import (
	"testing"

	"go.dedis.ch/kyber/v3"
)

func TestEvalMatchesDirectComputation(t *testing.T) {
	// p(x) = 5 + 3x
	a0 := Suite.G1().Scalar().SetInt64(5)
	a1 := Suite.G1().Scalar().SetInt64(3)
	x := FromUint64(2)

	got := Eval([]kyber.Scalar{a0, a1}, x)
	want := Suite.G1().Scalar().SetInt64(11)

	if !got.Equal(want) {
		t.Fatalf("Eval(5+3x, 2) = %v, want %v", got, want)
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	s := Random()
	raw, err := ToBytes(s)
	if err != nil {
		t.Fatalf("ToBytes failed: %v", err)
	}
	back, err := FromBytes(raw)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	if !s.Equal(back) {
		t.Fatalf("round trip mismatch: got %v, want %v", back, s)
	}
}

func TestRandomIsNotDeterministic(t *testing.T) {
	a := Random()
	b := Random()
	if a.Equal(b) {
		t.Errorf("expected two independent draws to differ")
	}
}

func TestRandomPolyLength(t *testing.T) {
	coeffs := RandomPoly(5)
	if len(coeffs) != 5 {
		t.Fatalf("expected 5 coefficients, got %d", len(coeffs))
	}
}
