package chain

import "testing"

func TestRoundEndConcreteVector(t *testing.T) {
	const dkgReady = 100
	want := map[int]uint64{3: 100, 2: 75, 1: 50, 0: 25}
	for r, expected := range want {
		if got := RoundEnd(dkgReady, r); got != expected {
			t.Errorf("RoundEnd(100, %d) = %d, want %d", r, got, expected)
		}
	}
}

func TestRoundEndAlwaysReachesDKGReady(t *testing.T) {
	for _, dkgReady := range []uint64{1, 2, 4, 5, 10, 37, 1000, 1_000_000} {
		if got := RoundEnd(dkgReady, 3); got != dkgReady {
			t.Errorf("RoundEnd(%d, 3) = %d, want %d", dkgReady, got, dkgReady)
		}
	}
}

func TestRoundEndMonotonicForLargeReady(t *testing.T) {
	const dkgReady = 100
	var ends [4]uint64
	for r := 0; r <= 3; r++ {
		ends[r] = RoundEnd(dkgReady, r)
	}
	for r := 1; r <= 3; r++ {
		if ends[r] <= ends[r-1] {
			t.Fatalf("round_end not strictly increasing at r=%d: %v", r, ends)
		}
	}
	if ends[3] != dkgReady {
		t.Fatalf("round_end(3) = %d, want %d", ends[3], dkgReady)
	}
}

func TestRoundOf(t *testing.T) {
	const dkgReady = 100
	cases := []struct {
		bn       uint64
		wantR    int
		wantOK   bool
	}{
		{0, 0, false},
		{1, 0, true},
		{25, 0, true},
		{26, 1, true},
		{50, 1, true},
		{51, 2, true},
		{75, 2, true},
		{76, 3, true},
		{100, 3, true},
		{101, 0, false},
	}
	for _, c := range cases {
		gotR, gotOK := RoundOf(dkgReady, c.bn)
		if gotOK != c.wantOK || (gotOK && gotR != c.wantR) {
			t.Errorf("RoundOf(100, %d) = (%d, %v), want (%d, %v)", c.bn, gotR, gotOK, c.wantR, c.wantOK)
		}
	}
}

func TestIsRoundEnd(t *testing.T) {
	const dkgReady = 100
	if !IsRoundEnd(dkgReady, 0, 25) {
		t.Errorf("expected block 25 to be round_end(0)")
	}
	if IsRoundEnd(dkgReady, 0, 24) {
		t.Errorf("block 24 should not be round_end(0)")
	}
}
