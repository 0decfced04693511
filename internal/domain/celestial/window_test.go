package celestial

import "testing"

func TestConeWindow_Simple(t *testing.T) {
	w := ConeWindow(10, 0, 3600)
	if len(w.RARanges) != 1 {
		t.Fatalf("want 1 range, got %v", w.RARanges)
	}
	if !almost(w.RARanges[0].Min, 9, 1e-5) || !almost(w.RARanges[0].Max, 11, 1e-5) {
		t.Errorf("unexpected range %+v", w.RARanges[0])
	}
	if !almost(w.DecMin, -1, 1e-5) || !almost(w.DecMax, 1, 1e-5) {
		t.Errorf("unexpected dec band [%g, %g]", w.DecMin, w.DecMax)
	}
}

func TestConeWindow_Seam(t *testing.T) {
	w := ConeWindow(0, 0, 3600)
	if len(w.RARanges) != 2 {
		t.Fatalf("want split window, got %v", w.RARanges)
	}
	if !w.Contains(359.99, 0) || !w.Contains(0.01, 0) {
		t.Error("window must contain both sides of the seam")
	}
	if w.Contains(180, 0) {
		t.Error("window must not contain the far side")
	}

	w = ConeWindow(359.9, 10, 3600)
	if !w.Contains(0.5, 10) || !w.Contains(359.5, 10) {
		t.Errorf("upper overflow not wrapped: %v", w.RARanges)
	}
}

func TestConeWindow_Pole(t *testing.T) {
	w := ConeWindow(0, 90, 3600)
	if !w.FullRA() {
		t.Fatalf("pole cone must cover all RA, got %v", w.RARanges)
	}
	for _, ra := range []float64{0, 90, 180, 270, 359.9} {
		if !w.Contains(ra, 89.5) {
			t.Errorf("missing ra=%g at dec 89.5", ra)
		}
	}
	if w.Contains(0, 88.9) {
		t.Error("band too wide")
	}
}

func TestConeWindow_HighDec(t *testing.T) {
	// At dec 88 a 1° cone spans ~29° of RA.
	w := ConeWindow(100, 88, 3600)
	if w.FullRA() {
		t.Fatal("should not be full RA")
	}
	if !w.Contains(100+28, 88) {
		t.Errorf("missing wide-RA candidate, ranges %v", w.RARanges)
	}
}

func TestBoxWindow_Wrap(t *testing.T) {
	w := BoxWindow(350, 10, -5, 5)
	if !w.Contains(355, 0) || !w.Contains(5, 0) {
		t.Error("wrapped box must include both sides")
	}
	if w.Contains(180, 0) {
		t.Error("wrapped box must exclude the middle")
	}

	w = BoxWindow(10, 20, -5, 5)
	if w.Contains(355, 0) || !w.Contains(15, 0) {
		t.Error("plain box membership wrong")
	}
}
