package fit

import (
	"errors"
	"math"
	"testing"
)

func TestPolyFitRecoversLine(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 3.5*xi - 2.0
	}
	poly, err := PolyFit(x, y, 1)
	if err != nil {
		t.Fatalf("PolyFit: %v", err)
	}
	if math.Abs(poly[0]+2.0) > 1e-9 || math.Abs(poly[1]-3.5) > 1e-9 {
		t.Fatalf("unexpected coefficients: %v", poly)
	}
	if got := poly.Eval(10); math.Abs(got-33.0) > 1e-9 {
		t.Fatalf("Eval(10) = %v, want 33", got)
	}
}

func TestPolyFitRecoversQuadratic(t *testing.T) {
	x := []float64{-2, -1, 0, 1, 2, 3}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 1.0 - 2.0*xi + 0.5*xi*xi
	}
	poly, err := PolyFit(x, y, 2)
	if err != nil {
		t.Fatalf("PolyFit: %v", err)
	}
	want := []float64{1.0, -2.0, 0.5}
	for i, c := range want {
		if math.Abs(poly[i]-c) > 1e-9 {
			t.Fatalf("coefficient %d = %v, want %v", i, poly[i], c)
		}
	}
}

func TestPolyFitTooFewPoints(t *testing.T) {
	if _, err := PolyFit([]float64{1}, []float64{2}, 2); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected ErrTooFewPoints, got %v", err)
	}
}

func TestPolyFitMismatchedLengths(t *testing.T) {
	if _, err := PolyFit([]float64{1, 2}, []float64{1}, 1); err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
}

func TestFitResonanceRecoversParameters(t *testing.T) {
	truth := Resonance{F0: 2.0e9, QR: 1.2e4, QC: 2.5e4}
	var freqs, mags []float64
	// Sample tightly around the dip, as a solver sweep would.
	span := truth.F0 / truth.QR * 10
	for i := 0; i < 400; i++ {
		f := truth.F0 - span/2 + span*float64(i)/399
		freqs = append(freqs, f)
		mags = append(mags, truth.S21Mag(f))
	}
	init := Resonance{F0: 2.0005e9, QR: 1e4, QC: 2e4}
	got, err := FitResonance(freqs, mags, init)
	if err != nil {
		t.Fatalf("FitResonance: %v", err)
	}
	if math.Abs(got.F0-truth.F0)/truth.F0 > 1e-4 {
		t.Fatalf("F0 = %v, want %v", got.F0, truth.F0)
	}
	if math.Abs(got.QR-truth.QR)/truth.QR > 1e-2 {
		t.Fatalf("QR = %v, want %v", got.QR, truth.QR)
	}
	if math.Abs(got.QC-truth.QC)/truth.QC > 1e-2 {
		t.Fatalf("QC = %v, want %v", got.QC, truth.QC)
	}
}

func TestResonanceQI(t *testing.T) {
	r := Resonance{F0: 1e9, QR: 1e4, QC: 2e4}
	// 1/(1/1e4 - 1/2e4) = 2e4
	if math.Abs(r.QI()-2e4) > 1e-6 {
		t.Fatalf("QI = %v, want 2e4", r.QI())
	}
}

func TestFitResonanceValidatesInput(t *testing.T) {
	if _, err := FitResonance([]float64{1, 2}, []float64{1, 2}, Resonance{F0: 1, QR: 1, QC: 1}); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("expected ErrTooFewPoints, got %v", err)
	}
	if _, err := FitResonance([]float64{1, 2, 3}, []float64{1, 2, 3}, Resonance{}); err == nil {
		t.Fatal("expected error for non-positive initial guess")
	}
}
