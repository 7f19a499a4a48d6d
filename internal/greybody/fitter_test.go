package greybody

import (
	"errors"
	"math"
	"testing"
)

// axis returns a wavelength grid in nm.
func axis(start, step float64, n int) []float64 {
	wl := make([]float64, n)
	for i := range wl {
		wl[i] = start + float64(i)*step
	}
	return wl
}

func TestPlanckShape(t *testing.T) {
	// At 2000 K Wien's law puts the radiance peak near 1449 nm, so over
	// the visible range the curve must increase with wavelength.
	prev := 0.0
	for _, w := range axis(400, 50, 11) {
		v := Planck(w, 2000, 1e-11)
		if v <= prev {
			t.Fatalf("Planck not increasing at %g nm: %g <= %g", w, v, prev)
		}
		prev = v
	}
	if v := Planck(500, 1, 1e-11); v != 0 {
		t.Fatalf("expected underflow to zero for tiny temperature, got %g", v)
	}
}

func TestPlanckDerivatives(t *testing.T) {
	const w, temperature, scale = 650.0, 2200.0, 2e-11
	v, dT, dS := planckDerivs(w, temperature, scale)
	if ref := Planck(w, temperature, scale); math.Abs(v-ref) > 1e-12*math.Abs(ref) {
		t.Fatalf("value mismatch with Planck: %g vs %g", v, ref)
	}

	const hT = 1e-4
	numT := (Planck(w, temperature+hT, scale) - Planck(w, temperature-hT, scale)) / (2 * hT)
	if math.Abs(dT-numT) > 1e-6*math.Abs(numT) {
		t.Fatalf("dT: analytic %g vs numeric %g", dT, numT)
	}

	const hS = 1e-16
	numS := (Planck(w, temperature, scale+hS) - Planck(w, temperature, scale-hS)) / (2 * hS)
	if math.Abs(dS-numS) > 1e-6*math.Abs(numS) {
		t.Fatalf("dS: analytic %g vs numeric %g", dS, numS)
	}
}

func TestFitRecoversSyntheticTemperature(t *testing.T) {
	wl := axis(400, 2, 251) // 400-900 nm
	const trueT, trueS = 2300.0, 3e-11
	counts := Curve(wl, trueT, trueS)

	res, err := NewFitter(DefaultParams()).Fit(wl, counts, nil)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(res.Temperature-trueT) > 1 {
		t.Fatalf("temperature: got %.3f want %.0f±1", res.Temperature, trueT)
	}
	if math.Abs(res.Scale-trueS)/trueS > 1e-3 {
		t.Fatalf("scale: got %g want %g", res.Scale, trueS)
	}
	if res.RSquared < 0.999999 {
		t.Fatalf("R² on noiseless data: got %g", res.RSquared)
	}
	if res.Points != len(wl) {
		t.Fatalf("points: got %d want %d", res.Points, len(wl))
	}
	if len(res.Curve) != len(wl) {
		t.Fatalf("curve length: got %d want %d", len(res.Curve), len(wl))
	}
}

func TestFitFromExactStart(t *testing.T) {
	p := DefaultParams()
	wl := axis(450, 5, 101)
	counts := Curve(wl, p.InitialTemperature, p.InitialScale)

	res, err := NewFitter(p).Fit(wl, counts, nil)
	if err != nil {
		t.Fatalf("Fit from exact start: %v", err)
	}
	if math.Abs(res.Temperature-p.InitialTemperature) > 1e-6 {
		t.Fatalf("temperature drifted: %g", res.Temperature)
	}
}

func TestFitRespectsMask(t *testing.T) {
	wl := axis(400, 2, 251)
	const trueT, trueS = 2100.0, 2e-11
	counts := Curve(wl, trueT, trueS)

	// Corrupt a band and mask it out; the fit must still recover T.
	include := make([]bool, len(wl))
	for i, w := range wl {
		if w >= 580 && w <= 620 {
			counts[i] *= 25 // simulated emission line
		} else {
			include[i] = true
		}
	}

	res, err := NewFitter(DefaultParams()).Fit(wl, counts, include)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(res.Temperature-trueT) > 1 {
		t.Fatalf("masked fit temperature: got %.3f want %.0f±1", res.Temperature, trueT)
	}
	// Curve still spans the full axis, masked band included.
	if len(res.Curve) != len(wl) {
		t.Fatalf("curve length: got %d want %d", len(res.Curve), len(wl))
	}
}

func TestFitInsufficientData(t *testing.T) {
	wl := axis(400, 2, 100)
	counts := Curve(wl, 2000, 1e-11)
	include := make([]bool, len(wl))
	include[10] = true
	include[50] = true // only 2 points survive

	_, err := NewFitter(DefaultParams()).Fit(wl, counts, include)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestFitDivergesOnIterationBudget(t *testing.T) {
	wl := axis(400, 2, 251)
	counts := Curve(wl, 3200, 8e-11) // far from the fixed start

	p := DefaultParams()
	p.MaxIterations = 1
	_, err := NewFitter(p).Fit(wl, counts, nil)
	if !errors.Is(err, ErrDiverged) {
		t.Fatalf("expected ErrDiverged, got %v", err)
	}
}

func TestFitInputValidation(t *testing.T) {
	if _, err := NewFitter(DefaultParams()).Fit([]float64{1, 2}, []float64{1}, nil); err == nil {
		t.Fatalf("expected error for length mismatch")
	}
	if _, err := NewFitter(DefaultParams()).Fit([]float64{1, 2}, []float64{1, 2}, []bool{true}); err == nil {
		t.Fatalf("expected error for mask length mismatch")
	}
}
