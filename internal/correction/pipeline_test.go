package correction

import (
	"math"
	"testing"

	"pyroland/internal/spectrum"
)

func testSpectrum(t *testing.T) *spectrum.Spectrum {
	t.Helper()
	wl := []float64{450, 550, 650, 750, 850}
	counts := []float64{1000, 2000, 3000, 2500, 1500}
	s, err := spectrum.New(wl, counts, spectrum.Metadata{SourceFile: "test.sif"})
	if err != nil {
		t.Fatalf("spectrum.New: %v", err)
	}
	return s
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	reg, err := NewRegistry(testFS(), DefaultParams())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewPipeline(reg)
}

func TestApplyEmptySetIsIdentity(t *testing.T) {
	p := newTestPipeline(t)
	s := testSpectrum(t)
	out, err := p.Apply(s, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out != s {
		t.Fatalf("empty set should return the input spectrum")
	}
}

func TestApplyIsPureAndIdempotent(t *testing.T) {
	p := newTestPipeline(t)
	s := testSpectrum(t)
	set := []Kind{GratingEfficiency, MirrorReflectance}

	a, err := p.Apply(s, set)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	b, err := p.Apply(s, set)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := range a.Counts {
		if a.Counts[i] != b.Counts[i] {
			t.Fatalf("sample %d differs between identical applies: %g vs %g", i, a.Counts[i], b.Counts[i])
		}
	}
	// input untouched
	if s.Counts[0] != 1000 {
		t.Fatalf("input spectrum mutated: %g", s.Counts[0])
	}
}

func TestApplyOrderIndependent(t *testing.T) {
	p := newTestPipeline(t)
	s := testSpectrum(t)

	a, err := p.Apply(s, []Kind{GratingEfficiency, QuantumEfficiency})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	b, err := p.Apply(s, []Kind{QuantumEfficiency, GratingEfficiency})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := range a.Counts {
		if a.Counts[i] != b.Counts[i] {
			t.Fatalf("sample %d depends on enable order: %g vs %g", i, a.Counts[i], b.Counts[i])
		}
	}
}

func TestApplyDuplicatesAppliedOnce(t *testing.T) {
	p := newTestPipeline(t)
	s := testSpectrum(t)

	once, err := p.Apply(s, []Kind{GratingEfficiency})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	dup, err := p.Apply(s, []Kind{GratingEfficiency, GratingEfficiency})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := range once.Counts {
		if once.Counts[i] != dup.Counts[i] {
			t.Fatalf("duplicate kind applied twice at sample %d", i)
		}
	}
}

func TestApplyValues(t *testing.T) {
	p := newTestPipeline(t)
	s := testSpectrum(t)

	// testFS grating table is a flat 50% -> factor 2 everywhere.
	out, err := p.Apply(s, []Kind{GratingEfficiency})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := range s.Counts {
		if math.Abs(out.Counts[i]-2*s.Counts[i]) > 1e-9 {
			t.Fatalf("sample %d: got %g want %g", i, out.Counts[i], 2*s.Counts[i])
		}
	}
}

func TestApplyEnabledTracksRegistry(t *testing.T) {
	reg, err := NewRegistry(testFS(), DefaultParams())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	p := NewPipeline(reg)
	s := testSpectrum(t)

	for _, k := range Kinds() {
		if err := reg.SetEnabled(k, false); err != nil {
			t.Fatalf("SetEnabled: %v", err)
		}
	}
	out, err := p.ApplyEnabled(s)
	if err != nil {
		t.Fatalf("ApplyEnabled: %v", err)
	}
	if out != s {
		t.Fatalf("all corrections disabled should be identity")
	}

	if err := reg.SetEnabled(QuantumEfficiency, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	out, err = p.ApplyEnabled(s)
	if err != nil {
		t.Fatalf("ApplyEnabled: %v", err)
	}
	// testFS QE table is a flat 80% -> factor 1.25.
	if math.Abs(out.Counts[0]-1250) > 1e-9 {
		t.Fatalf("QE-only correction: got %g want 1250", out.Counts[0])
	}
}
