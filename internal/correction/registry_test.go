package correction

import (
	"errors"
	"math"
	"testing"
	"testing/fstest"
)

// testFS returns a minimal but complete set of calibration tables with
// easily checked values.
func testFS() fstest.MapFS {
	flat := func(pct string) *fstest.MapFile {
		return &fstest.MapFile{Data: []byte("wl,val\n400," + pct + "\n1000," + pct + "\n")}
	}
	fsys := fstest.MapFS{}
	fsys[GratingEfficiency.DataFile()] = flat("50")
	fsys[QuantumEfficiency.DataFile()] = flat("80")
	fsys[LensTransmission.DataFile()] = flat("90")
	fsys[MirrorReflectance.DataFile()] = flat("95")
	fsys[FiberAttenuation.DataFile()] = &fstest.MapFile{
		Data: []byte("wl,dbkm,dbm\n400,10,0.010\n1000,10,0.010\n"),
	}
	return fsys
}

func TestDefaultRegistryLoads(t *testing.T) {
	reg, err := Default(DefaultParams())
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	for _, k := range Kinds() {
		if !reg.Enabled(k) {
			t.Fatalf("%s should start enabled", k.Name())
		}
		min, max := reg.Curve(k).Domain()
		if min >= max {
			t.Fatalf("%s: degenerate domain [%g,%g]", k.Name(), min, max)
		}
		f, err := reg.FactorAt(k, 650)
		if err != nil {
			t.Fatalf("%s FactorAt: %v", k.Name(), err)
		}
		if f <= 1 {
			// every real instrument response is below unity, so every
			// correction boosts counts
			t.Fatalf("%s: factor %g not > 1", k.Name(), f)
		}
	}
}

func TestMissingTableIsLoadError(t *testing.T) {
	fsys := testFS()
	delete(fsys, "camera_quantum_efficiency.csv")
	_, err := NewRegistry(fsys, DefaultParams())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if le.Kind != QuantumEfficiency {
		t.Fatalf("LoadError kind: got %s", le.Kind.Name())
	}
}

func TestMalformedTableIsLoadError(t *testing.T) {
	fsys := testFS()
	fsys["QTH_lamp_lens.csv"] = &fstest.MapFile{Data: []byte("wl,val\n500,not-a-number-at-all\n")}
	var le *LoadError
	if _, err := NewRegistry(fsys, DefaultParams()); !errors.As(err, &le) {
		t.Fatalf("expected LoadError for malformed table, got %v", err)
	}
}

func TestFactorSemantics(t *testing.T) {
	reg, err := NewRegistry(testFS(), Params{FiberLengthM: 2.0, MirrorCount: 3})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	// 50% grating efficiency -> factor 2
	f, err := reg.FactorAt(GratingEfficiency, 650)
	if err != nil || math.Abs(f-2.0) > 1e-12 {
		t.Fatalf("grating factor: got %g, %v; want 2", f, err)
	}

	// 0.010 dB/m over 2 m = 0.02 dB loss -> transmission 10^(-0.002)
	f, err = reg.FactorAt(FiberAttenuation, 650)
	want := math.Pow(10, 0.02/10)
	if err != nil || math.Abs(f-want) > 1e-12 {
		t.Fatalf("fiber factor: got %g, %v; want %g", f, err, want)
	}

	// 95% reflectivity, 3 mirrors -> 1/0.95^3
	f, err = reg.FactorAt(MirrorReflectance, 650)
	want = 1 / math.Pow(0.95, 3)
	if err != nil || math.Abs(f-want) > 1e-12 {
		t.Fatalf("mirror factor: got %g, %v; want %g", f, err, want)
	}
}

func TestZeroResponseIsError(t *testing.T) {
	fsys := testFS()
	fsys["grating_600lm_500nmBlaze_efficiency.csv"] = &fstest.MapFile{
		Data: []byte("wl,val\n400,0\n1000,0\n"),
	}
	reg, err := NewRegistry(fsys, DefaultParams())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := reg.FactorAt(GratingEfficiency, 650); err == nil {
		t.Fatalf("expected error for zero response")
	}
}

func TestEnabledFlags(t *testing.T) {
	reg, err := NewRegistry(testFS(), DefaultParams())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := reg.SetEnabled(LensTransmission, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if reg.Enabled(LensTransmission) {
		t.Fatalf("lens transmission should be disabled")
	}
	kinds := reg.EnabledKinds()
	if len(kinds) != int(numKinds)-1 {
		t.Fatalf("enabled count: got %d want %d", len(kinds), int(numKinds)-1)
	}
	for _, k := range kinds {
		if k == LensTransmission {
			t.Fatalf("disabled kind still in enabled set")
		}
	}
	if err := reg.SetEnabled(Kind(99), true); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestInvalidParams(t *testing.T) {
	if _, err := NewRegistry(testFS(), Params{FiberLengthM: 0, MirrorCount: 3}); err == nil {
		t.Fatalf("expected error for zero fiber length")
	}
	if _, err := NewRegistry(testFS(), Params{FiberLengthM: 2, MirrorCount: 0}); err == nil {
		t.Fatalf("expected error for zero mirror count")
	}
}

func TestKindByName(t *testing.T) {
	for _, k := range Kinds() {
		got, ok := KindByName(k.Name())
		if !ok || got != k {
			t.Fatalf("KindByName(%q): got %v, %v", k.Name(), got, ok)
		}
	}
	if _, ok := KindByName("no such correction"); ok {
		t.Fatalf("unexpected resolution of unknown name")
	}
}
