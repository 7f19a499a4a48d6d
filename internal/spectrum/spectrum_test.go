package spectrum

import (
	"testing"
	"time"
)

func TestNewRejectsLengthMismatch(t *testing.T) {
	_, err := New([]float64{400, 500}, []float64{1}, Metadata{})
	if err == nil {
		t.Fatalf("expected error for length mismatch")
	}
}

func TestNewRejectsNonIncreasingWavelengths(t *testing.T) {
	_, err := New([]float64{400, 500, 500}, []float64{1, 2, 3}, Metadata{})
	if err == nil {
		t.Fatalf("expected error for duplicate wavelength")
	}
	_, err = New([]float64{400, 390}, []float64{1, 2}, Metadata{})
	if err == nil {
		t.Fatalf("expected error for decreasing wavelength")
	}
}

func TestWithCountsSharesAxis(t *testing.T) {
	s, err := New([]float64{400, 500, 600}, []float64{1, 2, 3}, Metadata{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := s.WithCounts([]float64{2, 4, 6})
	if err != nil {
		t.Fatalf("WithCounts: %v", err)
	}
	if &out.Wavelengths[0] != &s.Wavelengths[0] {
		t.Fatalf("expected shared wavelength axis")
	}
	if s.Counts[0] != 1 {
		t.Fatalf("original counts mutated")
	}
	if _, err := s.WithCounts([]float64{1}); err == nil {
		t.Fatalf("expected error for short counts")
	}
}

func TestMetadataPairsStableOrder(t *testing.T) {
	m := Metadata{
		SourceFile:   "sample.sif",
		Detector:     "DU920P",
		ExposureTime: 0.5,
		AcquiredAt:   time.Unix(1700000000, 0),
	}
	a := m.Pairs()
	b := m.Pairs()
	if len(a) != len(b) {
		t.Fatalf("pair count changed between calls")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pair %d differs: %v vs %v", i, a[i], b[i])
		}
	}
	if a[0].Key != "source_file" || a[0].Value != "sample.sif" {
		t.Fatalf("unexpected first pair: %+v", a[0])
	}
}
