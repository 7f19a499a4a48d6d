package correction

import (
	"gonum.org/v1/gonum/floats"

	"pyroland/internal/spectrum"
)

// Pipeline applies corrections from a registry to spectra. Application
// order is always the registry's canonical order no matter how the enabled
// set was assembled, so the same set of corrections always produces the
// same output.
type Pipeline struct {
	reg *Registry
}

// NewPipeline builds a pipeline over the given registry.
func NewPipeline(reg *Registry) *Pipeline {
	return &Pipeline{reg: reg}
}

// Apply multiplies each count by the correction factors of the requested
// kinds, evaluated at the sample's wavelength. Duplicate kinds are applied
// once. The input spectrum is never mutated; with an empty set the input is
// returned as-is.
func (p *Pipeline) Apply(s *spectrum.Spectrum, kinds []Kind) (*spectrum.Spectrum, error) {
	var want [numKinds]bool
	any := false
	for _, k := range kinds {
		if k >= 0 && k < numKinds {
			want[k] = true
			any = true
		}
	}
	if !any {
		return s, nil
	}

	corrected := make([]float64, s.Len())
	copy(corrected, s.Counts)
	factors := make([]float64, s.Len())

	for _, k := range Kinds() {
		if !want[k] {
			continue
		}
		for i, w := range s.Wavelengths {
			f, err := p.reg.FactorAt(k, w)
			if err != nil {
				return nil, err
			}
			factors[i] = f
		}
		floats.Mul(corrected, factors)
	}
	return s.WithCounts(corrected)
}

// ApplyEnabled applies the registry's currently enabled corrections.
func (p *Pipeline) ApplyEnabled(s *spectrum.Spectrum) (*spectrum.Spectrum, error) {
	return p.Apply(s, p.reg.EnabledKinds())
}
