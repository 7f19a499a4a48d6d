// Package mask models the wavelength selection used by the fitter: a
// global keep-range intersected with the complement of any number of
// excluded regions.
package mask

import "fmt"

// Range is a closed wavelength interval in nm.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether w lies inside the interval, bounds included.
func (r Range) Contains(w float64) bool { return w >= r.Min && w <= r.Max }

// InvalidRangeError reports a rejected range edit. Rejected edits never
// enter the mask state.
type InvalidRangeError struct {
	Min, Max float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("mask: invalid range [%g, %g]: min must be smaller than max", e.Min, e.Max)
}

// Mask combines an optional global [min,max] keep-range with a set of
// excluded sub-ranges. A wavelength is included when it lies inside the
// global range (open-ended where a bound is absent) and inside none of the
// exclusions. Exclusions may overlap freely; membership is evaluated
// against each one, which is equivalent to their union.
type Mask struct {
	globalMin *float64
	globalMax *float64
	excluded  []Range
}

// New returns an empty mask that includes every wavelength.
func New() *Mask { return &Mask{} }

// SetGlobalRange sets the keep-range. Either bound may be nil for an
// open end. When both are present, min >= max is rejected.
func (m *Mask) SetGlobalRange(min, max *float64) error {
	if min != nil && max != nil && *min >= *max {
		return &InvalidRangeError{Min: *min, Max: *max}
	}
	m.globalMin = copyFloat(min)
	m.globalMax = copyFloat(max)
	return nil
}

// GlobalRange returns the current keep-range bounds; nil means open.
func (m *Mask) GlobalRange() (min, max *float64) {
	return copyFloat(m.globalMin), copyFloat(m.globalMax)
}

// AddExclusion adds an excluded region. min >= max is rejected and the
// stored exclusions are left unchanged.
func (m *Mask) AddExclusion(min, max float64) error {
	if min >= max {
		return &InvalidRangeError{Min: min, Max: max}
	}
	m.excluded = append(m.excluded, Range{Min: min, Max: max})
	return nil
}

// RemoveExclusion deletes the i-th exclusion.
func (m *Mask) RemoveExclusion(i int) error {
	if i < 0 || i >= len(m.excluded) {
		return fmt.Errorf("mask: no exclusion at index %d", i)
	}
	m.excluded = append(m.excluded[:i], m.excluded[i+1:]...)
	return nil
}

// ClearExclusions removes all excluded regions.
func (m *Mask) ClearExclusions() { m.excluded = nil }

// Exclusions returns a copy of the excluded regions in insertion order.
func (m *Mask) Exclusions() []Range {
	out := make([]Range, len(m.excluded))
	copy(out, m.excluded)
	return out
}

// Contains reports whether wavelength w is included by the mask.
func (m *Mask) Contains(w float64) bool {
	if m.globalMin != nil && w < *m.globalMin {
		return false
	}
	if m.globalMax != nil && w > *m.globalMax {
		return false
	}
	for _, r := range m.excluded {
		if r.Contains(w) {
			return false
		}
	}
	return true
}

// Apply evaluates the mask over a wavelength axis, returning the per-sample
// inclusion flags and the number of included samples.
func (m *Mask) Apply(wavelengths []float64) (include []bool, n int) {
	include = make([]bool, len(wavelengths))
	for i, w := range wavelengths {
		if m.Contains(w) {
			include[i] = true
			n++
		}
	}
	return include, n
}

// Snapshot is an immutable copy of the mask state, taken when a spectrum
// is processed so the saved record reflects the mask used for that fit.
type Snapshot struct {
	GlobalMin *float64
	GlobalMax *float64
	Excluded  []Range
}

// Snapshot captures the current mask state.
func (m *Mask) Snapshot() Snapshot {
	return Snapshot{
		GlobalMin: copyFloat(m.globalMin),
		GlobalMax: copyFloat(m.globalMax),
		Excluded:  m.Exclusions(),
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
