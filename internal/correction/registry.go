// Package correction loads the instrument calibration curves and applies
// the enabled subset to measured spectra in a fixed order.
package correction

import (
	"embed"
	"fmt"
	"io/fs"
	"math"
	"sync"
)

//go:embed data/*.csv
var embeddedData embed.FS

// Params configures the physical setup the corrections compensate for.
type Params struct {
	// FiberLengthM is the fiber patch cord length in meters.
	FiberLengthM float64
	// MirrorCount is the number of silvered mirrors in the light path.
	MirrorCount int
}

// DefaultParams returns the parameters of the standard bench setup.
func DefaultParams() Params {
	return Params{
		FiberLengthM: 2.0,
		MirrorCount:  3,
	}
}

// LoadError reports a missing or malformed calibration table. Curve loading
// happens once at startup and a failed load is fatal; the pipeline cannot
// produce meaningful output without its tables.
type LoadError struct {
	Kind Kind
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("correction: load %s (%s): %v", e.Kind.Name(), e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Registry owns the five correction curves and the per-correction enabled
// flags. Curves are immutable after load; the enabled flags are the only
// mutable state and are safe for concurrent use.
type Registry struct {
	params Params
	curves [numKinds]*Curve

	mu      sync.RWMutex
	enabled [numKinds]bool
}

// NewRegistry loads every correction table from fsys. All corrections
// start enabled.
func NewRegistry(fsys fs.FS, params Params) (*Registry, error) {
	if params.FiberLengthM <= 0 {
		return nil, fmt.Errorf("correction: fiber length must be positive, got %g", params.FiberLengthM)
	}
	if params.MirrorCount < 1 {
		return nil, fmt.Errorf("correction: mirror count must be at least 1, got %d", params.MirrorCount)
	}

	r := &Registry{params: params}
	for _, k := range Kinds() {
		curve, err := loadCurve(fsys, k)
		if err != nil {
			return nil, err
		}
		r.curves[k] = curve
		r.enabled[k] = true
	}
	return r, nil
}

// Default loads the registry from the calibration tables compiled into the
// binary.
func Default(params Params) (*Registry, error) {
	sub, err := fs.Sub(embeddedData, "data")
	if err != nil {
		return nil, fmt.Errorf("correction: embedded data: %w", err)
	}
	return NewRegistry(sub, params)
}

func loadCurve(fsys fs.FS, k Kind) (*Curve, error) {
	f, err := fsys.Open(k.DataFile())
	if err != nil {
		return nil, &LoadError{Kind: k, File: k.DataFile(), Err: err}
	}
	defer f.Close()

	// The fiber table carries dB/km in column 1 and dB/m in column 2;
	// everything else is a two-column percent table.
	col := 1
	if k == FiberAttenuation {
		col = 2
	}
	wavelengths, values, err := readTable(f, col)
	if err != nil {
		return nil, &LoadError{Kind: k, File: k.DataFile(), Err: err}
	}
	if k != FiberAttenuation {
		// percent -> fraction
		for i := range values {
			values[i] /= 100
		}
	}
	curve, err := NewCurve(wavelengths, values)
	if err != nil {
		return nil, &LoadError{Kind: k, File: k.DataFile(), Err: err}
	}
	return curve, nil
}

// Params returns the physical setup parameters the registry was built with.
func (r *Registry) Params() Params { return r.params }

// Curve returns the calibration curve backing the given correction.
func (r *Registry) Curve(k Kind) *Curve { return r.curves[k] }

// SetEnabled switches a single correction on or off.
func (r *Registry) SetEnabled(k Kind, enabled bool) error {
	if k < 0 || k >= numKinds {
		return fmt.Errorf("correction: unknown kind %d", k)
	}
	r.mu.Lock()
	r.enabled[k] = enabled
	r.mu.Unlock()
	return nil
}

// Enabled reports whether the correction is currently switched on.
func (r *Registry) Enabled(k Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return k >= 0 && k < numKinds && r.enabled[k]
}

// EnabledKinds returns the currently enabled corrections in canonical order.
func (r *Registry) EnabledKinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Kind
	for _, k := range Kinds() {
		if r.enabled[k] {
			out = append(out, k)
		}
	}
	return out
}

// FactorAt returns the multiplicative correction factor for kind k at
// wavelength w. Measured counts are divided by the instrument response, so
// the factor is the reciprocal of the interpolated response fraction.
func (r *Registry) FactorAt(k Kind, w float64) (float64, error) {
	curve := r.curves[k]
	switch k {
	case FiberAttenuation:
		// Table value is attenuation in dB/m; total loss scales with the
		// fiber length and converts to a transmission fraction.
		lossDB := curve.At(w) * r.params.FiberLengthM
		transmission := math.Pow(10, -lossDB/10)
		if transmission == 0 {
			return 0, fmt.Errorf("correction: %s: zero transmission at %g nm", k.Name(), w)
		}
		return 1 / transmission, nil
	case MirrorReflectance:
		// N mirrors in series: total throughput is R^N.
		reflectivity := curve.At(w)
		throughput := math.Pow(reflectivity, float64(r.params.MirrorCount))
		if throughput == 0 {
			return 0, fmt.Errorf("correction: %s: zero throughput at %g nm", k.Name(), w)
		}
		return 1 / throughput, nil
	default:
		response := curve.At(w)
		if response == 0 {
			return 0, fmt.Errorf("correction: %s: zero response at %g nm", k.Name(), w)
		}
		return 1 / response, nil
	}
}
