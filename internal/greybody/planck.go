// Package greybody fits a scaled Planck radiance model to corrected
// spectra to recover a temperature.
package greybody

import "math"

// Physical constants of the Planck radiance law.
//
//	I(λ; T, S) = S * (c1 / λ^5) / (exp(c2 / (λ T)) - 1)
//
// with λ in meters, T in Kelvin, and S an emissivity-like scale that also
// absorbs unit conversion.
const (
	c1 = 3.7418e-16 // W·m^2
	c2 = 0.014388   // m·K
)

// expCutoff bounds the exponent before exp overflows; beyond it the model
// value underflows to zero anyway.
const expCutoff = 500

// Planck evaluates the grey-body model at a wavelength in nm.
func Planck(wavelengthNM, temperature, scale float64) float64 {
	wm := wavelengthNM * 1e-9
	x := c2 / (wm * temperature)
	if x > expCutoff {
		return 0
	}
	return scale * c1 / math.Pow(wm, 5) / math.Expm1(x)
}

// planckDerivs returns the model value and its partial derivatives with
// respect to temperature and scale.
func planckDerivs(wavelengthNM, temperature, scale float64) (value, dT, dS float64) {
	wm := wavelengthNM * 1e-9
	x := c2 / (wm * temperature)
	if x > expCutoff {
		return 0, 0, 0
	}
	a := c1 / math.Pow(wm, 5)
	em1 := math.Expm1(x)
	dS = a / em1
	value = scale * dS
	// d/dT [1/(e^x - 1)] with dx/dT = -x/T
	dT = scale * a * (em1 + 1) * x / (temperature * em1 * em1)
	return value, dT, dS
}

// Curve evaluates the model over a full wavelength axis.
func Curve(wavelengthsNM []float64, temperature, scale float64) []float64 {
	out := make([]float64, len(wavelengthsNM))
	for i, w := range wavelengthsNM {
		out[i] = Planck(w, temperature, scale)
	}
	return out
}
