package greybody

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Errors returned by Fit.
var (
	// ErrInsufficientData means fewer than MinPoints wavelengths survived
	// the mask.
	ErrInsufficientData = errors.New("greybody: fewer than 3 data points in fit range")
	// ErrDiverged means the optimizer did not converge within the
	// iteration budget, or converged to a non-physical temperature.
	ErrDiverged = errors.New("greybody: fit did not converge")
)

// MinPoints is the minimum number of masked-in samples required for a fit:
// two free parameters plus one degree of freedom.
const MinPoints = 3

// Params configures the fitter. The starting point is fixed rather than
// data-dependent so repeated fits of the same input always walk the same
// path.
type Params struct {
	InitialTemperature float64 // K
	InitialScale       float64
	MaxIterations      int
	Tolerance          float64 // relative step / residual-change threshold
}

// DefaultParams returns the standard starting point: 2000 K and a scale
// of 1e-11.
func DefaultParams() Params {
	return Params{
		InitialTemperature: 2000,
		InitialScale:       1e-11,
		MaxIterations:      200,
		Tolerance:          1e-10,
	}
}

// Result holds a converged fit.
type Result struct {
	Temperature    float64 // K
	TemperatureErr float64 // 1σ
	Scale          float64
	ScaleErr       float64 // 1σ
	RSquared       float64
	Iterations     int
	Points         int       // samples included in the residual
	Curve          []float64 // model over the full wavelength axis
}

// Fitter performs the grey-body nonlinear least-squares fit.
type Fitter struct {
	params Params
}

// NewFitter builds a fitter; zero fields of p fall back to defaults.
func NewFitter(p Params) *Fitter {
	def := DefaultParams()
	if p.InitialTemperature <= 0 {
		p.InitialTemperature = def.InitialTemperature
	}
	if p.InitialScale == 0 {
		p.InitialScale = def.InitialScale
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = def.MaxIterations
	}
	if p.Tolerance <= 0 {
		p.Tolerance = def.Tolerance
	}
	return &Fitter{params: p}
}

// Fit runs a Levenberg-Marquardt minimization of the squared residuals
// between the model and counts over the samples where include is true.
// include may be nil to use every sample. The returned curve is evaluated
// over the full wavelength axis so masked-out regions can still be
// displayed against the model.
func (f *Fitter) Fit(wavelengthsNM, counts []float64, include []bool) (*Result, error) {
	if len(wavelengthsNM) != len(counts) {
		return nil, fmt.Errorf("greybody: %d wavelengths vs %d counts", len(wavelengthsNM), len(counts))
	}
	if include != nil && len(include) != len(counts) {
		return nil, fmt.Errorf("greybody: include mask length %d != %d samples", len(include), len(counts))
	}

	var wl, y []float64
	for i := range wavelengthsNM {
		if include == nil || include[i] {
			wl = append(wl, wavelengthsNM[i])
			y = append(y, counts[i])
		}
	}
	if len(wl) < MinPoints {
		return nil, ErrInsufficientData
	}

	temperature := f.params.InitialTemperature
	scale := f.params.InitialScale
	tol := f.params.Tolerance

	ssr := residualSum(wl, y, temperature, scale)
	lambda := 1e-3
	converged := false
	iterations := 0

	for iter := 1; iter <= f.params.MaxIterations; iter++ {
		iterations = iter

		dT, dS, ok := lmStep(wl, y, temperature, scale, lambda)
		if !ok {
			lambda *= 10
			if lambda > 1e14 {
				break
			}
			continue
		}

		newT := temperature + dT
		newS := scale + dS
		var newSSR float64
		if newT <= 0 {
			newSSR = math.Inf(1)
		} else {
			newSSR = residualSum(wl, y, newT, newS)
		}

		if newSSR < ssr && !math.IsNaN(newSSR) {
			// accepted step
			relStep := math.Max(math.Abs(dT)/math.Max(math.Abs(temperature), 1),
				math.Abs(dS)/math.Max(math.Abs(scale), math.SmallestNonzeroFloat64))
			relImprove := (ssr - newSSR) / math.Max(ssr, math.SmallestNonzeroFloat64)
			temperature, scale, ssr = newT, newS, newSSR
			lambda = math.Max(lambda*0.3, 1e-12)
			if relStep < tol || relImprove < tol {
				converged = true
				break
			}
		} else {
			// A rejected step that changes the residual by essentially
			// nothing means we are already at the minimum (including the
			// zero-residual case where the start equals the solution).
			if isFinite(newSSR) && math.Abs(newSSR-ssr) <= tol*math.Max(ssr, math.SmallestNonzeroFloat64) {
				converged = true
				break
			}
			lambda *= 10
			if lambda > 1e14 {
				break
			}
		}
	}

	if !converged || !isFinite(temperature) || !isFinite(scale) || temperature <= 0 {
		return nil, fmt.Errorf("%w after %d iterations (T=%g)", ErrDiverged, iterations, temperature)
	}

	estimates := make([]float64, len(wl))
	for i, w := range wl {
		estimates[i] = Planck(w, temperature, scale)
	}
	tErr, sErr := paramErrors(wl, temperature, scale, ssr)

	return &Result{
		Temperature:    temperature,
		TemperatureErr: tErr,
		Scale:          scale,
		ScaleErr:       sErr,
		RSquared:       stat.RSquaredFrom(estimates, y, nil),
		Iterations:     iterations,
		Points:         len(wl),
		Curve:          Curve(wavelengthsNM, temperature, scale),
	}, nil
}

// lmStep solves one damped least-squares step. The damped normal equations
// are solved as a QR factorization of the Jacobian augmented with the
// scaled damping rows, which stays stable despite the wildly different
// magnitudes of the two parameters.
func lmStep(wl, y []float64, temperature, scale, lambda float64) (dT, dS float64, ok bool) {
	n := len(wl)
	jac := mat.NewDense(n+2, 2, nil)
	rhs := mat.NewVecDense(n+2, nil)

	var colT, colS float64 // squared column norms for Marquardt scaling
	for i := 0; i < n; i++ {
		value, jT, jS := planckDerivs(wl[i], temperature, scale)
		jac.Set(i, 0, jT)
		jac.Set(i, 1, jS)
		rhs.SetVec(i, y[i]-value)
		colT += jT * jT
		colS += jS * jS
	}
	if colT == 0 || colS == 0 {
		return 0, 0, false
	}
	sqrtL := math.Sqrt(lambda)
	jac.Set(n, 0, sqrtL*math.Sqrt(colT))
	jac.Set(n+1, 1, sqrtL*math.Sqrt(colS))

	var qr mat.QR
	qr.Factorize(jac)
	var step mat.VecDense
	if err := qr.SolveVecTo(&step, false, rhs); err != nil {
		return 0, 0, false
	}
	dT, dS = step.AtVec(0), step.AtVec(1)
	if !isFinite(dT) || !isFinite(dS) {
		return 0, 0, false
	}
	return dT, dS, true
}

func residualSum(wl, y []float64, temperature, scale float64) float64 {
	var ssr float64
	for i, w := range wl {
		r := y[i] - Planck(w, temperature, scale)
		ssr += r * r
	}
	return ssr
}

// paramErrors estimates 1σ parameter uncertainties from the residual
// variance and the inverse normal matrix at the solution.
func paramErrors(wl []float64, temperature, scale, ssr float64) (tErr, sErr float64) {
	n := len(wl)
	dof := n - 2
	if dof <= 0 {
		return math.NaN(), math.NaN()
	}

	var jtj [2][2]float64
	for _, w := range wl {
		_, jT, jS := planckDerivs(w, temperature, scale)
		jtj[0][0] += jT * jT
		jtj[0][1] += jT * jS
		jtj[1][1] += jS * jS
	}
	det := jtj[0][0]*jtj[1][1] - jtj[0][1]*jtj[0][1]
	if det <= 0 {
		return math.NaN(), math.NaN()
	}
	sigma2 := ssr / float64(dof)
	tErr = math.Sqrt(sigma2 * jtj[1][1] / det)
	sErr = math.Sqrt(sigma2 * jtj[0][0] / det)
	return tErr, sErr
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
