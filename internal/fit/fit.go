// internal/fit/fit.go
//
// Least-squares helpers for the analysers and optimiser strategies: plain
// polynomial fits and a damped Gauss-Newton fit of the single-resonator
// S21 magnitude model.

package fit

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// ErrTooFewPoints is returned when a fit has fewer points than parameters.
var ErrTooFewPoints = errors.New("fit: not enough data points")

// ErrNoConvergence is returned when the resonance fit fails to settle.
var ErrNoConvergence = errors.New("fit: did not converge")

// Poly is a polynomial with coefficients ordered from the constant term up.
type Poly []float64

// Eval evaluates the polynomial at x (Horner form).
func (p Poly) Eval(x float64) float64 {
	result := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		result = result*x + p[i]
	}
	return result
}

// Degree returns the polynomial degree.
func (p Poly) Degree() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// PolyFit fits a polynomial of the given degree to (x, y) by least squares.
func PolyFit(x, y []float64, degree int) (Poly, error) {
	if degree < 0 {
		return nil, fmt.Errorf("fit: polynomial degree must be >= 0, got %d", degree)
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("fit: mismatched data lengths %d and %d", len(x), len(y))
	}
	terms := degree + 1
	if len(x) < terms {
		return nil, fmt.Errorf("%w: %d points for degree %d", ErrTooFewPoints, len(x), degree)
	}

	vandermonde := mat.NewDense(len(x), terms, nil)
	for i, xi := range x {
		v := 1.0
		for j := 0; j < terms; j++ {
			vandermonde.Set(i, j, v)
			v *= xi
		}
	}
	rhs := mat.NewVecDense(len(y), append([]float64(nil), y...))

	var solution mat.VecDense
	if err := solution.SolveVec(vandermonde, rhs); err != nil {
		return nil, fmt.Errorf("fit: polynomial solve: %w", err)
	}
	coeffs := make(Poly, terms)
	for i := range coeffs {
		coeffs[i] = solution.AtVec(i)
	}
	return coeffs, nil
}

// Resonance holds the fitted parameters of the S21 magnitude model
// |s21(f)| = |1 - (QR/QC) / (1 + 2i*QR*(f/F0 - 1))|.
type Resonance struct {
	F0 float64 // resonant frequency, Hz
	QR float64 // resonator (loaded) quality factor
	QC float64 // coupling quality factor
}

// QI derives the internal quality factor 1/(1/QR - 1/QC).
func (r Resonance) QI() float64 {
	return 1 / ((1 / r.QR) - (1 / r.QC))
}

// S21Mag evaluates the model magnitude at frequency f (Hz).
func (r Resonance) S21Mag(f float64) float64 {
	xr := f/r.F0 - 1
	s21 := 1 - complex(r.QR/r.QC, 0)/complex(1, 2*r.QR*xr)
	return cmplx.Abs(s21)
}

// FitResonance fits the resonance model to |S21| data with a damped
// Gauss-Newton (Levenberg-Marquardt) iteration starting from init. The
// parameters are normalized against the initial guess so the wildly
// different scales of F0 and the Q factors do not wreck conditioning.
func FitResonance(freqs, mags []float64, init Resonance) (Resonance, error) {
	if len(freqs) != len(mags) {
		return Resonance{}, fmt.Errorf("fit: mismatched data lengths %d and %d", len(freqs), len(mags))
	}
	if len(freqs) < 3 {
		return Resonance{}, fmt.Errorf("%w: %d points for 3 parameters", ErrTooFewPoints, len(freqs))
	}
	if init.F0 <= 0 || init.QR <= 0 || init.QC <= 0 {
		return Resonance{}, fmt.Errorf("fit: initial resonance guess must be positive, got %+v", init)
	}

	n := len(freqs)
	// Scaled parameter vector, all starting at 1.
	params := []float64{1, 1, 1}
	model := func(p []float64, f float64) float64 {
		r := Resonance{F0: p[0] * init.F0, QR: p[1] * init.QR, QC: p[2] * init.QC}
		return r.S21Mag(f)
	}
	residuals := func(p []float64, out []float64) float64 {
		cost := 0.0
		for i, f := range freqs {
			out[i] = mags[i] - model(p, f)
			cost += out[i] * out[i]
		}
		return cost
	}

	res := make([]float64, n)
	cost := residuals(params, res)
	lambda := 1e-3

	const (
		maxIterations = 200
		jacobianStep  = 1e-7
		tolerance     = 1e-12
	)

	jac := mat.NewDense(n, 3, nil)
	perturbed := make([]float64, n)
	for iter := 0; iter < maxIterations; iter++ {
		// Forward-difference Jacobian of the residuals.
		for j := 0; j < 3; j++ {
			step := jacobianStep * math.Max(math.Abs(params[j]), 1)
			trial := []float64{params[0], params[1], params[2]}
			trial[j] += step
			residuals(trial, perturbed)
			for i := 0; i < n; i++ {
				jac.Set(i, j, (perturbed[i]-res[i])/step)
			}
		}

		// Normal equations with damping: (J'J + lambda*diag(J'J)) delta = J'r.
		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		jtr := mat.NewVecDense(3, nil)
		for j := 0; j < 3; j++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += jac.At(i, j) * res[i]
			}
			jtr.SetVec(j, sum)
		}

		improved := false
		for attempt := 0; attempt < 10; attempt++ {
			damped := mat.NewDense(3, 3, nil)
			damped.Copy(&jtj)
			for j := 0; j < 3; j++ {
				damped.Set(j, j, jtj.At(j, j)*(1+lambda))
			}
			var delta mat.VecDense
			if err := delta.SolveVec(damped, jtr); err != nil {
				lambda *= 10
				continue
			}
			trial := []float64{
				params[0] + delta.AtVec(0),
				params[1] + delta.AtVec(1),
				params[2] + delta.AtVec(2),
			}
			if trial[0] <= 0 || trial[1] <= 0 || trial[2] <= 0 {
				lambda *= 10
				continue
			}
			trialRes := make([]float64, n)
			trialCost := residuals(trial, trialRes)
			if trialCost < cost {
				relDrop := (cost - trialCost) / math.Max(cost, tolerance)
				params = trial
				copy(res, trialRes)
				cost = trialCost
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				if relDrop < 1e-10 {
					return scaledResonance(params, init), nil
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			if cost < tolerance || iter > 0 {
				return scaledResonance(params, init), nil
			}
			return Resonance{}, ErrNoConvergence
		}
	}
	return scaledResonance(params, init), nil
}

func scaledResonance(p []float64, init Resonance) Resonance {
	return Resonance{F0: p[0] * init.F0, QR: p[1] * init.QR, QC: p[2] * init.QC}
}
