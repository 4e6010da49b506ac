package strategy

import (
	"fmt"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/fit"
)

// fitMinimumPoints is the history size below which the fitting strategies
// defer to percent-scale.
const fitMinimumPoints = 4

// LinFit fits parameter-vs-output linearly and proposes the parameter value
// where the fit intersects the desired output. Falls back to percent-scale
// when there is too little history, then to mesh-step when the fitted value
// was already simulated.
type LinFit struct{}

// Name identifies the strategy in config and logs.
func (LinFit) Name() string { return "lin-fit" }

// Next proposes the next parameter value.
func (s LinFit) Next(in Inputs) (float64, error) {
	return fitThenFallback(s.Name(), in, 1)
}

// PolyFit is LinFit with a configurable polynomial degree.
type PolyFit struct {
	Degree int
}

// Name identifies the strategy in config and logs.
func (s PolyFit) Name() string { return fmt.Sprintf("poly-fit:%d", s.Degree) }

// Next proposes the next parameter value.
func (s PolyFit) Next(in Inputs) (float64, error) {
	if s.Degree < 1 {
		return 0, fmt.Errorf("strategy: poly-fit degree must be >= 1, got %d", s.Degree)
	}
	return fitThenFallback(s.Name(), in, s.Degree)
}

// fitThenFallback is the shared lin/poly flow: fit the parameter as a
// function of the output, evaluate at the desired output, and walk the
// fallback chain when the proposal repeats an already simulated value.
func fitThenFallback(name string, in Inputs, degree int) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	if len(in.ParamValues) < fitMinimumPoints {
		return PercentScale{}.Next(in)
	}

	// The output is the independent axis so the fit can be evaluated
	// directly at the desired output value.
	poly, err := fit.PolyFit(in.OutputValues, in.ParamValues, degree)
	if err != nil {
		return 0, fmt.Errorf("strategy: %s: %w", name, err)
	}
	next := roundMesh(poly.Eval(in.Desired), in)
	if !in.simulated(next) {
		return next, nil
	}

	next, err = (PercentScale{}).Next(in)
	if err != nil {
		return 0, err
	}
	if !in.simulated(next) {
		return next, nil
	}

	next, err = (MeshStep{}).Next(in)
	if err != nil {
		return 0, err
	}
	if !in.simulated(next) {
		return next, nil
	}
	return 0, fmt.Errorf("%w: %s tried fit, percent-scale and mesh-step", ErrExhausted, name)
}
