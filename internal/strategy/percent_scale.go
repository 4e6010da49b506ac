package strategy

import "math"

// adjustStrength scales the output delta into a parameter delta for the
// percent-scale proposal.
const adjustStrength = 0.002

// PercentScale nudges the last parameter value by a fraction of the distance
// between the last output and the desired output, in the direction the
// correlation dictates. The result is rounded to the mesh grid.
type PercentScale struct{}

// Name identifies the strategy in config and logs.
func (PercentScale) Name() string { return "percent-scale" }

// Next proposes the next parameter value.
func (PercentScale) Next(in Inputs) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	delta := adjustStrength * math.Abs(in.Current()-in.Desired)
	step := float64(in.Correlation) * delta
	var next float64
	if in.Current() > in.Desired {
		next = in.LastParam() - step
	} else {
		next = in.LastParam() + step
	}
	return roundMesh(next, in), nil
}
