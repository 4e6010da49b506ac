package strategy

// MeshStep moves the last parameter value exactly one solver mesh cell
// toward the desired output. It is the smallest change that can produce a
// different file, which makes it the terminal fallback for the fitting
// strategies.
type MeshStep struct{}

// Name identifies the strategy in config and logs.
func (MeshStep) Name() string { return "mesh-step" }

// Next proposes the next parameter value.
func (MeshStep) Next(in Inputs) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	step := float64(in.Correlation) * in.MeshSize
	if in.Current() > in.Desired {
		return in.LastParam() - step, nil
	}
	return in.LastParam() + step, nil
}
