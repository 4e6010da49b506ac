// internal/strategy/strategy.go
//
// Next-value strategies for the single-parameter optimiser. Each strategy
// proposes the parameter value to simulate next from the history of
// (parameter, measured output) points.

package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

// ErrExhausted is returned when a strategy (and its fallbacks) can only
// propose values that have already been simulated.
var ErrExhausted = errors.New("strategy: unable to find an unsimulated next value")

// ErrNoBracket is returned by the crossing-point strategy when the data does
// not straddle the desired output value.
var ErrNoBracket = errors.New("strategy: no points on both sides of the desired output value")

// Inputs carries everything a strategy may consult. ParamValues and
// OutputValues are parallel slices ordered by batch; the last entries are the
// most recent simulation.
type Inputs struct {
	Desired      float64
	ParamValues  []float64
	OutputValues []float64
	// Correlation is +1 when increasing the parameter increases the output,
	// -1 when it decreases it.
	Correlation int
	// MeshSize is the solver mesh step; proposals are rounded onto it.
	MeshSize float64
}

// Current returns the most recent measured output value.
func (in Inputs) Current() float64 {
	return in.OutputValues[len(in.OutputValues)-1]
}

// LastParam returns the most recent simulated parameter value.
func (in Inputs) LastParam() float64 {
	return in.ParamValues[len(in.ParamValues)-1]
}

func (in Inputs) simulated(value float64) bool {
	for _, v := range in.ParamValues {
		if v == value {
			return true
		}
	}
	return false
}

func (in Inputs) validate() error {
	if len(in.ParamValues) == 0 || len(in.ParamValues) != len(in.OutputValues) {
		return fmt.Errorf("strategy: need matching non-empty histories, got %d params and %d outputs",
			len(in.ParamValues), len(in.OutputValues))
	}
	if in.Correlation != 1 && in.Correlation != -1 {
		return fmt.Errorf("strategy: correlation must be +1 or -1, got %d", in.Correlation)
	}
	return nil
}

// Strategy proposes the next parameter value to simulate.
type Strategy interface {
	Name() string
	Next(in Inputs) (float64, error)
}

// Parse resolves a strategy by its config name. The polynomial fit takes its
// degree as "poly-fit:N".
func Parse(name string) (Strategy, error) {
	trimmed := strings.TrimSpace(strings.ToLower(name))
	switch {
	case trimmed == "percent-scale":
		return PercentScale{}, nil
	case trimmed == "mesh-step":
		return MeshStep{}, nil
	case trimmed == "lin-fit":
		return LinFit{}, nil
	case trimmed == "crossing-point-split":
		return CrossingPointSplit{}, nil
	case strings.HasPrefix(trimmed, "poly-fit:"):
		var degree int
		if _, err := fmt.Sscanf(trimmed, "poly-fit:%d", &degree); err != nil || degree < 1 {
			return nil, fmt.Errorf("strategy: bad poly-fit degree in %q", name)
		}
		return PolyFit{Degree: degree}, nil
	case trimmed == "poly-fit":
		return PolyFit{Degree: 2}, nil
	default:
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
}

// roundMesh rounds a proposal onto the solver mesh grid.
func roundMesh(value float64, in Inputs) float64 {
	return units.RoundToMesh(value, in.MeshSize)
}
