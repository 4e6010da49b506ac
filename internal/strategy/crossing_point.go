package strategy

import (
	"fmt"
	"math"
)

// CrossingPointSplit brackets the desired output with the two nearest
// simulated points on either side of it and proposes the parameter value
// where the line between them crosses the desired output.
type CrossingPointSplit struct{}

// Name identifies the strategy in config and logs.
func (CrossingPointSplit) Name() string { return "crossing-point-split" }

// Next proposes the next parameter value.
func (s CrossingPointSplit) Next(in Inputs) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	if len(in.ParamValues) < fitMinimumPoints {
		return PercentScale{}.Next(in)
	}

	// Offsets from the desired output. The bracket is the smallest
	// positive offset and the largest negative one.
	var (
		haveAbove, haveBelow bool
		aboveIdx, belowIdx   int
		minAbove             = math.Inf(1)
		maxBelow             = math.Inf(-1)
	)
	for i, y := range in.OutputValues {
		off := y - in.Desired
		switch {
		case off > 0 && off < minAbove:
			minAbove, aboveIdx, haveAbove = off, i, true
		case off <= 0 && off > maxBelow:
			maxBelow, belowIdx, haveBelow = off, i, true
		}
	}
	if !haveAbove || !haveBelow {
		return 0, fmt.Errorf("%w: desired output %g is outside the simulated range", ErrNoBracket, in.Desired)
	}

	x1, y1 := in.ParamValues[belowIdx], maxBelow
	x2, y2 := in.ParamValues[aboveIdx], minAbove
	if y2 == y1 {
		return 0, fmt.Errorf("%w: bracketing points have equal outputs", ErrNoBracket)
	}

	// Linear interpolation to the zero offset.
	next := roundMesh(x1-y1*(x2-x1)/(y2-y1), in)
	if !in.simulated(next) {
		return next, nil
	}

	next, err := (MeshStep{}).Next(in)
	if err != nil {
		return 0, err
	}
	if !in.simulated(next) {
		return next, nil
	}
	return 0, fmt.Errorf("%w: crossing-point-split tried interpolation and mesh-step", ErrExhausted)
}
