// internal/optimiser/optimiser.go
//
// Single-parameter optimisation of Sonnet projects. An optimiser drives one
// dimension parameter of one base file toward a desired measurement by
// generating batches, handing them to a solver runner, and feeding the
// analysed outputs back into its next-value strategy. All history is
// persisted so a run can pick up exactly where it stopped.

package optimiser

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/config"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/resonator"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sonfile"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/sparam"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/strategy"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

// ErrMaxBatches is returned when an optimiser hits its batch budget without
// converging.
var ErrMaxBatches = errors.New("optimiser: reached the maximum number of batches")

// Optimiser steps one parameter of one base file toward the desired value of
// one resonator metric.
type Optimiser struct {
	cfg      config.OptimiserConfig
	metric   resonator.Metric
	unit     units.FreqUnit
	strategy strategy.Strategy
	store    StateStore
	files    *FileManager
	loader   *sparam.Loader
	log      *zap.Logger
	clock    func() time.Time
}

// Option customizes the optimiser instance.
type Option func(*Optimiser)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *Optimiser) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Optimiser) {
		if log != nil {
			o.log = log
		}
	}
}

// WithLoader shares a spreadsheet loader (and its cache) between optimisers.
func WithLoader(loader *sparam.Loader) Option {
	return func(o *Optimiser) {
		if loader != nil {
			o.loader = loader
		}
	}
}

// New wires an optimiser to its persistence store and file manager.
func New(cfg config.OptimiserConfig, store StateStore, files *FileManager, opts ...Option) (*Optimiser, error) {
	if store == nil {
		return nil, fmt.Errorf("optimiser: state store is required")
	}
	if files == nil {
		return nil, fmt.Errorf("optimiser: file manager is required")
	}
	metric, err := resonator.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}
	unit, err := units.ParseFreqUnit(cfg.FreqUnit)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.Parse(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	o := &Optimiser{
		cfg:      cfg,
		metric:   metric,
		unit:     unit,
		strategy: strat,
		store:    store,
		files:    files,
		loader:   sparam.NewLoader(),
		log:      zap.NewNop(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Name returns the optimiser name from config.
func (o *Optimiser) Name() string { return o.cfg.Name }

// MaxBatches returns the configured batch budget.
func (o *Optimiser) MaxBatches() int { return o.cfg.MaxBatches }

// Files exposes the batch file manager.
func (o *Optimiser) Files() *FileManager { return o.files }

// Load fetches the persisted state, or a fresh one when none exists.
func (o *Optimiser) Load() (State, error) {
	state, err := o.store.Load(o.cfg.Name)
	if errors.Is(err, ErrStateNotFound) {
		return State{
			Name:    o.cfg.Name,
			Param:   o.cfg.Param,
			Desired: o.cfg.Desired,
		}, nil
	}
	return state, err
}

// PrepareBatch decides the next parameter value, generates its .son file and
// persists the updated state. When an unanalysed batch is already on disk it
// is returned as-is so interrupted runs resume instead of skipping a value.
func (o *Optimiser) PrepareBatch(state State) (State, BatchRecord, error) {
	if pending := state.Pending(); pending != nil {
		o.log.Info("resuming pending batch",
			zap.String("optimiser", o.cfg.Name),
			zap.Int("batch", pending.Number),
			zap.Float64("param_value", pending.ParamValue))
		return state, *pending, nil
	}
	if len(state.Batches) >= o.cfg.MaxBatches {
		return state, BatchRecord{}, fmt.Errorf("%w: %d", ErrMaxBatches, o.cfg.MaxBatches)
	}

	value, err := o.nextValue(&state)
	if err != nil {
		return state, BatchRecord{}, err
	}

	number := len(state.Batches) + 1
	sonPath, err := o.files.Generate(number, o.cfg.Param, value)
	if err != nil {
		return state, BatchRecord{}, err
	}
	record := BatchRecord{
		Number:     number,
		ParamValue: value,
		SonFile:    sonPath,
	}
	state.Batches = append(state.Batches, record)
	state.UpdatedAt = o.clock()
	if err := o.store.Save(state); err != nil {
		return state, BatchRecord{}, err
	}
	o.log.Info("generated batch",
		zap.String("optimiser", o.cfg.Name),
		zap.Int("batch", number),
		zap.String("file", sonPath),
		zap.Float64("param_value", value))
	return state, record, nil
}

// RecordOutput analyses the spreadsheet for the pending batch, appends the
// measured value to the history and persists the new state. The measured
// value is returned alongside the updated state.
func (o *Optimiser) RecordOutput(state State, outputFile string) (State, float64, error) {
	pending := state.Pending()
	if pending == nil {
		return state, 0, fmt.Errorf("optimiser: %s has no pending batch to record", o.cfg.Name)
	}

	data, err := o.loader.Load(outputFile, o.cfg.Ports, o.unit)
	if err != nil {
		return state, 0, err
	}
	analyser, err := resonator.NewAnalyser(data)
	if err != nil {
		return state, 0, err
	}
	value, err := analyser.Measure(o.metric)
	if err != nil {
		return state, 0, err
	}

	pending.OutputFile = outputFile
	pending.OutputValue = &value
	state.Converged = o.Converged(value)
	state.UpdatedAt = o.clock()
	if err := o.store.Save(state); err != nil {
		return state, 0, err
	}
	o.log.Info("recorded batch output",
		zap.String("optimiser", o.cfg.Name),
		zap.Int("batch", pending.Number),
		zap.String("metric", string(o.metric)),
		zap.Float64("value", value),
		zap.Bool("converged", state.Converged))
	return state, value, nil
}

// Converged reports whether a measured value lies within the tolerance band
// around the desired value.
func (o *Optimiser) Converged(value float64) bool {
	tol := o.cfg.TolerancePercent / 100
	lo := o.cfg.Desired * (1 - tol)
	hi := o.cfg.Desired * (1 + tol)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo <= value && value <= hi
}

// Closest returns the completed batch whose output lies nearest the desired
// value. ok is false when no batch has been analysed yet.
func (o *Optimiser) Closest(state State) (best BatchRecord, ok bool) {
	for _, b := range state.Batches {
		if b.OutputValue == nil {
			continue
		}
		if !ok || distance(*b.OutputValue, o.cfg.Desired) < distance(*best.OutputValue, o.cfg.Desired) {
			best, ok = b, true
		}
	}
	return best, ok
}

// nextValue picks the parameter value for the next batch. The first batch
// simulates the base file's current value; later batches ask the strategy
// and clamp the proposal to the configured bounds.
func (o *Optimiser) nextValue(state *State) (float64, error) {
	params := state.ParamValues()
	outputs := state.OutputValues()
	if len(params) == 0 {
		value, err := sonfile.ReadParamValue(o.files.BaseFile, o.cfg.Param)
		if err != nil {
			return 0, err
		}
		return value, nil
	}

	value, err := o.strategy.Next(strategy.Inputs{
		Desired:      o.cfg.Desired,
		ParamValues:  params,
		OutputValues: outputs,
		Correlation:  o.cfg.Correlation,
		MeshSize:     o.cfg.MeshSize,
	})
	if err != nil {
		return 0, err
	}
	return o.clamp(state, value)
}

func (o *Optimiser) clamp(state *State, value float64) (float64, error) {
	clamped := value
	if o.cfg.Min != nil && clamped < *o.cfg.Min {
		clamped = *o.cfg.Min
	}
	if o.cfg.Max != nil && clamped > *o.cfg.Max {
		clamped = *o.cfg.Max
	}
	if clamped != value {
		o.log.Warn("clamped proposed parameter value",
			zap.String("optimiser", o.cfg.Name),
			zap.Float64("proposed", value),
			zap.Float64("clamped", clamped))
		if state.simulated(clamped) {
			return 0, fmt.Errorf("%w: clamped value %g was already simulated", strategy.ErrExhausted, clamped)
		}
	}
	return clamped, nil
}

func distance(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
