package optimiser

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/journal"
	"github.com/sonnetlabs/sonnetsuiteshelper/internal/strategy"
)

// Runner executes one generated project file and writes its spreadsheet to
// outputFile before returning.
type Runner interface {
	Run(ctx context.Context, sonFile, outputFile string) error
}

// Result summarises one optimiser's run within a set.
type Result struct {
	Name      string
	Metric    string
	Converged bool
	// Stalled is set when the strategy ran out of unsimulated proposals.
	Stalled bool
	Batches int
	// Best is the batch closest to the desired value, valid when HasBest.
	Best    BatchRecord
	HasBest bool
	Err     error
}

// Set runs a group of optimisers against a shared solver runner, at most
// Parallel at a time.
type Set struct {
	Optimisers []*Optimiser
	Runner     Runner
	Parallel   int
	Log        *zap.Logger
	// Journal receives one line per batch for the monitor to tail. Nil
	// disables journalling.
	Journal *journal.Journal
}

// Run drives every optimiser until it converges, stalls, errors or uses up
// its batch budget. Per-optimiser failures land in the Result rather than
// aborting the other optimisers; only context cancellation stops the set.
func (s *Set) Run(ctx context.Context) ([]Result, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	limit := s.Parallel
	if limit < 1 {
		limit = 1
	}

	results := make([]Result, len(s.Optimisers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, o := range s.Optimisers {
		i, o := i, o
		g.Go(func() error {
			results[i] = s.runOne(ctx, o, log)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (s *Set) runOne(ctx context.Context, o *Optimiser, log *zap.Logger) Result {
	result := Result{Name: o.Name(), Metric: string(o.metric)}
	state, err := o.Load()
	if err != nil {
		result.Err = err
		return result
	}

	for !state.Converged {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			break
		}

		var record BatchRecord
		state, record, err = o.PrepareBatch(state)
		if err != nil {
			switch {
			case errors.Is(err, ErrMaxBatches):
				log.Warn("optimiser used its batch budget", zap.String("optimiser", o.Name()))
			case errors.Is(err, strategy.ErrExhausted), errors.Is(err, strategy.ErrNoBracket):
				result.Stalled = true
				log.Warn("optimiser stalled", zap.String("optimiser", o.Name()), zap.Error(err))
				s.Journal.Warn("%s stalled: %v", o.Name(), err)
			default:
				result.Err = err
			}
			break
		}

		outputFile := o.Files().OutputPath(record.SonFile)
		if err := s.Runner.Run(ctx, record.SonFile, outputFile); err != nil {
			result.Err = err
			break
		}
		var value float64
		if state, value, err = o.RecordOutput(state, outputFile); err != nil {
			result.Err = err
			break
		}
		s.Journal.Batch(o.Name(), record.Number, record.ParamValue, value, state.Converged)
	}

	result.Converged = state.Converged
	result.Batches = len(state.Batches)
	result.Best, result.HasBest = o.Closest(state)
	return result
}
