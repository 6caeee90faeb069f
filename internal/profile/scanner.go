package profile

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/cwbudde/lklprofile/internal/opt"
)

// boundTolerance is relative to |increment|; it absorbs rounding in start + k*increment.
const boundTolerance = 1e-9

// Scanner walks a grid of profiled-parameter values in one direction,
// re-optimizing the free parameters at each grid point.
type Scanner struct {
	optimizer *GlobalOptimizer
	cfg       Config
	schedule  Schedule
	minSteps  int
}

// NewScanner creates a scanner that optimizes each grid point with schedule
// and settings.ProfileMinSteps.
func NewScanner(optimizer *GlobalOptimizer, cfg Config, schedule Schedule, settings ScanSettings) *Scanner {
	return &Scanner{
		optimizer: optimizer,
		cfg:       cfg,
		schedule:  schedule,
		minSteps:  settings.ProfileMinSteps,
	}
}

// Scan prepares a one-directional scan. The first grid value is startValue,
// the k-th is startValue + k*increment, and the scan stops once a value
// passes bound. start may include the profiled parameter; it is dropped.
func (s *Scanner) Scan(start opt.Params, startValue, increment, bound float64) *Scan {
	return &Scan{
		scanner:    s,
		start:      start.Without(s.cfg.Parameter),
		startValue: startValue,
		increment:  increment,
		bound:      bound,
	}
}

// Scan is a single-use, lazily evaluated sequence of grid points.
type Scan struct {
	scanner    *Scanner
	start      opt.Params
	startValue float64
	increment  float64
	bound      float64
	saved      []Point
	used       atomic.Bool
}

// After marks the scan as the continuation of saved, the points this
// direction recorded earlier in scan order. Attempt labels continue after
// theirs and the halt policy counts their trailing non-converged run.
// It must be called before Points.
func (sc *Scan) After(saved []Point) *Scan {
	sc.saved = saved
	return sc
}

// Direction reports which way the scan walks.
func (sc *Scan) Direction() Direction {
	return DirectionOf(sc.increment)
}

// Within reports whether value lies on the scan's side of its bound.
func (sc *Scan) Within(value float64) bool {
	tol := boundTolerance * math.Abs(sc.increment)
	inclusive := sc.scanner.cfg.InclusiveBound
	if sc.increment > 0 {
		if inclusive {
			return value <= sc.bound+tol
		}
		return value < sc.bound-tol
	}
	if inclusive {
		return value >= sc.bound-tol
	}
	return value > sc.bound+tol
}

// Points optimizes grid points one at a time as the caller ranges over them.
// Each step is warm-started from the previous step's optimum. An error is
// yielded at most once and ends the sequence.
func (sc *Scan) Points(ctx context.Context) iter.Seq2[Point, error] {
	return func(yield func(Point, error) bool) {
		if !sc.used.CompareAndSwap(false, true) {
			yield(Point{}, ErrScanConsumed)
			return
		}

		s := sc.scanner
		dir := sc.Direction()
		tracker := NewHaltTracker(s.cfg.Halt)
		history := make([]bool, len(sc.saved))
		for i, p := range sc.saved {
			history[i] = p.Converged
		}
		if tracker.Restore(history) {
			slog.Info("Direction already halted",
				"parameter", s.cfg.Parameter,
				"direction", dir,
				"consecutive_failures", tracker.Failures(),
			)
			return
		}
		offset := len(sc.saved)
		current := sc.start.Clone()

		for k := 0; ; k++ {
			value := sc.startValue + float64(k)*sc.increment
			if !sc.Within(value) {
				slog.Info("Scan reached bound",
					"parameter", s.cfg.Parameter,
					"direction", dir,
					"bound", sc.bound,
					"points", k,
				)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(Point{}, err)
				return
			}

			label := fmt.Sprintf("%s_%04d", dir, offset+k)
			fixed := map[string]float64{s.cfg.Parameter: value}

			outcome, err := s.optimizer.Optimize(ctx, current, fixed, s.schedule, s.minSteps, label)
			if err != nil {
				yield(Point{}, fmt.Errorf("failed to optimize at %s=%g: %w", s.cfg.Parameter, value, err))
				return
			}

			point := Point{
				Value:      value,
				Likelihood: outcome.Likelihood,
				Free:       outcome.Best.Clone(),
				Converged:  outcome.Converged,
			}

			slog.Info("Profile point recorded",
				"parameter", s.cfg.Parameter,
				"direction", dir,
				"value", value,
				"likelihood", point.Likelihood,
				"converged", point.Converged,
			)

			if !yield(point, nil) {
				return
			}
			if tracker.Update(point.Converged) {
				return
			}

			current = outcome.Best
		}
	}
}
