package profile

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/lklprofile/internal/opt"
	"golang.org/x/sync/errgroup"
)

// Sink receives points as soon as they exist. Implementations must be safe for
// concurrent use when directions run in parallel.
type Sink interface {
	Anchor(p Point) error
	Record(dir Direction, p Point) error
}

// State is previously recorded progress to continue from.
type State struct {
	Anchor   *Point
	Positive []Point
	Negative []Point
}

// Controller runs the anchor fit and both scan directions and merges them.
type Controller struct {
	optimizer *GlobalOptimizer
	cfg       Config
	schedules Schedules
	settings  ScanSettings
	sink      Sink
}

// NewController validates its inputs up front so no optimization work starts
// on an invalid configuration. sink may be nil.
func NewController(optimizer *GlobalOptimizer, cfg Config, schedules Schedules, settings ScanSettings, sink Sink) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := schedules.Global.Validate(); err != nil {
		return nil, WithFieldPrefix("global_optimization", err)
	}
	if err := schedules.Mapping.Validate(); err != nil {
		return nil, WithFieldPrefix("mapping", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		optimizer: optimizer,
		cfg:       cfg,
		schedules: schedules,
		settings:  settings,
		sink:      sink,
	}, nil
}

// Run computes the full profile starting from initial.
func (c *Controller) Run(ctx context.Context, initial opt.Params) (*Result, error) {
	return c.Resume(ctx, initial, State{})
}

// Resume computes the profile, reusing whatever state holds. A saved anchor
// skips the global fit; a direction with saved points continues one increment
// past its last point, warm-started from that point's free parameters. A
// direction whose saved points already exhausted the halt policy stays halted.
func (c *Controller) Resume(ctx context.Context, initial opt.Params, state State) (*Result, error) {
	anchor, err := c.anchor(ctx, initial, state.Anchor)
	if err != nil {
		return nil, err
	}

	if anchor.Value < c.cfg.Min || anchor.Value > c.cfg.Max {
		slog.Warn("Anchor lies outside the profile range",
			"parameter", c.cfg.Parameter,
			"anchor", anchor.Value,
			"min", c.cfg.Min,
			"max", c.cfg.Max,
		)
	}

	step := c.cfg.Step()
	plans := []struct {
		dir       Direction
		increment float64
		bound     float64
		saved     []Point
	}{
		{Positive, step, c.cfg.Max, state.Positive},
		{Negative, -step, c.cfg.Min, state.Negative},
	}
	results := make([][]Point, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	if c.cfg.ConcurrentDirections {
		g.SetLimit(2)
	} else {
		g.SetLimit(1)
	}

	for i, plan := range plans {
		g.Go(func() error {
			start := anchor.Free.Clone()
			startValue := anchor.Value + plan.increment
			points := make([]Point, 0, len(plan.saved))
			points = append(points, plan.saved...)
			if n := len(plan.saved); n > 0 {
				last := plan.saved[n-1]
				start = last.Free.Clone()
				startValue = last.Value + plan.increment
				slog.Info("Resuming direction",
					"parameter", c.cfg.Parameter,
					"direction", plan.dir,
					"saved_points", n,
					"next_value", startValue,
				)
			}

			scanner := NewScanner(c.optimizer, c.cfg, c.schedules.Mapping, c.settings)
			for point, err := range scanner.Scan(start, startValue, plan.increment, plan.bound).After(plan.saved).Points(gctx) {
				if err != nil {
					return fmt.Errorf("%s scan: %w", plan.dir, err)
				}
				points = append(points, point)
				if c.sink != nil {
					if err := c.sink.Record(plan.dir, point); err != nil {
						return fmt.Errorf("failed to record %s point: %w", plan.dir, err)
					}
				}
			}
			results[i] = points
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Parameter: c.cfg.Parameter,
		Anchor:    anchor,
		Points:    Merge(anchor, results[1], results[0]),
	}

	slog.Info("Profile complete",
		"parameter", c.cfg.Parameter,
		"points", len(result.Points),
		"unconverged", len(result.Unconverged()),
	)
	return result, nil
}

func (c *Controller) anchor(ctx context.Context, initial opt.Params, saved *Point) (Point, error) {
	if saved != nil {
		slog.Info("Reusing saved anchor", "parameter", c.cfg.Parameter, "value", saved.Value)
		return clonePoint(*saved), nil
	}

	if _, ok := initial.Get(c.cfg.Parameter); !ok {
		return Point{}, &ConfigError{
			Field:  "run.profiled_parameter",
			Reason: fmt.Sprintf("%q is not a parameter of the starting point", c.cfg.Parameter),
		}
	}

	slog.Info("Starting global optimization",
		"parameter", c.cfg.Parameter,
		"phases", len(c.schedules.Global),
		"min_steps", c.settings.GlobalMinSteps,
	)

	outcome, err := c.optimizer.Optimize(ctx, initial, nil, c.schedules.Global, c.settings.GlobalMinSteps, "global")
	if err != nil {
		return Point{}, fmt.Errorf("global optimization failed: %w", err)
	}

	value, ok := outcome.Best.Get(c.cfg.Parameter)
	if !ok {
		return Point{}, fmt.Errorf("global optimization lost parameter %s", c.cfg.Parameter)
	}

	anchor := Point{
		Value:      value,
		Likelihood: outcome.Likelihood,
		Free:       outcome.Best.Without(c.cfg.Parameter),
		Converged:  outcome.Converged,
	}

	slog.Info("Global optimization complete",
		"parameter", c.cfg.Parameter,
		"anchor", anchor.Value,
		"likelihood", anchor.Likelihood,
		"converged", anchor.Converged,
	)

	if c.sink != nil {
		if err := c.sink.Anchor(anchor); err != nil {
			return Point{}, fmt.Errorf("failed to record anchor: %w", err)
		}
	}
	return anchor, nil
}

// Merge joins the two half-profiles around the anchor into one ascending
// sequence. negative is in scan order (descending values), positive ascending.
// Points that coincide with the anchor value are dropped.
func Merge(anchor Point, negative, positive []Point) []Point {
	merged := make([]Point, 0, len(negative)+len(positive)+1)
	for i := len(negative) - 1; i >= 0; i-- {
		if sameValue(negative[i].Value, anchor.Value) {
			continue
		}
		merged = append(merged, negative[i])
	}
	merged = append(merged, anchor)
	for _, p := range positive {
		if sameValue(p.Value, anchor.Value) {
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

func sameValue(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-12*scale
}

func clonePoint(p Point) Point {
	p.Free = p.Free.Clone()
	return p
}
