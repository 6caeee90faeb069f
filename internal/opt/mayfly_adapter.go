package opt

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"

	"github.com/cwbudde/mayfly"
)

// defaultSpan is the box half-width in units of jump scale times parameter scale.
const defaultSpan = 5.0

// MayflyAdapter wraps the external Mayfly library to conform to the Oracle interface.
// It searches a box around the start point whose size follows the phase jump scale.
type MayflyAdapter struct {
	lkl     Likelihood
	popSize int
	span    float64
	seed    int64
	calls   atomic.Int64
}

// NewMayfly creates a new Mayfly oracle adapter. popSize must be >= 20 for mayfly v0.1.0.
func NewMayfly(lkl Likelihood, popSize int, seed int64) *MayflyAdapter {
	if popSize < 20 {
		popSize = 20
	}
	return &MayflyAdapter{
		lkl:     lkl,
		popSize: popSize,
		span:    defaultSpan,
		seed:    seed,
	}
}

// Run executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Run(ctx context.Context, req Request) (Attempt, error) {
	if err := req.Validate(); err != nil {
		return Attempt{}, err
	}
	req.Start = req.free()
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}

	dim := req.Start.Len()
	full := req.Start.Merge(req.Fixed)
	half := make([]float64, dim)
	for i, name := range req.Start.Names {
		half[i] = req.Phase.JumpScale * scaleOf(m.lkl, name) * m.span
	}

	// The library uses scalar bounds, so search in [-1, 1] per dimension
	// and map back around the start point.
	toFree := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			x[i] = req.Start.Values[i] + u[i]*half[i]
		}
		return x
	}
	eval := func(u []float64) float64 {
		p := full.Clone()
		copy(p.Values[:dim], toFree(u))
		return m.lkl.NegLogLike(p)
	}

	attempt := Attempt{
		Start: req.Start.Clone(),
		Phase: req.Phase,
		Best:  req.Start.Clone(),
	}
	attempt.Likelihood = eval(make([]float64, dim))

	if dim == 0 {
		attempt.Converged = true
		return attempt, nil
	}

	slog.Debug("Mayfly attempt starting",
		"label", req.Output.Label,
		"temperature_ignored", req.Phase.Temperature,
		"workers_ignored", req.Workers,
	)

	iters := (req.MinSteps + m.popSize - 1) / m.popSize

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = iters
	config.NPop = m.popSize
	config.LowerBound = -1
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed + m.calls.Add(1)))

	result, err := mayfly.Optimize(config)
	if err != nil {
		slog.Warn("Mayfly optimization failed", "label", req.Output.Label, "error", err)
		return attempt, nil
	}

	if result.GlobalBest.Cost <= attempt.Likelihood {
		attempt.Best = Params{Names: append([]string(nil), req.Start.Names...), Values: toFree(result.GlobalBest.Position)}
		attempt.Likelihood = result.GlobalBest.Cost
	}
	attempt.StepsRun = iters * m.popSize
	attempt.Converged = true

	if err := ctx.Err(); err != nil {
		attempt.Converged = false
		return attempt, err
	}
	return attempt, nil
}
