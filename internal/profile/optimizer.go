package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/lklprofile/internal/opt"
)

// Outcome is the result of driving a schedule through the oracle.
type Outcome struct {
	Best       opt.Params
	Likelihood float64
	Steps      int
	Converged  bool
}

// GlobalOptimizer runs a cooling schedule phase by phase, carrying the
// current point forward between phases.
type GlobalOptimizer struct {
	oracle  opt.Oracle
	workers int
	timeout time.Duration
	output  string
}

// NewGlobalOptimizer creates an optimizer. outputDir is handed to the oracle
// as the place to keep sampler output; timeout bounds each oracle call (0 = none).
func NewGlobalOptimizer(oracle opt.Oracle, workers int, timeout time.Duration, outputDir string) *GlobalOptimizer {
	return &GlobalOptimizer{
		oracle:  oracle,
		workers: workers,
		timeout: timeout,
		output:  outputDir,
	}
}

// Optimize runs every phase of schedule starting from start with the fixed
// parameters pinned. Each phase's best point replaces the current one even if
// its likelihood is worse; later, colder phases are trusted to refine.
//
// An empty schedule returns start unchanged with Converged set and a NaN likelihood.
// Non-convergence is reported on the Outcome; only oracle failures are errors.
func (g *GlobalOptimizer) Optimize(ctx context.Context, start opt.Params, fixed map[string]float64, schedule Schedule, minSteps int, label string) (Outcome, error) {
	out := Outcome{
		Best:       start.Clone(),
		Likelihood: math.NaN(),
		Converged:  true,
	}

	for i, phase := range schedule {
		req := opt.Request{
			Start:    out.Best.Clone(),
			Fixed:    fixed,
			Phase:    phase,
			MinSteps: minSteps,
			Workers:  g.workers,
			Output: opt.Location{
				Dir:   g.output,
				Label: fmt.Sprintf("%s_phase%d", label, i),
			},
		}

		attempt, err := g.run(ctx, req)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				slog.Warn("Optimization phase timed out",
					"label", label,
					"phase", i,
					"timeout", g.timeout,
				)
				if attempt.Best.Len() == out.Best.Len() {
					out.Best = attempt.Best.Clone()
					out.Likelihood = attempt.Likelihood
				}
				out.Steps += attempt.StepsRun
				out.Converged = false
				continue
			}
			return out, fmt.Errorf("phase %d of %s: %w", i, label, err)
		}

		out.Best = attempt.Best.Clone()
		out.Likelihood = attempt.Likelihood
		out.Steps += attempt.StepsRun
		if !attempt.Converged {
			out.Converged = false
		}

		slog.Debug("Optimization phase complete",
			"label", label,
			"phase", i,
			"jump", phase.JumpScale,
			"temperature", phase.Temperature,
			"steps", attempt.StepsRun,
			"likelihood", attempt.Likelihood,
			"converged", attempt.Converged,
		)
	}

	return out, nil
}

func (g *GlobalOptimizer) run(ctx context.Context, req opt.Request) (opt.Attempt, error) {
	if g.timeout <= 0 {
		return g.oracle.Run(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.oracle.Run(attemptCtx, req)
}
