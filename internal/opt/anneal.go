package opt

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

// AnnealOracle runs Workers independent Metropolis chains in-process and keeps
// the best point any of them visited.
type AnnealOracle struct {
	lkl   Likelihood
	seed  uint64
	calls atomic.Uint64
}

// NewAnneal creates an in-process annealing oracle over lkl.
func NewAnneal(lkl Likelihood, seed uint64) *AnnealOracle {
	return &AnnealOracle{lkl: lkl, seed: seed}
}

type chainResult struct {
	best     []float64
	bestLkl  float64
	steps    int
	accepted int
	complete bool
}

// Run executes one attempt.
func (a *AnnealOracle) Run(ctx context.Context, req Request) (Attempt, error) {
	if err := req.Validate(); err != nil {
		return Attempt{}, err
	}
	req.Start = req.free()

	call := a.calls.Add(1)
	chains := make([]chainResult, req.Workers)

	// Chains cannot fail; an interrupted chain reports complete=false.
	var wg sync.WaitGroup
	for w := range req.Workers {
		wg.Go(func() {
			chains[w] = a.runChain(ctx, req, call, uint64(w))
		})
	}
	wg.Wait()

	attempt := Attempt{
		Start:      req.Start.Clone(),
		Phase:      req.Phase,
		Likelihood: math.Inf(1),
		Converged:  true,
	}
	accepted := 0
	for _, c := range chains {
		attempt.StepsRun += c.steps
		accepted += c.accepted
		if !c.complete {
			attempt.Converged = false
		}
		if c.bestLkl < attempt.Likelihood {
			attempt.Likelihood = c.bestLkl
			attempt.Best = Params{Names: append([]string(nil), req.Start.Names...), Values: c.best}
		}
	}
	if attempt.Best.Names == nil {
		attempt.Best = req.Start.Clone()
	}

	slog.Debug("Anneal attempt finished",
		"label", req.Output.Label,
		"workers", req.Workers,
		"steps", attempt.StepsRun,
		"accepted", accepted,
		"likelihood", attempt.Likelihood,
		"converged", attempt.Converged,
	)

	if err := ctx.Err(); err != nil {
		attempt.Converged = false
		return attempt, err
	}
	return attempt, nil
}

func (a *AnnealOracle) runChain(ctx context.Context, req Request, call, worker uint64) chainResult {
	rng := rand.New(rand.NewPCG(a.seed^call, worker))

	n := req.Start.Len()
	full := req.Start.Merge(req.Fixed)
	eval := func(free []float64) float64 {
		copy(full.Values[:n], free)
		return a.lkl.NegLogLike(full)
	}

	widths := make([]float64, n)
	for i, name := range req.Start.Names {
		widths[i] = req.Phase.JumpScale * scaleOf(a.lkl, name)
	}

	current := append([]float64(nil), req.Start.Values...)
	currentLkl := eval(current)
	res := chainResult{
		best:    append([]float64(nil), current...),
		bestLkl: currentLkl,
	}
	proposal := make([]float64, n)

	for step := 0; step < req.MinSteps; step++ {
		if step%256 == 0 && ctx.Err() != nil {
			return res
		}
		for i := range proposal {
			proposal[i] = rng.NormFloat64()
		}
		floats.Mul(proposal, widths)
		floats.Add(proposal, current)

		candidate := eval(proposal)
		delta := candidate - currentLkl
		res.steps++

		// Accept worse points with probability e^(-delta/T)
		if delta <= 0 || rng.Float64() < math.Exp(-delta/req.Phase.Temperature) {
			copy(current, proposal)
			currentLkl = candidate
			res.accepted++
			if currentLkl < res.bestLkl {
				res.bestLkl = currentLkl
				copy(res.best, current)
			}
		}
	}

	res.complete = true
	return res
}
