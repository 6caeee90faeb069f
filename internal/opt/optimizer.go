package opt

import (
	"context"
	"fmt"
)

// Phase is one step of an annealing schedule.
type Phase struct {
	JumpScale   float64 `json:"jumpScale"`
	Temperature float64 `json:"temperature"`
}

// Location names where an attempt may write its sampler output.
type Location struct {
	Dir   string
	Label string
}

// Request describes a single optimization attempt.
type Request struct {
	// Start holds the free parameters the attempt begins from
	Start Params
	// Fixed holds parameters pinned for the whole attempt (the profiled parameter)
	Fixed map[string]float64

	Phase    Phase
	MinSteps int
	Workers  int
	Output   Location
}

// Attempt is the outcome of one oracle invocation.
type Attempt struct {
	Start      Params
	Phase      Phase
	StepsRun   int
	Best       Params
	Likelihood float64
	Converged  bool
}

// Oracle runs one optimization attempt and blocks until it is done.
//
// Non-convergence is reported through Attempt.Converged, not as an error.
// When ctx expires an oracle may return a partial Attempt together with the
// context error; callers decide whether the partial best point is usable.
type Oracle interface {
	Run(ctx context.Context, req Request) (Attempt, error)
}

// Likelihood evaluates the negative log-likelihood of a full parameter vector.
type Likelihood interface {
	NegLogLike(p Params) float64
}

// Scaler is implemented by likelihoods that know a natural proposal width per parameter.
type Scaler interface {
	Scale(name string) float64
}

func scaleOf(lkl Likelihood, name string) float64 {
	if s, ok := lkl.(Scaler); ok {
		if v := s.Scale(name); v > 0 {
			return v
		}
	}
	return 1
}

// free returns Start without any of the fixed parameters.
func (r Request) free() Params {
	p := r.Start
	for name := range r.Fixed {
		p = p.Without(name)
	}
	return p
}

// Validate checks that the request can be handed to a backend.
func (r Request) Validate() error {
	if r.MinSteps <= 0 {
		return fmt.Errorf("min steps must be positive, got %d", r.MinSteps)
	}
	if r.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", r.Workers)
	}
	if r.Phase.JumpScale <= 0 || r.Phase.Temperature <= 0 {
		return fmt.Errorf("phase must have positive jump scale and temperature, got %+v", r.Phase)
	}
	if len(r.Start.Names) != len(r.Start.Values) {
		return fmt.Errorf("start has %d names but %d values", len(r.Start.Names), len(r.Start.Values))
	}
	return nil
}
