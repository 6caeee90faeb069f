package profile

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/lklprofile/internal/opt"
)

// Schedule is an annealing cooling schedule, applied in order.
type Schedule []opt.Phase

// NewSchedule pairs jump scales with temperatures index by index.
// Unequal lengths are a configuration error; nothing is truncated.
func NewSchedule(jumpScales, temperatures []float64) (Schedule, error) {
	if len(jumpScales) != len(temperatures) {
		return nil, &ConfigError{
			Field:  "temperatures",
			Reason: fmt.Sprintf("must have as many entries as jump_factors (got %d, want %d)", len(temperatures), len(jumpScales)),
		}
	}
	s := make(Schedule, len(jumpScales))
	for i := range jumpScales {
		s[i] = opt.Phase{JumpScale: jumpScales[i], Temperature: temperatures[i]}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks that every phase has a positive jump scale and temperature.
func (s Schedule) Validate() error {
	for i, p := range s {
		if !(p.JumpScale > 0) {
			return &ConfigError{Field: fmt.Sprintf("jump_factors[%d]", i), Reason: "must be positive"}
		}
		if !(p.Temperature > 0) {
			return &ConfigError{Field: fmt.Sprintf("temperatures[%d]", i), Reason: "must be positive"}
		}
	}
	return nil
}

// Schedules holds the schedule for the unconstrained anchor fit and the
// schedule used at every grid point.
type Schedules struct {
	Global  Schedule
	Mapping Schedule
}

// ScanSettings holds the sampler step floors.
type ScanSettings struct {
	// GlobalMinSteps is the minimum sampler steps per global-optimization phase
	GlobalMinSteps int
	// ProfileMinSteps is the minimum sampler steps per phase at each grid point
	ProfileMinSteps int
}

// Validate checks both step floors are positive.
func (s ScanSettings) Validate() error {
	if s.GlobalMinSteps <= 0 {
		return &ConfigError{Field: "global_optimization.min_steps", Reason: "must be positive"}
	}
	if s.ProfileMinSteps <= 0 {
		return &ConfigError{Field: "mapping.min_steps", Reason: "must be positive"}
	}
	return nil
}

// HaltPolicy decides when a direction gives up on persistent non-convergence.
type HaltPolicy struct {
	// Patience is the number of consecutive non-converged grid points after
	// which the direction stops. Zero never halts.
	Patience int
}

// Config is the validated, immutable description of one profile run.
type Config struct {
	Parameter string
	Min       float64
	Max       float64
	Increment float64
	Workers   int

	// InclusiveBound keeps a grid value that lands exactly on Min/Max.
	InclusiveBound bool
	Halt           HaltPolicy

	// AttemptTimeout bounds each oracle call. Zero disables it.
	AttemptTimeout time.Duration

	// ConcurrentDirections runs the positive and negative scans in parallel.
	ConcurrentDirections bool
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Parameter == "" {
		return &ConfigError{Field: "run.profiled_parameter", Reason: "cannot be empty"}
	}
	if math.IsNaN(c.Min) || math.IsNaN(c.Max) || !(c.Max > c.Min) {
		return &ConfigError{Field: "profile.profile_max", Reason: fmt.Sprintf("must be greater than profile_min (got max=%g, min=%g)", c.Max, c.Min)}
	}
	if c.Increment == 0 || math.IsNaN(c.Increment) || math.IsInf(c.Increment, 0) {
		return &ConfigError{Field: "profile.profile_increments", Reason: "must be a finite non-zero number"}
	}
	if c.Workers < 1 {
		return &ConfigError{Field: "profile.processes", Reason: "must be at least 1"}
	}
	if c.Halt.Patience < 0 {
		return &ConfigError{Field: "profile.halt_after_failures", Reason: "cannot be negative"}
	}
	if c.AttemptTimeout < 0 {
		return &ConfigError{Field: "profile.attempt_timeout", Reason: "cannot be negative"}
	}
	return nil
}

// Step returns the absolute grid increment.
func (c Config) Step() float64 {
	return math.Abs(c.Increment)
}

// Direction identifies one half of a bidirectional scan.
type Direction string

const (
	Positive Direction = "positive"
	Negative Direction = "negative"
)

// DirectionOf returns the direction an increment walks in.
func DirectionOf(increment float64) Direction {
	if increment < 0 {
		return Negative
	}
	return Positive
}

// Point is one recorded grid point of the profile.
type Point struct {
	// Value is the fixed value of the profiled parameter
	Value float64 `json:"value"`

	// Likelihood is the best -lnL found with the parameter fixed at Value
	Likelihood float64 `json:"likelihood"`

	// Free holds the optimized nuisance parameters
	Free opt.Params `json:"free"`

	// Converged is false when any optimization phase at this point did not converge
	Converged bool `json:"converged"`
}
