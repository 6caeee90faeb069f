package store

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/lklprofile/internal/opt"
	"github.com/cwbudde/lklprofile/internal/profile"
)

// RunState is the lifecycle state recorded in a manifest.
type RunState string

const (
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
	StateCancelled RunState = "cancelled"
)

// RunConfig is the copy of the run configuration kept in the manifest.
// Resuming checks it against the current configuration.
type RunConfig struct {
	Parameter      string  `json:"parameter"`
	Label          string  `json:"label"`
	Backend        string  `json:"backend"`
	Min            float64 `json:"min"`
	Max            float64 `json:"max"`
	Increment      float64 `json:"increment"`
	InclusiveBound bool    `json:"inclusiveBound"`
}

// Key returns the run directory name, <label>_<parameter>.
func (c RunConfig) Key() string {
	return c.Label + "_" + c.Parameter
}

// Manifest describes one profile run on disk. The points themselves live in
// the per-direction point logs; the manifest only counts them.
type Manifest struct {
	// RunID is unique per run, including resumed ones
	RunID string `json:"runId"`

	// Key is the run directory name
	Key string `json:"key"`

	Config RunConfig `json:"config"`
	State  RunState  `json:"state"`

	// Anchor is the globally optimized point, nil until it exists
	Anchor *PointRecord `json:"anchor,omitempty"`

	Positive int `json:"positive"`
	Negative int `json:"negative"`

	Started time.Time `json:"started"`
	Updated time.Time `json:"updated"`

	// Error holds the failure message of a failed or cancelled run
	Error string `json:"error,omitempty"`
}

// RunInfo is the listing view of a manifest.
type RunInfo struct {
	Key       string    `json:"key"`
	RunID     string    `json:"runId"`
	Parameter string    `json:"parameter"`
	State     RunState  `json:"state"`
	Points    int       `json:"points"`
	Updated   time.Time `json:"updated"`
}

// NewManifest creates a manifest in the running state with a fresh run id.
func NewManifest(cfg RunConfig) *Manifest {
	now := time.Now()
	return &Manifest{
		RunID:   uuid.NewString(),
		Key:     cfg.Key(),
		Config:  cfg,
		State:   StateRunning,
		Started: now,
		Updated: now,
	}
}

// ToInfo converts a manifest to its listing view.
func (m *Manifest) ToInfo() RunInfo {
	points := m.Positive + m.Negative
	if m.Anchor != nil {
		points++
	}
	return RunInfo{
		Key:       m.Key,
		RunID:     m.RunID,
		Parameter: m.Config.Parameter,
		State:     m.State,
		Points:    points,
		Updated:   m.Updated,
	}
}

// Validate checks if the manifest has valid data.
func (m *Manifest) Validate() error {
	if _, err := uuid.Parse(m.RunID); err != nil {
		return &ValidationError{Field: "RunID", Reason: "is not a valid UUID"}
	}
	if m.Key == "" {
		return &ValidationError{Field: "Key", Reason: "cannot be empty"}
	}
	if m.Key != m.Config.Key() {
		return &ValidationError{Field: "Key", Reason: fmt.Sprintf("does not match config (expected %s)", m.Config.Key())}
	}
	if m.Config.Parameter == "" {
		return &ValidationError{Field: "Config.Parameter", Reason: "cannot be empty"}
	}
	if !(m.Config.Max > m.Config.Min) {
		return &ValidationError{Field: "Config.Max", Reason: "must be greater than Config.Min"}
	}
	if m.Config.Increment == 0 {
		return &ValidationError{Field: "Config.Increment", Reason: "cannot be zero"}
	}
	switch m.State {
	case StateRunning, StateCompleted, StateFailed, StateCancelled:
	default:
		return &ValidationError{Field: "State", Reason: fmt.Sprintf("unknown state %q", m.State)}
	}
	if m.Positive < 0 || m.Negative < 0 {
		return &ValidationError{Field: "Positive/Negative", Reason: "cannot be negative"}
	}
	if m.Updated.IsZero() {
		return &ValidationError{Field: "Updated", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a manifest validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this run can be resumed with the given config.
// The range may change between runs; what was already computed may not.
func (m *Manifest) IsCompatible(cfg RunConfig) error {
	if m.Config.Parameter != cfg.Parameter {
		return &CompatibilityError{Field: "Parameter", Expected: m.Config.Parameter, Actual: cfg.Parameter}
	}
	if m.Config.Label != cfg.Label {
		return &CompatibilityError{Field: "Label", Expected: m.Config.Label, Actual: cfg.Label}
	}
	if m.Config.Backend != cfg.Backend {
		return &CompatibilityError{Field: "Backend", Expected: m.Config.Backend, Actual: cfg.Backend}
	}
	if math.Abs(m.Config.Increment) != math.Abs(cfg.Increment) {
		return &CompatibilityError{
			Field:    "Increment",
			Expected: fmt.Sprintf("%g", math.Abs(m.Config.Increment)),
			Actual:   fmt.Sprintf("%g", math.Abs(cfg.Increment)),
		}
	}
	return nil
}

// CompatibilityError represents a resume compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

// PointRecord is the persisted form of a profile point. JSON has no NaN, so
// an undefined likelihood is stored as null.
type PointRecord struct {
	Value      float64    `json:"value"`
	Likelihood *float64   `json:"likelihood"`
	Free       opt.Params `json:"free"`
	Converged  bool       `json:"converged"`
	Recorded   time.Time  `json:"recorded"`
}

// NewPointRecord converts a point for persistence.
func NewPointRecord(p profile.Point) PointRecord {
	rec := PointRecord{
		Value:     p.Value,
		Free:      p.Free.Clone(),
		Converged: p.Converged,
		Recorded:  time.Now(),
	}
	if !math.IsNaN(p.Likelihood) && !math.IsInf(p.Likelihood, 0) {
		lkl := p.Likelihood
		rec.Likelihood = &lkl
	}
	return rec
}

// Point converts the record back.
func (r PointRecord) Point() profile.Point {
	lkl := math.NaN()
	if r.Likelihood != nil {
		lkl = *r.Likelihood
	}
	return profile.Point{
		Value:      r.Value,
		Likelihood: lkl,
		Free:       r.Free.Clone(),
		Converged:  r.Converged,
	}
}
