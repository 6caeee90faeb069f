// Package config reads the YAML run configuration and turns it into the
// immutable values the profile driver works with.
package config

import (
	"path/filepath"
	"time"

	"github.com/cwbudde/lklprofile/internal/model"
	"github.com/cwbudde/lklprofile/internal/profile"
)

// Oracle backends.
const (
	BackendMontePython = "montepython"
	BackendAnneal      = "anneal"
	BackendMayfly      = "mayfly"
)

// File is the YAML document as written by the user.
type File struct {
	Env                Env              `yaml:"env"`
	Run                Run              `yaml:"run"`
	Profile            Profile          `yaml:"profile"`
	GlobalOptimization *ScheduleSection `yaml:"global_optimization"`
	Mapping            *ScheduleSection `yaml:"mapping"`
	Model              *Model           `yaml:"model"`
}

// Env locates the sampler installation.
type Env struct {
	SamplerRootDir string `yaml:"sampler_root_dir"`
	Backend        string `yaml:"backend"`
	Python         string `yaml:"python"`
	MPILauncher    string `yaml:"mpi_launcher"`
}

// Run names the previous sampling run and the parameter to profile.
type Run struct {
	SamplesDirectory  string `yaml:"samples_directory"`
	SamplesLabel      string `yaml:"samples_label"`
	ProfiledParameter string `yaml:"profiled_parameter"`
}

// Profile holds the grid and scan settings. Pointer fields are required keys.
type Profile struct {
	Max                  *float64      `yaml:"profile_max"`
	Min                  *float64      `yaml:"profile_min"`
	Processes            *int          `yaml:"processes"`
	Increments           *float64      `yaml:"profile_increments"`
	InclusiveBound       *bool         `yaml:"inclusive_bound"`
	HaltAfterFailures    int           `yaml:"halt_after_failures"`
	AttemptTimeout       time.Duration `yaml:"attempt_timeout"`
	ConcurrentDirections bool          `yaml:"concurrent_directions"`
}

// ScheduleSection is one annealing schedule with its step floor.
type ScheduleSection struct {
	JumpFactors  []float64 `yaml:"jump_factors"`
	Temperatures []float64 `yaml:"temperatures"`
	MinSteps     int       `yaml:"min_steps"`
}

// Model configures the in-process likelihood used by the anneal and mayfly
// backends.
type Model struct {
	Center map[string]float64 `yaml:"center"`
	Sigma  map[string]float64 `yaml:"sigma"`
	Start  map[string]float64 `yaml:"start"`
	Seed   int64              `yaml:"seed"`

	// PopSize is the mayfly population size (default 30)
	PopSize int `yaml:"pop_size"`
}

// ProfileConfig returns the validated profile settings.
func (f *File) ProfileConfig() profile.Config {
	cfg := profile.Config{
		Parameter:            f.Run.ProfiledParameter,
		InclusiveBound:       true,
		Halt:                 profile.HaltPolicy{Patience: f.Profile.HaltAfterFailures},
		AttemptTimeout:       f.Profile.AttemptTimeout,
		ConcurrentDirections: f.Profile.ConcurrentDirections,
	}
	if f.Profile.Max != nil {
		cfg.Max = *f.Profile.Max
	}
	if f.Profile.Min != nil {
		cfg.Min = *f.Profile.Min
	}
	if f.Profile.Increments != nil {
		cfg.Increment = *f.Profile.Increments
	}
	if f.Profile.Processes != nil {
		cfg.Workers = *f.Profile.Processes
	}
	if f.Profile.InclusiveBound != nil {
		cfg.InclusiveBound = *f.Profile.InclusiveBound
	}
	return cfg
}

// Schedules builds both annealing schedules.
func (f *File) Schedules() (profile.Schedules, error) {
	global, err := buildSchedule("global_optimization", f.GlobalOptimization)
	if err != nil {
		return profile.Schedules{}, err
	}
	mapping, err := buildSchedule("mapping", f.Mapping)
	if err != nil {
		return profile.Schedules{}, err
	}
	return profile.Schedules{Global: global, Mapping: mapping}, nil
}

func buildSchedule(section string, s *ScheduleSection) (profile.Schedule, error) {
	if s == nil {
		return nil, &profile.ConfigError{Field: section, Reason: "is required"}
	}
	schedule, err := profile.NewSchedule(s.JumpFactors, s.Temperatures)
	if err != nil {
		return nil, profile.WithFieldPrefix(section, err)
	}
	return schedule, nil
}

// ScanSettings returns the step floors of both phases of the run.
func (f *File) ScanSettings() profile.ScanSettings {
	var s profile.ScanSettings
	if f.GlobalOptimization != nil {
		s.GlobalMinSteps = f.GlobalOptimization.MinSteps
	}
	if f.Mapping != nil {
		s.ProfileMinSteps = f.Mapping.MinSteps
	}
	return s
}

// Gaussian builds the in-process likelihood of the model section.
func (f *File) Gaussian() (*model.Gaussian, error) {
	if f.Model == nil {
		return nil, &profile.ConfigError{Field: "model", Reason: "is required for backend " + f.Env.Backend}
	}
	g, err := model.NewGaussian(f.Model.Center, f.Model.Sigma)
	if err != nil {
		return nil, &profile.ConfigError{Field: "model", Reason: "is invalid", Err: err}
	}
	return g, nil
}

// ProfilesDir is where run directories are stored.
func (f *File) ProfilesDir() string {
	return filepath.Join(f.Run.SamplesDirectory, "profiles")
}

// RunKey is the run directory name, <label>_<parameter>.
func (f *File) RunKey() string {
	return f.Run.SamplesLabel + "_" + f.Run.ProfiledParameter
}
