package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/lklprofile/internal/profile"
)

// Load reads and validates a configuration file. Every failure is a
// *profile.ConfigError.
func Load(path string) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return nil, &profile.ConfigError{Field: "config", Reason: fmt.Sprintf("%s must have a .yaml or .yml suffix", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &profile.ConfigError{Field: "config", Reason: "cannot read " + path, Err: err}
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &profile.ConfigError{Field: "config", Reason: "is empty"}
		}
		return nil, &profile.ConfigError{Field: "config", Reason: "is not valid YAML", Err: err}
	}

	if f.Env.Backend == "" {
		f.Env.Backend = BackendMontePython
	}
	if f.Env.Python == "" {
		f.Env.Python = "python3"
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the whole document and reports the first offending field.
func (f *File) Validate() error {
	switch f.Env.Backend {
	case BackendMontePython:
		if f.Env.SamplerRootDir == "" {
			return required("env.sampler_root_dir")
		}
	case BackendAnneal, BackendMayfly:
		if _, err := f.Gaussian(); err != nil {
			return err
		}
		if err := f.validateStart(); err != nil {
			return err
		}
	default:
		return &profile.ConfigError{Field: "env.backend", Reason: fmt.Sprintf("unknown backend %q (must be %s, %s or %s)", f.Env.Backend, BackendMontePython, BackendAnneal, BackendMayfly)}
	}

	if f.Run.SamplesDirectory == "" {
		return required("run.samples_directory")
	}
	if f.Run.SamplesLabel == "" {
		return required("run.samples_label")
	}
	if f.Run.ProfiledParameter == "" {
		return required("run.profiled_parameter")
	}

	p := f.Profile
	switch {
	case p.Max == nil:
		return required("profile.profile_max")
	case p.Min == nil:
		return required("profile.profile_min")
	case p.Processes == nil:
		return required("profile.processes")
	case p.Increments == nil:
		return required("profile.profile_increments")
	}
	if err := f.ProfileConfig().Validate(); err != nil {
		return err
	}

	if _, err := f.Schedules(); err != nil {
		return err
	}
	if err := f.ScanSettings().Validate(); err != nil {
		return err
	}

	if f.Env.Backend != BackendMontePython && f.Model != nil {
		if _, ok := f.Model.Center[f.Run.ProfiledParameter]; !ok {
			return &profile.ConfigError{Field: "run.profiled_parameter", Reason: fmt.Sprintf("%s is not a model parameter", f.Run.ProfiledParameter)}
		}
	}
	return nil
}

func (f *File) validateStart() error {
	g, _ := f.Gaussian()
	if _, err := g.Start(f.Model.Start); err != nil {
		return &profile.ConfigError{Field: "model.start", Reason: "is invalid", Err: err}
	}
	return nil
}

func required(field string) error {
	return &profile.ConfigError{Field: field, Reason: "is required"}
}
