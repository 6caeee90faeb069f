package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/lklprofile/internal/profile"
	"github.com/cwbudde/lklprofile/internal/sampler"
	"github.com/cwbudde/lklprofile/internal/store"
)

const annealConfig = `
env:
  backend: %s
run:
  samples_directory: %s
  samples_label: toy
  profiled_parameter: x
profile:
  profile_max: 1.5
  profile_min: -0.5
  processes: 2
  profile_increments: 0.5
global_optimization: {jump_factors: [1, 0.3], temperatures: [1, 0.1], min_steps: 400}
mapping: {jump_factors: [0.3], temperatures: [0.1], min_steps: 200}
model:
  center: {x: 0.5, y: 1, z: 0}
  sigma: {x: 0.5, y: 2, z: 1}
  seed: 3
`

func writeConfig(t *testing.T, backend string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(annealConfig, backend, dir)), 0644); err != nil {
		t.Fatal(err)
	}
	return path, filepath.Join(dir, "profiles")
}

func TestExecuteRunAndResume(t *testing.T) {
	path, profiles := writeConfig(t, "anneal")

	if err := execute(context.Background(), path, false); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	fs, err := store.NewFSStore(profiles)
	if err != nil {
		t.Fatal(err)
	}
	m, err := fs.LoadManifest("toy_x")
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if m.State != store.StateCompleted {
		t.Errorf("State = %s, expected completed", m.State)
	}
	if m.Anchor == nil {
		t.Fatal("Anchor not recorded")
	}

	points, err := store.ReadTable(filepath.Join(fs.RunDir("toy_x"), store.TableFile))
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(points) != m.Positive+m.Negative+1 {
		t.Errorf("Table has %d rows, manifest counts %d+%d+anchor", len(points), m.Positive, m.Negative)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Value <= points[i-1].Value {
			t.Fatalf("Table not strictly ascending at row %d", i)
		}
	}
	for _, p := range points {
		if p.Value < -0.5-1e-9 || p.Value > 1.5+1e-9 {
			t.Errorf("Point %g outside the profile range", p.Value)
		}
	}

	// A second run of the same profile must not silently overwrite it
	if err := execute(context.Background(), path, false); err == nil {
		t.Error("Expected error for an existing run without --overwrite")
	}

	// Resuming a completed run reuses everything and adds nothing
	if err := execute(context.Background(), path, true); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	resumed, err := fs.LoadManifest("toy_x")
	if err != nil {
		t.Fatal(err)
	}
	if resumed.Positive != m.Positive || resumed.Negative != m.Negative {
		t.Errorf("Resume recomputed points: %d/%d, before %d/%d", resumed.Positive, resumed.Negative, m.Positive, m.Negative)
	}
	if resumed.Anchor.Value != m.Anchor.Value {
		t.Errorf("Resume changed the anchor: %g, before %g", resumed.Anchor.Value, m.Anchor.Value)
	}
}

func TestExecuteOverwrite(t *testing.T) {
	path, _ := writeConfig(t, "mayfly")
	if err := execute(context.Background(), path, false); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	overwrite = true
	t.Cleanup(func() { overwrite = false })
	if err := execute(context.Background(), path, false); err != nil {
		t.Fatalf("run with --overwrite failed: %v", err)
	}
}

func TestExecuteResumeWithoutRun(t *testing.T) {
	path, _ := writeConfig(t, "anneal")
	err := execute(context.Background(), path, true)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected NotFoundError, got %v", err)
	}
}

func TestExecuteConfigErrors(t *testing.T) {
	err := execute(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), false)
	if exitCode(err) != 2 {
		t.Errorf("Missing config should exit 2, got %d (%v)", exitCode(err), err)
	}

	path, _ := writeConfig(t, "montepython")
	data, _ := os.ReadFile(path)
	doc := strings.Replace(string(data), "env:\n", "env:\n  sampler_root_dir: "+t.TempDir()+"\n", 1)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	err = execute(context.Background(), path, false)
	if exitCode(err) != 3 {
		t.Errorf("Missing sampler should exit 3, got %d (%v)", exitCode(err), err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("wrapped: %w", &profile.ConfigError{Field: "mapping.temperatures"}), 2},
		{&sampler.EnvironmentError{Reason: "missing"}, 3},
		{context.Canceled, 1},
		{errors.New("oracle failed"), 1},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, expected %d", tt.err, got, tt.want)
		}
	}
}
