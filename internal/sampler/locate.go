// Package sampler adapts an external MontePython-style Monte Carlo sampler to
// the opt.Oracle interface.
package sampler

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// EntryPoint is the script expected under the sampler root directory.
const EntryPoint = "MontePython.py"

// ErrEnvironment matches any *EnvironmentError.
var ErrEnvironment = &EnvironmentError{}

// EnvironmentError reports a missing or unusable sampler installation.
type EnvironmentError struct {
	Path   string
	Reason string
}

func (e *EnvironmentError) Error() string {
	if e.Path == "" {
		return "environment error: " + e.Reason
	}
	return "environment error: " + e.Path + ": " + e.Reason
}

func (e *EnvironmentError) Is(target error) bool {
	_, ok := target.(*EnvironmentError)
	return ok
}

// Handle is a resolved sampler installation. It is created once at startup
// and passed explicitly to the oracle.
type Handle struct {
	Root     string
	Script   string
	Python   string
	Launcher string
}

// Locate resolves the sampler script under root and the interpreter and MPI
// launcher on PATH. launcher may be empty to run without MPI.
func Locate(root, python, launcher string) (*Handle, error) {
	if root == "" {
		return nil, &EnvironmentError{Reason: "sampler root directory is not set"}
	}
	abs, err := filepath.Abs(expandHome(root))
	if err != nil {
		return nil, &EnvironmentError{Path: root, Reason: err.Error()}
	}

	script := filepath.Join(abs, EntryPoint)
	info, err := os.Stat(script)
	if err != nil {
		return nil, &EnvironmentError{Path: script, Reason: "sampler entry point not found"}
	}
	if info.IsDir() {
		return nil, &EnvironmentError{Path: script, Reason: "sampler entry point is a directory"}
	}

	if python == "" {
		python = "python3"
	}
	pythonPath, err := exec.LookPath(python)
	if err != nil {
		return nil, &EnvironmentError{Path: python, Reason: "interpreter not found"}
	}

	h := &Handle{Root: abs, Script: script, Python: pythonPath}
	if launcher != "" {
		launcherPath, err := exec.LookPath(launcher)
		if err != nil {
			return nil, &EnvironmentError{Path: launcher, Reason: "MPI launcher not found"}
		}
		h.Launcher = launcherPath
	}
	return h, nil
}

// Command returns the argv for one sampler invocation.
func (h *Handle) Command(workers int, args ...string) []string {
	var argv []string
	if h.Launcher != "" {
		argv = append(argv, h.Launcher, "-np", fmt.Sprint(workers))
	}
	argv = append(argv, h.Python, h.Script)
	return append(argv, args...)
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
