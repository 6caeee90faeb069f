package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cwbudde/lklprofile/internal/profile"
)

var _ Store = (*FSStore)(nil)

// FSStore implements the Store interface on the filesystem.
// Runs are stored in a directory structure: <baseDir>/<label>_<parameter>/
//
// Manifests are written with temp file + rename, so readers never see a
// partial manifest.
type FSStore struct {
	baseDir string // e.g. <samples_directory>/profiles
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of all runs.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// RunDir returns the directory of the run with the given key.
func (fs *FSStore) RunDir(key string) string {
	return filepath.Join(fs.baseDir, key)
}

func (fs *FSStore) manifestPath(key string) string {
	return filepath.Join(fs.RunDir(key), "manifest.json")
}

// SaveManifest atomically saves the manifest for the given run.
func (fs *FSStore) SaveManifest(key string, m *Manifest) error {
	if key == "" {
		return fmt.Errorf("run key cannot be empty")
	}
	if m == nil {
		return fmt.Errorf("manifest cannot be nil")
	}

	runDir := fs.RunDir(key)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	tmp, err := os.CreateTemp(runDir, "manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest file: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp manifest file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp manifest file: %w", err)
	}

	finalPath := fs.manifestPath(key)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	slog.Debug("Manifest saved", "key", key, "run_id", m.RunID, "path", finalPath)
	return nil
}

// LoadManifest retrieves the manifest for the given run.
func (fs *FSStore) LoadManifest(key string) (*Manifest, error) {
	if key == "" {
		return nil, fmt.Errorf("run key cannot be empty")
	}

	path := fs.manifestPath(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Key: key}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}

	slog.Debug("Manifest loaded", "key", key, "path", path)
	return &m, nil
}

// ListRuns returns metadata for all runs, sorted by key.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		key := entry.Name()
		if _, err := os.Stat(fs.manifestPath(key)); os.IsNotExist(err) {
			continue
		}

		m, err := fs.LoadManifest(key)
		if err != nil {
			slog.Warn("Failed to load manifest for listing", "key", key, "error", err)
			continue
		}
		infos = append(infos, m.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// DeleteRun removes the run directory and everything in it.
func (fs *FSStore) DeleteRun(key string) error {
	if key == "" {
		return fmt.Errorf("run key cannot be empty")
	}

	runDir := fs.RunDir(key)
	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return &NotFoundError{Key: key}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "key", key, "path", runDir)
	return nil
}

// LoadState reads back what a previous run recorded: its manifest and the
// anchor and points to continue from.
func (fs *FSStore) LoadState(key string) (*Manifest, profile.State, error) {
	m, err := fs.LoadManifest(key)
	if err != nil {
		return nil, profile.State{}, err
	}

	var state profile.State
	if m.Anchor != nil {
		anchor := m.Anchor.Point()
		state.Anchor = &anchor
	}

	runDir := fs.RunDir(key)
	if state.Positive, err = ReadPoints(runDir, profile.Positive); err != nil {
		return nil, profile.State{}, err
	}
	if state.Negative, err = ReadPoints(runDir, profile.Negative); err != nil {
		return nil, profile.State{}, err
	}
	return m, state, nil
}
