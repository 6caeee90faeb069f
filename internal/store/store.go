// Package store persists profile runs: a manifest per run, one JSON line per
// recorded point and direction, and the final tab separated profile tables.
package store

// Store defines the interface for run manifest persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveManifest atomically saves the manifest of the run with the given key,
	// overwriting any previous one.
	SaveManifest(key string, m *Manifest) error

	// LoadManifest retrieves the manifest for the given key.
	// Returns ErrNotFound if no manifest exists.
	LoadManifest(key string) (*Manifest, error)

	// ListRuns returns metadata for all runs with a readable manifest.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run directory with its manifest, point logs,
	// tables and sampler attempts.
	DeleteRun(key string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	if e.Key != "" {
		return "run not found: " + e.Key
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
