package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/lklprofile/internal/profile"
)

// Recorder persists a run as it progresses. It implements profile.Sink: the
// anchor goes into the manifest, every scan point is appended to its
// direction's log and flushed before the scan continues.
type Recorder struct {
	mu       sync.Mutex
	store    Store
	runDir   string
	manifest *Manifest
	writers  map[profile.Direction]*PointWriter
}

// NewRecorder opens the point logs of m's run for appending and saves m.
func NewRecorder(fs *FSStore, m *Manifest) (*Recorder, error) {
	return newRecorder(fs, fs.RunDir(m.Key), m)
}

func newRecorder(s Store, runDir string, m *Manifest) (*Recorder, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	r := &Recorder{
		store:    s,
		runDir:   runDir,
		manifest: m,
		writers:  make(map[profile.Direction]*PointWriter, 2),
	}
	for _, dir := range []profile.Direction{profile.Positive, profile.Negative} {
		w, err := NewPointWriter(runDir, dir, true)
		if err != nil {
			r.closeWriters()
			return nil, err
		}
		r.writers[dir] = w
	}

	if err := r.save(); err != nil {
		r.closeWriters()
		return nil, err
	}
	return r, nil
}

// Manifest returns a copy of the current manifest.
func (r *Recorder) Manifest() Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.manifest
}

// Anchor records the globally optimized point.
func (r *Recorder) Anchor(p profile.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := NewPointRecord(p)
	r.manifest.Anchor = &rec
	return r.save()
}

// Record appends a scan point to its direction's log.
func (r *Recorder) Record(dir profile.Direction, p profile.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.writers[dir]
	if !ok {
		return fmt.Errorf("unknown direction %q", dir)
	}
	if err := w.Write(NewPointRecord(p)); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	switch dir {
	case profile.Positive:
		r.manifest.Positive++
	case profile.Negative:
		r.manifest.Negative++
	}
	return r.save()
}

// Finish closes the point logs, writes the profile tables when result is
// non-nil and stores the final state derived from runErr.
func (r *Recorder) Finish(result *profile.Result, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	closeErr := r.closeWriters()

	switch {
	case runErr == nil:
		r.manifest.State = StateCompleted
	case errors.Is(runErr, context.Canceled):
		r.manifest.State = StateCancelled
		r.manifest.Error = runErr.Error()
	default:
		r.manifest.State = StateFailed
		r.manifest.Error = runErr.Error()
	}

	if result != nil {
		if err := r.writeTables(result); err != nil {
			return err
		}
	}
	if err := r.save(); err != nil {
		return err
	}
	return closeErr
}

func (r *Recorder) writeTables(result *profile.Result) error {
	runDir := r.runDir

	var pos, neg []profile.Point
	for _, p := range result.Points {
		switch {
		case p.Value > result.Anchor.Value:
			pos = append(pos, p)
		case p.Value < result.Anchor.Value:
			neg = append([]profile.Point{p}, neg...)
		}
	}

	tables := []struct {
		name   string
		points []profile.Point
	}{
		{TableFile, result.Points},
		{PositiveTableFile, pos},
		{NegativeTableFile, neg},
	}
	for _, t := range tables {
		path := filepath.Join(runDir, t.name)
		if err := WriteTable(path, t.points); err != nil {
			return err
		}
		slog.Debug("Profile table written", "path", path, "points", len(t.points))
	}
	return nil
}

func (r *Recorder) save() error {
	r.manifest.Updated = time.Now()
	return r.store.SaveManifest(r.manifest.Key, r.manifest)
}

func (r *Recorder) closeWriters() error {
	var errs []error
	for dir, w := range r.writers {
		errs = append(errs, w.Close())
		delete(r.writers, dir)
	}
	return errors.Join(errs...)
}
