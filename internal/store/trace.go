package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cwbudde/lklprofile/internal/profile"
)

// PointWriter appends point records to <runDir>/<direction>.jsonl.
// It uses buffered I/O and is safe for concurrent use.
type PointWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

func pointsPath(runDir string, dir profile.Direction) string {
	return filepath.Join(runDir, string(dir)+".jsonl")
}

// NewPointWriter opens the point log of one direction.
// If append is true, new records are appended to an existing log.
func NewPointWriter(runDir string, dir profile.Direction, append bool) (*PointWriter, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := pointsPath(runDir, dir)
	var file *os.File
	var err error
	if append {
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	} else {
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open point log: %w", err)
	}

	return &PointWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write buffers one record. It reaches the file on Flush or Close.
func (pw *PointWriter) Write(rec PointRecord) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal point record: %w", err)
	}
	if _, err := pw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write point record: %w", err)
	}
	if err := pw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Flush writes buffered records and syncs the file to disk.
func (pw *PointWriter) Flush() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush point writer: %w", err)
	}
	if err := pw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync point log: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the log.
func (pw *PointWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.writer.Flush(); err != nil {
		pw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := pw.file.Close(); err != nil {
		return fmt.Errorf("failed to close point log: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the point log.
func (pw *PointWriter) Path() string {
	return pw.path
}

// PointReader reads point records from a direction's log.
type PointReader struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// NewPointReader opens the point log of one direction.
func NewPointReader(runDir string, dir profile.Direction) (*PointReader, error) {
	file, err := os.Open(pointsPath(runDir, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Key: filepath.Base(runDir) + "/" + string(dir)}
		}
		return nil, fmt.Errorf("failed to open point log: %w", err)
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &PointReader{file: file, scanner: scanner}, nil
}

// Read returns the next record, or io.EOF when none remain.
func (pr *PointReader) Read() (*PointRecord, error) {
	for pr.scanner.Scan() {
		pr.line++
		line := pr.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec PointRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal point record on line %d: %w", pr.line, err)
		}
		return &rec, nil
	}
	if err := pr.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan point log: %w", err)
	}
	return nil, io.EOF
}

// ReadAll reads all remaining records.
func (pr *PointReader) ReadAll() ([]PointRecord, error) {
	var recs []PointRecord
	for {
		rec, err := pr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

// Close closes the point reader.
func (pr *PointReader) Close() error {
	if err := pr.file.Close(); err != nil {
		return fmt.Errorf("failed to close point log: %w", err)
	}
	return nil
}

// ReadPoints returns the points of one direction in recorded order. A
// direction that never recorded anything has no points and no error.
func ReadPoints(runDir string, dir profile.Direction) ([]profile.Point, error) {
	reader, err := NewPointReader(runDir, dir)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer reader.Close()

	recs, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	points := make([]profile.Point, len(recs))
	for i, rec := range recs {
		points[i] = rec.Point()
	}
	return points, nil
}

