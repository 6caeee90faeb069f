package store

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/lklprofile/internal/opt"
	"github.com/cwbudde/lklprofile/internal/profile"
)

// Table file names inside a run directory.
const (
	TableFile         = "lkl_profile.txt"
	PositiveTableFile = "lkl_profile_pos.txt"
	NegativeTableFile = "lkl_profile_neg.txt"
)

var tableColumns = []string{"profiled_value", "best_likelihood", "converged"}

// WriteTable writes points as a tab separated table with a "#" header line:
// profiled value, best likelihood, converged flag, then one column per free
// parameter. A point without a value for a column gets NaN.
func WriteTable(path string, points []profile.Point) error {
	names := tableNames(points)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create profile table: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	fmt.Fprintf(bw, "# %s\n", strings.Join(append(append([]string(nil), tableColumns...), names...), "\t"))

	w := csv.NewWriter(bw)
	w.Comma = '\t'
	for _, p := range points {
		row := make([]string, 0, len(tableColumns)+len(names))
		row = append(row,
			formatFloat(p.Value),
			formatFloat(p.Likelihood),
			strconv.FormatBool(p.Converged),
		)
		for _, name := range names {
			v, ok := p.Free.Get(name)
			if !ok {
				v = math.NaN()
			}
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write profile row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write profile table: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush profile table: %w", err)
	}
	return f.Close()
}

// ReadTable reads a table written by WriteTable.
func ReadTable(path string) ([]profile.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile table: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read profile table header: %w", err)
	}
	if !strings.HasPrefix(header, "#") {
		return nil, fmt.Errorf("profile table %s: missing header line", path)
	}
	cols := strings.Fields(strings.TrimPrefix(header, "#"))
	if len(cols) < len(tableColumns) {
		return nil, fmt.Errorf("profile table %s: header has %d columns, expected at least %d", path, len(cols), len(tableColumns))
	}
	names := cols[len(tableColumns):]

	r := csv.NewReader(br)
	r.Comma = '\t'
	r.Comment = '#'
	r.FieldsPerRecord = len(cols)

	var points []profile.Point
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("profile table %s: %w", path, err)
		}

		p, err := parseRow(row, names)
		if err != nil {
			return nil, fmt.Errorf("profile table %s: %w", path, err)
		}
		points = append(points, p)
	}
	return points, nil
}

func parseRow(row []string, names []string) (profile.Point, error) {
	var p profile.Point
	var err error
	if p.Value, err = strconv.ParseFloat(row[0], 64); err != nil {
		return p, fmt.Errorf("invalid profiled value %q", row[0])
	}
	if p.Likelihood, err = strconv.ParseFloat(row[1], 64); err != nil {
		return p, fmt.Errorf("invalid likelihood %q", row[1])
	}
	if p.Converged, err = strconv.ParseBool(row[2]); err != nil {
		return p, fmt.Errorf("invalid converged flag %q", row[2])
	}

	values := make([]float64, len(names))
	for i, field := range row[len(tableColumns):] {
		if values[i], err = strconv.ParseFloat(field, 64); err != nil {
			return p, fmt.Errorf("invalid value %q for %s", field, names[i])
		}
	}
	p.Free = opt.Params{Names: append([]string(nil), names...), Values: values}
	return p, nil
}

// tableNames is the free parameter column order: names of the first point
// that has any, then names only later points carry.
func tableNames(points []profile.Point) []string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range points {
		for _, name := range p.Free.Names {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
