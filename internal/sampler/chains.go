package sampler

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/lklprofile/internal/opt"
)

// ChainSummary is what an attempt learns from the chains it produced.
type ChainSummary struct {
	Best       opt.Params
	Likelihood float64
	Steps      int
	Rows       int
}

// WriteBestfit writes p in bestfit format: a "# name, name" header line and
// one line of values.
func WriteBestfit(path string, p opt.Params) error {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(strings.Join(p.Names, ", "))
	b.WriteByte('\n')
	for i, v := range p.Values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatFloat(v, 'e', -1, 64))
	}
	b.WriteByte('\n')

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write bestfit file: %w", err)
	}
	return nil
}

// ReadBestfit reads a bestfit file.
func ReadBestfit(path string) (opt.Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return opt.Params{}, fmt.Errorf("failed to open bestfit file: %w", err)
	}
	defer f.Close()

	var names []string
	var values []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			for _, n := range strings.Split(strings.TrimPrefix(line, "#"), ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
			continue
		}
		values, err = parseFloats(strings.Fields(line))
		if err != nil {
			return opt.Params{}, fmt.Errorf("bestfit %s: %w", path, err)
		}
		break
	}
	if err := scanner.Err(); err != nil {
		return opt.Params{}, fmt.Errorf("failed to read bestfit file: %w", err)
	}

	p, err := opt.NewParams(names, values)
	if err != nil {
		return opt.Params{}, fmt.Errorf("bestfit %s: %w", path, err)
	}
	return p, nil
}

// ReadParamnames reads the first column of a paramnames file.
func ReadParamnames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open paramnames file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		names = append(names, strings.TrimSuffix(fields[0], "*"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read paramnames file: %w", err)
	}
	return names, nil
}

// ReadChains scans chain files whose rows are "multiplicity -lnL v1 ... vn"
// with values in names order, and returns the lowest -lnL row.
// Extra trailing columns (derived parameters) are ignored.
func ReadChains(paths []string, names []string) (ChainSummary, error) {
	summary := ChainSummary{Likelihood: math.Inf(1)}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return summary, fmt.Errorf("failed to open chain: %w", err)
		}
		err = scanChain(f, names, &summary)
		f.Close()
		if err != nil {
			return summary, fmt.Errorf("chain %s: %w", path, err)
		}
	}
	if summary.Rows == 0 {
		return summary, fmt.Errorf("no samples found in %d chain file(s)", len(paths))
	}
	return summary, nil
}

func scanChain(r io.Reader, names []string, summary *ChainSummary) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 2+len(names) {
			return fmt.Errorf("line %d: expected at least %d columns, got %d", line, 2+len(names), len(fields))
		}
		row, err := parseFloats(fields[:2+len(names)])
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		summary.Rows++
		summary.Steps += int(row[0])
		if row[1] < summary.Likelihood {
			summary.Likelihood = row[1]
			summary.Best = opt.Params{
				Names:  append([]string(nil), names...),
				Values: append([]float64(nil), row[2:]...),
			}
		}
	}
	return scanner.Err()
}

// ChainFiles lists the "<prefix>*.txt" chain files in dir, sorted by name.
func ChainFiles(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// AttemptChainFiles lists the chains the sampler wrote into an attempt
// directory. Chains are named "<run>__<n>.txt"; other text files are ignored.
func AttemptChainFiles(dir string) ([]string, error) {
	return ChainFiles(dir, "*__")
}

// LoadStartingPoint finds the best-fit point of a previous sampling run:
// <dir>/<label>.bestfit if present, otherwise the lowest -lnL row of the
// <label>*.txt chains with names from <label>.paramnames.
func LoadStartingPoint(dir, label string) (opt.Params, error) {
	bestfit := filepath.Join(dir, label+".bestfit")
	if _, err := os.Stat(bestfit); err == nil {
		return ReadBestfit(bestfit)
	}

	names, err := ReadParamnames(filepath.Join(dir, label+".paramnames"))
	if err != nil {
		return opt.Params{}, fmt.Errorf("no bestfit and no paramnames for %s in %s: %w", label, dir, err)
	}
	chains, err := ChainFiles(dir, label)
	if err != nil {
		return opt.Params{}, err
	}
	if len(chains) == 0 {
		return opt.Params{}, fmt.Errorf("no bestfit and no chains for %s in %s", label, dir)
	}
	summary, err := ReadChains(chains, names)
	if err != nil {
		return opt.Params{}, err
	}
	return summary.Best, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		out[i] = v
	}
	return out, nil
}
