package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cwbudde/lklprofile/internal/opt"
)

// Oracle runs one sampler process per attempt.
//
// Each attempt gets its own directory <Output.Dir>/attempts/<Output.Label>
// holding the start point (start.bestfit), the sampler log and its chains.
type Oracle struct {
	handle *Handle
}

// NewOracle creates an oracle backed by the located sampler.
func NewOracle(h *Handle) *Oracle {
	return &Oracle{handle: h}
}

// Run launches the sampler and blocks until it exits or ctx is done.
func (o *Oracle) Run(ctx context.Context, req opt.Request) (opt.Attempt, error) {
	if err := req.Validate(); err != nil {
		return opt.Attempt{}, err
	}
	if req.Output.Dir == "" || req.Output.Label == "" {
		return opt.Attempt{}, fmt.Errorf("sampler oracle needs an output location")
	}

	free := req.Start
	for name := range req.Fixed {
		free = free.Without(name)
	}
	start := free.Merge(req.Fixed)

	dir := filepath.Join(req.Output.Dir, "attempts", req.Output.Label)
	// Stale chains from an interrupted run would be read as ours.
	if err := os.RemoveAll(dir); err != nil {
		return opt.Attempt{}, fmt.Errorf("failed to clear attempt directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return opt.Attempt{}, fmt.Errorf("failed to create attempt directory: %w", err)
	}

	startPath := filepath.Join(dir, "start.bestfit")
	if err := WriteBestfit(startPath, start); err != nil {
		return opt.Attempt{}, err
	}

	logFile, err := os.Create(filepath.Join(dir, "sampler.log"))
	if err != nil {
		return opt.Attempt{}, fmt.Errorf("failed to create sampler log: %w", err)
	}
	defer logFile.Close()

	argv := o.handle.Command(req.Workers, o.args(req, dir, startPath)...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = o.handle.Root
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	slog.Debug("Launching sampler", "label", req.Output.Label, "argv", argv)

	began := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(began)

	summary, parseErr := readAttempt(dir, free.Names)

	attempt := opt.Attempt{
		Start:    free.Clone(),
		Phase:    req.Phase,
		StepsRun: summary.Steps,
	}
	if parseErr == nil {
		attempt.Best = summary.Best
		attempt.Likelihood = summary.Likelihood
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if parseErr != nil {
			return opt.Attempt{}, ctxErr
		}
		return attempt, ctxErr
	}

	if parseErr != nil {
		if runErr != nil {
			return opt.Attempt{}, fmt.Errorf("sampler failed without samples (see %s): %w", logFile.Name(), runErr)
		}
		return opt.Attempt{}, fmt.Errorf("failed to read sampler output: %w", parseErr)
	}

	attempt.Converged = runErr == nil && summary.Steps >= req.MinSteps
	if runErr != nil {
		slog.Warn("Sampler exited with error, keeping partial samples",
			"label", req.Output.Label,
			"error", runErr,
			"steps", summary.Steps,
		)
	}

	slog.Info("Sampler attempt finished",
		"label", req.Output.Label,
		"elapsed", elapsed.Round(time.Second),
		"steps", summary.Steps,
		"min_steps", req.MinSteps,
		"likelihood", summary.Likelihood,
		"converged", attempt.Converged,
	)
	return attempt, nil
}

// readAttempt parses the chains of one attempt directory. Columns follow the
// sampler's .paramnames file when it wrote one, otherwise the free names.
// The best point is returned with exactly the free names, in that order.
func readAttempt(dir string, free []string) (ChainSummary, error) {
	chains, err := AttemptChainFiles(dir)
	if err != nil {
		return ChainSummary{}, err
	}
	columns := free
	if paths, _ := filepath.Glob(filepath.Join(dir, "*.paramnames")); len(paths) > 0 {
		if columns, err = ReadParamnames(paths[0]); err != nil {
			return ChainSummary{}, err
		}
	}

	summary, err := ReadChains(chains, columns)
	if err != nil {
		return summary, err
	}
	values := make([]float64, len(free))
	for i, name := range free {
		v, ok := summary.Best.Get(name)
		if !ok {
			return summary, fmt.Errorf("parameter %s is not a chain column in %s", name, dir)
		}
		values[i] = v
	}
	summary.Best = opt.Params{Names: append([]string(nil), free...), Values: values}
	return summary, nil
}

func (o *Oracle) args(req opt.Request, dir, startPath string) []string {
	args := []string{
		"run",
		"-o", dir,
		"-b", startPath,
		"-f", strconv.FormatFloat(req.Phase.JumpScale, 'g', -1, 64),
		"-T", strconv.FormatFloat(req.Phase.Temperature, 'g', -1, 64),
		"-N", strconv.Itoa(req.MinSteps),
	}
	names := make([]string, 0, len(req.Fixed))
	for name := range req.Fixed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--fix", name+"="+strconv.FormatFloat(req.Fixed[name], 'g', -1, 64))
	}
	return args
}
