package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/lklprofile/internal/config"
	"github.com/cwbudde/lklprofile/internal/opt"
	"github.com/cwbudde/lklprofile/internal/profile"
	"github.com/cwbudde/lklprofile/internal/sampler"
	"github.com/cwbudde/lklprofile/internal/store"
	"github.com/spf13/cobra"
)

// defaultPopSize is the mayfly population when the model section sets none.
const defaultPopSize = 30

// intervalDelta is the -lnL rise that bounds the 68% confidence interval.
const intervalDelta = 0.5

var overwrite bool

var runCmd = &cobra.Command{
	Use:   "run <config.yaml>",
	Short: "Compute a profile likelihood",
	Long: `Runs the global optimization to find the anchor point, then scans the
profiled parameter in both directions up to profile_max and down to
profile_min, re-optimizing all other parameters at every grid value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd.Context(), args[0], false)
	},
}

func init() {
	runCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Delete an existing run with the same label and parameter")
	rootCmd.AddCommand(runCmd)
}

// execute runs or resumes the profile described by the config file.
func execute(ctx context.Context, path string, resume bool) error {
	f, err := config.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs, err := store.NewFSStore(f.ProfilesDir())
	if err != nil {
		return err
	}

	oracle, initial, err := buildOracle(f)
	if err != nil {
		return err
	}

	manifest, state, err := prepareRun(fs, f, resume)
	if err != nil {
		return err
	}

	cfg := f.ProfileConfig()
	schedules, err := f.Schedules()
	if err != nil {
		return err
	}
	optimizer := profile.NewGlobalOptimizer(oracle, cfg.Workers, cfg.AttemptTimeout, fs.RunDir(manifest.Key))

	rec, err := store.NewRecorder(fs, manifest)
	if err != nil {
		return err
	}
	controller, err := profile.NewController(optimizer, cfg, schedules, f.ScanSettings(), rec)
	if err != nil {
		rec.Finish(nil, err)
		return err
	}

	slog.Info("Starting profile",
		"run_id", manifest.RunID,
		"parameter", cfg.Parameter,
		"backend", f.Env.Backend,
		"min", cfg.Min,
		"max", cfg.Max,
		"increment", cfg.Increment,
		"resume", resume,
	)

	started := time.Now()
	result, runErr := controller.Resume(ctx, initial, state)
	if err := rec.Finish(result, runErr); err != nil {
		if runErr != nil {
			return errors.Join(runErr, err)
		}
		return fmt.Errorf("failed to save profile: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	slog.Info("Profile saved",
		"run_id", manifest.RunID,
		"dir", fs.RunDir(manifest.Key),
		"elapsed", time.Since(started).Round(time.Second),
	)
	printSummary(result, fs.RunDir(manifest.Key))
	return nil
}

// prepareRun creates the manifest of a new run, or loads the manifest and
// recorded points of the run to resume.
func prepareRun(fs *store.FSStore, f *config.File, resume bool) (*store.Manifest, profile.State, error) {
	runCfg := runConfig(f)
	key := runCfg.Key()

	if resume {
		m, state, err := fs.LoadState(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, profile.State{}, fmt.Errorf("no run to resume in %s: %w", fs.RunDir(key), err)
			}
			return nil, profile.State{}, err
		}
		if err := m.IsCompatible(runCfg); err != nil {
			return nil, profile.State{}, &profile.ConfigError{Field: "config", Reason: "does not match the saved run", Err: err}
		}
		if m.State == store.StateCompleted {
			slog.Info("Run already completed, extending it", "key", key, "run_id", m.RunID)
		}
		m.Config = runCfg
		m.State = store.StateRunning
		m.Error = ""
		return m, state, nil
	}

	if _, err := fs.LoadManifest(key); err == nil {
		if !overwrite {
			return nil, profile.State{}, fmt.Errorf("run %s already exists; use resume or --overwrite", key)
		}
		if err := fs.DeleteRun(key); err != nil {
			return nil, profile.State{}, err
		}
		slog.Info("Deleted previous run", "key", key)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, profile.State{}, err
	}
	return store.NewManifest(runCfg), profile.State{}, nil
}

func runConfig(f *config.File) store.RunConfig {
	cfg := f.ProfileConfig()
	return store.RunConfig{
		Parameter:      cfg.Parameter,
		Label:          f.Run.SamplesLabel,
		Backend:        f.Env.Backend,
		Min:            cfg.Min,
		Max:            cfg.Max,
		Increment:      cfg.Increment,
		InclusiveBound: cfg.InclusiveBound,
	}
}

// buildOracle resolves the backend and the starting point of the global fit.
func buildOracle(f *config.File) (opt.Oracle, opt.Params, error) {
	switch f.Env.Backend {
	case config.BackendMontePython:
		h, err := sampler.Locate(f.Env.SamplerRootDir, f.Env.Python, f.Env.MPILauncher)
		if err != nil {
			return nil, opt.Params{}, err
		}
		initial, err := sampler.LoadStartingPoint(f.Run.SamplesDirectory, f.Run.SamplesLabel)
		if err != nil {
			return nil, opt.Params{}, &sampler.EnvironmentError{Path: f.Run.SamplesDirectory, Reason: err.Error()}
		}
		slog.Info("Sampler located", "script", h.Script, "python", h.Python, "launcher", h.Launcher)
		return sampler.NewOracle(h), initial, nil

	case config.BackendAnneal, config.BackendMayfly:
		g, err := f.Gaussian()
		if err != nil {
			return nil, opt.Params{}, err
		}
		initial, err := g.Start(f.Model.Start)
		if err != nil {
			return nil, opt.Params{}, &profile.ConfigError{Field: "model.start", Reason: "is invalid", Err: err}
		}
		if f.Env.Backend == config.BackendAnneal {
			return opt.NewAnneal(g, uint64(f.Model.Seed)), initial, nil
		}
		pop := f.Model.PopSize
		if pop == 0 {
			pop = defaultPopSize
		}
		return opt.NewMayfly(g, pop, f.Model.Seed), initial, nil
	}
	return nil, opt.Params{}, &profile.ConfigError{Field: "env.backend", Reason: fmt.Sprintf("unknown backend %q", f.Env.Backend)}
}

func printSummary(result *profile.Result, dir string) {
	fmt.Printf("Profile of %s: %d points, %d unconverged\n",
		result.Parameter, len(result.Points), len(result.Unconverged()))
	if best, ok := result.Minimum(); ok {
		fmt.Printf("  Minimum: -lnL = %.4f at %s = %g\n", best.Likelihood, result.Parameter, best.Value)
	}
	if iv, ok := result.Interval(intervalDelta); ok {
		fmt.Printf("  68%% interval: %s%g, %g%s\n", bracket(iv.LoOpen, "[", "<"), iv.Lo, iv.Hi, bracket(iv.HiOpen, "]", ">"))
	}
	fmt.Printf("  Written to %s\n", dir)
}

func bracket(open bool, closed, unbounded string) string {
	if open {
		return unbounded
	}
	return closed
}
