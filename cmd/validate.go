package main

import (
	"fmt"
	"math"

	"github.com/cwbudde/lklprofile/internal/config"
	"github.com/cwbudde/lklprofile/internal/sampler"
	"github.com/spf13/cobra"
)

var skipEnv bool

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Check a configuration file without running anything",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&skipEnv, "skip-env", false, "Do not locate the sampler installation")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, err := config.Load(args[0])
	if err != nil {
		return err
	}

	if f.Env.Backend == config.BackendMontePython && !skipEnv {
		if _, err := sampler.Locate(f.Env.SamplerRootDir, f.Env.Python, f.Env.MPILauncher); err != nil {
			return err
		}
	}

	cfg := f.ProfileConfig()
	schedules, err := f.Schedules()
	if err != nil {
		return err
	}
	settings := f.ScanSettings()

	span := (cfg.Max - cfg.Min) / cfg.Step()
	fmt.Printf("Configuration OK: %s\n", args[0])
	fmt.Printf("  Backend: %s\n", f.Env.Backend)
	fmt.Printf("  Parameter: %s in [%g, %g], step %g (about %d grid points)\n",
		cfg.Parameter, cfg.Min, cfg.Max, cfg.Step(), int(math.Floor(span))+1)
	fmt.Printf("  Global optimization: %d phase(s), %d steps each\n", len(schedules.Global), settings.GlobalMinSteps)
	fmt.Printf("  Mapping: %d phase(s), %d steps each\n", len(schedules.Mapping), settings.ProfileMinSteps)
	fmt.Printf("  Output: %s\n", f.ProfilesDir())
	return nil
}
