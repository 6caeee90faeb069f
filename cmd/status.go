package main

import (
	"fmt"
	"path/filepath"

	"github.com/cwbudde/lklprofile/internal/config"
	"github.com/cwbudde/lklprofile/internal/profile"
	"github.com/cwbudde/lklprofile/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <config.yaml>",
	Short: "Show the progress of a profile run",
	Long: `Reads the run belonging to a configuration file and shows its state,
the recorded points and the profile summary so far.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	f, err := config.Load(args[0])
	if err != nil {
		return err
	}
	fs, err := store.NewFSStore(f.ProfilesDir())
	if err != nil {
		return err
	}

	m, state, err := fs.LoadState(f.RunKey())
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", f.RunKey(), err)
	}

	fmt.Printf("Run: %s\n", m.Key)
	fmt.Printf("ID: %s\n", m.RunID)
	fmt.Printf("State: %s\n", m.State)
	fmt.Printf("Updated: %s\n", m.Updated.Format("2006-01-02 15:04:05"))
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Parameter: %s\n", m.Config.Parameter)
	fmt.Printf("  Backend: %s\n", m.Config.Backend)
	fmt.Printf("  Range: [%g, %g], step %g\n", m.Config.Min, m.Config.Max, m.Config.Increment)
	fmt.Println()

	result, err := loadResult(fs, m, state)
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Println("Global optimization has not finished yet.")
	} else {
		printSummary(result, fs.RunDir(m.Key))
	}

	if m.Error != "" {
		fmt.Printf("\nError: %s\n", m.Error)
	}
	return nil
}

// loadResult prefers the final table of a completed run and otherwise
// assembles the profile from the recorded points.
func loadResult(fs *store.FSStore, m *store.Manifest, state profile.State) (*profile.Result, error) {
	if state.Anchor == nil {
		return nil, nil
	}
	result := &profile.Result{Parameter: m.Config.Parameter, Anchor: *state.Anchor}

	if m.State == store.StateCompleted {
		points, err := store.ReadTable(filepath.Join(fs.RunDir(m.Key), store.TableFile))
		if err == nil {
			result.Points = points
			return result, nil
		}
		fmt.Printf("Profile table unreadable (%v), using recorded points\n", err)
	}

	result.Points = profile.Merge(*state.Anchor, state.Negative, state.Positive)
	return result, nil
}
