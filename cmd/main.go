package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/lklprofile/internal/profile"
	"github.com/cwbudde/lklprofile/internal/sampler"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status: 2 for configuration
// errors, 3 for a missing or broken sampler environment, 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, profile.ErrConfig):
		return 2
	case errors.Is(err, sampler.ErrEnvironment):
		return 3
	default:
		return 1
	}
}
