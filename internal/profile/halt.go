package profile

import "log/slog"

// HaltTracker counts consecutive non-converged grid points and reports when
// the configured patience is exhausted.
type HaltTracker struct {
	policy    HaltPolicy
	history   []bool
	failures  int // Consecutive non-converged points
	unhealthy int // Total non-converged points
}

// NewHaltTracker creates a tracker for one scan direction.
func NewHaltTracker(policy HaltPolicy) *HaltTracker {
	return &HaltTracker{policy: policy}
}

// Update records a grid point outcome and returns true if the scan should stop.
func (h *HaltTracker) Update(converged bool) bool {
	h.record(converged)
	if !h.exhausted() {
		return false
	}
	slog.Warn("Persistent non-convergence - stopping direction",
		"consecutive_failures", h.failures,
		"patience", h.policy.Patience,
	)
	return true
}

// Restore replays previously recorded outcomes in scan order and reports
// whether the direction had already exhausted its patience.
func (h *HaltTracker) Restore(history []bool) bool {
	for _, converged := range history {
		h.record(converged)
	}
	return h.exhausted()
}

func (h *HaltTracker) record(converged bool) {
	h.history = append(h.history, converged)
	if converged {
		h.failures = 0
		return
	}
	h.failures++
	h.unhealthy++
}

func (h *HaltTracker) exhausted() bool {
	return h.policy.Patience > 0 && h.failures >= h.policy.Patience // 0 disables halting
}

// Failures returns the current number of consecutive non-converged points.
func (h *HaltTracker) Failures() int {
	return h.failures
}

// Unconverged returns the total number of non-converged points seen.
func (h *HaltTracker) Unconverged() int {
	return h.unhealthy
}

// History returns the convergence flags in scan order.
func (h *HaltTracker) History() []bool {
	return append([]bool{}, h.history...) // Return copy
}
