package profile

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/lklprofile/internal/opt"
	"github.com/google/go-cmp/cmp"
)

func TestOptimizeEmptyScheduleIsIdentity(t *testing.T) {
	stub := newStub("x")
	g := NewGlobalOptimizer(stub, 1, 0, t.TempDir())

	start := testInitial()
	out, err := g.Optimize(context.Background(), start, nil, nil, 100, "global")
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if diff := cmp.Diff(start, out.Best); diff != "" {
		t.Errorf("Start point changed (-want +got):\n%s", diff)
	}
	if !out.Converged {
		t.Error("Empty schedule must report converged")
	}
	if !math.IsNaN(out.Likelihood) {
		t.Errorf("Expected NaN likelihood, got %f", out.Likelihood)
	}
	if len(stub.requests) != 0 {
		t.Errorf("Oracle should not be called, got %d calls", len(stub.requests))
	}
}

func TestOptimizeCarriesPointBetweenPhases(t *testing.T) {
	stub := newStub("x")
	g := NewGlobalOptimizer(stub, 3, 0, "/tmp/out")

	out, err := g.Optimize(context.Background(), testInitial(), nil, testSchedules(3).Global, 50, "global")
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if len(stub.requests) != 3 {
		t.Fatalf("Expected 3 oracle calls, got %d", len(stub.requests))
	}
	for i := 1; i < 3; i++ {
		if diff := cmp.Diff(stub.attempts[i-1].Best, stub.requests[i].Start); diff != "" {
			t.Errorf("Phase %d did not start from phase %d's best (-want +got):\n%s", i, i-1, diff)
		}
	}
	for i, req := range stub.requests {
		if req.MinSteps != 50 || req.Workers != 3 {
			t.Errorf("Phase %d: min steps %d workers %d", i, req.MinSteps, req.Workers)
		}
		if req.Output.Dir != "/tmp/out" {
			t.Errorf("Phase %d: output dir %s", i, req.Output.Dir)
		}
	}

	// nu1 started at 1 and drifted by 1 per phase
	if v, _ := out.Best.Get("nu1"); v != 4 {
		t.Errorf("Expected nu1=4 after three phases, got %f", v)
	}
	if out.Steps != 150 {
		t.Errorf("Expected 150 steps, got %d", out.Steps)
	}
	if !out.Converged {
		t.Error("Expected converged outcome")
	}
}

func TestOptimizeAcceptsWorseLaterPhase(t *testing.T) {
	calls := 0
	oracle := oracleFunc(func(ctx context.Context, req opt.Request) (opt.Attempt, error) {
		calls++
		// Second phase reports a worse likelihood; it must still win.
		lkl := 1.0
		if calls == 2 {
			lkl = 5.0
		}
		best := req.Start.Clone()
		best.Values[0] = float64(calls)
		return opt.Attempt{Best: best, Likelihood: lkl, Converged: true}, nil
	})

	g := NewGlobalOptimizer(oracle, 1, 0, "")
	out, err := g.Optimize(context.Background(), testInitial(), nil, testSchedules(2).Global, 1, "global")
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if out.Likelihood != 5.0 || out.Best.Values[0] != 2 {
		t.Errorf("Expected last phase to win, got likelihood %f point %v", out.Likelihood, out.Best.Values)
	}
}

func TestOptimizeNonConvergedPhase(t *testing.T) {
	stub := newStub("x")
	stub.diverge = func(req opt.Request) bool { return req.Output.Label == "global_phase1" }

	g := NewGlobalOptimizer(stub, 1, 0, "")
	out, err := g.Optimize(context.Background(), testInitial(), nil, testSchedules(2).Global, 1, "global")
	if err != nil {
		t.Fatalf("Non-convergence must not be an error: %v", err)
	}
	if out.Converged {
		t.Error("Expected converged=false when phase 2 does not converge")
	}
	if len(stub.requests) != 2 {
		t.Errorf("Expected no retry, got %d calls", len(stub.requests))
	}
}

func TestOptimizeOracleError(t *testing.T) {
	boom := errors.New("sampler crashed")
	oracle := oracleFunc(func(ctx context.Context, req opt.Request) (opt.Attempt, error) {
		return opt.Attempt{}, boom
	})

	g := NewGlobalOptimizer(oracle, 1, 0, "")
	_, err := g.Optimize(context.Background(), testInitial(), nil, testSchedules(1).Global, 1, "global")
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped oracle error, got %v", err)
	}
}

func TestOptimizeAttemptTimeout(t *testing.T) {
	calls := 0
	oracle := oracleFunc(func(ctx context.Context, req opt.Request) (opt.Attempt, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			partial := req.Start.Clone()
			partial.Values[1] = 42
			return opt.Attempt{Best: partial, Likelihood: 7}, ctx.Err()
		}
		return opt.Attempt{Best: req.Start.Clone(), Likelihood: 3, Converged: true}, nil
	})

	g := NewGlobalOptimizer(oracle, 1, 10*time.Millisecond, "")
	out, err := g.Optimize(context.Background(), testInitial(), nil, testSchedules(2).Global, 1, "global")
	if err != nil {
		t.Fatalf("Timed out phase must not be an error: %v", err)
	}
	if out.Converged {
		t.Error("Timed out phase must mark the outcome unconverged")
	}
	if calls != 2 {
		t.Errorf("Expected the second phase to run after the timeout, got %d calls", calls)
	}
	if v, _ := out.Best.Get("nu1"); v != 42 {
		t.Errorf("Expected partial best to carry into phase 2, got nu1=%f", v)
	}
}

func TestOptimizeParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewGlobalOptimizer(newStub("x"), 1, time.Second, "")
	_, err := g.Optimize(ctx, testInitial(), nil, testSchedules(1).Global, 1, "global")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

type oracleFunc func(ctx context.Context, req opt.Request) (opt.Attempt, error)

func (f oracleFunc) Run(ctx context.Context, req opt.Request) (opt.Attempt, error) {
	return f(ctx, req)
}
