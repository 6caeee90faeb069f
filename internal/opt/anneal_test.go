package opt

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestAnnealOnSphere(t *testing.T) {
	oracle := NewAnneal(sphere{}, 42)
	req := testRequest(5000)
	req.Workers = 4

	attempt, err := oracle.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !attempt.Converged {
		t.Error("Expected all chains to complete")
	}
	if attempt.StepsRun != 4*5000 {
		t.Errorf("Expected %d steps, got %d", 4*5000, attempt.StepsRun)
	}
	if attempt.Likelihood > 0.05 {
		t.Errorf("Expected likelihood near 0, got %f", attempt.Likelihood)
	}
	if got := (sphere{}).NegLogLike(attempt.Best); math.Abs(got-attempt.Likelihood) > 1e-12 {
		t.Errorf("Best point likelihood %f does not match reported %f", got, attempt.Likelihood)
	}
}

func TestAnnealKeepsNamesAndStart(t *testing.T) {
	oracle := NewAnneal(sphere{}, 1)
	req := testRequest(10)

	attempt, err := oracle.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i, name := range req.Start.Names {
		if attempt.Best.Names[i] != name {
			t.Errorf("Name %d = %s, expected %s", i, attempt.Best.Names[i], name)
		}
	}
	if attempt.Start.Values[0] != 1 {
		t.Errorf("Start was modified: %v", attempt.Start.Values)
	}
	if req.Start.Values[0] != 1 {
		t.Errorf("Request start was modified: %v", req.Start.Values)
	}
}

func TestAnnealRejectsInvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Request)
	}{
		{"zero steps", func(r *Request) { r.MinSteps = 0 }},
		{"zero workers", func(r *Request) { r.Workers = 0 }},
		{"zero jump", func(r *Request) { r.Phase.JumpScale = 0 }},
		{"negative temperature", func(r *Request) { r.Phase.Temperature = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(10)
			tt.mod(&req)
			if _, err := NewAnneal(sphere{}, 1).Run(context.Background(), req); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestAnnealCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempt, err := NewAnneal(sphere{}, 1).Run(ctx, testRequest(10000))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if attempt.Converged {
		t.Error("Cancelled attempt must not be converged")
	}
	if attempt.Best.Len() != 3 {
		t.Errorf("Expected partial best point with 3 params, got %d", attempt.Best.Len())
	}
}
