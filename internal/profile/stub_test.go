package profile

import (
	"context"
	"sync"

	"github.com/cwbudde/lklprofile/internal/opt"
)

// stubOracle is a deterministic oracle that records its inputs. The likelihood
// depends only on the profiled value; free parameters drift by shift per call
// so that warm starts are observable.
type stubOracle struct {
	mu       sync.Mutex
	param    string
	shift    float64
	lkl      func(x float64) float64
	diverge  func(req opt.Request) bool
	requests []opt.Request
	attempts []opt.Attempt
}

func newStub(param string) *stubOracle {
	return &stubOracle{
		param: param,
		shift: 1,
		lkl:   func(x float64) float64 { return (x - 0.5) * (x - 0.5) },
	}
}

func (s *stubOracle) Run(ctx context.Context, req opt.Request) (opt.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return opt.Attempt{}, err
	}

	x, fixed := req.Fixed[s.param]
	if !fixed {
		x, _ = req.Start.Get(s.param)
	}

	best := req.Start.Clone()
	for i, name := range best.Names {
		if name != s.param {
			best.Values[i] += s.shift
		}
	}

	attempt := opt.Attempt{
		Start:      req.Start.Clone(),
		Phase:      req.Phase,
		StepsRun:   req.MinSteps,
		Best:       best,
		Likelihood: s.lkl(x),
		Converged:  s.diverge == nil || !s.diverge(req),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	req.Start = req.Start.Clone()
	s.requests = append(s.requests, req)
	s.attempts = append(s.attempts, attempt)
	return attempt, nil
}

// scanCalls returns the recorded request/attempt pairs whose label starts with prefix.
func (s *stubOracle) scanCalls(prefix string) ([]opt.Request, []opt.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reqs []opt.Request
	var atts []opt.Attempt
	for i, r := range s.requests {
		if len(r.Output.Label) >= len(prefix) && r.Output.Label[:len(prefix)] == prefix {
			reqs = append(reqs, r)
			atts = append(atts, s.attempts[i])
		}
	}
	return reqs, atts
}

// memorySink collects everything the controller reports.
type memorySink struct {
	mu      sync.Mutex
	anchors []Point
	points  map[Direction][]Point
}

func newMemorySink() *memorySink {
	return &memorySink{points: make(map[Direction][]Point)}
}

func (m *memorySink) Anchor(p Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchors = append(m.anchors, p)
	return nil
}

func (m *memorySink) Record(dir Direction, p Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[dir] = append(m.points[dir], p)
	return nil
}

func testConfig() Config {
	return Config{
		Parameter:      "x",
		Min:            -2,
		Max:            2,
		Increment:      1,
		Workers:        1,
		InclusiveBound: true,
	}
}

func testSchedules(phases int) Schedules {
	s := make(Schedule, phases)
	for i := range s {
		s[i] = opt.Phase{JumpScale: 1 / float64(i+1), Temperature: 1 / float64(i+1)}
	}
	return Schedules{Global: s, Mapping: s}
}

func testSettings() ScanSettings {
	return ScanSettings{GlobalMinSteps: 100, ProfileMinSteps: 10}
}

func testInitial() opt.Params {
	return opt.Params{Names: []string{"x", "nu1", "nu2"}, Values: []float64{0, 1, 2}}
}
