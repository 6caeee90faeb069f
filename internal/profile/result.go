package profile

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Result is the merged profile, ascending by profiled value.
type Result struct {
	Parameter string  `json:"parameter"`
	Anchor    Point   `json:"anchor"`
	Points    []Point `json:"points"`
}

// Values returns the profiled values in order.
func (r *Result) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Value
	}
	return out
}

// Likelihoods returns the best -lnL per point in order.
func (r *Result) Likelihoods() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Likelihood
	}
	return out
}

// Unconverged returns the points whose optimization did not converge.
func (r *Result) Unconverged() []Point {
	var out []Point
	for _, p := range r.Points {
		if !p.Converged {
			out = append(out, p)
		}
	}
	return out
}

// finite returns the indices of points with a usable likelihood.
func (r *Result) finite() []int {
	idx := make([]int, 0, len(r.Points))
	for i, p := range r.Points {
		if !math.IsNaN(p.Likelihood) && !math.IsInf(p.Likelihood, 0) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Minimum returns the point with the lowest likelihood.
func (r *Result) Minimum() (Point, bool) {
	idx := r.finite()
	if len(idx) == 0 {
		return Point{}, false
	}
	lkl := make([]float64, len(idx))
	for i, j := range idx {
		lkl[i] = r.Points[j].Likelihood
	}
	return r.Points[idx[floats.MinIdx(lkl)]], true
}

// Interval is a range of profiled values.
type Interval struct {
	Lo, Hi float64
	// LoOpen / HiOpen are set when the profile never rose above the
	// threshold on that side, so the edge is only the end of the grid.
	LoOpen, HiOpen bool
}

// Interval returns the values whose likelihood lies within delta of the
// minimum, interpolating linearly where the profile crosses min+delta.
// For -lnL profiles delta=0.5 gives the 68% bound, 2.0 the 95% bound.
func (r *Result) Interval(delta float64) (Interval, bool) {
	idx := r.finite()
	if len(idx) == 0 {
		return Interval{}, false
	}
	xs := make([]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = r.Points[j].Value
		ys[i] = r.Points[j].Likelihood
	}

	m := floats.MinIdx(ys)
	threshold := ys[m] + delta

	iv := Interval{Lo: xs[0], Hi: xs[len(xs)-1], LoOpen: true, HiOpen: true}
	for i := m; i > 0; i-- {
		if ys[i-1] > threshold {
			iv.Lo = crossing(xs[i-1], ys[i-1], xs[i], ys[i], threshold)
			iv.LoOpen = false
			break
		}
	}
	for i := m; i < len(xs)-1; i++ {
		if ys[i+1] > threshold {
			iv.Hi = crossing(xs[i], ys[i], xs[i+1], ys[i+1], threshold)
			iv.HiOpen = false
			break
		}
	}
	return iv, true
}

func crossing(x0, y0, x1, y1, y float64) float64 {
	if y1 == y0 {
		return x0
	}
	return x0 + (y-y0)*(x1-x0)/(y1-y0)
}
