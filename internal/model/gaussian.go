// Package model provides closed-form likelihoods for the in-process oracle backends.
package model

import (
	"fmt"
	"sort"

	"github.com/cwbudde/lklprofile/internal/opt"
)

// Gaussian is an uncorrelated multivariate normal likelihood:
// -lnL = 1/2 * sum(((x_i - center_i) / sigma_i)^2).
//
// Parameters the model does not know about contribute nothing.
type Gaussian struct {
	center map[string]float64
	sigma  map[string]float64
	names  []string
}

// NewGaussian builds a Gaussian from per-parameter centers and widths.
// Every centered parameter needs a positive sigma.
func NewGaussian(center, sigma map[string]float64) (*Gaussian, error) {
	if len(center) == 0 {
		return nil, fmt.Errorf("gaussian model needs at least one parameter")
	}
	names := make([]string, 0, len(center))
	for name := range center {
		s, ok := sigma[name]
		if !ok {
			return nil, fmt.Errorf("parameter %s has no sigma", name)
		}
		if s <= 0 {
			return nil, fmt.Errorf("parameter %s: sigma must be positive, got %g", name, s)
		}
		names = append(names, name)
	}
	for name := range sigma {
		if _, ok := center[name]; !ok {
			return nil, fmt.Errorf("sigma given for unknown parameter %s", name)
		}
	}
	sort.Strings(names)

	g := &Gaussian{
		center: make(map[string]float64, len(center)),
		sigma:  make(map[string]float64, len(sigma)),
		names:  names,
	}
	for k, v := range center {
		g.center[k] = v
	}
	for k, v := range sigma {
		g.sigma[k] = v
	}
	return g, nil
}

// NegLogLike implements opt.Likelihood.
func (g *Gaussian) NegLogLike(p opt.Params) float64 {
	var sum float64
	for i, name := range p.Names {
		c, ok := g.center[name]
		if !ok {
			continue
		}
		d := (p.Values[i] - c) / g.sigma[name]
		sum += d * d
	}
	return 0.5 * sum
}

// Scale implements opt.Scaler.
func (g *Gaussian) Scale(name string) float64 {
	return g.sigma[name]
}

// Names returns the model parameters in sorted order.
func (g *Gaussian) Names() []string {
	return append([]string(nil), g.names...)
}

// Start returns a starting point in Names order. Values missing from
// overrides default to the model center.
func (g *Gaussian) Start(overrides map[string]float64) (opt.Params, error) {
	for name := range overrides {
		if _, ok := g.center[name]; !ok {
			return opt.Params{}, fmt.Errorf("start value given for unknown parameter %s", name)
		}
	}
	values := make([]float64, len(g.names))
	for i, name := range g.names {
		if v, ok := overrides[name]; ok {
			values[i] = v
		} else {
			values[i] = g.center[name]
		}
	}
	return opt.NewParams(g.names, values)
}
