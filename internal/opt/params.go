package opt

import (
	"fmt"
	"sort"
)

// Params is an ordered, named parameter vector.
type Params struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// NewParams pairs names with values.
func NewParams(names []string, values []float64) (Params, error) {
	if len(names) != len(values) {
		return Params{}, fmt.Errorf("got %d names but %d values", len(names), len(values))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return Params{}, fmt.Errorf("parameter name cannot be empty")
		}
		if seen[n] {
			return Params{}, fmt.Errorf("duplicate parameter name: %s", n)
		}
		seen[n] = true
	}
	return Params{Names: append([]string(nil), names...), Values: append([]float64(nil), values...)}, nil
}

// Len returns the number of parameters.
func (p Params) Len() int {
	return len(p.Names)
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	return Params{
		Names:  append([]string(nil), p.Names...),
		Values: append([]float64(nil), p.Values...),
	}
}

// Index returns the position of name, or -1.
func (p Params) Index(name string) int {
	for i, n := range p.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Get returns the value of name.
func (p Params) Get(name string) (float64, bool) {
	i := p.Index(name)
	if i < 0 {
		return 0, false
	}
	return p.Values[i], true
}

// Without returns a copy with name removed. Missing names are not an error.
func (p Params) Without(name string) Params {
	out := Params{
		Names:  make([]string, 0, len(p.Names)),
		Values: make([]float64, 0, len(p.Values)),
	}
	for i, n := range p.Names {
		if n == name {
			continue
		}
		out.Names = append(out.Names, n)
		out.Values = append(out.Values, p.Values[i])
	}
	return out
}

// Merge returns a copy with the fixed values applied. Names already present
// are overwritten in place; new names are appended in sorted order.
func (p Params) Merge(fixed map[string]float64) Params {
	out := p.Clone()
	extra := make([]string, 0, len(fixed))
	for name, v := range fixed {
		if i := out.Index(name); i >= 0 {
			out.Values[i] = v
			continue
		}
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		out.Names = append(out.Names, name)
		out.Values = append(out.Values, fixed[name])
	}
	return out
}

// Map returns the parameters keyed by name.
func (p Params) Map() map[string]float64 {
	m := make(map[string]float64, len(p.Names))
	for i, n := range p.Names {
		m[n] = p.Values[i]
	}
	return m
}
