package opt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewParams(t *testing.T) {
	if _, err := NewParams([]string{"a"}, []float64{1, 2}); err == nil {
		t.Error("Expected error for length mismatch")
	}
	if _, err := NewParams([]string{"a", "a"}, []float64{1, 2}); err == nil {
		t.Error("Expected error for duplicate name")
	}
	if _, err := NewParams([]string{""}, []float64{1}); err == nil {
		t.Error("Expected error for empty name")
	}

	p, err := NewParams([]string{"a", "b"}, []float64{1, 2})
	if err != nil {
		t.Fatalf("NewParams failed: %v", err)
	}
	if v, ok := p.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %v, %v", v, ok)
	}
	if _, ok := p.Get("z"); ok {
		t.Error("Get(z) should report missing")
	}
}

func TestParamsWithout(t *testing.T) {
	p := Params{Names: []string{"a", "b", "c"}, Values: []float64{1, 2, 3}}

	got := p.Without("b")
	want := Params{Names: []string{"a", "c"}, Values: []float64{1, 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Without mismatch (-want +got):\n%s", diff)
	}

	got.Values[0] = 99
	if p.Values[0] != 1 {
		t.Error("Without must not share storage with the receiver")
	}

	if diff := cmp.Diff(p, p.Without("missing")); diff != "" {
		t.Errorf("Without(missing) changed params:\n%s", diff)
	}
}

func TestParamsMerge(t *testing.T) {
	p := Params{Names: []string{"a", "b"}, Values: []float64{1, 2}}

	got := p.Merge(map[string]float64{"z": 9, "b": 5, "c": 7})
	want := Params{Names: []string{"a", "b", "c", "z"}, Values: []float64{1, 5, 7, 9}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}
	if p.Values[1] != 2 {
		t.Error("Merge must not modify the receiver")
	}
}
