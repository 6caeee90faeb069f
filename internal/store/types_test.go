package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestManifest_JSONSerialization(t *testing.T) {
	m := NewManifest(testRunConfig("lcdm"))
	anchor := NewPointRecord(testPoint(0.0224, 1.25))
	m.Anchor = &anchor

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Failed to marshal manifest: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal manifest: %v", err)
	}
	for _, key := range []string{"runId", "key", "config", "state", "anchor", "started", "updated"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Missing JSON field %q", key)
		}
	}
	if _, ok := fields["error"]; ok {
		t.Error("Empty error should be omitted")
	}
}

func TestManifest_Validate(t *testing.T) {
	if err := NewManifest(testRunConfig("lcdm")).Validate(); err != nil {
		t.Fatalf("Valid manifest rejected: %v", err)
	}

	tests := []struct {
		name  string
		mod   func(*Manifest)
		field string
	}{
		{"bad run id", func(m *Manifest) { m.RunID = "job-1" }, "RunID"},
		{"empty key", func(m *Manifest) { m.Key = "" }, "Key"},
		{"key mismatch", func(m *Manifest) { m.Key = "other_omega_b" }, "Key"},
		{"empty parameter", func(m *Manifest) { m.Config.Parameter = ""; m.Key = m.Config.Key() }, "Config.Parameter"},
		{"inverted range", func(m *Manifest) { m.Config.Min, m.Config.Max = 1, 0 }, "Config.Max"},
		{"zero increment", func(m *Manifest) { m.Config.Increment = 0 }, "Config.Increment"},
		{"unknown state", func(m *Manifest) { m.State = "paused" }, "State"},
		{"negative count", func(m *Manifest) { m.Negative = -1 }, "Positive/Negative"},
		{"zero updated", func(m *Manifest) { m.Updated = time.Time{} }, "Updated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManifest(testRunConfig("lcdm"))
			tt.mod(m)
			err := m.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %s, expected %s", ve.Field, tt.field)
			}
		})
	}
}

func TestManifest_IsCompatible(t *testing.T) {
	m := NewManifest(testRunConfig("lcdm"))

	same := testRunConfig("lcdm")
	same.Max = 0.03
	same.Increment = -same.Increment
	if err := m.IsCompatible(same); err != nil {
		t.Errorf("Range change and sign flip should be compatible: %v", err)
	}

	tests := []struct {
		name  string
		mod   func(*RunConfig)
		field string
	}{
		{"parameter", func(c *RunConfig) { c.Parameter = "H0" }, "Parameter"},
		{"label", func(c *RunConfig) { c.Label = "wcdm" }, "Label"},
		{"backend", func(c *RunConfig) { c.Backend = "montepython" }, "Backend"},
		{"increment", func(c *RunConfig) { c.Increment = 0.001 }, "Increment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testRunConfig("lcdm")
			tt.mod(&cfg)
			err := m.IsCompatible(cfg)
			var ce *CompatibilityError
			if !errors.As(err, &ce) {
				t.Fatalf("Expected CompatibilityError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %s, expected %s", ce.Field, tt.field)
			}
		})
	}
}

func TestManifest_ToInfo(t *testing.T) {
	m := NewManifest(testRunConfig("lcdm"))
	m.Positive, m.Negative = 4, 3

	info := m.ToInfo()
	if info.Points != 7 {
		t.Errorf("Points = %d, expected 7 without anchor", info.Points)
	}

	anchor := NewPointRecord(testPoint(0.022, 1))
	m.Anchor = &anchor
	info = m.ToInfo()
	if info.Points != 8 || info.Key != "lcdm_omega_b" || info.Parameter != "omega_b" || info.RunID != m.RunID {
		t.Errorf("Unexpected info %+v", info)
	}
}
