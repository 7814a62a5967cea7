package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := writeFile(t, "dispatch_interval_ticks: 3\nbaseline_capacity:\n  wood: 500\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DispatchIntervalTicks != 3 {
		t.Fatalf("dispatch interval: got %d", got.DispatchIntervalTicks)
	}
	if got.TickRateHz != Defaults().TickRateHz || got.GenerationIntervalTicks != Defaults().GenerationIntervalTicks {
		t.Fatalf("defaults not kept: %+v", got)
	}
	if got.BaselineCapacity["wood"] != 500 {
		t.Fatalf("baseline_capacity: %+v", got.BaselineCapacity)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	p := writeFile(t, "crafting_interval_ticks: 0\n")
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "CraftingIntervalTicks") {
		t.Fatalf("error does not name the field: %v", err)
	}
}

func TestLoadRejectsNegativeCapacity(t *testing.T) {
	p := writeFile(t, "baseline_capacity:\n  stone: -1\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
