package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/tuning"
	"stockyard.ai/internal/sim/world"
)

const testCatalog = `
resources: [{id: wood}, {id: stone}, {id: plank}]
recipes:
  - id: saw_planks
    job_type: carpenter
    inputs: [{resource: wood, amount: 2}]
    outputs: [{resource: plank, amount: 4}]
    work_ticks: 2
`

const testScenario = `
world_id: yard_test
civilians: {travel_ticks: 1, carry: 5, work_rate: 1}
teams:
  - id: 1
    stock: [{resource: stone, amount: 10}]
    civilians:
      - name: worker
        count: 2
        capabilities: [gather, haul, build]
    nodes:
      - {id: forest, resource: wood, remaining: 40, max_gatherers: 2}
    sites:
      - key: mill_site
        costs: [{resource: stone, amount: 10}]
        required_work: 2
        pos: {x: 4, y: 0, z: 0}
        building: {id: mill, recipe: saw_planks, max_workers: 1}
`

func catalog(t *testing.T) *resources.Catalog {
	t.Helper()
	c, err := resources.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	return c
}

func TestParseAndApply(t *testing.T) {
	s, err := Parse([]byte(testScenario))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w, err := world.New(tuning.Defaults(), world.WithID(s.WorldID))
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	sum, err := s.Apply(w, catalog(t))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum.Civilians != 2 || sum.Nodes != 1 || sum.Sites != 1 || len(sum.DeniedSites) != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if _, ok := w.Dispatcher().Worker("worker-2"); !ok {
		t.Fatalf("named civilian missing")
	}
	if got := w.Ledger().GetReservedTotal(1, "stone"); got != 10 {
		t.Fatalf("stone reserved: got %d want 10", got)
	}
}

func TestCompletedSiteSpawnsBuilding(t *testing.T) {
	s, err := Parse([]byte(testScenario))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	w, err := world.New(tuning.Defaults())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	if _, err := s.Apply(w, catalog(t)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i := 0; i < 60; i++ {
		w.StepOnce()
	}
	b, ok := w.Buildings().Get("mill")
	if !ok {
		t.Fatalf("building not spawned; sites=%d", w.Sites().Len())
	}
	if b.Position().X != 4 {
		t.Fatalf("building pos: %+v", b.Position())
	}
	if got := w.Ledger().GetStored(1, "wood"); got == 0 {
		t.Fatalf("gatherers stored no wood")
	}
}

func TestValidationErrors(t *testing.T) {
	cases := map[string]string{
		"no teams":      `world_id: x`,
		"zero count":    "teams: [{id: 1, civilians: [{count: 0, capabilities: [gather]}]}]",
		"no caps":       "teams: [{id: 1, civilians: [{count: 1}]}]",
		"node no id":    "teams: [{id: 1, nodes: [{resource: wood, remaining: 1, max_gatherers: 1}]}]",
		"dup site":      "teams: [{id: 1, sites: [{key: a}, {key: a}]}]",
		"dup team":      "teams: [{id: 1}, {id: 1}]",
		"bad team id":   "teams: [{id: 0}]",
		"bad building":  "teams: [{id: 1, buildings: [{id: b, recipe: r, max_workers: 0}]}]",
		"malformed yml": "teams: [",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCheckCatalogRejectsUnknownNames(t *testing.T) {
	s, err := Parse([]byte("teams: [{id: 1, buildings: [{id: b, recipe: smelt, max_workers: 1}]}]"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := s.CheckCatalog(catalog(t)); err == nil || !strings.Contains(err.Error(), "smelt") {
		t.Fatalf("expected unknown recipe error, got %v", err)
	}

	s, err = Parse([]byte("teams: [{id: 1, stock: [{resource: iron, amount: 1}]}]"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := s.CheckCatalog(catalog(t)); err == nil {
		t.Fatalf("expected unknown resource error")
	}
}

func TestShippedScenarioLoads(t *testing.T) {
	dir := filepath.Join("..", "..", "configs")
	cat, err := resources.LoadCatalog(filepath.Join(dir, "resources.yaml"))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	s, err := Load(filepath.Join(dir, "scenario.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.CheckCatalog(cat); err != nil {
		t.Fatalf("CheckCatalog: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
