package world_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"stockyard.ai/internal/sim/civ"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/site"
	"stockyard.ai/internal/sim/tasks"
	"stockyard.ai/internal/sim/tuning"
	"stockyard.ai/internal/sim/world"
)

func TestTickLogEntriesMatchSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "..", "schemas", "ticklog.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	w, err := world.New(tuning.Defaults())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	cfg := civ.Config{TravelTicks: 1, Carry: 5, WorkRate: 1}
	w.AddWorker(civ.New("c1", 1, model.Vec3i{}, cfg, tasks.CapGather, tasks.CapHaul, tasks.CapBuild))
	w.AddWorker(civ.New("c2", 1, model.Vec3i{X: 3}, cfg, tasks.CapGather, tasks.CapHaul, tasks.CapBuild))
	w.AddNode(&model.Node{ID: "tree", Team: 1, Resource: "wood", Remaining: 30, MaxGatherers: 2})
	w.Ledger().Deposit(1, "stone", 10)
	w.PlaceSite(site.Params{Key: "wall", Team: 1, Costs: resources.Costs{{Resource: "stone", Amount: 10}}, RequiredWork: 2})

	sawAssignment := false
	for i := 0; i < 20; i++ {
		entry := w.StepOnce()
		if len(entry.Assignments) > 0 {
			sawAssignment = true
		}
		b, err := json.Marshal(entry)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := schema.Validate(v); err != nil {
			t.Fatalf("tick %d: %v\n%s", entry.Tick, err, b)
		}
	}
	if !sawAssignment {
		t.Fatalf("no tick carried an assignment")
	}
}
