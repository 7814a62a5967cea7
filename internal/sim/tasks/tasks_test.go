package tasks

import (
	"testing"

	"stockyard.ai/internal/sim/model"
)

type stubTarget struct {
	id   string
	team model.Team
	pos  model.Vec3i
}

func (s stubTarget) EntityID() string      { return s.id }
func (s stubTarget) TeamID() model.Team    { return s.team }
func (s stubTarget) Position() model.Vec3i { return s.pos }

func TestConstructorsCarryTargetAndCapability(t *testing.T) {
	tgt := stubTarget{id: "n1", team: 3, pos: model.Vec3i{X: 4}}
	r := Gather(tgt)
	if r.Kind != KindGather || r.TargetID != "n1" || r.Capability != CapGather || r.Pos.X != 4 {
		t.Fatalf("gather request mismatch: %+v", r)
	}
	if !r.Affinity.Accepts(3) || r.Affinity.Accepts(4) {
		t.Fatalf("team affinity mismatch: %+v", r.Affinity)
	}
	c := Craft(tgt, "smith")
	if c.Capability != "smith" {
		t.Fatalf("craft capability: got %q", c.Capability)
	}
}

func TestWithAffinityReturnsCopy(t *testing.T) {
	r := Haul(stubTarget{id: "s", team: 1})
	open := r.WithAffinity(AnyTeam())
	if !open.Affinity.Accepts(9) {
		t.Fatalf("any-team request rejected team 9")
	}
	if r.Affinity.Accepts(9) {
		t.Fatalf("original request was mutated")
	}
}
