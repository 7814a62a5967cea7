package registry

import (
	"testing"

	"stockyard.ai/internal/sim/crafting"
	"stockyard.ai/internal/sim/events"
	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/site"
)

func record(bus *events.Bus) *[]events.Kind {
	var got []events.Kind
	bus.SubscribeAll(func(ev events.Event) { got = append(got, ev.Kind) })
	return &got
}

func count(kinds []events.Kind, k events.Kind) int {
	n := 0
	for _, v := range kinds {
		if v == k {
			n++
		}
	}
	return n
}

func TestSetIsIdempotentAndIndexedByTeam(t *testing.T) {
	s := NewSet[*model.Node]()
	a := &model.Node{ID: "a", Team: 1}
	b := &model.Node{ID: "b", Team: 2}
	if !s.Add(a) || s.Add(a) || !s.Add(b) {
		t.Fatalf("unexpected Add results")
	}
	if s.Len() != 2 || len(s.Team(1)) != 1 || s.Team(2)[0] != b {
		t.Fatalf("index mismatch")
	}
	if _, ok := s.Remove("a"); !ok {
		t.Fatalf("remove a failed")
	}
	if _, ok := s.Remove("a"); ok {
		t.Fatalf("second remove reported success")
	}
	if len(s.Team(1)) != 0 || s.All()[0] != b {
		t.Fatalf("removal left stale entries")
	}
}

func TestDepletedFiresOnce(t *testing.T) {
	bus := events.NewBus()
	got := record(bus)
	r := NewNodes(bus)
	n := &model.Node{ID: "tree", Team: 1, Remaining: 3}
	r.Register(n)
	r.Register(n)

	n.Harvest(3)
	r.NotifyChanged(n)
	r.NotifyChanged(n)
	n.Remaining = -1
	r.NotifyChanged(n)
	bus.Drain()

	if c := count(*got, events.Registered); c != 1 {
		t.Fatalf("registered fired %d times", c)
	}
	if c := count(*got, events.Depleted); c != 1 {
		t.Fatalf("depleted fired %d times", c)
	}
	if c := count(*got, events.Changed); c != 3 {
		t.Fatalf("changed fired %d times", c)
	}

	r.Unregister("tree")
	r.Unregister("tree")
	r.NotifyChanged(n)
	bus.Drain()
	if c := count(*got, events.Unregistered); c != 1 {
		t.Fatalf("unregistered fired %d times", c)
	}
	if c := count(*got, events.Changed); c != 3 {
		t.Fatalf("changed fired for an unregistered node")
	}
}

func TestSiteCompletedFiresOnce(t *testing.T) {
	bus := events.NewBus()
	got := record(bus)
	r := NewSites(bus)
	s := site.New(ledger.New(), site.Params{Key: "hut", Team: 1, RequiredWork: 2})
	r.Register(s)

	s.AddWork(1)
	s.AddWork(1)
	s.Complete()
	r.NotifyChanged(s)
	bus.Drain()

	if c := count(*got, events.Completed); c != 1 {
		t.Fatalf("completed fired %d times", c)
	}

	if c := count(*got, events.Changed); c != 3 {
		t.Fatalf("changed events: got %d want 3", c)
	}
}

func TestUnregisterDetachesNotifier(t *testing.T) {
	bus := events.NewBus()
	got := record(bus)
	r := NewSites(bus)
	s := site.New(ledger.New(), site.Params{Key: "hut", Team: 1, RequiredWork: 5})
	r.Register(s)
	s.AddBuilder()
	r.Unregister("hut")
	s.AddBuilder()
	bus.Drain()

	if c := count(*got, events.Changed); c != 1 {
		t.Fatalf("changed events: got %d want 1", c)
	}
}

func TestBuildingCompletesOncePerCycle(t *testing.T) {
	bus := events.NewBus()
	got := record(bus)
	r := NewBuildings(bus)
	b := crafting.NewBuilding(ledger.New(ledger.WithBaselineCapacity(100)), crafting.Params{
		ID:   "well",
		Team: 1,
		Recipe: resources.Recipe{
			ID:        "water",
			Outputs:   resources.Costs{{Resource: "water", Amount: 1}},
			WorkTicks: 1,
		},
	})
	r.Register(b)

	for cycle := 0; cycle < 2; cycle++ {
		b.Advance()
		b.Work(1)
		b.Collect()
		b.Advance()
	}
	bus.Drain()

	if b.Produced() != 2 {
		t.Fatalf("produced: got %d want 2", b.Produced())
	}
	if c := count(*got, events.Completed); c != 2 {
		t.Fatalf("completed fired %d times, want once per cycle", c)
	}
}
