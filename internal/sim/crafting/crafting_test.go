package crafting

import (
	"testing"

	"stockyard.ai/internal/sim/dispatch"
	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/tasks"
)

type fakeWorker struct {
	id     string
	team   model.Team
	pos    model.Vec3i
	caps   map[tasks.Capability]bool
	state  dispatch.WorkerState
	reject bool
}

func worker(id string, x int, caps ...tasks.Capability) *fakeWorker {
	w := &fakeWorker{id: id, team: 1, pos: model.Vec3i{X: x}, caps: map[tasks.Capability]bool{}, state: dispatch.StateIdle}
	for _, c := range caps {
		w.caps[c] = true
	}
	return w
}

func (w *fakeWorker) ID() string                         { return w.id }
func (w *fakeWorker) TeamID() model.Team                 { return w.team }
func (w *fakeWorker) Pos() model.Vec3i                   { return w.pos }
func (w *fakeWorker) CanPerform(c tasks.Capability) bool { return w.caps[c] }
func (w *fakeWorker) State() dispatch.WorkerState        { return w.state }

func (w *fakeWorker) TryAssignTask(tasks.Request) bool {
	if w.reject {
		return false
	}
	w.state = dispatch.StateAssigned
	return true
}

func workers(ws ...*fakeWorker) []dispatch.Worker {
	out := make([]dispatch.Worker, 0, len(ws))
	for _, w := range ws {
		out = append(out, w)
	}
	return out
}

var planks = resources.Recipe{
	ID:        "planks",
	JobType:   "carpenter",
	Inputs:    resources.Costs{{Resource: "wood", Amount: 2}},
	Outputs:   resources.Costs{{Resource: "plank", Amount: 4}},
	WorkTicks: 3,
}

func building(id string, priority, maxWorkers int) *Building {
	return NewBuilding(nil, Params{ID: id, Team: 1, Recipe: planks, Priority: priority, MaxWorkers: maxWorkers, AutoAssign: true})
}

func TestAssignNowVisitsHigherPriorityFirst(t *testing.T) {
	low := building("low", 1, 1)
	high := building("high", 5, 1)
	w := worker("w", 0, "carpenter")

	got := NewAssigner(1).AssignNow([]*Building{low, high}, workers(w))
	if len(got) != 1 || got[0].BuildingID != "high" {
		t.Fatalf("expected high priority building to get the worker, got %+v", got)
	}
	if low.AssignedCount() != 0 || high.AssignedCount() != 1 {
		t.Fatalf("assigned counts: low=%d high=%d", low.AssignedCount(), high.AssignedCount())
	}
}

func TestAssignNowEqualPriorityKeepsOrder(t *testing.T) {
	a := building("a", 2, 1)
	b := building("b", 2, 1)
	got := NewAssigner(1).AssignNow([]*Building{a, b}, workers(worker("w", 0, "carpenter")))
	if len(got) != 1 || got[0].BuildingID != "a" {
		t.Fatalf("expected stable order to favour a, got %+v", got)
	}
}

func TestAssignNowPrefersHaulerWhenRequired(t *testing.T) {
	b := NewBuilding(nil, Params{ID: "mill", Team: 1, Recipe: planks, MaxWorkers: 2, RequiresHauler: true, AutoAssign: true})
	crafter := worker("crafter", 1, "carpenter")
	hauler := worker("hauler", 10, tasks.CapHaul)

	got := NewAssigner(1).AssignNow([]*Building{b}, workers(crafter, hauler))
	if len(got) != 2 {
		t.Fatalf("expected 2 assignments, got %+v", got)
	}
	if got[0].WorkerID != "hauler" || !got[0].Hauler {
		t.Fatalf("expected hauler first, got %+v", got[0])
	}
	if got[1].WorkerID != "crafter" || got[1].Hauler {
		t.Fatalf("expected crafter second, got %+v", got[1])
	}
}

func TestAssignNowFallsBackWithoutHauler(t *testing.T) {
	b := NewBuilding(nil, Params{ID: "mill", Team: 1, Recipe: planks, MaxWorkers: 1, RequiresHauler: true, AutoAssign: true})
	got := NewAssigner(1).AssignNow([]*Building{b}, workers(worker("crafter", 0, "carpenter")))
	if len(got) != 1 || got[0].WorkerID != "crafter" {
		t.Fatalf("expected fallback to crafter, got %+v", got)
	}
}

func TestAssignNowSkipsIneligible(t *testing.T) {
	b := building("mill", 1, 3)
	busy := worker("busy", 0, "carpenter")
	busy.state = dispatch.StateWorking
	foreign := worker("foreign", 0, "carpenter")
	foreign.team = 2
	unskilled := worker("unskilled", 0, tasks.CapGather)
	manual := building("manual", 9, 1)
	manual.SetAutoAssign(false)

	got := NewAssigner(1).AssignNow([]*Building{manual, b}, workers(busy, foreign, unskilled))
	if len(got) != 0 {
		t.Fatalf("expected no assignments, got %+v", got)
	}
}

func TestAssignerStepInterval(t *testing.T) {
	a := NewAssigner(2)
	b := building("mill", 1, 1)
	ws := workers(worker("w", 0, "carpenter"))
	if got := a.Step([]*Building{b}, ws); got != nil {
		t.Fatalf("assigned before interval: %+v", got)
	}
	if got := a.Step([]*Building{b}, ws); len(got) != 1 {
		t.Fatalf("expected assignment on second step, got %+v", got)
	}
}

func TestProductionCycle(t *testing.T) {
	l := ledger.New(ledger.WithBaselineCapacity(100))
	l.Deposit(1, "wood", 3)
	b := NewBuilding(l, Params{ID: "mill", Team: 1, Recipe: planks, MaxWorkers: 1, AutoAssign: true})
	changes := 0
	b.SetNotifier(func() { changes++ })

	b.Advance()
	if b.InputSite() == nil || !b.NeedsInput() {
		t.Fatalf("expected an open input cycle, state=%s", b.State())
	}
	if got := l.GetAvailable(1, "wood"); got != 1 {
		t.Fatalf("inputs not reserved: available=%d", got)
	}

	key := b.InputSite().Key()
	got := l.WithdrawReserved(1, key, "wood", 2)
	if b.ReceiveInput("wood", got) != 2 {
		t.Fatalf("input delivery rejected")
	}
	b.Advance()
	if b.State() != StateInputsReady || !b.IsProducing() {
		t.Fatalf("state: got %s", b.State())
	}

	b.AddWorker(worker("w", 0, "carpenter"))
	b.Advance()
	if b.State() != StateInProgress {
		t.Fatalf("state: got %s", b.State())
	}
	b.Work(2)
	if !b.Work(1) {
		t.Fatalf("expected cycle to finish")
	}
	if !b.Completed() || !b.HasOutputQueued() {
		t.Fatalf("expected output queued, state=%s", b.State())
	}

	moved := b.Collect()
	if moved.Amount("plank") != 4 || l.GetStored(1, "plank") != 4 {
		t.Fatalf("collect mismatch: moved=%v stored=%d", moved, l.GetStored(1, "plank"))
	}
	if b.State() != StateOutputReady {
		t.Fatalf("state: got %s", b.State())
	}
	b.Advance()
	if b.State() != StateWaitingForInputs || b.Produced() != 1 {
		t.Fatalf("expected new cycle, state=%s produced=%d", b.State(), b.Produced())
	}
	if l.HasReservation(1, key) {
		t.Fatalf("finished cycle still holds a reservation")
	}
	if changes == 0 {
		t.Fatalf("expected change notifications")
	}
}

func TestCycleWaitsWhenUnaffordable(t *testing.T) {
	l := ledger.New(ledger.WithBaselineCapacity(100))
	l.Deposit(1, "wood", 1)
	b := NewBuilding(l, Params{ID: "mill", Team: 1, Recipe: planks})
	b.Advance()
	if b.InputSite() != nil {
		t.Fatalf("opened a cycle without affordable inputs")
	}
	l.Deposit(1, "wood", 1)
	b.Advance()
	if b.InputSite() == nil {
		t.Fatalf("expected cycle once inputs are affordable")
	}
}

func TestCollectKeepsOverflowQueued(t *testing.T) {
	l := ledger.New(ledger.WithResourceCapacity("plank", 3), ledger.WithBaselineCapacity(10))
	l.Deposit(1, "wood", 2)
	b := NewBuilding(l, Params{ID: "mill", Team: 1, Recipe: planks})
	b.Advance()
	l.WithdrawReserved(1, b.InputSite().Key(), "wood", 2)
	b.ReceiveInput("wood", 2)
	b.Advance()
	b.Work(3)

	if moved := b.Collect(); moved.Amount("plank") != 3 {
		t.Fatalf("expected 3 planks stored, got %v", moved)
	}
	if b.State() != StateWaitingForPickup || !b.HasOutputQueued() {
		t.Fatalf("overflow should stay queued, state=%s", b.State())
	}
}

func TestAssignNowEndsBuildingOnReject(t *testing.T) {
	b := building("mill", 0, 2)
	near := worker("near", 0, "carpenter")
	near.reject = true
	far := worker("far", 5, "carpenter")

	if got := NewAssigner(1).AssignNow([]*Building{b}, workers(near, far)); len(got) != 0 {
		t.Fatalf("assignments: %+v", got)
	}
	if b.AssignedCount() != 0 || far.state != dispatch.StateIdle {
		t.Fatalf("seated=%d far=%s", b.AssignedCount(), far.state)
	}
}
