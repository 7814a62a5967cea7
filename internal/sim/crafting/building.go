// Package crafting runs production buildings: the input/output cycle of a
// recipe and the priority-ordered assignment of workers to buildings.
package crafting

import (
	"fmt"

	"stockyard.ai/internal/sim/dispatch"
	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/site"
	"stockyard.ai/internal/sim/tasks"
)

type State string

const (
	StateWaitingForInputs State = "WAITING_FOR_INPUTS"
	StateInputsReady      State = "INPUTS_READY"
	StateInProgress       State = "IN_PROGRESS"
	StateWaitingForPickup State = "WAITING_FOR_PICKUP"
	StateOutputReady      State = "OUTPUT_READY"
)

// DefaultJobType is used for recipes that name no job type.
const DefaultJobType = "craft"

type Params struct {
	ID             string
	Team           model.Team
	Pos            model.Vec3i
	Recipe         resources.Recipe
	MaxWorkers     int
	Priority       int
	RequiresHauler bool
	AutoAssign     bool
}

type Building struct {
	id             string
	team           model.Team
	pos            model.Vec3i
	recipe         resources.Recipe
	maxWorkers     int
	priority       int
	requiresHauler bool
	autoAssign     bool

	state    State
	assigned []dispatch.Worker
	input    *site.Site
	output   resources.Costs
	cycle    int
	produced int

	ledger *ledger.Ledger
	notify func()
}

func NewBuilding(l *ledger.Ledger, p Params) *Building {
	r := p.Recipe
	r.Inputs = resources.Merge(r.Inputs)
	r.Outputs = resources.Merge(r.Outputs)
	return &Building{
		id:             p.ID,
		team:           p.Team,
		pos:            p.Pos,
		recipe:         r,
		maxWorkers:     p.MaxWorkers,
		priority:       p.Priority,
		requiresHauler: p.RequiresHauler,
		autoAssign:     p.AutoAssign,
		state:          StateWaitingForInputs,
		ledger:         l,
	}
}

func (b *Building) EntityID() string         { return b.id }
func (b *Building) TeamID() model.Team       { return b.team }
func (b *Building) Position() model.Vec3i    { return b.pos }
func (b *Building) Recipe() resources.Recipe { return b.recipe }
func (b *Building) Priority() int            { return b.priority }
func (b *Building) RequiresHauler() bool     { return b.requiresHauler }
func (b *Building) AutoAssign() bool         { return b.autoAssign }
func (b *Building) State() State             { return b.state }
func (b *Building) Produced() int            { return b.produced }
func (b *Building) InputSite() *site.Site    { return b.input }

func (b *Building) SetAutoAssign(v bool) { b.autoAssign = v }

// SetNotifier installs the change hook. Registries set it on registration.
func (b *Building) SetNotifier(fn func()) { b.notify = fn }

func (b *Building) changed() {
	if b.notify != nil {
		b.notify()
	}
}

func (b *Building) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	b.changed()
}

// Completed is true while a finished cycle's output waits for pickup.
func (b *Building) Completed() bool { return b.state == StateWaitingForPickup }

func (b *Building) MaxWorkers() int {
	if b.maxWorkers < 1 {
		return 1
	}
	return b.maxWorkers
}

func (b *Building) JobType() tasks.Capability {
	if b.recipe.JobType == "" {
		return DefaultJobType
	}
	return tasks.Capability(b.recipe.JobType)
}

func (b *Building) NeedsInput() bool {
	return b.state == StateWaitingForInputs
}

func (b *Building) HasOutputQueued() bool { return len(b.output) > 0 }

func (b *Building) IsProducing() bool {
	return b.state == StateInputsReady || b.state == StateInProgress
}

func (b *Building) AssignedWorkers() []dispatch.Worker {
	return append([]dispatch.Worker(nil), b.assigned...)
}

func (b *Building) AssignedCount() int { return len(b.assigned) }

func (b *Building) HasWorker(id string) bool {
	for _, w := range b.assigned {
		if w.ID() == id {
			return true
		}
	}
	return false
}

func (b *Building) HasHauler() bool {
	for _, w := range b.assigned {
		if w.CanPerform(tasks.CapHaul) {
			return true
		}
	}
	return false
}

// AddWorker attaches w if the building has room and w is not already there.
func (b *Building) AddWorker(w dispatch.Worker) bool {
	if w == nil || len(b.assigned) >= b.MaxWorkers() || b.HasWorker(w.ID()) {
		return false
	}
	b.assigned = append(b.assigned, w)
	b.changed()
	return true
}

func (b *Building) RemoveWorker(id string) {
	for i, w := range b.assigned {
		if w.ID() == id {
			b.assigned = append(b.assigned[:i], b.assigned[i+1:]...)
			b.changed()
			return
		}
	}
}

// Advance moves the cycle along the transitions that need no worker action.
// The world calls it once per step.
func (b *Building) Advance() {
	switch b.state {
	case StateWaitingForInputs:
		b.openCycle()
		if b.input != nil && b.input.MaterialsComplete() {
			b.setState(StateInputsReady)
		}
	case StateInputsReady:
		if len(b.assigned) > 0 {
			b.setState(StateInProgress)
		}
	case StateOutputReady:
		b.input = nil
		b.setState(StateWaitingForInputs)
	}
}

// openCycle reserves the recipe inputs for the next cycle. A cycle whose
// reservation would be denied is not opened; a new one is tried next step.
func (b *Building) openCycle() {
	if b.input != nil || b.ledger == nil {
		return
	}
	if !b.ledger.CanAffordAvailable(b.team, b.recipe.Inputs) {
		return
	}
	b.cycle++
	s := site.New(b.ledger, site.Params{
		Key:          fmt.Sprintf("%s#%d", b.id, b.cycle),
		Team:         b.team,
		Kind:         site.KindProduction,
		Pos:          b.pos,
		Costs:        b.recipe.Inputs,
		RequiredWork: b.recipe.WorkTicks,
		OnComplete:   b.finishCycle,
	})
	if !s.InitOK() {
		return
	}
	b.input = s
	b.changed()
}

func (b *Building) finishCycle(*site.Site) {
	b.output = append(resources.Costs(nil), b.recipe.Outputs...)
	b.produced++
	b.setState(StateWaitingForPickup)
}

// ReceiveInput delivers hauled inputs into the current cycle.
func (b *Building) ReceiveInput(k resources.Key, amount int) int {
	if b.input == nil || b.state != StateWaitingForInputs {
		return 0
	}
	n := b.input.ReceiveDelivery(k, amount)
	if n > 0 {
		b.changed()
	}
	return n
}

// Work applies crafting effort. It reports whether the cycle finished.
func (b *Building) Work(amount int) bool {
	if b.state == StateInputsReady {
		b.setState(StateInProgress)
	}
	if b.state != StateInProgress || b.input == nil {
		return false
	}
	return b.input.AddWork(amount)
}

// Collect moves queued output into the team ledger. Output that does not fit
// stays queued; once everything is stored the building is OutputReady.
func (b *Building) Collect() resources.Costs {
	if b.state != StateWaitingForPickup || b.ledger == nil {
		return nil
	}
	var moved resources.Costs
	left := b.output[:0]
	for _, c := range b.output {
		n := b.ledger.Deposit(b.team, c.Resource, c.Amount)
		if n > 0 {
			moved = append(moved, resources.Cost{Resource: c.Resource, Amount: n})
		}
		if n < c.Amount {
			left = append(left, resources.Cost{Resource: c.Resource, Amount: c.Amount - n})
		}
	}
	b.output = left
	if len(b.output) == 0 {
		b.output = nil
		b.setState(StateOutputReady)
	} else if len(moved) > 0 {
		b.changed()
	}
	return moved
}

// Close abandons the current cycle and releases its reservation.
func (b *Building) Close() {
	if b.input != nil && !b.input.Completed() {
		b.input.Abandon()
	}
	b.input = nil
}
