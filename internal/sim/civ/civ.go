// Package civ is a minimal civilian worker: it accepts one task at a time,
// walks to the target on a fixed countdown and carries the task out against
// the world.
package civ

import (
	"github.com/google/uuid"

	"stockyard.ai/internal/sim/dispatch"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/tasks"
	"stockyard.ai/internal/sim/world"
)

type Config struct {
	// Ticks between accepting a task and starting it.
	TravelTicks int
	// Units moved per gather or haul trip.
	Carry int
	// Work applied per tick to sites and production.
	WorkRate int
}

func DefaultConfig() Config {
	return Config{TravelTicks: 2, Carry: 5, WorkRate: 1}
}

type Civilian struct {
	id   string
	team model.Team
	pos  model.Vec3i
	caps map[tasks.Capability]bool
	cfg  Config

	state  dispatch.WorkerState
	cur    tasks.Request
	travel int

	completed int
}

// New returns an idle civilian. An empty id gets a random one.
func New(id string, team model.Team, pos model.Vec3i, cfg Config, caps ...tasks.Capability) *Civilian {
	if id == "" {
		id = "civ-" + uuid.NewString()
	}
	if cfg.Carry < 1 {
		cfg.Carry = 1
	}
	if cfg.WorkRate < 1 {
		cfg.WorkRate = 1
	}
	c := &Civilian{
		id:    id,
		team:  team,
		pos:   pos,
		caps:  map[tasks.Capability]bool{},
		cfg:   cfg,
		state: dispatch.StateIdle,
	}
	for _, cp := range caps {
		c.caps[cp] = true
	}
	return c
}

func (c *Civilian) ID() string                         { return c.id }
func (c *Civilian) TeamID() model.Team                 { return c.team }
func (c *Civilian) Pos() model.Vec3i                   { return c.pos }
func (c *Civilian) CanPerform(k tasks.Capability) bool { return c.caps[k] }
func (c *Civilian) State() dispatch.WorkerState        { return c.state }
func (c *Civilian) Current() tasks.Request             { return c.cur }
func (c *Civilian) Completed() int                     { return c.completed }

// TryAssignTask accepts any request while idle. Capability is checked by
// whoever picked this civilian.
func (c *Civilian) TryAssignTask(r tasks.Request) bool {
	if !c.state.Available() {
		return false
	}
	c.cur = r
	c.travel = c.cfg.TravelTicks
	c.state = dispatch.StateAssigned
	return true
}

func (c *Civilian) Act(w *world.World) {
	switch c.state {
	case dispatch.StateAssigned:
		if c.travel > 0 {
			c.travel--
		}
		if c.travel == 0 {
			c.pos = c.cur.Pos
			c.state = dispatch.StateWorking
		}
	case dispatch.StateWorking:
		switch c.cur.Kind {
		case tasks.KindGather:
			c.gather(w)
		case tasks.KindHaul:
			c.haul(w)
		case tasks.KindBuild:
			c.build(w)
		case tasks.KindCraft:
			c.craft(w)
		default:
			c.finish(w)
		}
	}
}

func (c *Civilian) finish(w *world.World) {
	w.Release(c.id)
	c.cur = tasks.Request{}
	c.state = dispatch.StateIdle
	c.completed++
}

// gather takes only what the ledger can still hold.
func (c *Civilian) gather(w *world.World) {
	defer c.finish(w)
	n, ok := w.Nodes().Get(c.cur.TargetID)
	if !ok || n.Depleted() {
		return
	}
	amount := min(c.cfg.Carry, w.Ledger().GetFree(c.team, n.Resource))
	got := n.Harvest(amount)
	if got == 0 {
		return
	}
	w.Ledger().Deposit(c.team, n.Resource, got)
	w.Nodes().NotifyChanged(n)
}

func (c *Civilian) haul(w *world.World) {
	defer c.finish(w)
	s, ok := w.Sites().Get(c.cur.TargetID)
	if !ok {
		return
	}
	k, missing, ok := s.NextMissing()
	if !ok {
		return
	}
	got := w.Ledger().WithdrawReserved(c.team, s.Key(), k, min(c.cfg.Carry, missing))
	s.ReceiveDelivery(k, got)
}

// build keeps working until the site completes or runs short of materials.
func (c *Civilian) build(w *world.World) {
	s, ok := w.Sites().Get(c.cur.TargetID)
	if !ok || !s.InitOK() || s.Completed() || !s.MaterialsComplete() {
		c.finish(w)
		return
	}
	if s.AddWork(c.cfg.WorkRate) {
		c.finish(w)
	}
}

// craft serves the building until it is removed: collect output, bring in
// inputs, or apply work, one of them per tick.
func (c *Civilian) craft(w *world.World) {
	b, ok := w.Buildings().Get(c.cur.TargetID)
	if !ok || !b.HasWorker(c.id) {
		c.finish(w)
		return
	}
	switch {
	case b.HasOutputQueued():
		b.Collect()
	case b.NeedsInput():
		in := b.InputSite()
		if in == nil || (b.RequiresHauler() && !c.CanPerform(tasks.CapHaul)) {
			return
		}
		k, missing, ok := in.NextMissing()
		if !ok {
			return
		}
		got := w.Ledger().WithdrawReserved(c.team, in.Key(), k, min(c.cfg.Carry, missing))
		b.ReceiveInput(k, got)
	case b.IsProducing():
		b.Work(c.cfg.WorkRate)
	}
}
