// Package taskgen turns registry notifications into task requests. For each
// event it recomputes the open capacity of the entity, subtracts what is
// already queued, and queues the difference. Repeating an event without a
// state change queues nothing.
package taskgen

import (
	"stockyard.ai/internal/sim/crafting"
	"stockyard.ai/internal/sim/dispatch"
	"stockyard.ai/internal/sim/events"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/registry"
	"stockyard.ai/internal/sim/site"
	"stockyard.ai/internal/sim/tasks"
)

type Generator struct {
	d         *dispatch.Dispatcher
	nodes     *registry.Nodes
	sites     *registry.Sites
	buildings *registry.Buildings

	interval int
	elapsed  int

	queuedTotal   uint64
	canceledTotal uint64
}

// New returns a generator that also rescans every live entity each
// intervalTicks steps, so demand that changed without an event is picked up.
func New(d *dispatch.Dispatcher, nodes *registry.Nodes, sites *registry.Sites, buildings *registry.Buildings, intervalTicks int) *Generator {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &Generator{d: d, nodes: nodes, sites: sites, buildings: buildings, interval: intervalTicks}
}

func (g *Generator) Subscribe(bus *events.Bus) {
	bus.SubscribeEntity(events.EntityNode, g.onNode)
	bus.SubscribeEntity(events.EntitySite, g.onSite)
	bus.SubscribeEntity(events.EntityBuilding, g.onBuilding)
}

func (g *Generator) onNode(ev events.Event) {
	switch ev.Kind {
	case events.Depleted, events.Unregistered:
		g.cancel(tasks.KindGather, ev.ID)
	default:
		if n, ok := g.nodes.Get(ev.ID); ok {
			g.SyncNode(n)
		}
	}
}

func (g *Generator) onSite(ev events.Event) {
	switch ev.Kind {
	case events.Completed, events.Unregistered:
		g.cancel(tasks.KindBuild, ev.ID)
		g.cancel(tasks.KindHaul, ev.ID)
	default:
		if s, ok := g.sites.Get(ev.ID); ok {
			g.SyncSite(s)
		}
	}
}

func (g *Generator) onBuilding(ev events.Event) {
	switch ev.Kind {
	case events.Unregistered:
		g.cancel(tasks.KindCraft, ev.ID)
	default:
		if b, ok := g.buildings.Get(ev.ID); ok {
			g.SyncBuilding(b)
		}
	}
}

func (g *Generator) cancel(kind tasks.Kind, id string) {
	g.canceledTotal += uint64(g.d.Cancel(kind, id))
}

func (g *Generator) enqueue(r tasks.Request, n int) int {
	for i := 0; i < n; i++ {
		g.d.Enqueue(r)
	}
	if n > 0 {
		g.queuedTotal += uint64(n)
		return n
	}
	return 0
}

// trim drops queued requests beyond open.
func (g *Generator) trim(kind tasks.Kind, id string, team model.Team, queued, open int) {
	if queued > open {
		g.canceledTotal += uint64(g.d.Trim(kind, id, team, queued-max(0, open)))
	}
}

// SyncNode queues gather requests for the node's open slots, or trims the
// queue when the slots shrank.
func (g *Generator) SyncNode(n *model.Node) int {
	if n.Depleted() {
		g.cancel(tasks.KindGather, n.ID)
		return 0
	}
	open := n.OpenSlots()
	queued := g.d.CountQueuedForTeam(tasks.KindGather, n.ID, n.Team)
	g.trim(tasks.KindGather, n.ID, n.Team, queued, open)
	return g.enqueue(tasks.Gather(n), open-queued)
}

// SyncSite queues build requests, and haul requests while materials are
// missing. Both are bounded by the team's total worker count rather than a
// per-site cap.
func (g *Generator) SyncSite(s *site.Site) int {
	id := s.EntityID()
	if !s.InitOK() || s.Completed() {
		g.cancel(tasks.KindBuild, id)
		g.cancel(tasks.KindHaul, id)
		return 0
	}
	workers := g.d.TeamWorkerCount(s.TeamID())

	queuedBuild := g.d.CountQueuedForTeam(tasks.KindBuild, id, s.TeamID())
	n := g.enqueue(tasks.Build(s), max(1, workers)-s.AssignedBuilders()-queuedBuild)

	if s.MaterialsComplete() {
		g.cancel(tasks.KindHaul, id)
		return n
	}
	queuedHaul := g.d.CountQueuedForTeam(tasks.KindHaul, id, s.TeamID())
	return n + g.enqueue(tasks.Haul(s), workers-queuedHaul)
}

// SyncBuilding queues craft requests for empty seats while the building has
// something to do, and trims requests for seats that filled.
func (g *Generator) SyncBuilding(b *crafting.Building) int {
	id, team := b.EntityID(), b.TeamID()
	queued := g.d.CountQueuedForTeam(tasks.KindCraft, id, team)
	open := b.MaxWorkers() - b.AssignedCount()
	g.trim(tasks.KindCraft, id, team, queued, open)
	if !b.NeedsInput() && !b.HasOutputQueued() && !b.IsProducing() {
		return 0
	}
	return g.enqueue(tasks.Craft(b, string(b.JobType())), open-queued)
}

// Step runs the periodic rescan when the interval elapses. It returns the
// number of requests queued.
func (g *Generator) Step() int {
	g.elapsed++
	if g.elapsed < g.interval {
		return 0
	}
	g.elapsed = 0
	return g.SyncAll()
}

func (g *Generator) SyncAll() int {
	n := 0
	for _, node := range g.nodes.All() {
		n += g.SyncNode(node)
	}
	for _, s := range g.sites.All() {
		n += g.SyncSite(s)
	}
	for _, b := range g.buildings.All() {
		n += g.SyncBuilding(b)
	}
	return n
}

func (g *Generator) QueuedTotal() uint64   { return g.queuedTotal }
func (g *Generator) CanceledTotal() uint64 { return g.canceledTotal }
