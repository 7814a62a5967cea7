package registry

import (
	"stockyard.ai/internal/sim/events"
	"stockyard.ai/internal/sim/model"
)

type Nodes struct {
	set *Set[*model.Node]
	bus *events.Bus

	// Nodes that already fired Depleted.
	depleted map[string]bool
}

func NewNodes(bus *events.Bus) *Nodes {
	return &Nodes{set: NewSet[*model.Node](), bus: bus, depleted: map[string]bool{}}
}

func (r *Nodes) publish(kind events.Kind, n *model.Node) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Topic: events.Topic{Entity: events.EntityNode, Kind: kind},
		ID:    n.ID,
		Team:  n.Team,
	})
}

func (r *Nodes) Register(n *model.Node) {
	if n == nil || !r.set.Add(n) {
		return
	}
	r.publish(events.Registered, n)
	r.checkDepleted(n)
}

func (r *Nodes) Unregister(id string) {
	n, ok := r.set.Remove(id)
	if !ok {
		return
	}
	delete(r.depleted, id)
	r.publish(events.Unregistered, n)
}

// NotifyChanged is called by whoever mutated n. Depleted fires once, the
// first time a change leaves the node at or below zero.
func (r *Nodes) NotifyChanged(n *model.Node) {
	if n == nil || !r.set.Has(n.ID) {
		return
	}
	r.publish(events.Changed, n)
	r.checkDepleted(n)
}

func (r *Nodes) checkDepleted(n *model.Node) {
	if !n.Depleted() || r.depleted[n.ID] {
		return
	}
	r.depleted[n.ID] = true
	r.publish(events.Depleted, n)
}

func (r *Nodes) Get(id string) (*model.Node, bool) { return r.set.Get(id) }
func (r *Nodes) All() []*model.Node                { return r.set.All() }
func (r *Nodes) Team(t model.Team) []*model.Node   { return r.set.Team(t) }
func (r *Nodes) Len() int                          { return r.set.Len() }
