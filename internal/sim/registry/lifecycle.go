package registry

import (
	"stockyard.ai/internal/sim/crafting"
	"stockyard.ai/internal/sim/events"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/site"
)

// Completable entities report their own completion flag and accept a change
// hook from the registry.
type Completable interface {
	Entity
	Completed() bool
	SetNotifier(fn func())
}

// Lifecycle tracks sites or buildings. Completed fires on each transition of
// the entity's completion flag from false to true; a site never resets its
// flag, so it completes exactly once.
type Lifecycle[T Completable] struct {
	set    *Set[T]
	bus    *events.Bus
	entity events.Entity

	done map[string]bool
}

type (
	Sites     = Lifecycle[*site.Site]
	Buildings = Lifecycle[*crafting.Building]
)

func NewSites(bus *events.Bus) *Sites {
	return newLifecycle[*site.Site](bus, events.EntitySite)
}

func NewBuildings(bus *events.Bus) *Buildings {
	return newLifecycle[*crafting.Building](bus, events.EntityBuilding)
}

func newLifecycle[T Completable](bus *events.Bus, entity events.Entity) *Lifecycle[T] {
	return &Lifecycle[T]{set: NewSet[T](), bus: bus, entity: entity, done: map[string]bool{}}
}

func (r *Lifecycle[T]) publish(kind events.Kind, e T) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Topic: events.Topic{Entity: r.entity, Kind: kind},
		ID:    e.EntityID(),
		Team:  e.TeamID(),
	})
}

func (r *Lifecycle[T]) Register(e T) {
	if !r.set.Add(e) {
		return
	}
	e.SetNotifier(func() { r.NotifyChanged(e) })
	r.publish(events.Registered, e)
	r.checkCompleted(e)
}

func (r *Lifecycle[T]) Unregister(id string) {
	e, ok := r.set.Remove(id)
	if !ok {
		return
	}
	e.SetNotifier(nil)
	delete(r.done, id)
	r.publish(events.Unregistered, e)
}

func (r *Lifecycle[T]) NotifyChanged(e T) {
	if !r.set.Has(e.EntityID()) {
		return
	}
	r.publish(events.Changed, e)
	r.checkCompleted(e)
}

func (r *Lifecycle[T]) checkCompleted(e T) {
	id := e.EntityID()
	if !e.Completed() {
		delete(r.done, id)
		return
	}
	if r.done[id] {
		return
	}
	r.done[id] = true
	r.publish(events.Completed, e)
}

func (r *Lifecycle[T]) Get(id string) (T, bool) { return r.set.Get(id) }
func (r *Lifecycle[T]) All() []T                { return r.set.All() }
func (r *Lifecycle[T]) Team(t model.Team) []T   { return r.set.Team(t) }
func (r *Lifecycle[T]) Len() int                { return r.set.Len() }
