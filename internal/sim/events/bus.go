// Package events is a synchronous, ordered notification queue. Publishers
// append; the simulation loop drains once per step, delivering events in
// publish order to handlers in subscription order.
package events

import "stockyard.ai/internal/sim/model"

type Entity string

const (
	EntityNode     Entity = "NODE"
	EntitySite     Entity = "SITE"
	EntityBuilding Entity = "BUILDING"
)

type Kind string

const (
	Registered   Kind = "REGISTERED"
	Unregistered Kind = "UNREGISTERED"
	Changed      Kind = "CHANGED"
	Depleted     Kind = "DEPLETED"
	Completed    Kind = "COMPLETED"
)

type Topic struct {
	Entity Entity
	Kind   Kind
}

type Event struct {
	Topic
	ID   string
	Team model.Team
	Tick uint64
}

type Handler func(Event)

// maxDrainEvents bounds a single Drain so a handler that republishes forever
// cannot wedge the tick.
const maxDrainEvents = 1 << 16

type Bus struct {
	handlers map[Topic][]Handler
	all      []Handler
	queue    []Event
	tick     uint64

	delivered uint64
}

func NewBus() *Bus {
	return &Bus{handlers: map[Topic][]Handler{}}
}

func (b *Bus) Subscribe(t Topic, h Handler) {
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeEntity registers h for every kind of event about one entity type.
func (b *Bus) SubscribeEntity(e Entity, h Handler) {
	for _, k := range []Kind{Registered, Unregistered, Changed, Depleted, Completed} {
		b.Subscribe(Topic{Entity: e, Kind: k}, h)
	}
}

// SubscribeAll registers h for every event. All-handlers run after the
// topic handlers of each event.
func (b *Bus) SubscribeAll(h Handler) {
	b.all = append(b.all, h)
}

func (b *Bus) SetTick(tick uint64) { b.tick = tick }

func (b *Bus) Publish(ev Event) {
	if ev.Tick == 0 {
		ev.Tick = b.tick
	}
	b.queue = append(b.queue, ev)
}

func (b *Bus) Pending() int { return len(b.queue) }

// Drain delivers queued events, including any published by handlers while
// draining. It returns the number delivered.
func (b *Bus) Drain() int {
	n := 0
	for len(b.queue) > 0 && n < maxDrainEvents {
		ev := b.queue[0]
		b.queue = b.queue[1:]
		for _, h := range b.handlers[ev.Topic] {
			h(ev)
		}
		for _, h := range b.all {
			h(ev)
		}
		n++
	}
	if len(b.queue) == 0 {
		b.queue = nil
	}
	b.delivered += uint64(n)
	return n
}

func (b *Bus) Delivered() uint64 { return b.delivered }
