// Package world is the simulation context. A World owns one team ledger, the
// entity registries and the task machinery, and advances them in a fixed
// order once per tick. Nothing outside the world loop mutates its state;
// other goroutines submit work through Do.
package world

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"stockyard.ai/internal/sim/crafting"
	"stockyard.ai/internal/sim/dispatch"
	"stockyard.ai/internal/sim/events"
	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/registry"
	"stockyard.ai/internal/sim/resources"
	"stockyard.ai/internal/sim/site"
	"stockyard.ai/internal/sim/taskgen"
	"stockyard.ai/internal/sim/tasks"
	"stockyard.ai/internal/sim/tuning"
)

var ErrStopped = errors.New("world stopped")

// Actor is a worker that acts on the world once per tick, after dispatch and
// crafting assignment.
type Actor interface {
	Act(w *World)
}

type World struct {
	id   string
	tune tuning.Tuning
	log  *log.Logger

	tick atomic.Uint64

	ledger    *ledger.Ledger
	bus       *events.Bus
	nodes     *registry.Nodes
	sites     *registry.Sites
	buildings *registry.Buildings
	dispatch  *dispatch.Dispatcher
	gen       *taskgen.Generator
	assigner  *crafting.Assigner
	catalog   *resources.Catalog

	// Worker id -> the request it is currently serving.
	active map[string]tasks.Request

	tickLoggers  []TickLogger
	metricsSinks []MetricsSink

	inbox         chan doReq
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	observers     map[string]chan []byte
	stop          chan struct{}
	stopOnce      sync.Once

	metrics atomic.Value
}

type Option func(*World)

func WithID(id string) Option { return func(w *World) { w.id = id } }

func WithLogger(l *log.Logger) Option { return func(w *World) { w.log = l } }

func WithCatalog(c *resources.Catalog) Option { return func(w *World) { w.catalog = c } }

// WithTickLogger adds a per-tick sink. It may be given more than once.
func WithTickLogger(tl TickLogger) Option {
	return func(w *World) {
		if tl != nil {
			w.tickLoggers = append(w.tickLoggers, tl)
		}
	}
}

func WithMetricsSink(m MetricsSink) Option {
	return func(w *World) {
		if m != nil {
			w.metricsSinks = append(w.metricsSinks, m)
		}
	}
}

func New(tune tuning.Tuning, opts ...Option) (*World, error) {
	if err := tune.Validate(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}

	lopts := []ledger.Option{ledger.WithBaselineCapacity(tune.DefaultBaselineCapacity)}
	keys := make([]string, 0, len(tune.BaselineCapacity))
	for k := range tune.BaselineCapacity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lopts = append(lopts, ledger.WithResourceCapacity(resources.Key(k), tune.BaselineCapacity[k]))
	}

	bus := events.NewBus()
	w := &World{
		id:            "world_1",
		tune:          tune,
		log:           log.New(io.Discard, "", 0),
		ledger:        ledger.New(lopts...),
		bus:           bus,
		nodes:         registry.NewNodes(bus),
		sites:         registry.NewSites(bus),
		buildings:     registry.NewBuildings(bus),
		dispatch:      dispatch.New(tune.DispatchIntervalTicks),
		assigner:      crafting.NewAssigner(tune.CraftingIntervalTicks),
		active:        map[string]tasks.Request{},
		inbox:         make(chan doReq, 1024),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		observers:     map[string]chan []byte{},
		stop:          make(chan struct{}),
	}
	w.dispatch.SetBinder(binder{w})
	w.gen = taskgen.New(w.dispatch, w.nodes, w.sites, w.buildings, tune.GenerationIntervalTicks)
	w.gen.Subscribe(bus)
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

func (w *World) ID() string                       { return w.id }
func (w *World) Tuning() tuning.Tuning            { return w.tune }
func (w *World) CurrentTick() uint64              { return w.tick.Load() }
func (w *World) Ledger() *ledger.Ledger           { return w.ledger }
func (w *World) Bus() *events.Bus                 { return w.bus }
func (w *World) Nodes() *registry.Nodes           { return w.nodes }
func (w *World) Sites() *registry.Sites           { return w.sites }
func (w *World) Buildings() *registry.Buildings   { return w.buildings }
func (w *World) Dispatcher() *dispatch.Dispatcher { return w.dispatch }
func (w *World) Catalog() *resources.Catalog      { return w.catalog }

func (w *World) AddWorker(wk dispatch.Worker) { w.dispatch.Register(wk) }

// RemoveWorker releases whatever the worker was serving and drops it from the
// pool.
func (w *World) RemoveWorker(id string) {
	w.Release(id)
	w.dispatch.Unregister(id)
}

func (w *World) AddNode(n *model.Node) { w.nodes.Register(n) }

func (w *World) RemoveNode(id string) { w.nodes.Unregister(id) }

// PlaceSite creates and registers a site. A site whose reservation is denied
// is still registered but stays inert; ok reports the reservation result.
func (w *World) PlaceSite(p site.Params) (s *site.Site, ok bool) {
	s = site.New(w.ledger, p)
	w.sites.Register(s)
	return s, s.InitOK()
}

// RemoveSite abandons an unfinished site, returning its reservation to the
// ledger.
func (w *World) RemoveSite(key string) {
	s, ok := w.sites.Get(key)
	if !ok {
		return
	}
	if !s.Completed() {
		s.Abandon()
	}
	w.sites.Unregister(key)
}

func (w *World) AddBuilding(b *crafting.Building) { w.buildings.Register(b) }

func (w *World) RemoveBuilding(id string) {
	b, ok := w.buildings.Get(id)
	if !ok {
		return
	}
	for _, wk := range b.AssignedWorkers() {
		delete(w.active, wk.ID())
	}
	b.Close()
	w.buildings.Unregister(id)
}

// Active returns the request the worker is serving, if any.
func (w *World) Active(workerID string) (tasks.Request, bool) {
	r, ok := w.active[workerID]
	return r, ok
}

// Release undoes the bookkeeping taken when the worker was assigned: the
// gatherer slot, builder count or building seat.
func (w *World) Release(workerID string) bool {
	r, ok := w.active[workerID]
	if !ok {
		return false
	}
	delete(w.active, workerID)
	switch r.Kind {
	case tasks.KindGather:
		if n, ok := w.nodes.Get(r.TargetID); ok {
			n.RemoveGatherer()
			w.nodes.NotifyChanged(n)
		}
	case tasks.KindBuild:
		if s, ok := w.sites.Get(r.TargetID); ok {
			s.RemoveBuilder()
		}
	case tasks.KindCraft:
		if b, ok := w.buildings.Get(r.TargetID); ok {
			b.RemoveWorker(workerID)
		}
	}
	return true
}

// binder takes a gatherer slot, builder count or building seat for a request
// before the dispatcher offers it, so a worker is only committed where there
// is room.
type binder struct{ w *World }

func (b binder) Bind(wk dispatch.Worker, r tasks.Request) bool {
	w := b.w
	switch r.Kind {
	case tasks.KindGather:
		n, ok := w.nodes.Get(r.TargetID)
		if !ok || !n.AddGatherer() {
			return false
		}
		w.nodes.NotifyChanged(n)
	case tasks.KindBuild:
		s, ok := w.sites.Get(r.TargetID)
		if !ok || !s.InitOK() || s.Completed() {
			return false
		}
		s.AddBuilder()
	case tasks.KindHaul:
		if _, ok := w.sites.Get(r.TargetID); !ok {
			return false
		}
	case tasks.KindCraft:
		bd, ok := w.buildings.Get(r.TargetID)
		if !ok || !bd.AddWorker(wk) {
			return false
		}
	}
	w.active[wk.ID()] = r
	return true
}

func (b binder) Unbind(wk dispatch.Worker, _ tasks.Request) { b.w.Release(wk.ID()) }

// sweepSites drops completed sites nobody is still working on.
func (w *World) sweepSites() {
	for _, s := range w.sites.All() {
		if s.Completed() && s.AssignedBuilders() == 0 {
			w.sites.Unregister(s.Key())
		}
	}
}

func (w *World) teamLedgers() []TeamLedger {
	teams := w.ledger.Teams()
	out := make([]TeamLedger, 0, len(teams))
	for _, t := range teams {
		out = append(out, TeamLedger{Team: t, Entries: w.ledger.Snapshot(t)})
	}
	return out
}
