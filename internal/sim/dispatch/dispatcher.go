// Package dispatch owns the worker pool and the pending task requests, and
// greedily matches each request to the nearest eligible available worker.
package dispatch

import (
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/tasks"
)

type Assignment struct {
	WorkerID string        `json:"worker_id"`
	Team     model.Team    `json:"team"`
	Request  tasks.Request `json:"request"`
	DistSq   int           `json:"dist_sq"`
}

// Binder takes the capacity a request stands for (a gatherer slot, a builder
// count, a building seat) before the worker is offered the task, and gives it
// back when the worker rejects. Bind returning false means the request no
// longer matches any capacity.
type Binder interface {
	Bind(w Worker, r tasks.Request) bool
	Unbind(w Worker, r tasks.Request)
}

type Dispatcher struct {
	interval int
	elapsed  int

	order   []string
	workers map[string]Worker

	pending []tasks.Request
	binder  Binder

	assignedTotal uint64
	rejectedTotal uint64
	droppedTotal  uint64
}

// New returns a dispatcher that matches every intervalTicks calls to Step.
func New(intervalTicks int) *Dispatcher {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &Dispatcher{
		interval: intervalTicks,
		workers:  map[string]Worker{},
	}
}

// SetBinder installs b. Without one, every accepted request is assignable.
func (d *Dispatcher) SetBinder(b Binder) { d.binder = b }

// Register adds w in registration order. Registering an id twice is a no-op.
func (d *Dispatcher) Register(w Worker) {
	if w == nil {
		return
	}
	if _, ok := d.workers[w.ID()]; ok {
		return
	}
	d.workers[w.ID()] = w
	d.order = append(d.order, w.ID())
}

func (d *Dispatcher) Unregister(id string) {
	if _, ok := d.workers[id]; !ok {
		return
	}
	delete(d.workers, id)
	for i, wid := range d.order {
		if wid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *Dispatcher) Worker(id string) (Worker, bool) {
	w, ok := d.workers[id]
	return w, ok
}

// Workers returns the registered workers in registration order.
func (d *Dispatcher) Workers() []Worker {
	out := make([]Worker, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.workers[id])
	}
	return out
}

func (d *Dispatcher) TeamWorkerCount(team model.Team) int {
	n := 0
	for _, id := range d.order {
		if d.workers[id].TeamID() == team {
			n++
		}
	}
	return n
}

func (d *Dispatcher) Enqueue(r tasks.Request) {
	d.pending = append(d.pending, r)
}

// Pending returns a copy of the queue in insertion order.
func (d *Dispatcher) Pending() []tasks.Request {
	return append([]tasks.Request(nil), d.pending...)
}

func (d *Dispatcher) CountQueued(kind tasks.Kind, targetID string) int {
	n := 0
	for _, r := range d.pending {
		if r.Kind == kind && r.TargetID == targetID {
			n++
		}
	}
	return n
}

// CountQueuedForTeam counts queued requests for the target that team's
// workers could take.
func (d *Dispatcher) CountQueuedForTeam(kind tasks.Kind, targetID string, team model.Team) int {
	n := 0
	for _, r := range d.pending {
		if r.Kind == kind && r.TargetID == targetID && r.Affinity.Accepts(team) {
			n++
		}
	}
	return n
}

func (d *Dispatcher) QueuedByKind() map[tasks.Kind]int {
	out := make(map[tasks.Kind]int, len(tasks.Kinds))
	for _, k := range tasks.Kinds {
		out[k] = 0
	}
	for _, r := range d.pending {
		out[r.Kind]++
	}
	return out
}

// Cancel drops every queued request of kind for targetID.
func (d *Dispatcher) Cancel(kind tasks.Kind, targetID string) int {
	kept := d.pending[:0]
	removed := 0
	for _, r := range d.pending {
		if r.Kind == kind && r.TargetID == targetID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	d.pending = kept
	return removed
}

// Trim drops up to n of the newest queued requests of kind for targetID that
// team's workers could take.
func (d *Dispatcher) Trim(kind tasks.Kind, targetID string, team model.Team, n int) int {
	removed := 0
	for i := len(d.pending) - 1; i >= 0 && removed < n; i-- {
		r := d.pending[i]
		if r.Kind == kind && r.TargetID == targetID && r.Affinity.Accepts(team) {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			removed++
		}
	}
	return removed
}

func (d *Dispatcher) eligible(w Worker, r tasks.Request) bool {
	if !r.Affinity.Accepts(w.TeamID()) {
		return false
	}
	if !w.State().Available() {
		return false
	}
	return w.CanPerform(r.Capability)
}

// FindBestWorker scans workers in registration order and returns the eligible
// one closest to the request's target. The first of equally close workers wins.
func (d *Dispatcher) FindBestWorker(r tasks.Request) (Worker, bool) {
	return d.findBest(r, nil)
}

func (d *Dispatcher) findBest(r tasks.Request, skip map[string]bool) (Worker, bool) {
	var best Worker
	bestDist := 0
	for _, id := range d.order {
		if skip[id] {
			continue
		}
		w := d.workers[id]
		if !d.eligible(w, r) {
			continue
		}
		dist := w.Pos().DistSq(r.Pos)
		if best == nil || dist < bestDist {
			best = w
			bestDist = dist
		}
	}
	return best, best != nil
}

// DispatchNow runs one matching pass over the queue in insertion order. A
// request leaves the queue when its worker accepts it, or when the binder
// finds nothing left to bind it to. A worker that accepts is not offered
// another request in the same pass.
func (d *Dispatcher) DispatchNow() []Assignment {
	if len(d.pending) == 0 || len(d.order) == 0 {
		return nil
	}
	var out []Assignment
	taken := map[string]bool{}
	kept := make([]tasks.Request, 0, len(d.pending))
	for _, r := range d.pending {
		w, ok := d.findBest(r, taken)
		if !ok {
			kept = append(kept, r)
			continue
		}
		if d.binder != nil && !d.binder.Bind(w, r) {
			d.droppedTotal++
			continue
		}
		if !w.TryAssignTask(r) {
			if d.binder != nil {
				d.binder.Unbind(w, r)
			}
			d.rejectedTotal++
			kept = append(kept, r)
			continue
		}
		taken[w.ID()] = true
		d.assignedTotal++
		out = append(out, Assignment{
			WorkerID: w.ID(),
			Team:     w.TeamID(),
			Request:  r,
			DistSq:   w.Pos().DistSq(r.Pos),
		})
	}
	d.pending = kept
	return out
}

// Step advances the dispatch timer by one tick and runs a pass when the
// interval elapses.
func (d *Dispatcher) Step() []Assignment {
	d.elapsed++
	if d.elapsed < d.interval {
		return nil
	}
	d.elapsed = 0
	return d.DispatchNow()
}

func (d *Dispatcher) AssignedTotal() uint64 { return d.assignedTotal }
func (d *Dispatcher) RejectedTotal() uint64 { return d.rejectedTotal }

// DroppedTotal counts stale requests the binder refused.
func (d *Dispatcher) DroppedTotal() uint64 { return d.droppedTotal }
