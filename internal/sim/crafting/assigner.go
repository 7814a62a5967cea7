package crafting

import (
	"sort"

	"stockyard.ai/internal/sim/dispatch"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/tasks"
)

type Assignment struct {
	BuildingID string     `json:"building_id"`
	WorkerID   string     `json:"worker_id"`
	Team       model.Team `json:"team"`
	Hauler     bool       `json:"hauler"`
}

// Assigner staffs production buildings on its own interval, independent of
// the generic dispatcher.
type Assigner struct {
	interval int
	elapsed  int
}

func NewAssigner(intervalTicks int) *Assigner {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &Assigner{interval: intervalTicks}
}

func (a *Assigner) Step(buildings []*Building, workers []dispatch.Worker) []Assignment {
	a.elapsed++
	if a.elapsed < a.interval {
		return nil
	}
	a.elapsed = 0
	return a.AssignNow(buildings, workers)
}

// AssignNow runs one pass. Buildings are visited by descending priority
// (stable for equal priorities). A building stops taking workers at the first
// search that finds no candidate or whose candidate rejects the task.
func (a *Assigner) AssignNow(buildings []*Building, workers []dispatch.Worker) []Assignment {
	order := append([]*Building(nil), buildings...)
	sort.SliceStable(order, func(i, j int) bool { return order[i].Priority() > order[j].Priority() })

	var out []Assignment
	taken := map[string]bool{}
	for _, b := range order {
		if !b.AutoAssign() {
			continue
		}
		for b.AssignedCount() < b.MaxWorkers() {
			w, hauler, ok := findCandidate(b, workers, taken)
			if !ok {
				break
			}
			if !w.TryAssignTask(tasks.Craft(b, string(b.JobType()))) {
				break
			}
			taken[w.ID()] = true
			b.AddWorker(w)
			out = append(out, Assignment{BuildingID: b.EntityID(), WorkerID: w.ID(), Team: b.TeamID(), Hauler: hauler})
		}
	}
	return out
}

// findCandidate prefers a hauler when the building needs one and has none,
// then falls back to any worker able to do the recipe's job.
func findCandidate(b *Building, workers []dispatch.Worker, taken map[string]bool) (dispatch.Worker, bool, bool) {
	if b.RequiresHauler() && !b.HasHauler() {
		if w, ok := nearest(b, workers, taken, tasks.CapHaul); ok {
			return w, true, true
		}
	}
	w, ok := nearest(b, workers, taken, b.JobType())
	return w, false, ok
}

func nearest(b *Building, workers []dispatch.Worker, taken map[string]bool, c tasks.Capability) (dispatch.Worker, bool) {
	var best dispatch.Worker
	bestDist := 0
	for _, w := range workers {
		if taken[w.ID()] || w.TeamID() != b.TeamID() || !w.State().Available() {
			continue
		}
		if b.HasWorker(w.ID()) || !w.CanPerform(c) {
			continue
		}
		d := w.Pos().DistSq(b.Position())
		if best == nil || d < bestDist {
			best = w
			bestDist = d
		}
	}
	return best, best != nil
}
