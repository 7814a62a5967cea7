package world

import (
	"encoding/json"
	"time"

	"stockyard.ai/internal/sim/tasks"
)

// StepOnce advances the world by a single tick: drain registry events,
// generate tasks, dispatch, staff crafting buildings, let workers act,
// advance production, drain again. It is the same step Run uses and is
// intended for deterministic tests.
func (w *World) StepOnce() TickLogEntry {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	w.bus.SetTick(nowTick)
	delivered := w.bus.Delivered()

	w.bus.Drain()
	w.gen.Step()

	var recs []AssignmentRecord
	for _, a := range w.dispatch.Step() {
		recs = append(recs, AssignmentRecord{
			Source:   SourceDispatch,
			WorkerID: a.WorkerID,
			Team:     a.Team,
			Kind:     a.Request.Kind,
			TargetID: a.Request.TargetID,
			DistSq:   a.DistSq,
		})
	}
	// Dispatch side effects (gatherer slots, builders, seats) feed the
	// generator before crafting runs.
	w.bus.Drain()

	for _, a := range w.assigner.Step(w.buildings.All(), w.dispatch.Workers()) {
		b, _ := w.buildings.Get(a.BuildingID)
		w.active[a.WorkerID] = tasks.Craft(b, string(b.JobType()))
		// The seat is taken; one queued request for it is now surplus.
		w.dispatch.Trim(tasks.KindCraft, a.BuildingID, a.Team, 1)
		wk, _ := w.dispatch.Worker(a.WorkerID)
		recs = append(recs, AssignmentRecord{
			Source:   SourceCrafting,
			WorkerID: a.WorkerID,
			Team:     a.Team,
			Kind:     tasks.KindCraft,
			TargetID: a.BuildingID,
			DistSq:   wk.Pos().DistSq(b.Position()),
		})
	}

	for _, wk := range w.dispatch.Workers() {
		if act, ok := wk.(Actor); ok {
			act.Act(w)
		}
	}
	for _, b := range w.buildings.All() {
		b.Advance()
	}
	w.sweepSites()
	w.bus.Drain()

	entry := TickLogEntry{
		Tick:        nowTick,
		Assignments: recs,
		Queued:      w.dispatch.QueuedByKind(),
		Ledger:      w.teamLedgers(),
		Events:      int(w.bus.Delivered() - delivered),
	}
	for _, tl := range w.tickLoggers {
		if err := tl.WriteTick(entry); err != nil {
			w.log.Printf("tick %d: write tick log: %v", nowTick, err)
		}
	}
	if len(w.observers) > 0 {
		if b, err := json.Marshal(entry); err == nil {
			for _, ch := range w.observers {
				sendLatest(ch, b)
			}
		}
	}

	nextTick := w.tick.Add(1)
	m := w.snapshotMetrics(nextTick, float64(time.Since(stepStart).Microseconds())/1000.0, entry)
	w.metrics.Store(m)
	for _, s := range w.metricsSinks {
		s.ObserveTick(m)
	}
	return entry
}
