package world

import "stockyard.ai/internal/sim/tasks"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Workers       int `json:"workers"`
	ActiveWorkers int `json:"active_workers"`
	Nodes         int `json:"nodes"`
	Sites         int `json:"sites"`
	Buildings     int `json:"buildings"`

	Queued      map[tasks.Kind]int `json:"queued"`
	Assignments map[tasks.Kind]int `json:"assignments"`

	AssignedTotal  uint64 `json:"assigned_total"`
	RejectedTotal  uint64 `json:"rejected_total"`
	DroppedTotal   uint64 `json:"dropped_total"`
	GeneratedTotal uint64 `json:"generated_total"`
	CanceledTotal  uint64 `json:"canceled_total"`

	InboxDepth int     `json:"inbox_depth"`
	Observers  int     `json:"observers"`
	StepMS     float64 `json:"step_ms"`

	Ledger []TeamLedger `json:"ledger"`
}

func (w *World) snapshotMetrics(tick uint64, stepMS float64, entry TickLogEntry) WorldMetrics {
	assigned := make(map[tasks.Kind]int, len(tasks.Kinds))
	for _, k := range tasks.Kinds {
		assigned[k] = 0
	}
	for _, a := range entry.Assignments {
		assigned[a.Kind]++
	}
	return WorldMetrics{
		Tick:           tick,
		Workers:        len(w.dispatch.Workers()),
		ActiveWorkers:  len(w.active),
		Nodes:          w.nodes.Len(),
		Sites:          w.sites.Len(),
		Buildings:      w.buildings.Len(),
		Queued:         entry.Queued,
		Assignments:    assigned,
		AssignedTotal:  w.dispatch.AssignedTotal(),
		RejectedTotal:  w.dispatch.RejectedTotal(),
		DroppedTotal:   w.dispatch.DroppedTotal(),
		GeneratedTotal: w.gen.QueuedTotal(),
		CanceledTotal:  w.gen.CanceledTotal(),
		InboxDepth:     len(w.inbox),
		Observers:      len(w.observers),
		StepMS:         stepMS,
		Ledger:         entry.Ledger,
	}
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
