package world

import (
	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/tasks"
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type MetricsSink interface {
	ObserveTick(m WorldMetrics)
}

const (
	SourceDispatch = "dispatch"
	SourceCrafting = "crafting"
)

type TickLogEntry struct {
	Tick        uint64             `json:"tick"`
	Assignments []AssignmentRecord `json:"assignments,omitempty"`
	Queued      map[tasks.Kind]int `json:"queued"`
	Ledger      []TeamLedger       `json:"ledger"`
	Events      int                `json:"events"`
}

type AssignmentRecord struct {
	Source   string     `json:"source"`
	WorkerID string     `json:"worker_id"`
	Team     model.Team `json:"team"`
	Kind     tasks.Kind `json:"kind"`
	TargetID string     `json:"target_id"`
	DistSq   int        `json:"dist_sq"`
}

type TeamLedger struct {
	Team    model.Team         `json:"team"`
	Entries []ledger.EntryView `json:"entries"`
}

type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
}

type doReq struct {
	fn   func(*World)
	done chan struct{}
}
