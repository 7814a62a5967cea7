package dispatch

import (
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/tasks"
)

type WorkerState string

const (
	StateIdle      WorkerState = "IDLE"
	StateSearching WorkerState = "SEARCHING"
	StateAssigned  WorkerState = "ASSIGNED"
	StateWorking   WorkerState = "WORKING"
)

// Available reports whether a worker in this state may take a new task.
// Any state other than Idle or Searching means already committed.
func (s WorkerState) Available() bool {
	return s == StateIdle || s == StateSearching
}

// Worker is implemented by whatever spawns civilians. The dispatcher never
// creates or destroys workers.
type Worker interface {
	ID() string
	TeamID() model.Team
	Pos() model.Vec3i
	CanPerform(c tasks.Capability) bool
	State() WorkerState
	// TryAssignTask returns false to reject. An accepting worker is expected
	// to leave the available states.
	TryAssignTask(r tasks.Request) bool
}
