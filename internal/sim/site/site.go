// Package site tracks construction and production sites: the reservation
// taken against the team ledger when the site is created, what has been
// delivered so far, and accumulated work.
package site

import (
	"github.com/google/uuid"

	"stockyard.ai/internal/sim/ledger"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
)

type Kind string

const (
	KindConstruction Kind = "CONSTRUCTION"
	KindProduction   Kind = "PRODUCTION"
)

type State string

const (
	StateFailed            State = "FAILED"
	StateAwaitingMaterials State = "AWAITING_MATERIALS"
	StateInProgress        State = "IN_PROGRESS"
	StateComplete          State = "COMPLETE"
)

type Params struct {
	Key          string
	Team         model.Team
	Kind         Kind
	Pos          model.Vec3i
	Costs        resources.Costs
	RequiredWork int

	// OnComplete applies the finished effect (spawn the building, queue the
	// crafted output). It runs once, after the reservation is released.
	OnComplete func(*Site)
}

type Site struct {
	key   string
	team  model.Team
	kind  Kind
	pos   model.Vec3i
	costs resources.Costs

	delivered    map[resources.Key]int
	requiredWork int
	progress     int
	builders     int

	initOK    bool
	completed bool

	ledger     *ledger.Ledger
	onComplete func(*Site)
	notify     func()
}

// New creates the site and attempts its reservation. A site whose reservation
// is denied is permanently inert; it is never retried.
func New(l *ledger.Ledger, p Params) *Site {
	key := p.Key
	if key == "" {
		key = uuid.NewString()
	}
	kind := p.Kind
	if kind == "" {
		kind = KindConstruction
	}
	s := &Site{
		key:          key,
		team:         p.Team,
		kind:         kind,
		pos:          p.Pos,
		costs:        resources.Merge(p.Costs),
		delivered:    map[resources.Key]int{},
		requiredWork: p.RequiredWork,
		ledger:       l,
		onComplete:   p.OnComplete,
	}
	if l != nil {
		s.initOK = l.ReserveForSite(s.team, s.key, s.costs)
	}
	return s
}

func (s *Site) Key() string                   { return s.key }
func (s *Site) EntityID() string              { return s.key }
func (s *Site) TeamID() model.Team            { return s.team }
func (s *Site) Kind() Kind                    { return s.kind }
func (s *Site) Position() model.Vec3i         { return s.pos }
func (s *Site) Costs() resources.Costs        { return append(resources.Costs(nil), s.costs...) }
func (s *Site) InitOK() bool                  { return s.initOK }
func (s *Site) Completed() bool               { return s.completed }
func (s *Site) Progress() int                 { return s.progress }
func (s *Site) RequiredWork() int             { return s.requiredWork }
func (s *Site) AssignedBuilders() int         { return s.builders }
func (s *Site) Delivered(k resources.Key) int { return s.delivered[resources.Normalize(string(k))] }

// SetNotifier installs the change hook. Registries set it on registration.
func (s *Site) SetNotifier(fn func()) { s.notify = fn }

func (s *Site) changed() {
	if s.notify != nil {
		s.notify()
	}
}

func (s *Site) inert() bool { return !s.initOK || s.completed }

func (s *Site) GetMissing(k resources.Key) int {
	k = resources.Normalize(string(k))
	missing := s.costs.Amount(k) - s.delivered[k]
	if missing < 0 {
		return 0
	}
	return missing
}

// ReceiveDelivery accepts at most what is still missing for k.
func (s *Site) ReceiveDelivery(k resources.Key, amount int) int {
	if amount <= 0 || s.inert() {
		return 0
	}
	k = resources.Normalize(string(k))
	accepted := min(amount, s.GetMissing(k))
	if accepted <= 0 {
		return 0
	}
	s.delivered[k] += accepted
	s.changed()
	return accepted
}

func (s *Site) MaterialsComplete() bool {
	for _, c := range s.costs {
		if s.GetMissing(c.Resource) > 0 {
			return false
		}
	}
	return true
}

// NextMissing returns the first cost line still short, in cost order.
func (s *Site) NextMissing() (resources.Key, int, bool) {
	for _, c := range s.costs {
		if n := s.GetMissing(c.Resource); n > 0 {
			return c.Resource, n, true
		}
	}
	return "", 0, false
}

// AddWork accumulates progress while materials are complete and reports
// whether the site completed.
func (s *Site) AddWork(amount int) bool {
	if amount <= 0 || s.inert() || !s.MaterialsComplete() {
		return false
	}
	s.progress += amount
	if s.progress >= s.requiredWork {
		s.Complete()
		return true
	}
	return false
}

// Complete releases the reservation and applies the finished effect. Only the
// first call has any effect.
func (s *Site) Complete() {
	if s.inert() {
		return
	}
	s.completed = true
	if s.ledger != nil {
		s.ledger.ReleaseReservation(s.team, s.key)
	}
	if s.onComplete != nil {
		s.onComplete(s)
	}
	s.changed()
}

// Abandon drops the site's reservation without completing it.
func (s *Site) Abandon() {
	if s.ledger != nil {
		s.ledger.ReleaseReservation(s.team, s.key)
	}
	s.initOK = false
	s.changed()
}

func (s *Site) AddBuilder() {
	if s.inert() {
		return
	}
	s.builders++
	s.changed()
}

func (s *Site) RemoveBuilder() {
	if s.builders <= 0 {
		return
	}
	s.builders--
	s.changed()
}

func (s *Site) State() State {
	switch {
	case s.completed:
		return StateComplete
	case !s.initOK:
		return StateFailed
	case !s.MaterialsComplete():
		return StateAwaitingMaterials
	default:
		return StateInProgress
	}
}
