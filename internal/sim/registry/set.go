// Package registry keeps the live sets of work-bearing entities (resource
// nodes, sites, crafting buildings) and publishes their lifecycle on the
// event bus. It holds no task-generation logic.
package registry

import "stockyard.ai/internal/sim/model"

type Entity interface {
	EntityID() string
	TeamID() model.Team
}

// Set is an insertion-ordered set with a per-team index. Add and Remove are
// idempotent.
type Set[T Entity] struct {
	order  []string
	byID   map[string]T
	byTeam map[model.Team][]string
}

func NewSet[T Entity]() *Set[T] {
	return &Set[T]{
		byID:   map[string]T{},
		byTeam: map[model.Team][]string{},
	}
}

func (s *Set[T]) Add(e T) bool {
	id := e.EntityID()
	if _, ok := s.byID[id]; ok {
		return false
	}
	s.byID[id] = e
	s.order = append(s.order, id)
	s.byTeam[e.TeamID()] = append(s.byTeam[e.TeamID()], id)
	return true
}

func (s *Set[T]) Remove(id string) (T, bool) {
	e, ok := s.byID[id]
	if !ok {
		return e, false
	}
	delete(s.byID, id)
	s.order = removeID(s.order, id)
	team := e.TeamID()
	s.byTeam[team] = removeID(s.byTeam[team], id)
	if len(s.byTeam[team]) == 0 {
		delete(s.byTeam, team)
	}
	return e, true
}

func (s *Set[T]) Get(id string) (T, bool) {
	e, ok := s.byID[id]
	return e, ok
}

func (s *Set[T]) Has(id string) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *Set[T]) Len() int { return len(s.order) }

func (s *Set[T]) All() []T {
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Set[T]) Team(team model.Team) []T {
	ids := s.byTeam[team]
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
