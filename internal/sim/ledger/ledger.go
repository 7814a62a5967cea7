// Package ledger keeps per-team, per-resource stock accounting across a virtual
// baseline pool and any number of registered storage containers, plus the
// site reservations drawn against that stock.
//
// A Ledger is not safe for concurrent use. It is owned by the simulation loop.
package ledger

import (
	"sort"

	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
)

type entry struct {
	baselineStored   int
	baselineCapacity int
	reservedTotal    int

	// Registration order; containers are looked up by id on every use.
	order      []string
	containers map[string]Container
}

type book struct {
	entries map[resources.Key]*entry
	sites   map[string]map[resources.Key]int
}

type Ledger struct {
	defaultCapacity int
	capacity        map[resources.Key]int

	teams map[model.Team]*book
}

type Option func(*Ledger)

// WithBaselineCapacity sets the baseline capacity new entries start with.
func WithBaselineCapacity(n int) Option {
	return func(l *Ledger) { l.defaultCapacity = n }
}

// WithResourceCapacity overrides the starting baseline capacity of one resource.
func WithResourceCapacity(k resources.Key, n int) Option {
	return func(l *Ledger) { l.capacity[resources.Normalize(string(k))] = n }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		capacity: map[resources.Key]int{},
		teams:    map[model.Team]*book{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) book(team model.Team) *book {
	b := l.teams[team]
	if b == nil {
		b = &book{
			entries: map[resources.Key]*entry{},
			sites:   map[string]map[resources.Key]int{},
		}
		l.teams[team] = b
	}
	return b
}

func (l *Ledger) entry(team model.Team, k resources.Key) *entry {
	b := l.book(team)
	e := b.entries[k]
	if e == nil {
		capacity := l.defaultCapacity
		if n, ok := l.capacity[k]; ok {
			capacity = n
		}
		if capacity < 0 {
			capacity = 0
		}
		e = &entry{baselineCapacity: capacity, containers: map[string]Container{}}
		b.entries[k] = e
	}
	return e
}

// peek returns the entry without creating it.
func (l *Ledger) peek(team model.Team, k resources.Key) *entry {
	b := l.teams[team]
	if b == nil {
		return nil
	}
	return b.entries[k]
}

func (l *Ledger) SetBaselineCapacity(team model.Team, k resources.Key, n int) {
	if n < 0 {
		n = 0
	}
	e := l.entry(team, resources.Normalize(string(k)))
	e.baselineCapacity = n
	if e.baselineStored > n {
		e.baselineStored = n
	}
}

// SetBaselineStored sets the virtual pool's stock, clamped to its capacity.
func (l *Ledger) SetBaselineStored(team model.Team, k resources.Key, n int) {
	e := l.entry(team, resources.Normalize(string(k)))
	if n < 0 {
		n = 0
	}
	if n > e.baselineCapacity {
		n = e.baselineCapacity
	}
	e.baselineStored = n
}

// RegisterContainer adds c to the team's storage for k. Registering the same
// container id twice is a no-op.
func (l *Ledger) RegisterContainer(team model.Team, k resources.Key, c Container) {
	if c == nil || c.ID() == "" {
		return
	}
	e := l.entry(team, resources.Normalize(string(k)))
	if _, ok := e.containers[c.ID()]; ok {
		return
	}
	e.containers[c.ID()] = c
	e.order = append(e.order, c.ID())
}

func (l *Ledger) UnregisterContainer(team model.Team, k resources.Key, id string) {
	e := l.peek(team, resources.Normalize(string(k)))
	if e == nil {
		return
	}
	if _, ok := e.containers[id]; !ok {
		return
	}
	delete(e.containers, id)
	for i, cid := range e.order {
		if cid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) GetStored(team model.Team, k resources.Key) int {
	k = resources.Normalize(string(k))
	e := l.peek(team, k)
	if e == nil {
		return 0
	}
	n := e.baselineStored
	for _, id := range e.order {
		if c, ok := e.containers[id]; ok {
			n += c.Stored(k)
		}
	}
	return n
}

func (l *Ledger) GetCapacity(team model.Team, k resources.Key) int {
	k = resources.Normalize(string(k))
	e := l.peek(team, k)
	if e == nil {
		return l.startingCapacity(k)
	}
	n := e.baselineCapacity
	for _, id := range e.order {
		if c, ok := e.containers[id]; ok {
			n += c.Capacity(k)
		}
	}
	return n
}

func (l *Ledger) startingCapacity(k resources.Key) int {
	if n, ok := l.capacity[k]; ok {
		return n
	}
	return l.defaultCapacity
}

func (l *Ledger) GetFree(team model.Team, k resources.Key) int {
	free := l.GetCapacity(team, k) - l.GetStored(team, k)
	if free < 0 {
		return 0
	}
	return free
}

func (l *Ledger) GetReservedTotal(team model.Team, k resources.Key) int {
	e := l.peek(team, resources.Normalize(string(k)))
	if e == nil {
		return 0
	}
	return e.reservedTotal
}

// GetAvailable is stored minus reserved. A container edited from outside the
// ledger can pull stock under the reservations; the result is clamped at zero.
func (l *Ledger) GetAvailable(team model.Team, k resources.Key) int {
	n := l.GetStored(team, k) - l.GetReservedTotal(team, k)
	if n < 0 {
		return 0
	}
	return n
}

// Deposit stores up to amount, filling the baseline pool first and then
// receiving containers in registration order. It returns what was accepted.
func (l *Ledger) Deposit(team model.Team, k resources.Key, amount int) int {
	if amount <= 0 {
		return 0
	}
	k = resources.Normalize(string(k))
	e := l.entry(team, k)
	left := amount

	if space := e.baselineCapacity - e.baselineStored; space > 0 {
		put := min(space, left)
		e.baselineStored += put
		left -= put
	}
	for _, id := range append([]string(nil), e.order...) {
		if left == 0 {
			break
		}
		c, ok := e.containers[id]
		if !ok || !c.CanReceive() {
			continue
		}
		cur := c.Stored(k)
		space := c.Capacity(k) - cur
		if space <= 0 {
			continue
		}
		put := min(space, left)
		c.SetStored(k, cur+put)
		left -= put
	}
	return amount - left
}

// Withdraw removes up to amount of unreserved stock, draining the baseline pool
// first and then supplying containers in registration order. Reserved stock
// leaves storage only through WithdrawReserved.
func (l *Ledger) Withdraw(team model.Team, k resources.Key, amount int) int {
	if amount <= 0 {
		return 0
	}
	k = resources.Normalize(string(k))
	if avail := l.GetAvailable(team, k); amount > avail {
		amount = avail
	}
	e := l.peek(team, k)
	if e == nil || amount == 0 {
		return 0
	}
	return take(e, k, amount)
}

func take(e *entry, k resources.Key, amount int) int {
	left := amount
	if e.baselineStored > 0 {
		got := min(e.baselineStored, left)
		e.baselineStored -= got
		left -= got
	}
	for _, id := range append([]string(nil), e.order...) {
		if left == 0 {
			break
		}
		c, ok := e.containers[id]
		if !ok || !c.CanSupply() {
			continue
		}
		cur := c.Stored(k)
		if cur <= 0 {
			continue
		}
		got := min(cur, left)
		c.SetStored(k, cur-got)
		left -= got
	}
	return amount - left
}

// EntryView is a read-only row of a team's ledger.
type EntryView struct {
	Resource   resources.Key `json:"resource"`
	Stored     int           `json:"stored"`
	Capacity   int           `json:"capacity"`
	Reserved   int           `json:"reserved"`
	Available  int           `json:"available"`
	Containers int           `json:"containers"`
}

// Snapshot returns the team's entries sorted by resource key.
func (l *Ledger) Snapshot(team model.Team) []EntryView {
	b := l.teams[team]
	if b == nil {
		return nil
	}
	keys := make([]resources.Key, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]EntryView, 0, len(keys))
	for _, k := range keys {
		out = append(out, EntryView{
			Resource:   k,
			Stored:     l.GetStored(team, k),
			Capacity:   l.GetCapacity(team, k),
			Reserved:   l.GetReservedTotal(team, k),
			Available:  l.GetAvailable(team, k),
			Containers: len(b.entries[k].containers),
		})
	}
	return out
}

func (l *Ledger) Teams() []model.Team {
	out := make([]model.Team, 0, len(l.teams))
	for t := range l.teams {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
