package ledger

import (
	"sort"

	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/resources"
)

// CanAffordAvailable reports whether every cost line fits in available
// (unreserved) stock.
func (l *Ledger) CanAffordAvailable(team model.Team, costs resources.Costs) bool {
	for _, c := range resources.Merge(costs) {
		if l.GetAvailable(team, c.Resource) < c.Amount {
			return false
		}
	}
	return true
}

// ReserveForSite claims the whole cost list for siteKey, or nothing. A site key
// holds at most one live reservation.
func (l *Ledger) ReserveForSite(team model.Team, siteKey string, costs resources.Costs) bool {
	if siteKey == "" {
		return false
	}
	b := l.book(team)
	if _, ok := b.sites[siteKey]; ok {
		return false
	}
	lines := resources.Merge(costs)
	if !l.CanAffordAvailable(team, lines) {
		return false
	}
	held := make(map[resources.Key]int, len(lines))
	for _, c := range lines {
		l.entry(team, c.Resource).reservedTotal += c.Amount
		held[c.Resource] = c.Amount
	}
	b.sites[siteKey] = held
	return true
}

// ReleaseReservation returns whatever the site still holds to availability.
// Releasing an unknown or already released site is a no-op.
func (l *Ledger) ReleaseReservation(team model.Team, siteKey string) {
	b := l.teams[team]
	if b == nil {
		return
	}
	held, ok := b.sites[siteKey]
	if !ok {
		return
	}
	for k, n := range held {
		if e := b.entries[k]; e != nil {
			e.reservedTotal -= n
			if e.reservedTotal < 0 {
				e.reservedTotal = 0
			}
		}
	}
	delete(b.sites, siteKey)
}

// ConsumeReserved spends up to amount of the site's reservation for k without
// returning it to availability. It returns the amount consumed.
func (l *Ledger) ConsumeReserved(team model.Team, siteKey string, k resources.Key, amount int) int {
	if amount <= 0 {
		return 0
	}
	k = resources.Normalize(string(k))
	b := l.teams[team]
	if b == nil {
		return 0
	}
	held, ok := b.sites[siteKey]
	if !ok {
		return 0
	}
	n := min(amount, held[k])
	if n <= 0 {
		return 0
	}
	held[k] -= n
	if held[k] == 0 {
		delete(held, k)
	}
	if e := b.entries[k]; e != nil {
		e.reservedTotal -= n
		if e.reservedTotal < 0 {
			e.reservedTotal = 0
		}
	}
	return n
}

// WithdrawReserved physically takes up to amount of the site's reserved stock
// out of storage and consumes the same amount of the reservation.
func (l *Ledger) WithdrawReserved(team model.Team, siteKey string, k resources.Key, amount int) int {
	k = resources.Normalize(string(k))
	n := min(amount, l.SiteReservation(team, siteKey, k))
	if n <= 0 {
		return 0
	}
	e := l.peek(team, k)
	if e == nil {
		return 0
	}
	got := take(e, k, n)
	l.ConsumeReserved(team, siteKey, k, got)
	return got
}

func (l *Ledger) SiteReservation(team model.Team, siteKey string, k resources.Key) int {
	b := l.teams[team]
	if b == nil {
		return 0
	}
	return b.sites[siteKey][resources.Normalize(string(k))]
}

func (l *Ledger) HasReservation(team model.Team, siteKey string) bool {
	b := l.teams[team]
	if b == nil {
		return false
	}
	_, ok := b.sites[siteKey]
	return ok
}

// SiteKeys lists the team's live reservations, sorted.
func (l *Ledger) SiteKeys(team model.Team) []string {
	b := l.teams[team]
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.sites))
	for k := range b.sites {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
