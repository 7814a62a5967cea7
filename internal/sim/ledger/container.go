package ledger

import "stockyard.ai/internal/sim/resources"

// Container is a physical storage building registered with the ledger.
// Stored/Capacity are per resource; the eligibility flags gate Deposit and Withdraw.
type Container interface {
	ID() string
	Stored(k resources.Key) int
	SetStored(k resources.Key, n int)
	Capacity(k resources.Key) int
	CanReceive() bool
	CanSupply() bool
}

// Stockpile is a map-backed Container.
type Stockpile struct {
	id       string
	stored   map[resources.Key]int
	capacity map[resources.Key]int

	Receive bool
	Supply  bool
}

func NewStockpile(id string, capacity map[resources.Key]int) *Stockpile {
	cp := make(map[resources.Key]int, len(capacity))
	for k, v := range capacity {
		cp[resources.Normalize(string(k))] = v
	}
	return &Stockpile{
		id:       id,
		stored:   map[resources.Key]int{},
		capacity: cp,
		Receive:  true,
		Supply:   true,
	}
}

func (s *Stockpile) ID() string                   { return s.id }
func (s *Stockpile) Stored(k resources.Key) int   { return s.stored[k] }
func (s *Stockpile) Capacity(k resources.Key) int { return s.capacity[k] }
func (s *Stockpile) CanReceive() bool             { return s.Receive }
func (s *Stockpile) CanSupply() bool              { return s.Supply }

func (s *Stockpile) SetCapacity(k resources.Key, n int) {
	s.capacity[k] = n
}

func (s *Stockpile) SetStored(k resources.Key, n int) {
	if n <= 0 {
		delete(s.stored, k)
		return
	}
	s.stored[k] = n
}
