package model

import "stockyard.ai/internal/sim/resources"

type ClaimState int

const (
	ClaimOpen ClaimState = iota
	ClaimClaimed
	ClaimExhausted
)

// Node is a harvestable resource source with a fixed number of gatherer slots.
type Node struct {
	ID           string
	Team         Team
	Resource     resources.Key
	Pos          Vec3i
	Remaining    int
	MaxGatherers int

	activeGatherers int
	claim           ClaimState
}

func (n *Node) EntityID() string { return n.ID }
func (n *Node) TeamID() Team     { return n.Team }
func (n *Node) Position() Vec3i  { return n.Pos }

func (n *Node) ActiveGatherers() int { return n.activeGatherers }
func (n *Node) Claim() ClaimState    { return n.claim }

func (n *Node) Depleted() bool { return n.Remaining <= 0 }

// OpenSlots is the number of gatherers the node can still take. A node always
// advertises at least one slot while it has stock.
func (n *Node) OpenSlots() int {
	if n.Depleted() {
		return 0
	}
	max := n.MaxGatherers
	if max < 1 {
		max = 1
	}
	open := max - n.activeGatherers
	if open < 0 {
		return 0
	}
	return open
}

// AddGatherer takes one slot. It returns false if the node is full or depleted.
func (n *Node) AddGatherer() bool {
	if n.OpenSlots() <= 0 {
		return false
	}
	n.activeGatherers++
	n.claim = ClaimClaimed
	return true
}

func (n *Node) RemoveGatherer() {
	if n.activeGatherers <= 0 {
		return
	}
	n.activeGatherers--
	if n.activeGatherers == 0 && !n.Depleted() {
		n.claim = ClaimOpen
	}
}

// Harvest removes up to amount from the node and returns what was taken.
func (n *Node) Harvest(amount int) int {
	if amount <= 0 || n.Remaining <= 0 {
		return 0
	}
	if amount > n.Remaining {
		amount = n.Remaining
	}
	n.Remaining -= amount
	if n.Remaining <= 0 {
		n.claim = ClaimExhausted
	}
	return amount
}
