package message

import (
	"slices"

	"github.com/ZentaChain/kadwire/pkg/peer"
)

// maxNeighbors bounds a neighbor set; the wire count is one byte.
const maxNeighbors = 255

// NeighborSet is a bounded collection of peer addresses with a byte
// budget. A non-negative size hint truncates the encoded list so it
// fits roughly within that many payload bytes; -1 encodes every
// neighbor. Addresses vary in size (family, relays), so the budget is
// best-effort: whole addresses are included while the running total
// stays within the hint. Decoded sets always carry a hint of -1; the
// hint is an encode-side policy, not a wire field.
type NeighborSet struct {
	sizeHint  int
	neighbors []peer.Address
}

// NewNeighborSet creates a neighbor set with the given byte budget.
func NewNeighborSet(sizeHint int, neighbors []peer.Address) *NeighborSet {
	return &NeighborSet{sizeHint: sizeHint, neighbors: slices.Clone(neighbors)}
}

// SizeHint returns the encode byte budget, -1 for unlimited.
func (n *NeighborSet) SizeHint() int { return n.sizeHint }

// Len returns the number of neighbors held, before truncation.
func (n *NeighborSet) Len() int { return len(n.neighbors) }

// Neighbors returns the full list, before truncation.
func (n *NeighborSet) Neighbors() []peer.Address { return n.neighbors }

// Add appends one neighbor.
func (n *NeighborSet) Add(a peer.Address) {
	n.neighbors = append(n.neighbors, a)
}

// wireNeighbors applies the truncation policy: the prefix of the list
// whose encoded sizes fit the hint, counting the one-byte entry count.
func (n *NeighborSet) wireNeighbors() []peer.Address {
	limit := len(n.neighbors)
	if limit > maxNeighbors {
		limit = maxNeighbors
	}
	if n.sizeHint < 0 {
		return n.neighbors[:limit]
	}
	total := 1
	for i := 0; i < limit; i++ {
		total += n.neighbors[i].EncodedSize()
		if total > n.sizeHint {
			return n.neighbors[:i]
		}
	}
	return n.neighbors[:limit]
}

// EqualNeighbors compares the address lists, ignoring the size hint.
func (n *NeighborSet) EqualNeighbors(o *NeighborSet) bool {
	if n == nil || o == nil {
		return n == o
	}
	if len(n.neighbors) != len(o.neighbors) {
		return false
	}
	for i := range n.neighbors {
		if !n.neighbors[i].Equal(o.neighbors[i]) {
			return false
		}
	}
	return true
}
