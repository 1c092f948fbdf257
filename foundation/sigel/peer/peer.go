// Package peer maintains the set of hosts this node exchanges blocks,
// transfers and identities with.
package peer

import "sync"

// Peer represents information about a node on the network.
type Peer struct {
	Host string
}

// New constructs a new peer for the specified host.
func New(host string) Peer {
	return Peer{Host: host}
}

// Match validates if the specified host matches this peer.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// Status represents a peer's view of its chain at a point in time.
type Status struct {
	ChainHeight uint64 `json:"chain_height"`
	TipHash     string `json:"tip_hash"`
	KnownPeers  []Peer `json:"known_peers"`
}

// =============================================================================

// Set represents the data representation to maintain a set of known peers.
type Set struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewSet constructs a new set to hold peers.
func NewSet() *Set {
	return &Set{set: make(map[Peer]struct{})}
}

// Add adds a new peer to the set and reports whether it was not yet known.
func (s *Set) Add(p Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.set[p]; exists {
		return false
	}

	s.set[p] = struct{}{}
	return true
}

// Remove removes a peer from the set.
func (s *Set) Remove(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.set, p)
}

// Has reports whether the specified peer exists in the set.
func (s *Set) Has(p Peer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.set[p]
	return exists
}

// Copy returns a list of the known peers, excluding the specified host.
func (s *Set) Copy(host string) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]Peer, 0, len(s.set))
	for p := range s.set {
		if !p.Match(host) {
			peers = append(peers, p)
		}
	}

	return peers
}

// Count returns the number of known peers, excluding the specified host.
func (s *Set) Count(host string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := len(s.set)
	if _, exists := s.set[New(host)]; exists {
		count--
	}

	return count
}
